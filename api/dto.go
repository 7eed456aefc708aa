/*
dto.go - Data Transfer Objects for the ledger gateway

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain records from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation (struct tags, go-playground/validator)
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ENVELOPE:
  Every gateway response is wrapped:
    success: {"data": ...}            optionally {"data": ..., "warning": "..."}
    failure: {"error": "...", "details": "..."}

MONEY:
  Amounts travel as JSON numbers and are decoded through finance.Money,
  which accepts both numbers and numeric strings without float drift.

SEE ALSO:
  - gateway.go: Uses these types
  - finance/types.go: The domain records these mirror
*/
package api

import (
	"time"

	"github.com/tutorhall/ledger-engine/finance"
)

// =============================================================================
// REQUEST TYPES - one per gateway action
// =============================================================================

// actionEnvelope is the first-pass decode of a gateway request: only the
// action discriminator. The body is then re-decoded into the concrete
// request type for that action.
type actionEnvelope struct {
	Action string `json:"action"`
}

// CreateTransactionRequest records a tuition payment.
type CreateTransactionRequest struct {
	StudentID string        `json:"student_id" validate:"required"`
	BatchID   string        `json:"batch_id"`
	CourseID  string        `json:"course_id"`
	Amount    finance.Money `json:"amount"`
	Status    string        `json:"status" validate:"omitempty,oneof=pending completed"`
	Notes     string        `json:"notes"`
}

// CompleteTransactionRequest marks a pending transaction paid.
type CompleteTransactionRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
}

// RefundTransactionRequest refunds a completed transaction. Amount is
// optional; omitted means a full refund.
type RefundTransactionRequest struct {
	TransactionID string         `json:"transaction_id" validate:"required"`
	Amount        *finance.Money `json:"amount,omitempty"`
}

// GenerateSalaryRequest derives a salary from session data.
type GenerateSalaryRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Month     int    `json:"month" validate:"required,min=1,max=12"`
	Year      int    `json:"year" validate:"required"`
}

// SalaryItemRequest is one caller-supplied salary line.
type SalaryItemRequest struct {
	Description string        `json:"description" validate:"required"`
	Type        string        `json:"type" validate:"required,oneof=session course_revenue bonus deduction"`
	Amount      finance.Money `json:"amount"`
	SessionID   string        `json:"session_id"`
}

// CreateSalaryRequest upserts a salary from caller-supplied figures - the
// manual variant of generate_salary.
type CreateSalaryRequest struct {
	TeacherID       string              `json:"teacher_id" validate:"required"`
	Month           int                 `json:"month" validate:"required,min=1,max=12"`
	Year            int                 `json:"year" validate:"required"`
	SessionsCount   int                 `json:"sessions_count"`
	SessionEarnings finance.Money       `json:"session_earnings"`
	TotalAmount     finance.Money       `json:"total_amount"`
	Notes           string              `json:"notes"`
	Items           []SalaryItemRequest `json:"items" validate:"dive"`
}

// PaySalaryRequest marks a salary paid.
type PaySalaryRequest struct {
	SalaryID      string `json:"salary_id" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	PaymentRef    string `json:"payment_ref"`
}

// AdjustSalaryRequest adds a bonus or deduction line. The action name
// (add_bonus / add_deduction) selects the kind.
type AdjustSalaryRequest struct {
	SalaryID    string        `json:"salary_id" validate:"required"`
	Amount      finance.Money `json:"amount"`
	Description string        `json:"description" validate:"required"`
}

// InvoiceItemRequest is one caller-supplied invoice line.
type InvoiceItemRequest struct {
	Description string        `json:"description" validate:"required"`
	Quantity    int           `json:"quantity"`
	Amount      finance.Money `json:"amount"`
}

// CreateInvoiceRequest creates an invoice with its items. Totals are
// verified server-side against the item list.
type CreateInvoiceRequest struct {
	TeacherID    string               `json:"teacher_id" validate:"required"`
	PeriodStart  string               `json:"period_start" validate:"required"`
	PeriodEnd    string               `json:"period_end" validate:"required"`
	Subtotal     finance.Money        `json:"subtotal"`
	CustomAmount finance.Money        `json:"custom_amount"`
	TotalAmount  finance.Money        `json:"total_amount"`
	Notes        string               `json:"notes"`
	Items        []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// DataResponse wraps every successful gateway response.
type DataResponse struct {
	Data    any    `json:"data"`
	Warning string `json:"warning,omitempty"`
}

// ErrorResponse wraps every failed gateway response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	ID            string        `json:"id"`
	ReceiptNumber string        `json:"receipt_number"`
	StudentID     string        `json:"student_id"`
	BatchID       string        `json:"batch_id,omitempty"`
	CourseID      string        `json:"course_id,omitempty"`
	Amount        finance.Money `json:"amount"`
	Type          string        `json:"type"`
	Status        string        `json:"status"`
	Notes         string        `json:"notes,omitempty"`
	RefundOf      string        `json:"refund_of,omitempty"`
	PaidAt        *string       `json:"paid_at,omitempty"`
	CreatedAt     string        `json:"created_at"`
	CreatedBy     string        `json:"created_by,omitempty"`
}

// SalaryDTO represents a salary in API responses.
type SalaryDTO struct {
	ID              string        `json:"id"`
	TeacherID       string        `json:"teacher_id"`
	Month           int           `json:"month"`
	Year            int           `json:"year"`
	SessionsCount   int           `json:"sessions_count"`
	SessionEarnings finance.Money `json:"session_earnings"`
	TotalAmount     finance.Money `json:"total_amount"`
	Bonus           finance.Money `json:"bonus"`
	Deductions      finance.Money `json:"deductions"`
	Status          string        `json:"status"`
	PaidAt          *string       `json:"paid_at,omitempty"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	PaymentRef      string        `json:"payment_ref,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       string        `json:"created_at"`
	UpdatedAt       string        `json:"updated_at"`
}

// SalaryItemDTO represents a salary line in API responses.
type SalaryItemDTO struct {
	ID          string        `json:"id"`
	SalaryID    string        `json:"salary_id"`
	Description string        `json:"description"`
	Type        string        `json:"type"`
	Amount      finance.Money `json:"amount"`
	SessionID   string        `json:"session_id,omitempty"`
	CreatedAt   string        `json:"created_at"`
}

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID            string           `json:"id"`
	InvoiceNumber string           `json:"invoice_number"`
	TeacherID     string           `json:"teacher_id"`
	PeriodStart   string           `json:"period_start"`
	PeriodEnd     string           `json:"period_end"`
	Subtotal      finance.Money    `json:"subtotal"`
	CustomAmount  finance.Money    `json:"custom_amount"`
	TotalAmount   finance.Money    `json:"total_amount"`
	Notes         string           `json:"notes,omitempty"`
	Status        string           `json:"status"`
	CreatedAt     string           `json:"created_at"`
	Items         []InvoiceItemDTO `json:"items,omitempty"`
}

// InvoiceItemDTO represents an invoice line in API responses.
type InvoiceItemDTO struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Quantity    int           `json:"quantity"`
	Amount      finance.Money `json:"amount"`
}

// =============================================================================
// DOMAIN -> DTO CONVERSION
// =============================================================================

func toTransactionDTO(t *finance.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            string(t.ID),
		ReceiptNumber: t.ReceiptNumber,
		StudentID:     string(t.StudentID),
		BatchID:       string(t.BatchID),
		CourseID:      string(t.CourseID),
		Amount:        t.Amount,
		Type:          string(t.Type),
		Status:        string(t.Status),
		Notes:         t.Notes,
		RefundOf:      t.RefundOf,
		PaidAt:        formatTimePtr(t.PaidAt),
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		CreatedBy:     t.CreatedBy,
	}
}

func toSalaryDTO(s *finance.Salary) SalaryDTO {
	return SalaryDTO{
		ID:              string(s.ID),
		TeacherID:       string(s.TeacherID),
		Month:           s.Month,
		Year:            s.Year,
		SessionsCount:   s.SessionsCount,
		SessionEarnings: s.SessionEarnings,
		TotalAmount:     s.TotalAmount,
		Bonus:           s.Bonus,
		Deductions:      s.Deductions,
		Status:          string(s.Status),
		PaidAt:          formatTimePtr(s.PaidAt),
		PaymentMethod:   s.PaymentMethod,
		PaymentRef:      s.PaymentRef,
		Notes:           s.Notes,
		CreatedAt:       s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.Format(time.RFC3339),
	}
}

func toSalaryItemDTO(i finance.SalaryItem) SalaryItemDTO {
	return SalaryItemDTO{
		ID:          string(i.ID),
		SalaryID:    string(i.SalaryID),
		Description: i.Description,
		Type:        string(i.Type),
		Amount:      i.Amount,
		SessionID:   string(i.SessionID),
		CreatedAt:   i.CreatedAt.Format(time.RFC3339),
	}
}

func toInvoiceDTO(inv *finance.Invoice, items []finance.InvoiceItem) InvoiceDTO {
	dto := InvoiceDTO{
		ID:            string(inv.ID),
		InvoiceNumber: inv.InvoiceNumber,
		TeacherID:     string(inv.TeacherID),
		PeriodStart:   inv.PeriodStart.Format("2006-01-02"),
		PeriodEnd:     inv.PeriodEnd.Format("2006-01-02"),
		Subtotal:      inv.Subtotal,
		CustomAmount:  inv.CustomAmount,
		TotalAmount:   inv.TotalAmount,
		Notes:         inv.Notes,
		Status:        string(inv.Status),
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
	}
	for _, it := range items {
		dto.Items = append(dto.Items, InvoiceItemDTO{
			ID:          string(it.ID),
			Description: it.Description,
			Quantity:    it.Quantity,
			Amount:      it.Amount,
		})
	}
	return dto
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
