/*
gateway.go - The single-endpoint ledger gateway and read handlers

PURPOSE:
  Exposes the financial engine over HTTP. All mutations arrive at one
  endpoint, POST /api/ledger, as a JSON body with an "action"
  discriminator; reads are plain GET routes.

ACTIONS:
  create_transaction    Record a tuition payment
  complete_transaction  Mark a pending payment completed
  refund_transaction    Refund a completed payment (full or partial)
  generate_salary       Derive a salary from session data
  create_salary         Upsert a salary from caller-supplied figures
  pay_salary            Mark a salary paid
  add_bonus             Add a bonus line to a salary
  add_deduction         Add a deduction line to a salary
  create_invoice        Create an invoice with items

  Any other action value fails with 400 "Invalid action".

ERROR HANDLING:
  Domain errors map to HTTP status at this boundary and nowhere else:
  - 400: validation failures, not-refundable state
  - 404: record not found
  - 409: duplicate document number, already refunded
  - 500: persistence failures
  A PartialFailureWarning still returns 200 with the primary record plus
  a warning string.

AUTHENTICATION:
  None. The X-Actor header, when present, is recorded as created_by on
  transactions for audit. Deployments front this with their own auth.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tutorhall/ledger-engine/finance"
	"github.com/tutorhall/ledger-engine/invoices"
	"github.com/tutorhall/ledger-engine/payroll"
	"github.com/tutorhall/ledger-engine/transactions"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Transactions *transactions.Ledger
	Payroll      *payroll.Ledger
	Invoices     *invoices.Generator

	validate *validator.Validate
}

// NewHandler creates a new handler over the three domain ledgers.
func NewHandler(tx *transactions.Ledger, pay *payroll.Ledger, inv *invoices.Generator) *Handler {
	return &Handler{
		Transactions: tx,
		Payroll:      pay,
		Invoices:     inv,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// GATEWAY DISPATCH
// =============================================================================

// Ledger is the gateway entrypoint.
// POST /api/ledger
func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	var env actionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	switch env.Action {
	case "create_transaction":
		h.createTransaction(w, r, body)
	case "complete_transaction":
		h.completeTransaction(w, r, body)
	case "refund_transaction":
		h.refundTransaction(w, r, body)
	case "generate_salary":
		h.generateSalary(w, r, body)
	case "create_salary":
		h.createSalary(w, r, body)
	case "pay_salary":
		h.paySalary(w, r, body)
	case "add_bonus":
		h.adjustSalary(w, r, body, payroll.AdjustBonus)
	case "add_deduction":
		h.adjustSalary(w, r, body, payroll.AdjustDeduction)
	case "create_invoice":
		h.createInvoice(w, r, body)
	default:
		writeError(w, http.StatusBadRequest, "Invalid action", nil)
	}
}

// decodeAndValidate unmarshals the body into req and runs struct
// validation. Writes the error response itself; the caller only needs
// the boolean.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, body []byte, req any) bool {
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// TRANSACTION ACTIONS
// =============================================================================

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request, body []byte) {
	var req CreateTransactionRequest
	if !h.decodeAndValidate(w, body, &req) {
		return
	}

	tx, err := h.Transactions.Create(r.Context(), transactions.CreateInput{
		StudentID: finance.StudentID(req.StudentID),
		BatchID:   finance.BatchID(req.BatchID),
		CourseID:  finance.CourseID(req.CourseID),
		Amount:    req.Amount,
		Status:    finance.TransactionStatus(req.Status),
		Notes:     req.Notes,
		Actor:     actorFrom(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toTransactionDTO(tx), "")
}

func (h *Handler) completeTransaction(w http.ResponseWriter, r *http.Request, body []byte) {
	var req CompleteTransactionRequest
	if !h.decodeAndValidate(w, body, &req) {
		return
	}

	tx, err := h.Transactions.Complete(r.Context(), finance.TransactionID(req.TransactionID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toTransactionDTO(tx), "")
}

func (h *Handler) refundTransaction(w http.ResponseWriter, r *http.Request, body []byte) {
	var req RefundTransactionRequest
	if !h.decodeAndValidate(w, body, &req) {
		return
	}

	refund, err := h.Transactions.Refund(r.Context(), finance.TransactionID(req.TransactionID), req.Amount, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toTransactionDTO(refund), "")
}

// =============================================================================
// SALARY ACTIONS
// =============================================================================

func (h *Handler) generateSalary(w http.ResponseWriter, r *http.Request, body []byte) {
	var req GenerateSalaryRequest
	if !h.decodeAndValidate(w, body, &req) {
		return
	}

	sal, err := h.Payroll.Generate(r.Context(), finance.TeacherID(req.TeacherID), req.Month, req.Year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSalaryDTO(sal), "")
}

func (h *Handler) createSalary(w http.ResponseWriter, r *http.Request, body []byte) {
	var req CreateSalaryRequest
	if !h.decodeAndValidate(w, body, &req) {
		return
	}

	items := make([]payroll.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = payroll.ItemInput{
			Description: it.Description,
			Type:        finance.SalaryItemType(it.Type),
			Amount:      it.Amount,
			SessionID:   finance.SessionID(it.SessionID),
		}
	}

	sal, err := h.Payroll.CreateOrUpdate(r.Context(), payroll.SalaryInput{
		TeacherID:       finance.TeacherID(req.TeacherID),
		Month:           req.Month,
		Year:            req.Year,
		SessionsCount:   req.SessionsCount,
		SessionEarnings: req.SessionEarnings,
		TotalAmount:     req.TotalAmount,
		Notes:           req.Notes,
	}, items)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSalaryDTO(sal), "")
}

func (h *Handler) paySalary(w http.ResponseWriter, r *http.Request, body []byte) {
	var req PaySalaryRequest
	if !h.decodeAndValidate(w, body, &req) {
		return
	}

	sal, err := h.Payroll.Pay(r.Context(), finance.SalaryID(req.SalaryID), req.PaymentMethod, req.PaymentRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSalaryDTO(sal), "")
}

func (h *Handler) adjustSalary(w http.ResponseWriter, r *http.Request, body []byte, kind payroll.AdjustmentKind) {
	var req AdjustSalaryRequest
	if !h.decodeAndValidate(w, body, &req) {
		return
	}

	sal, err := h.Payroll.ApplyAdjustment(r.Context(), finance.SalaryID(req.SalaryID), kind, req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSalaryDTO(sal), "")
}

// =============================================================================
// INVOICE ACTIONS
// =============================================================================

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request, body []byte) {
	var req CreateInvoiceRequest
	if !h.decodeAndValidate(w, body, &req) {
		return
	}

	periodStart, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start, want YYYY-MM-DD", err)
		return
	}
	periodEnd, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end, want YYYY-MM-DD", err)
		return
	}

	items := make([]invoices.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = invoices.ItemInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			Amount:      it.Amount,
		}
	}

	inv, err := h.Invoices.Create(r.Context(), invoices.CreateInput{
		TeacherID:    finance.TeacherID(req.TeacherID),
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		Subtotal:     req.Subtotal,
		CustomAmount: req.CustomAmount,
		TotalAmount:  req.TotalAmount,
		Notes:        req.Notes,
		Items:        items,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toInvoiceDTO(inv, nil), "")
}

// =============================================================================
// READ HANDLERS
// =============================================================================

// ListTransactions returns a student's transaction history.
// GET /api/transactions?student_id=...
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student_id")

	txs, err := h.Transactions.ListByStudent(r.Context(), finance.StudentID(studentID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	writeData(w, http.StatusOK, dtos, "")
}

// GetTransaction returns a single transaction.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tx, err := h.Transactions.Get(r.Context(), finance.TransactionID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toTransactionDTO(tx), "")
}

// ListSalaries returns a teacher's salary records.
// GET /api/salaries?teacher_id=...
func (h *Handler) ListSalaries(w http.ResponseWriter, r *http.Request) {
	teacherID := r.URL.Query().Get("teacher_id")

	sals, err := h.Payroll.ListByTeacher(r.Context(), finance.TeacherID(teacherID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]SalaryDTO, len(sals))
	for i := range sals {
		dtos[i] = toSalaryDTO(&sals[i])
	}
	writeData(w, http.StatusOK, dtos, "")
}

// GetSalary returns a single salary.
// GET /api/salaries/{id}
func (h *Handler) GetSalary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sal, err := h.Payroll.Get(r.Context(), finance.SalaryID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSalaryDTO(sal), "")
}

// GetSalaryItems returns a salary's itemized ledger.
// GET /api/salaries/{id}/items
func (h *Handler) GetSalaryItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	items, err := h.Payroll.Items(r.Context(), finance.SalaryID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]SalaryItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toSalaryItemDTO(it)
	}
	writeData(w, http.StatusOK, dtos, "")
}

// GetInvoice returns an invoice with its items.
// GET /api/invoices/{id}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, items, err := h.Invoices.Get(r.Context(), finance.InvoiceID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toInvoiceDTO(inv, items), "")
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any, warning string) {
	writeJSON(w, status, DataResponse{Data: data, Warning: warning})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to its HTTP status. This is the
// only place domain errors meet HTTP.
func writeDomainError(w http.ResponseWriter, err error) {
	var partial *finance.PartialFailureWarning
	if errors.As(err, &partial) {
		writeData(w, http.StatusOK, partial.Result, partial.Warning)
		return
	}

	switch {
	case finance.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case finance.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case finance.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// actorFrom extracts the audit actor from the request. Empty when the
// caller sends no X-Actor header.
func actorFrom(r *http.Request) string {
	return r.Header.Get("X-Actor")
}
