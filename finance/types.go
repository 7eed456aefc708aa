/*
types.go - Record types and identifiers for the financial core

PURPOSE:
  Defines the five persisted record types and the typed identifiers used
  throughout the engine. These are storage-shaped domain records, not API
  DTOs - the api package has its own JSON representations.

RECORDS:
  Transaction:  A payment or refund event against a student
  Salary:       One payroll aggregate per (teacher, month, year)
  SalaryItem:   One itemized line owned by a Salary
  Invoice:      A billing document for a teacher over a period
  InvoiceItem:  One line owned by an Invoice

OWNERSHIP:
  SalaryItem and InvoiceItem belong to exactly one parent and are never
  shared. A refund Transaction references its original via the receipt
  number in RefundOf - a back-reference, not ownership; the original is
  never deleted.

SEE ALSO:
  - store.go: Persistence interfaces over these records
  - numbers.go: Receipt/invoice number generation
*/
package finance

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TransactionID string
type SalaryID string
type SalaryItemID string
type InvoiceID string
type InvoiceItemID string

type StudentID string
type TeacherID string
type BatchID string
type CourseID string
type SessionID string

// =============================================================================
// TRANSACTION - Tuition payment or refund
// =============================================================================

type TransactionType string

const (
	TxPayment TransactionType = "payment"
	TxRefund  TransactionType = "refund"
)

type TransactionStatus string

const (
	// TxPending -> TxCompleted is the only forward edge. A completed
	// transaction may become the source of a refund, transitioning to
	// TxRefunded while a new completed refund transaction is created.
	// No transition leaves TxRefunded.
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxRefunded  TransactionStatus = "refunded"
)

type Transaction struct {
	ID            TransactionID
	ReceiptNumber string // unique, REC-YYYYMMDD-NNNN
	StudentID     StudentID
	BatchID       BatchID
	CourseID      CourseID // empty when the payment is not course-scoped
	Amount        Money    // refunds carry the refunded amount as a positive value
	Type          TransactionType
	Status        TransactionStatus
	Notes         string // for refunds: human-readable back-reference to the original receipt
	RefundOf      string // refunds only: the original transaction's receipt number
	PaidAt        *time.Time
	CreatedAt     time.Time
	CreatedBy     string // actor recorded from the gateway capability
}

// =============================================================================
// SALARY - One payroll aggregate per (teacher, month, year)
// =============================================================================

type SalaryStatus string

const (
	SalaryPending SalaryStatus = "pending"
	SalaryPaid    SalaryStatus = "paid"
)

type Salary struct {
	ID              SalaryID
	TeacherID       TeacherID
	Month           int // 1-12
	Year            int
	SessionsCount   int
	SessionEarnings Money
	TotalAmount     Money // session earnings + course revenue + bonuses - deductions
	Bonus           Money // cumulative bonus magnitude
	Deductions      Money // cumulative deduction magnitude
	Status          SalaryStatus
	PaidAt          *time.Time
	PaymentMethod   string
	PaymentRef      string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// =============================================================================
// SALARY ITEM - One line in a salary's ledger
// =============================================================================

type SalaryItemType string

const (
	ItemSession       SalaryItemType = "session"        // derived: replaced on regeneration
	ItemCourseRevenue SalaryItemType = "course_revenue" // derived: replaced on regeneration
	ItemBonus         SalaryItemType = "bonus"          // manual: additive event, never regenerated
	ItemDeduction     SalaryItemType = "deduction"      // manual: additive event, never regenerated
)

// IsDerived reports whether items of this type are recomputed from session
// data. Derived items are deleted and re-inserted on salary regeneration;
// manual items are untouched.
func (t SalaryItemType) IsDerived() bool {
	return t == ItemSession || t == ItemCourseRevenue
}

type SalaryItem struct {
	ID          SalaryItemID
	SalaryID    SalaryID
	Description string
	Type        SalaryItemType
	Amount      Money // signed: deductions are stored negative
	SessionID   SessionID
	CreatedAt   time.Time
}

// =============================================================================
// INVOICE - Billing document for a teacher over a period
// =============================================================================

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
)

type Invoice struct {
	ID            InvoiceID
	InvoiceNumber string // unique, INV-YYYYMMDD-NNNN
	TeacherID     TeacherID
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Subtotal      Money
	CustomAmount  Money
	TotalAmount   Money
	Notes         string
	Status        InvoiceStatus
	CreatedAt     time.Time
}

type InvoiceItem struct {
	ID          InvoiceItemID
	InvoiceID   InvoiceID
	Description string
	Quantity    int
	Amount      Money // line total, caller-supplied
}

// =============================================================================
// PAYROLL READ MODELS - Supplied by external session/teacher data
// =============================================================================

// SessionRecord is the read-only view of a tutoring session used by the
// payroll calculator. Session CRUD lives outside this engine.
type SessionRecord struct {
	ID        SessionID
	TeacherID TeacherID
	CourseID  CourseID
	HeldAt    time.Time
	Status    string
}

const SessionCompleted = "completed"

// TeacherProfile is the read-only teacher view. HourlyRate is nil when the
// teacher has no rate configured; callers fall back to DefaultHourlyRate.
type TeacherProfile struct {
	ID         TeacherID
	Name       string
	HourlyRate *Money
}
