/*
store.go - Persistence interfaces for the financial records

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage.

KEY INTERFACES:
  TransactionStore: Tuition payment/refund persistence
  SalaryStore:      Salary aggregates + itemized ledger lines
  InvoiceStore:     Invoices + line items
  Store:            Union of the three record stores
  TxStore:          Store with multi-statement transaction support

ATOMICITY:
  Operations that perform multiple dependent writes MUST run under
  WithTx so they commit or roll back as a unit:
    - refund: insert refund + update original
    - salary regeneration: upsert + delete derived items + insert items
    - adjustment: insert item + update aggregate
    - invoice: insert invoice + bulk-insert items
  This closes the partial-write windows the single-round-trip design
  would otherwise have.

UNIQUENESS:
  Implementations enforce:
    - receipt_number unique on transactions
    - invoice_number unique on invoices
    - (teacher_id, month, year) unique on salaries
    - at most one refund per original transaction
  Violations surface as ErrDuplicateNumber / ErrAlreadyRefunded.

READ-ONLY COLLABORATORS:
  SessionSource and TeacherDirectory expose session and teacher-profile
  data owned by the surrounding platform. The payroll calculator only
  reads them.

IMPLEMENTATIONS:
  - store/sqlite:       Production SQLite
  - finance/store:      In-memory for testing

SEE ALSO:
  - transactions/, payroll/, invoices/: Domain logic over these interfaces
*/
package finance

import (
	"context"
	"time"
)

// =============================================================================
// RECORD STORES
// =============================================================================

// TransactionStore persists tuition payments and refunds.
type TransactionStore interface {
	// InsertTransaction persists a new transaction. Fails with
	// ErrDuplicateNumber if the receipt number already exists.
	InsertTransaction(ctx context.Context, tx Transaction) error

	// GetTransaction returns nil (no error) when the id does not exist.
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	// UpdateTransaction overwrites the stored record with the same ID.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// FindRefundOf returns the refund transaction referencing the given
	// receipt number, or nil when none exists. Used to make refund
	// creation idempotent under retry.
	FindRefundOf(ctx context.Context, receiptNumber string) (*Transaction, error)

	// ListTransactionsByStudent returns the student's transactions,
	// newest first.
	ListTransactionsByStudent(ctx context.Context, studentID StudentID) ([]Transaction, error)
}

// SalaryStore persists salary aggregates and their itemized lines.
type SalaryStore interface {
	GetSalary(ctx context.Context, id SalaryID) (*Salary, error)

	// FindSalary looks up the unique salary for (teacher, month, year).
	// Returns nil when none exists.
	FindSalary(ctx context.Context, teacherID TeacherID, month, year int) (*Salary, error)

	// UpsertSalary inserts or overwrites the salary keyed on
	// (teacher_id, month, year), preserving the existing ID on update.
	// Returns the stored record.
	UpsertSalary(ctx context.Context, s Salary) (*Salary, error)

	// UpdateSalary overwrites the stored record with the same ID.
	UpdateSalary(ctx context.Context, s Salary) error

	ListSalariesByTeacher(ctx context.Context, teacherID TeacherID) ([]Salary, error)

	InsertSalaryItem(ctx context.Context, item SalaryItem) error

	// DeleteDerivedSalaryItems removes session and course_revenue items
	// for the salary. Manual bonus/deduction items are never touched.
	DeleteDerivedSalaryItems(ctx context.Context, salaryID SalaryID) error

	// ListSalaryItems returns the salary's items in insertion order.
	ListSalaryItems(ctx context.Context, salaryID SalaryID) ([]SalaryItem, error)
}

// InvoiceStore persists invoices and their line items.
type InvoiceStore interface {
	// InsertInvoice fails with ErrDuplicateNumber if the invoice number
	// already exists.
	InsertInvoice(ctx context.Context, inv Invoice) error

	InsertInvoiceItems(ctx context.Context, items []InvoiceItem) error

	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)

	ListInvoiceItems(ctx context.Context, invoiceID InvoiceID) ([]InvoiceItem, error)
}

// Store is the full record store consumed by the domain packages.
type Store interface {
	TransactionStore
	SalaryStore
	InvoiceStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with multi-statement transaction support.
// If fn returns an error the transaction is rolled back, otherwise
// committed. All multi-write ledger operations run through WithTx.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// READ-ONLY COLLABORATORS
// =============================================================================

// SessionSource provides read access to tutoring sessions. Owned by the
// scheduling subsystem; the payroll calculator only reads it.
type SessionSource interface {
	// CompletedSessions returns the teacher's completed sessions with
	// HeldAt in [from, to], chronologically.
	CompletedSessions(ctx context.Context, teacherID TeacherID, from, to time.Time) ([]SessionRecord, error)
}

// TeacherDirectory provides read access to teacher profiles.
type TeacherDirectory interface {
	// GetTeacher returns nil (no error) when the teacher does not exist.
	GetTeacher(ctx context.Context, id TeacherID) (*TeacherProfile, error)
}
