/*
Package transactions implements the tuition transaction ledger.

PURPOSE:
  Records tuition payments and refunds against a student and owns the
  transaction status transitions:

    pending -> completed -> refunded

  pending -> completed is the only forward edge. completed -> refunded
  spawns a new completed refund transaction as a side effect. No
  transition leaves refunded.

REFUNDS:
  A refund never deletes or rewrites history. Refunding transaction T
  creates a NEW transaction R (type=refund, status=completed) whose
  RefundOf field carries T's receipt number, then flips T's status to
  refunded. Both writes happen inside one store transaction, and the
  store enforces at most one refund per original, so a retried refund
  cannot duplicate.

SEE ALSO:
  - finance/types.go: Transaction record and status constants
  - payroll/: The salary side of the ledger
*/
package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhall/ledger-engine/finance"
)

// Ledger records tuition payments and refunds.
type Ledger struct {
	store finance.TxStore
	now   func() time.Time
}

func NewLedger(store finance.TxStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// WithClock overrides the ledger's clock. Tests only.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries the caller-supplied fields for a new transaction.
type CreateInput struct {
	StudentID finance.StudentID
	BatchID   finance.BatchID
	CourseID  finance.CourseID
	Amount    finance.Money
	Status    finance.TransactionStatus // optional override; defaults to pending
	Notes     string
	Actor     string
}

// Create records a new payment transaction with a generated receipt
// number. Status defaults to pending unless the caller overrides it.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (*finance.Transaction, error) {
	if in.StudentID == "" {
		return nil, finance.NewValidationError("student_id", "is required")
	}
	if in.Amount.IsZero() {
		return nil, finance.NewValidationError("amount", "is required")
	}
	if in.Amount.IsNegative() {
		return nil, finance.NewValidationError("amount", "must be positive")
	}

	status := in.Status
	if status == "" {
		status = finance.TxPending
	}
	if status != finance.TxPending && status != finance.TxCompleted {
		return nil, finance.NewValidationError("status", fmt.Sprintf("invalid initial status %q", status))
	}

	now := l.now().UTC()
	tx := finance.Transaction{
		ID:            finance.TransactionID(uuid.NewString()),
		ReceiptNumber: finance.NewReceiptNumber(now),
		StudentID:     in.StudentID,
		BatchID:       in.BatchID,
		CourseID:      in.CourseID,
		Amount:        in.Amount,
		Type:          finance.TxPayment,
		Status:        status,
		Notes:         in.Notes,
		CreatedAt:     now,
		CreatedBy:     in.Actor,
	}
	if status == finance.TxCompleted {
		paidAt := now
		tx.PaidAt = &paidAt
	}

	if err := l.store.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// =============================================================================
// COMPLETE
// =============================================================================

// Complete marks a transaction completed and stamps paid_at.
// Re-completing an already completed transaction re-stamps paid_at
// rather than failing, but refunded is terminal: a refunded original
// stays refunded, and refund transactions themselves cannot be
// completed.
func (l *Ledger) Complete(ctx context.Context, id finance.TransactionID) (*finance.Transaction, error) {
	tx, err := l.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, &finance.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	if tx.Type == finance.TxRefund {
		return nil, finance.NewValidationError("id", "cannot complete a refund transaction")
	}
	if tx.Status == finance.TxRefunded {
		return nil, finance.ErrAlreadyRefunded
	}

	paidAt := l.now().UTC()
	tx.Status = finance.TxCompleted
	tx.PaidAt = &paidAt

	if err := l.store.UpdateTransaction(ctx, *tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// =============================================================================
// REFUND
// =============================================================================

// Refund creates a refund transaction for the original identified by id
// and flips the original's status to refunded. amount defaults to the
// original amount when nil; partial refunds pass a smaller amount.
//
// The pair of writes runs in one store transaction. If a refund already
// exists for the original (a retried request, or a concurrent caller),
// ErrAlreadyRefunded is returned and nothing is written.
func (l *Ledger) Refund(ctx context.Context, id finance.TransactionID, amount *finance.Money, actor string) (*finance.Transaction, error) {
	var refund finance.Transaction

	err := l.store.WithTx(ctx, func(s finance.Store) error {
		original, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if original == nil {
			return &finance.NotFoundError{Kind: "transaction", ID: string(id)}
		}
		if original.Type == finance.TxRefund {
			return finance.NewValidationError("id", "cannot refund a refund transaction")
		}
		if original.Status != finance.TxCompleted {
			if original.Status == finance.TxRefunded {
				return finance.ErrAlreadyRefunded
			}
			return finance.ErrNotRefundable
		}

		existing, err := s.FindRefundOf(ctx, original.ReceiptNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return finance.ErrAlreadyRefunded
		}

		refundAmount := original.Amount
		if amount != nil {
			if amount.IsNegative() || amount.IsZero() {
				return finance.NewValidationError("amount", "must be positive")
			}
			if amount.GreaterThan(original.Amount) {
				return finance.NewValidationError("amount", "exceeds original transaction amount")
			}
			refundAmount = *amount
		}

		now := l.now().UTC()
		refund = finance.Transaction{
			ID:            finance.TransactionID(uuid.NewString()),
			ReceiptNumber: finance.NewReceiptNumber(now),
			StudentID:     original.StudentID,
			BatchID:       original.BatchID,
			CourseID:      original.CourseID,
			Amount:        refundAmount,
			Type:          finance.TxRefund,
			Status:        finance.TxCompleted,
			Notes:         fmt.Sprintf("Refund for %s", original.ReceiptNumber),
			RefundOf:      original.ReceiptNumber,
			PaidAt:        &now,
			CreatedAt:     now,
			CreatedBy:     actor,
		}

		if err := s.InsertTransaction(ctx, refund); err != nil {
			return err
		}

		original.Status = finance.TxRefunded
		return s.UpdateTransaction(ctx, *original)
	})
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// =============================================================================
// READS
// =============================================================================

func (l *Ledger) Get(ctx context.Context, id finance.TransactionID) (*finance.Transaction, error) {
	tx, err := l.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, &finance.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return tx, nil
}

func (l *Ledger) ListByStudent(ctx context.Context, studentID finance.StudentID) ([]finance.Transaction, error) {
	if studentID == "" {
		return nil, finance.NewValidationError("student_id", "is required")
	}
	return l.store.ListTransactionsByStudent(ctx, studentID)
}
