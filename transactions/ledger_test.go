package transactions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhall/ledger-engine/finance"
	"github.com/tutorhall/ledger-engine/store/sqlite"
	"github.com/tutorhall/ledger-engine/transactions"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) *transactions.Ledger {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return transactions.NewLedger(store)
}

func money(n int64) finance.Money { return finance.NewMoneyFromInt(n) }

// =============================================================================
// CREATE
// =============================================================================

func TestLedger_Create_DefaultsToPending(t *testing.T) {
	// GIVEN: A payment with no status override
	// WHEN: Creating it
	// THEN: It is a pending payment with a receipt number and no paid_at

	ledger := newTestLedger(t)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1",
		BatchID:   "batch-1",
		Amount:    money(500),
		Actor:     "admin@tutorhall.test",
	})
	require.NoError(t, err)

	assert.Equal(t, finance.TxPayment, tx.Type)
	assert.Equal(t, finance.TxPending, tx.Status)
	assert.True(t, finance.IsReceiptNumber(tx.ReceiptNumber), "got %q", tx.ReceiptNumber)
	assert.Nil(t, tx.PaidAt)
	assert.Equal(t, "admin@tutorhall.test", tx.CreatedBy)
}

func TestLedger_Create_CompletedStampsPaidAt(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1",
		Amount:    money(500),
		Status:    finance.TxCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t, finance.TxCompleted, tx.Status)
	require.NotNil(t, tx.PaidAt)
}

func TestLedger_Create_Validation(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Create(ctx, transactions.CreateInput{Amount: money(500)})
	assert.ErrorIs(t, err, finance.ErrValidation, "missing student_id")

	_, err = ledger.Create(ctx, transactions.CreateInput{StudentID: "student-1"})
	assert.ErrorIs(t, err, finance.ErrValidation, "missing amount")

	_, err = ledger.Create(ctx, transactions.CreateInput{StudentID: "student-1", Amount: money(-5)})
	assert.ErrorIs(t, err, finance.ErrValidation, "negative amount")

	_, err = ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500), Status: finance.TxRefunded,
	})
	assert.ErrorIs(t, err, finance.ErrValidation, "refunded is not a valid initial status")
}

// =============================================================================
// COMPLETE
// =============================================================================

func TestLedger_Complete(t *testing.T) {
	// GIVEN: A pending payment of 500
	// WHEN: Completing it
	// THEN: Status flips to completed and paid_at is stamped

	ledger := newTestLedger(t)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500),
	})
	require.NoError(t, err)

	completed, err := ledger.Complete(ctx, tx.ID)
	require.NoError(t, err)

	assert.Equal(t, finance.TxCompleted, completed.Status)
	require.NotNil(t, completed.PaidAt)
}

func TestLedger_Complete_NotFound(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Complete(context.Background(), "missing")
	assert.ErrorIs(t, err, finance.ErrNotFound)
}

func TestLedger_Complete_RefundedStaysRefunded(t *testing.T) {
	// GIVEN: A completed 500 payment that was refunded
	// WHEN: Completing the original again
	// THEN: ErrAlreadyRefunded; the original never leaves refunded

	ledger := newTestLedger(t)
	ctx := context.Background()

	original, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500), Status: finance.TxCompleted,
	})
	require.NoError(t, err)
	_, err = ledger.Refund(ctx, original.ID, nil, "")
	require.NoError(t, err)

	_, err = ledger.Complete(ctx, original.ID)
	assert.ErrorIs(t, err, finance.ErrAlreadyRefunded)

	stored, err := ledger.Get(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.TxRefunded, stored.Status)
}

func TestLedger_Complete_RefundTransactionRejected(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	original, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500), Status: finance.TxCompleted,
	})
	require.NoError(t, err)
	refund, err := ledger.Refund(ctx, original.ID, nil, "")
	require.NoError(t, err)

	_, err = ledger.Complete(ctx, refund.ID)
	assert.ErrorIs(t, err, finance.ErrValidation)
}

// =============================================================================
// REFUND
// =============================================================================

func TestLedger_Refund_PartialAmount(t *testing.T) {
	// GIVEN: A student paid 500 and the payment is completed
	// WHEN: Refunding 200
	// THEN: A new completed refund of 200 references the original receipt,
	//       and the original flips to refunded

	ledger := newTestLedger(t)
	ctx := context.Background()

	original, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500),
	})
	require.NoError(t, err)
	_, err = ledger.Complete(ctx, original.ID)
	require.NoError(t, err)

	amount := money(200)
	refund, err := ledger.Refund(ctx, original.ID, &amount, "admin@tutorhall.test")
	require.NoError(t, err)

	assert.Equal(t, finance.TxRefund, refund.Type)
	assert.Equal(t, finance.TxCompleted, refund.Status)
	assert.True(t, refund.Amount.Equal(money(200)))
	assert.Equal(t, original.ReceiptNumber, refund.RefundOf)
	assert.Contains(t, refund.Notes, original.ReceiptNumber)

	updated, err := ledger.Get(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.TxRefunded, updated.Status)
	assert.True(t, updated.Amount.Equal(money(500)), "original amount is never rewritten")
}

func TestLedger_Refund_DefaultsToFullAmount(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	original, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500), Status: finance.TxCompleted,
	})
	require.NoError(t, err)

	refund, err := ledger.Refund(ctx, original.ID, nil, "")
	require.NoError(t, err)
	assert.True(t, refund.Amount.Equal(money(500)))
}

func TestLedger_Refund_SecondRefundRejected(t *testing.T) {
	// GIVEN: A completed payment that was already refunded
	// WHEN: Refunding it again
	// THEN: ErrAlreadyRefunded; no second refund transaction appears

	ledger := newTestLedger(t)
	ctx := context.Background()

	original, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500), Status: finance.TxCompleted,
	})
	require.NoError(t, err)

	_, err = ledger.Refund(ctx, original.ID, nil, "")
	require.NoError(t, err)

	_, err = ledger.Refund(ctx, original.ID, nil, "")
	assert.ErrorIs(t, err, finance.ErrAlreadyRefunded)

	history, err := ledger.ListByStudent(ctx, "student-1")
	require.NoError(t, err)
	assert.Len(t, history, 2, "exactly one payment and one refund")
}

func TestLedger_Refund_PendingRejected(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	pending, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500),
	})
	require.NoError(t, err)

	_, err = ledger.Refund(ctx, pending.ID, nil, "")
	assert.ErrorIs(t, err, finance.ErrNotRefundable)
}

func TestLedger_Refund_AmountExceedsOriginal(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	original, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500), Status: finance.TxCompleted,
	})
	require.NoError(t, err)

	tooMuch := money(600)
	_, err = ledger.Refund(ctx, original.ID, &tooMuch, "")
	assert.ErrorIs(t, err, finance.ErrValidation)
}

func TestLedger_Refund_OfRefundRejected(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	original, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-1", Amount: money(500), Status: finance.TxCompleted,
	})
	require.NoError(t, err)

	refund, err := ledger.Refund(ctx, original.ID, nil, "")
	require.NoError(t, err)

	_, err = ledger.Refund(ctx, refund.ID, nil, "")
	assert.ErrorIs(t, err, finance.ErrValidation)
}

func TestLedger_Refund_NotFound(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Refund(context.Background(), "missing", nil, "")
	assert.ErrorIs(t, err, finance.ErrNotFound)
}

// =============================================================================
// READS
// =============================================================================

func TestLedger_ListByStudent_NewestFirst(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ledger.Create(ctx, transactions.CreateInput{
			StudentID: "student-1", Amount: money(100),
		})
		require.NoError(t, err)
	}
	_, err := ledger.Create(ctx, transactions.CreateInput{
		StudentID: "student-2", Amount: money(100),
	})
	require.NoError(t, err)

	history, err := ledger.ListByStudent(ctx, "student-1")
	require.NoError(t, err)
	assert.Len(t, history, 3)
	for _, tx := range history {
		assert.Equal(t, finance.StudentID("student-1"), tx.StudentID)
	}
}

func TestLedger_ListByStudent_RequiresStudentID(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.ListByStudent(context.Background(), "")
	assert.ErrorIs(t, err, finance.ErrValidation)
}
