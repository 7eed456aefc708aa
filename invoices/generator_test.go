package invoices_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhall/ledger-engine/finance"
	"github.com/tutorhall/ledger-engine/invoices"
	"github.com/tutorhall/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestGenerator(t *testing.T) *invoices.Generator {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return invoices.NewGenerator(store)
}

func money(n int64) finance.Money { return finance.NewMoneyFromInt(n) }

func marchPeriod() (time.Time, time.Time) {
	return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// CREATE
// =============================================================================

func TestGenerator_Create(t *testing.T) {
	// GIVEN: Two items totaling 450 and a custom amount of 50
	// WHEN: Creating the invoice with matching totals
	// THEN: It persists with an INV- number and both items

	gen := newTestGenerator(t)
	ctx := context.Background()
	start, end := marchPeriod()

	inv, err := gen.Create(ctx, invoices.CreateInput{
		TeacherID:    "teacher-1",
		PeriodStart:  start,
		PeriodEnd:    end,
		Subtotal:     money(450),
		CustomAmount: money(50),
		TotalAmount:  money(500),
		Items: []invoices.ItemInput{
			{Description: "3 sessions in March", Quantity: 3, Amount: money(450)},
		},
	})
	require.NoError(t, err)

	assert.True(t, finance.IsInvoiceNumber(inv.InvoiceNumber), "got %q", inv.InvoiceNumber)
	assert.Equal(t, finance.InvoicePending, inv.Status)

	stored, items, err := gen.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(money(500)))
	require.Len(t, items, 1)
	assert.Equal(t, "3 sessions in March", items[0].Description)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestGenerator_Create_SubtotalMismatchRejected(t *testing.T) {
	// GIVEN: Items summing to 450
	// WHEN: The caller claims a subtotal of 400
	// THEN: The invoice is rejected with a validation error

	gen := newTestGenerator(t)
	start, end := marchPeriod()

	_, err := gen.Create(context.Background(), invoices.CreateInput{
		TeacherID:   "teacher-1",
		PeriodStart: start,
		PeriodEnd:   end,
		Subtotal:    money(400),
		TotalAmount: money(400),
		Items: []invoices.ItemInput{
			{Description: "Sessions", Amount: money(450)},
		},
	})
	assert.ErrorIs(t, err, finance.ErrValidation)
}

func TestGenerator_Create_TotalMismatchRejected(t *testing.T) {
	gen := newTestGenerator(t)
	start, end := marchPeriod()

	_, err := gen.Create(context.Background(), invoices.CreateInput{
		TeacherID:    "teacher-1",
		PeriodStart:  start,
		PeriodEnd:    end,
		Subtotal:     money(450),
		CustomAmount: money(50),
		TotalAmount:  money(450), // should be 500
		Items: []invoices.ItemInput{
			{Description: "Sessions", Amount: money(450)},
		},
	})
	assert.ErrorIs(t, err, finance.ErrValidation)
}

func TestGenerator_Create_NegativeCustomAmount(t *testing.T) {
	// Custom amounts may be negative (credits, carryovers)
	gen := newTestGenerator(t)
	start, end := marchPeriod()

	inv, err := gen.Create(context.Background(), invoices.CreateInput{
		TeacherID:    "teacher-1",
		PeriodStart:  start,
		PeriodEnd:    end,
		Subtotal:     money(450),
		CustomAmount: money(-100),
		TotalAmount:  money(350),
		Items: []invoices.ItemInput{
			{Description: "Sessions", Amount: money(450)},
		},
	})
	require.NoError(t, err)
	assert.True(t, inv.TotalAmount.Equal(money(350)))
}

func TestGenerator_Create_Validation(t *testing.T) {
	gen := newTestGenerator(t)
	ctx := context.Background()
	start, end := marchPeriod()

	_, err := gen.Create(ctx, invoices.CreateInput{
		PeriodStart: start, PeriodEnd: end,
		Items: []invoices.ItemInput{{Description: "x", Amount: money(1)}},
	})
	assert.ErrorIs(t, err, finance.ErrValidation, "missing teacher_id")

	_, err = gen.Create(ctx, invoices.CreateInput{
		TeacherID: "teacher-1", PeriodStart: end, PeriodEnd: start,
		Items: []invoices.ItemInput{{Description: "x", Amount: money(1)}},
	})
	assert.ErrorIs(t, err, finance.ErrValidation, "inverted period")

	_, err = gen.Create(ctx, invoices.CreateInput{
		TeacherID: "teacher-1", PeriodStart: start, PeriodEnd: end,
	})
	assert.ErrorIs(t, err, finance.ErrValidation, "no items")

	_, err = gen.Create(ctx, invoices.CreateInput{
		TeacherID: "teacher-1", PeriodStart: start, PeriodEnd: end,
		Subtotal: money(1), TotalAmount: money(1),
		Items: []invoices.ItemInput{{Amount: money(1)}},
	})
	assert.ErrorIs(t, err, finance.ErrValidation, "item without description")
}

// =============================================================================
// READS
// =============================================================================

func TestGenerator_Get_NotFound(t *testing.T) {
	gen := newTestGenerator(t)

	_, _, err := gen.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, finance.ErrNotFound)
}
