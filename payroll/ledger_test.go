package payroll_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhall/ledger-engine/finance"
	"github.com/tutorhall/ledger-engine/payroll"
	"github.com/tutorhall/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestPayroll(t *testing.T) (*payroll.Ledger, *sqlite.Store) {
	store := newTestStore(t)
	calc := payroll.NewCalculator(store, store)
	return payroll.NewLedger(store, calc), store
}

func seedMarchSessions(t *testing.T, store *sqlite.Store, teacherID string, days ...int) {
	t.Helper()
	for _, day := range days {
		seedSession(t, store, fmt.Sprintf("s-%s-%d", teacherID, day),
			teacherID, time.Date(2026, time.March, day, 10, 0, 0, 0, time.UTC), finance.SessionCompleted)
	}
}

// =============================================================================
// GENERATION
// =============================================================================

func TestPayroll_Generate(t *testing.T) {
	// GIVEN: A teacher at 150/session with 3 completed March sessions
	// WHEN: Generating the March salary
	// THEN: count=3, earnings=450, total=450, one session item per session

	ledger, store := newTestPayroll(t)
	ctx := context.Background()

	seedTeacher(t, store, "teacher-1", rateOf(150))
	seedMarchSessions(t, store, "teacher-1", 2, 9, 30)

	sal, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
	require.NoError(t, err)

	assert.Equal(t, 3, sal.SessionsCount)
	assert.True(t, sal.SessionEarnings.Equal(finance.NewMoneyFromInt(450)))
	assert.True(t, sal.TotalAmount.Equal(finance.NewMoneyFromInt(450)))
	assert.Equal(t, finance.SalaryPending, sal.Status)

	items, err := ledger.Items(ctx, sal.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, finance.ItemSession, item.Type)
		assert.True(t, item.Amount.Equal(finance.NewMoneyFromInt(150)))
		assert.NotEmpty(t, item.SessionID)
	}
}

func TestPayroll_Generate_Idempotent(t *testing.T) {
	// GIVEN: A salary generated for March
	// WHEN: Generating again with unchanged session data
	// THEN: Same salary ID, same totals, no duplicate items

	ledger, store := newTestPayroll(t)
	ctx := context.Background()

	seedTeacher(t, store, "teacher-1", rateOf(150))
	seedMarchSessions(t, store, "teacher-1", 2, 9)

	first, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
	require.NoError(t, err)

	second, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "regeneration must not re-key the salary")
	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))

	items, err := ledger.Items(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2, "derived items are replaced, not accumulated")
}

func TestPayroll_Generate_PreservesManualAdjustments(t *testing.T) {
	// GIVEN: A generated salary with a manual 50 bonus
	// WHEN: Regenerating after a new session appears
	// THEN: The bonus item survives and its amount is folded into the total

	ledger, store := newTestPayroll(t)
	ctx := context.Background()

	seedTeacher(t, store, "teacher-1", rateOf(150))
	seedMarchSessions(t, store, "teacher-1", 2)

	sal, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
	require.NoError(t, err)

	_, err = ledger.ApplyAdjustment(ctx, sal.ID, payroll.AdjustBonus, finance.NewMoneyFromInt(50), "March bonus")
	require.NoError(t, err)

	seedMarchSessions(t, store, "teacher-1", 9)
	regenerated, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
	require.NoError(t, err)

	// 2 sessions * 150 + 50 bonus
	assert.True(t, regenerated.TotalAmount.Equal(finance.NewMoneyFromInt(350)),
		"total = %s", regenerated.TotalAmount)
	assert.True(t, regenerated.Bonus.Equal(finance.NewMoneyFromInt(50)))

	items, err := ledger.Items(ctx, regenerated.ID)
	require.NoError(t, err)

	var sessions, bonuses int
	for _, item := range items {
		switch item.Type {
		case finance.ItemSession:
			sessions++
		case finance.ItemBonus:
			bonuses++
		}
	}
	assert.Equal(t, 2, sessions)
	assert.Equal(t, 1, bonuses, "manual bonus item survives regeneration")
}

func TestPayroll_Generate_UnknownTeacher(t *testing.T) {
	ledger, _ := newTestPayroll(t)

	_, err := ledger.Generate(context.Background(), "ghost", 3, 2026)
	assert.ErrorIs(t, err, finance.ErrNotFound)
}

// =============================================================================
// MANUAL CREATE/UPDATE
// =============================================================================

func TestPayroll_CreateOrUpdate(t *testing.T) {
	ledger, _ := newTestPayroll(t)
	ctx := context.Background()

	sal, err := ledger.CreateOrUpdate(ctx, payroll.SalaryInput{
		TeacherID:       "teacher-1",
		Month:           3,
		Year:            2026,
		SessionsCount:   2,
		SessionEarnings: finance.NewMoneyFromInt(300),
		TotalAmount:     finance.NewMoneyFromInt(300),
	}, []payroll.ItemInput{
		{Description: "Session on 2026-03-02", Type: finance.ItemSession, Amount: finance.NewMoneyFromInt(150)},
		{Description: "Session on 2026-03-09", Type: finance.ItemSession, Amount: finance.NewMoneyFromInt(150)},
	})
	require.NoError(t, err)

	assert.True(t, sal.TotalAmount.Equal(finance.NewMoneyFromInt(300)))

	// Upsert for the same period keeps the same record
	updated, err := ledger.CreateOrUpdate(ctx, payroll.SalaryInput{
		TeacherID:       "teacher-1",
		Month:           3,
		Year:            2026,
		SessionsCount:   1,
		SessionEarnings: finance.NewMoneyFromInt(150),
		TotalAmount:     finance.NewMoneyFromInt(150),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, sal.ID, updated.ID)
}

func TestPayroll_CreateOrUpdate_Validation(t *testing.T) {
	ledger, _ := newTestPayroll(t)
	ctx := context.Background()

	_, err := ledger.CreateOrUpdate(ctx, payroll.SalaryInput{Month: 3, Year: 2026}, nil)
	assert.ErrorIs(t, err, finance.ErrValidation, "missing teacher_id")

	_, err = ledger.CreateOrUpdate(ctx, payroll.SalaryInput{TeacherID: "t", Month: 13, Year: 2026}, nil)
	assert.ErrorIs(t, err, finance.ErrValidation, "month out of range")
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func TestPayroll_ApplyAdjustment_BonusAndDeduction(t *testing.T) {
	// GIVEN: A salary with total 450
	// WHEN: Adding a 100 bonus and a 30 deduction
	// THEN: total=520, bonus=100, deductions=30, signed items recorded

	ledger, store := newTestPayroll(t)
	ctx := context.Background()

	seedTeacher(t, store, "teacher-1", rateOf(150))
	seedMarchSessions(t, store, "teacher-1", 2, 9, 30)
	sal, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
	require.NoError(t, err)

	_, err = ledger.ApplyAdjustment(ctx, sal.ID, payroll.AdjustBonus, finance.NewMoneyFromInt(100), "Great reviews")
	require.NoError(t, err)

	updated, err := ledger.ApplyAdjustment(ctx, sal.ID, payroll.AdjustDeduction, finance.NewMoneyFromInt(30), "Late cancellation fee")
	require.NoError(t, err)

	assert.True(t, updated.TotalAmount.Equal(finance.NewMoneyFromInt(520)), "total = %s", updated.TotalAmount)
	assert.True(t, updated.Bonus.Equal(finance.NewMoneyFromInt(100)))
	assert.True(t, updated.Deductions.Equal(finance.NewMoneyFromInt(30)))

	items, err := ledger.Items(ctx, sal.ID)
	require.NoError(t, err)
	for _, item := range items {
		if item.Type == finance.ItemDeduction {
			assert.True(t, item.Amount.IsNegative(), "deduction items are stored negative")
		}
	}
}

func TestPayroll_ApplyAdjustment_ConcurrentAdjustmentsAllLand(t *testing.T) {
	// GIVEN: A salary with total 150
	// WHEN: 10 goroutines each add a 10 bonus concurrently
	// THEN: All 10 land: total=250, bonus=100, 10 bonus items

	ledger, store := newTestPayroll(t)
	ctx := context.Background()

	seedTeacher(t, store, "teacher-1", rateOf(150))
	seedMarchSessions(t, store, "teacher-1", 2)
	sal, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.ApplyAdjustment(ctx, sal.ID, payroll.AdjustBonus, finance.NewMoneyFromInt(10), "Concurrent bonus")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := ledger.Get(ctx, sal.ID)
	require.NoError(t, err)
	assert.True(t, final.TotalAmount.Equal(finance.NewMoneyFromInt(250)), "total = %s", final.TotalAmount)
	assert.True(t, final.Bonus.Equal(finance.NewMoneyFromInt(100)), "bonus = %s", final.Bonus)

	items, err := ledger.Items(ctx, sal.ID)
	require.NoError(t, err)

	var bonuses int
	for _, item := range items {
		if item.Type == finance.ItemBonus {
			bonuses++
		}
	}
	assert.Equal(t, 10, bonuses, "every adjustment writes exactly one item")
}

func TestPayroll_ApplyAdjustment_Validation(t *testing.T) {
	ledger, _ := newTestPayroll(t)
	ctx := context.Background()

	_, err := ledger.ApplyAdjustment(ctx, "sal-1", "raise", finance.NewMoneyFromInt(10), "x")
	assert.ErrorIs(t, err, finance.ErrValidation, "unknown kind")

	_, err = ledger.ApplyAdjustment(ctx, "sal-1", payroll.AdjustBonus, finance.NewMoneyFromInt(-10), "x")
	assert.ErrorIs(t, err, finance.ErrValidation, "negative amount")

	_, err = ledger.ApplyAdjustment(ctx, "sal-1", payroll.AdjustBonus, finance.NewMoneyFromInt(10), "")
	assert.ErrorIs(t, err, finance.ErrValidation, "missing description")

	_, err = ledger.ApplyAdjustment(ctx, "missing", payroll.AdjustBonus, finance.NewMoneyFromInt(10), "x")
	assert.ErrorIs(t, err, finance.ErrNotFound)
}

// =============================================================================
// PAYMENT
// =============================================================================

func TestPayroll_Pay(t *testing.T) {
	ledger, store := newTestPayroll(t)
	ctx := context.Background()

	seedTeacher(t, store, "teacher-1", rateOf(150))
	seedMarchSessions(t, store, "teacher-1", 2)
	sal, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
	require.NoError(t, err)

	paid, err := ledger.Pay(ctx, sal.ID, "bank_transfer", "TXN-42")
	require.NoError(t, err)

	assert.Equal(t, finance.SalaryPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, "bank_transfer", paid.PaymentMethod)
	assert.Equal(t, "TXN-42", paid.PaymentRef)
}

func TestPayroll_Pay_DoesNotClobberConcurrentGenerate(t *testing.T) {
	// GIVEN: A generated salary of 150 and a freshly completed second session
	// WHEN: Pay and the regeneration run concurrently
	// THEN: The final record carries the regenerated total AND the payment;
	//       neither write is lost regardless of interleaving

	ledger, store := newTestPayroll(t)
	ctx := context.Background()

	seedTeacher(t, store, "teacher-1", rateOf(150))
	seedMarchSessions(t, store, "teacher-1", 2)
	sal, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
	require.NoError(t, err)
	require.True(t, sal.TotalAmount.Equal(finance.NewMoneyFromInt(150)))

	seedMarchSessions(t, store, "teacher-1", 9)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := ledger.Generate(ctx, "teacher-1", 3, 2026)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := ledger.Pay(ctx, sal.ID, "bank_transfer", "TXN-43")
		assert.NoError(t, err)
	}()
	wg.Wait()

	final, err := ledger.Get(ctx, sal.ID)
	require.NoError(t, err)
	assert.True(t, final.TotalAmount.Equal(finance.NewMoneyFromInt(300)), "total = %s", final.TotalAmount)
	assert.Equal(t, finance.SalaryPaid, final.Status)
	require.NotNil(t, final.PaidAt)
	assert.Equal(t, "bank_transfer", final.PaymentMethod)
}

func TestPayroll_Pay_Validation(t *testing.T) {
	ledger, _ := newTestPayroll(t)
	ctx := context.Background()

	_, err := ledger.Pay(ctx, "sal-1", "", "")
	assert.ErrorIs(t, err, finance.ErrValidation, "missing payment method")

	_, err = ledger.Pay(ctx, "missing", "cash", "")
	assert.ErrorIs(t, err, finance.ErrNotFound)
}
