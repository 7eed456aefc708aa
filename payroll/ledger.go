/*
ledger.go - Salary aggregate persistence and invariants

PURPOSE:
  Owns the Salary record and its itemized ledger. One Salary exists per
  (teacher, month, year); the store enforces that uniqueness.

CRITICAL INVARIANTS:
  1. total_amount == session_earnings + course_revenue
                     + sum(bonus items) - sum(deduction magnitudes)
  2. Every bonus/deduction mutation updates the itemized ledger and the
     aggregate in the same store transaction - they never diverge.
  3. Regeneration is idempotent for DERIVED items: session and
     course_revenue items are deleted and re-derived; manual
     bonus/deduction items are additive events and are never touched.

CONCURRENCY:
  Adjustments are read-modify-write. A per-salary single-writer lock
  (keyedMutex) serializes them, and the item insert + aggregate update
  commit atomically via the store transaction, so concurrent
  adjustments cannot drop an update. Pay is also read-modify-write and
  runs its read and write in one store transaction so it cannot write
  a stale snapshot over a concurrent regeneration.

SEE ALSO:
  - calculator.go: Derivation of session earnings
  - finance/store.go: SalaryStore interface
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhall/ledger-engine/finance"
)

// AdjustmentKind selects the sign of a manual salary adjustment.
type AdjustmentKind string

const (
	AdjustBonus     AdjustmentKind = "bonus"
	AdjustDeduction AdjustmentKind = "deduction"
)

// Ledger owns salary records, their items, and payment state.
type Ledger struct {
	store finance.TxStore
	calc  *Calculator
	locks *keyedMutex
	now   func() time.Time
}

func NewLedger(store finance.TxStore, calc *Calculator) *Ledger {
	return &Ledger{
		store: store,
		calc:  calc,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// WithClock overrides the ledger's clock. Tests only.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// =============================================================================
// GENERATION - Derived from session data, idempotent
// =============================================================================

// Generate derives and persists the salary for (teacher, month, year).
//
// Regenerating an existing salary overwrites the derived aggregate fields
// and replaces all session/course_revenue items with freshly derived
// ones. Manual bonus/deduction items survive, and their contribution is
// folded back into the new total. Repeated generation with unchanged
// session data converges to the same item set.
func (l *Ledger) Generate(ctx context.Context, teacherID finance.TeacherID, month, year int) (*finance.Salary, error) {
	earnings, err := l.calc.SessionEarnings(ctx, teacherID, month, year)
	if err != nil {
		return nil, err
	}
	courseRevenue, err := l.calc.CourseRevenue(ctx, teacherID, month, year)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(salaryPeriodKey(teacherID, month, year))
	defer unlock()

	var stored *finance.Salary
	err = l.store.WithTx(ctx, func(s finance.Store) error {
		existing, err := s.FindSalary(ctx, teacherID, month, year)
		if err != nil {
			return err
		}

		now := l.now().UTC()
		bonus, deductions := finance.Zero(), finance.Zero()
		sal := finance.Salary{
			ID:        finance.SalaryID(uuid.NewString()),
			TeacherID: teacherID,
			Month:     month,
			Year:      year,
			Status:    finance.SalaryPending,
			CreatedAt: now,
		}
		if existing != nil {
			sal = *existing
			bonus, deductions = existing.Bonus, existing.Deductions
		}

		sal.SessionsCount = earnings.SessionsCount
		sal.SessionEarnings = earnings.Earnings
		sal.Bonus = bonus
		sal.Deductions = deductions
		sal.TotalAmount = earnings.Earnings.Add(courseRevenue).Add(bonus).Sub(deductions)
		sal.UpdatedAt = now

		stored, err = s.UpsertSalary(ctx, sal)
		if err != nil {
			return err
		}

		// Replace derived items. Delete-then-insert inside the same
		// transaction: no window where the salary has zero line items.
		if err := s.DeleteDerivedSalaryItems(ctx, stored.ID); err != nil {
			return err
		}
		for _, sess := range earnings.Sessions {
			item := finance.SalaryItem{
				ID:          finance.SalaryItemID(uuid.NewString()),
				SalaryID:    stored.ID,
				Description: fmt.Sprintf("Session on %s", sess.HeldAt.Format("2006-01-02")),
				Type:        finance.ItemSession,
				Amount:      earnings.HourlyRate,
				SessionID:   sess.ID,
				CreatedAt:   now,
			}
			if err := s.InsertSalaryItem(ctx, item); err != nil {
				return err
			}
		}
		if courseRevenue.IsPositive() {
			item := finance.SalaryItem{
				ID:          finance.SalaryItemID(uuid.NewString()),
				SalaryID:    stored.ID,
				Description: fmt.Sprintf("Course revenue share %d/%d", month, year),
				Type:        finance.ItemCourseRevenue,
				Amount:      courseRevenue,
				CreatedAt:   now,
			}
			if err := s.InsertSalaryItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// =============================================================================
// MANUAL CREATE/UPDATE - Caller-supplied figures
// =============================================================================

// SalaryInput carries caller-supplied aggregate figures for manual salary
// entry.
type SalaryInput struct {
	TeacherID       finance.TeacherID
	Month           int
	Year            int
	SessionsCount   int
	SessionEarnings finance.Money
	TotalAmount     finance.Money
	Notes           string
}

// ItemInput is one caller-supplied salary line.
type ItemInput struct {
	Description string
	Type        finance.SalaryItemType
	Amount      finance.Money
	SessionID   finance.SessionID
}

// CreateOrUpdate upserts a salary from caller-supplied figures - the
// manual/override variant of Generate. Derived items are replaced by the
// supplied items; manual bonus/deduction items already on the salary are
// left alone.
func (l *Ledger) CreateOrUpdate(ctx context.Context, in SalaryInput, items []ItemInput) (*finance.Salary, error) {
	if in.TeacherID == "" {
		return nil, finance.NewValidationError("teacher_id", "is required")
	}
	if _, _, err := finance.MonthRange(in.Month, in.Year); err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(salaryPeriodKey(in.TeacherID, in.Month, in.Year))
	defer unlock()

	var stored *finance.Salary
	err := l.store.WithTx(ctx, func(s finance.Store) error {
		existing, err := s.FindSalary(ctx, in.TeacherID, in.Month, in.Year)
		if err != nil {
			return err
		}

		now := l.now().UTC()
		sal := finance.Salary{
			ID:        finance.SalaryID(uuid.NewString()),
			TeacherID: in.TeacherID,
			Month:     in.Month,
			Year:      in.Year,
			Status:    finance.SalaryPending,
			CreatedAt: now,
		}
		if existing != nil {
			sal = *existing
		}

		sal.SessionsCount = in.SessionsCount
		sal.SessionEarnings = in.SessionEarnings
		sal.TotalAmount = in.TotalAmount
		sal.Notes = in.Notes
		sal.UpdatedAt = now

		stored, err = s.UpsertSalary(ctx, sal)
		if err != nil {
			return err
		}

		if err := s.DeleteDerivedSalaryItems(ctx, stored.ID); err != nil {
			return err
		}
		for _, it := range items {
			item := finance.SalaryItem{
				ID:          finance.SalaryItemID(uuid.NewString()),
				SalaryID:    stored.ID,
				Description: it.Description,
				Type:        it.Type,
				Amount:      it.Amount,
				SessionID:   it.SessionID,
				CreatedAt:   now,
			}
			if err := s.InsertSalaryItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// =============================================================================
// ADJUSTMENTS - Bonus and deduction, exact-total invariant
// =============================================================================

// ApplyAdjustment records a manual bonus or deduction: one SalaryItem
// plus the matching aggregate update, committed atomically. Bonus items
// are stored with a positive amount, deduction items with a negative
// amount; the Bonus/Deductions counters accumulate magnitudes.
func (l *Ledger) ApplyAdjustment(ctx context.Context, salaryID finance.SalaryID, kind AdjustmentKind, amount finance.Money, description string) (*finance.Salary, error) {
	if kind != AdjustBonus && kind != AdjustDeduction {
		return nil, finance.NewValidationError("kind", fmt.Sprintf("unknown adjustment kind %q", kind))
	}
	if amount.IsZero() || amount.IsNegative() {
		return nil, finance.NewValidationError("amount", "must be positive")
	}
	if description == "" {
		return nil, finance.NewValidationError("description", "is required")
	}

	unlock := l.locks.Lock(string(salaryID))
	defer unlock()

	var updated *finance.Salary
	err := l.store.WithTx(ctx, func(s finance.Store) error {
		sal, err := s.GetSalary(ctx, salaryID)
		if err != nil {
			return err
		}
		if sal == nil {
			return &finance.NotFoundError{Kind: "salary", ID: string(salaryID)}
		}

		now := l.now().UTC()
		signed := amount
		itemType := finance.ItemBonus
		if kind == AdjustDeduction {
			signed = amount.Neg()
			itemType = finance.ItemDeduction
		}

		item := finance.SalaryItem{
			ID:          finance.SalaryItemID(uuid.NewString()),
			SalaryID:    salaryID,
			Description: description,
			Type:        itemType,
			Amount:      signed,
			CreatedAt:   now,
		}
		if err := s.InsertSalaryItem(ctx, item); err != nil {
			return err
		}

		sal.TotalAmount = sal.TotalAmount.Add(signed)
		if kind == AdjustBonus {
			sal.Bonus = sal.Bonus.Add(amount)
		} else {
			sal.Deductions = sal.Deductions.Add(amount)
		}
		sal.UpdatedAt = now

		if err := s.UpdateSalary(ctx, *sal); err != nil {
			return err
		}
		updated = sal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// =============================================================================
// PAYMENT
// =============================================================================

// Pay marks the salary paid and records how. Re-paying an already paid
// salary re-stamps paid_at rather than failing; the transition is not
// guarded against re-entry.
//
// The read and write run in one store transaction: Pay writes the full
// row back, so a Generate or adjustment committing between them would
// otherwise be clobbered by Pay's stale snapshot.
func (l *Ledger) Pay(ctx context.Context, id finance.SalaryID, method, reference string) (*finance.Salary, error) {
	if method == "" {
		return nil, finance.NewValidationError("payment_method", "is required")
	}

	var paid *finance.Salary
	err := l.store.WithTx(ctx, func(s finance.Store) error {
		sal, err := s.GetSalary(ctx, id)
		if err != nil {
			return err
		}
		if sal == nil {
			return &finance.NotFoundError{Kind: "salary", ID: string(id)}
		}

		now := l.now().UTC()
		sal.Status = finance.SalaryPaid
		sal.PaidAt = &now
		sal.PaymentMethod = method
		sal.PaymentRef = reference
		sal.UpdatedAt = now

		if err := s.UpdateSalary(ctx, *sal); err != nil {
			return err
		}
		paid = sal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// =============================================================================
// READS
// =============================================================================

func (l *Ledger) Get(ctx context.Context, id finance.SalaryID) (*finance.Salary, error) {
	sal, err := l.store.GetSalary(ctx, id)
	if err != nil {
		return nil, err
	}
	if sal == nil {
		return nil, &finance.NotFoundError{Kind: "salary", ID: string(id)}
	}
	return sal, nil
}

func (l *Ledger) Items(ctx context.Context, id finance.SalaryID) ([]finance.SalaryItem, error) {
	sal, err := l.store.GetSalary(ctx, id)
	if err != nil {
		return nil, err
	}
	if sal == nil {
		return nil, &finance.NotFoundError{Kind: "salary", ID: string(id)}
	}
	return l.store.ListSalaryItems(ctx, id)
}

func (l *Ledger) ListByTeacher(ctx context.Context, teacherID finance.TeacherID) ([]finance.Salary, error) {
	if teacherID == "" {
		return nil, finance.NewValidationError("teacher_id", "is required")
	}
	return l.store.ListSalariesByTeacher(ctx, teacherID)
}

func salaryPeriodKey(teacherID finance.TeacherID, month, year int) string {
	return fmt.Sprintf("%s/%d-%d", teacherID, year, month)
}
