/*
Package payroll implements teacher salary computation.

PURPOSE:
  Two pieces:
  - Calculator: pure read-only derivation of session earnings and course
    revenue for a (teacher, month, year)
  - Ledger: the salary aggregate and its itemized lines, including
    idempotent regeneration, manual bonus/deduction adjustments, and
    payment

CALCULATION:
  Session earnings are flat-rate: completed sessions in the calendar
  month multiplied by the teacher's hourly rate (default 100 when the
  profile has no rate). Course revenue share is an acknowledged stub -
  there is no teacher->course enrollment join yet, so it derives zero.

SEE ALSO:
  - ledger.go: Salary persistence and invariants
  - finance/store.go: SessionSource and TeacherDirectory collaborators
*/
package payroll

import (
	"context"

	"github.com/tutorhall/ledger-engine/finance"
)

// DefaultHourlyRate applies when a teacher profile has no configured rate.
var DefaultHourlyRate = finance.NewMoneyFromInt(100)

// SessionEarnings is the derived session-based pay for one payroll period.
type SessionEarnings struct {
	SessionsCount int
	HourlyRate    finance.Money
	Earnings      finance.Money // SessionsCount * HourlyRate
	SessionIDs    []finance.SessionID
	Sessions      []finance.SessionRecord
}

// Calculator derives payroll figures from session and teacher data.
// It never writes; persistence belongs to the Ledger.
type Calculator struct {
	sessions finance.SessionSource
	teachers finance.TeacherDirectory
}

func NewCalculator(sessions finance.SessionSource, teachers finance.TeacherDirectory) *Calculator {
	return &Calculator{sessions: sessions, teachers: teachers}
}

// SessionEarnings computes the teacher's session-based earnings for the
// given calendar month. Fails with NotFoundError for an unknown teacher.
func (c *Calculator) SessionEarnings(ctx context.Context, teacherID finance.TeacherID, month, year int) (*SessionEarnings, error) {
	if teacherID == "" {
		return nil, finance.NewValidationError("teacher_id", "is required")
	}

	from, to, err := finance.MonthRange(month, year)
	if err != nil {
		return nil, err
	}

	teacher, err := c.teachers.GetTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if teacher == nil {
		return nil, &finance.NotFoundError{Kind: "teacher", ID: string(teacherID)}
	}

	rate := DefaultHourlyRate
	if teacher.HourlyRate != nil {
		rate = *teacher.HourlyRate
	}

	completed, err := c.sessions.CompletedSessions(ctx, teacherID, from, to)
	if err != nil {
		return nil, err
	}

	result := &SessionEarnings{
		SessionsCount: len(completed),
		HourlyRate:    rate,
		Earnings:      rate.Mul(int64(len(completed))),
		Sessions:      completed,
	}
	for _, s := range completed {
		result.SessionIDs = append(result.SessionIDs, s.ID)
	}
	return result, nil
}

// CourseRevenue computes the teacher's course revenue share for the
// period.
//
// STUB: the platform has no teacher->course enrollment join yet, so this
// always derives zero. The salary ledger already handles a non-zero
// figure (it emits a course_revenue item and includes the amount in the
// total), so only this derivation needs replacing once the join exists.
func (c *Calculator) CourseRevenue(ctx context.Context, teacherID finance.TeacherID, month, year int) (finance.Money, error) {
	if _, _, err := finance.MonthRange(month, year); err != nil {
		return finance.Zero(), err
	}
	return finance.Zero(), nil
}
