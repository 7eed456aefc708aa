/*
period.go - Calendar month resolution for payroll periods

PURPOSE:
  Payroll is computed per (month, year). MonthRange resolves that pair to
  an inclusive [start, end] date range used for session queries: the first
  instant of the month through the last instant of its final day, in UTC.
*/
package finance

import (
	"fmt"
	"time"
)

// MonthRange returns the inclusive UTC range covering the given calendar
// month. Fails with a ValidationError for an out-of-range month or a year
// outside sane payroll bounds.
func MonthRange(month, year int) (start, end time.Time, err error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, NewValidationError("month", fmt.Sprintf("must be 1-12, got %d", month))
	}
	if year < 2000 || year > 2200 {
		return time.Time{}, time.Time{}, NewValidationError("year", fmt.Sprintf("out of range: %d", year))
	}
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end, nil
}
