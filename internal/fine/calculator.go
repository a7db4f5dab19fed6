// internal/fine/calculator.go
package fine

import (
	"time"

	"bookhive/internal/loan"
	"bookhive/internal/policy"
)

// Assess computes the fine owed on a loan as of a given moment. It is a
// pure function: reporting calls it for live "what would the fine be
// today" projections, and the return flow calls it once to decide what to
// persist. Returned loans and loans inside the grace window owe nothing.
//
// daysLate counts whole days past due date plus grace; partial days do
// not accrue. The amount is clamped at MaxFineAmount when the cap is set
// (0 means uncapped), so it grows monotonically with asOf until the cap
// and stays constant after.
func Assess(l loan.Loan, asOf time.Time, pol policy.Circulation) float64 {
	if l.Status != loan.StatusIssued {
		return 0
	}

	graceEnd := l.DueDate.AddDate(0, 0, pol.GracePeriodDays)
	if !asOf.After(graceEnd) {
		return 0
	}

	daysLate := int(asOf.Sub(graceEnd).Hours() / 24)
	if daysLate <= 0 {
		return 0
	}

	amount := float64(daysLate) * pol.FinePerDay
	if pol.MaxFineAmount > 0 && amount > pol.MaxFineAmount {
		amount = pol.MaxFineAmount
	}
	return amount
}
