// internal/circulation/domain.go
package circulation

import (
	"errors"

	"bookhive/internal/fine"
	"bookhive/internal/loan"
	"bookhive/internal/reservation"
)

var (
	// ErrLoanLimitReached means the member already has the maximum number
	// of open loans the policy allows.
	ErrLoanLimitReached = errors.New("member reached the open loan limit")

	// ErrRenewalsDisabled means the policy forbids renewals entirely.
	ErrRenewalsDisabled = errors.New("renewals are disabled")

	// ErrRenewalLimitReached means the loan has used up its renewals.
	ErrRenewalLimitReached = errors.New("loan reached the renewal limit")

	// ErrLoanOverdue means an overdue loan cannot be renewed; it has to
	// be returned first.
	ErrLoanOverdue = errors.New("overdue loan cannot be renewed")

	// ErrReservationsDisabled means the policy forbids reservations.
	ErrReservationsDisabled = errors.New("reservations are disabled")
)

// ReturnResult is everything a return produced: the closed loan, the fine
// assessed against it (zero and nil when returned on time), and the
// reservation the copy was earmarked for, if anyone was waiting.
type ReturnResult struct {
	Loan         *loan.Loan               `json:"loan"`
	FineAssessed float64                  `json:"fine_assessed"`
	Fine         *fine.Fine               `json:"fine,omitempty"`
	Reservation  *reservation.Reservation `json:"reservation,omitempty"`
}
