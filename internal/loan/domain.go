// internal/loan/domain.go
package loan

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Loan statuses. Overdue is never stored: it is derived from the due date
// and the clock, so it cannot go stale.
const (
	StatusIssued   = "issued"
	StatusReturned = "returned"
)

var (
	// ErrInvalidLoanInput means the due date is not after the issue date.
	ErrInvalidLoanInput = errors.New("due date must be after issue date")

	// ErrLoanNotFound means no loan exists with the given ID.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrLoanAlreadyReturned guards against destructive retries of a
	// return; a duplicate submission is benign.
	ErrLoanAlreadyReturned = errors.New("loan already returned")
)

// Loan is one issue event against a title and member. Loans are never
// deleted; returned loans stay as the historical record for reporting.
type Loan struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	TitleID    uuid.UUID  `db:"title_id" json:"title_id"`
	MemberID   uuid.UUID  `db:"member_id" json:"member_id"`
	IssueDate  time.Time  `db:"issue_date" json:"issue_date"`
	DueDate    time.Time  `db:"due_date" json:"due_date"`
	ReturnedAt *time.Time `db:"returned_at" json:"returned_at,omitempty"`
	Status     string     `db:"status" json:"status"`
	Renewals   int        `db:"renewals" json:"renewals"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Overdue reports whether the loan is open and past due as of the given
// moment.
func (l *Loan) Overdue(asOf time.Time) bool {
	return l.Status == StatusIssued && l.DueDate.Before(asOf)
}

// ValidateDates checks the one structural invariant of a new loan.
func ValidateDates(issueDate, dueDate time.Time) error {
	if !dueDate.After(issueDate) {
		return ErrInvalidLoanInput
	}
	return nil
}
