// internal/fine/domain.go
package fine

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Fine statuses. Paid and waived are terminal.
const (
	StatusUnpaid = "unpaid"
	StatusPaid   = "paid"
	StatusWaived = "waived"
)

// ReasonOverdue is the reason recorded for fines assessed on return.
const ReasonOverdue = "overdue"

var (
	// ErrFineNotFound means no fine exists with the given ID.
	ErrFineNotFound = errors.New("fine not found")

	// ErrFineAlreadySettled guards paid/waived fines against
	// re-transitioning.
	ErrFineAlreadySettled = errors.New("fine already settled")
)

// Fine is an assessed monetary penalty tied to a loan. It is created when
// an overdue loan is returned and settled later by the collections
// workflow; it is never deleted.
type Fine struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	LoanID        uuid.UUID  `db:"loan_id" json:"loan_id"`
	Amount        float64    `db:"amount" json:"amount"`
	Reason        string     `db:"reason" json:"reason"`
	Status        string     `db:"status" json:"status"`
	PaymentMethod *string    `db:"payment_method" json:"payment_method,omitempty"`
	TransactionID *string    `db:"transaction_id" json:"transaction_id,omitempty"`
	WaiverReason  *string    `db:"waiver_reason" json:"waiver_reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	SettledAt     *time.Time `db:"settled_at" json:"settled_at,omitempty"`
}

// Statistics aggregates fine amounts by lifecycle state.
type Statistics struct {
	Total  float64 `db:"total" json:"total"`
	Paid   float64 `db:"paid" json:"paid"`
	Unpaid float64 `db:"unpaid" json:"unpaid"`
	Waived float64 `db:"waived" json:"waived"`
}
