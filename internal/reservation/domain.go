// internal/reservation/domain.go
package reservation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Reservation statuses. Fulfilled, cancelled, and expired are terminal and
// retained for audit.
const (
	StatusActive    = "active"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

var (
	// ErrTitleCurrentlyAvailable means a copy is on the shelf, so the
	// member should issue directly instead of queueing.
	ErrTitleCurrentlyAvailable = errors.New("title is currently available, issue it directly")

	// ErrDuplicateActiveReservation enforces at most one active
	// reservation per (title, member).
	ErrDuplicateActiveReservation = errors.New("member already has an active reservation for this title")

	// ErrReservationNotFound means no reservation exists with the given ID.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrReservationNotActive means the reservation already reached a
	// terminal state.
	ErrReservationNotActive = errors.New("reservation is not active")

	// ErrReservationLimitReached means the member already holds the
	// maximum number of active reservations the policy allows.
	ErrReservationLimitReached = errors.New("member reached the reservation limit")
)

// Reservation is a member's place in the wait-list for a title without
// available copies. Among active reservations for a title, fulfillment
// order is FIFO by creation time with the ID as tiebreak.
type Reservation struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TitleID     uuid.UUID  `db:"title_id" json:"title_id"`
	MemberID    uuid.UUID  `db:"member_id" json:"member_id"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time  `db:"expires_at" json:"expires_at"`
	NotifiedAt  *time.Time `db:"notified_at" json:"notified_at,omitempty"`
	FulfilledAt *time.Time `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
}
