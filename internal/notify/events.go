// internal/notify/events.go
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event type names as published to the external notifier.
const (
	TypeLoanIssued       = "LoanIssued"
	TypeOverdueAssessed  = "OverdueAssessed"
	TypeReservationReady = "ReservationReady"
)

// LoanIssuedEvent is emitted after a copy is issued to a member.
type LoanIssuedEvent struct {
	LoanID    uuid.UUID `json:"loan_id"`
	TitleID   uuid.UUID `json:"title_id"`
	MemberID  uuid.UUID `json:"member_id"`
	IssueDate time.Time `json:"issue_date"`
	DueDate   time.Time `json:"due_date"`
}

// OverdueAssessedEvent is emitted after a fine is recorded on return.
type OverdueAssessedEvent struct {
	FineID     uuid.UUID `json:"fine_id"`
	LoanID     uuid.UUID `json:"loan_id"`
	TitleID    uuid.UUID `json:"title_id"`
	MemberID   uuid.UUID `json:"member_id"`
	Amount     float64   `json:"amount"`
	AssessedAt time.Time `json:"assessed_at"`
}

// ReservationReadyEvent is emitted when a returned copy is earmarked for
// the next member in a title's wait-list.
type ReservationReadyEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	TitleID       uuid.UUID `json:"title_id"`
	MemberID      uuid.UUID `json:"member_id"`
	NotifiedAt    time.Time `json:"notified_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Notifier hands engine events to the external notification consumer.
// Delivery and formatting are out of scope for the engine; implementations
// must only see committed state, so the engine calls these after commit.
type Notifier interface {
	LoanIssued(ctx context.Context, event LoanIssuedEvent) error
	OverdueAssessed(ctx context.Context, event OverdueAssessedEvent) error
	ReservationReady(ctx context.Context, event ReservationReadyEvent) error
}

// envelope is the wire form shared by transport-backed notifiers.
type envelope struct {
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`
	Data       any    `json:"data"`
}
