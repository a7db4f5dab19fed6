// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookhive/internal/loan"
	"bookhive/internal/reservation"
)

// Service defines the interface for the circulation engine. Every
// mutating operation runs as one atomic unit of work: partial effects are
// never observable and any failure rolls the whole operation back.
type Service interface {
	IssueCopy(ctx context.Context, titleID, memberID uuid.UUID, issueDate time.Time) (*loan.Loan, error)
	ReturnCopy(ctx context.Context, loanID uuid.UUID, returnedAt time.Time) (*ReturnResult, error)
	RenewLoan(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*loan.Loan, error)
	ReserveTitle(ctx context.Context, titleID, memberID uuid.UUID, now time.Time) (*reservation.Reservation, error)
	CancelReservation(ctx context.Context, reservationID uuid.UUID) error
	FulfillReservation(ctx context.Context, reservationID uuid.UUID) (*reservation.Reservation, error)
	ExpireReservations(ctx context.Context, asOf time.Time) (int64, error)
}
