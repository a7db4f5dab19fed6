// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bookhive/internal/catalog"
	"bookhive/internal/fine"
	"bookhive/internal/loan"
	"bookhive/internal/notify"
	"bookhive/internal/policy"
	"bookhive/internal/reservation"
)

// service implements the Service interface. It owns no entity storage
// itself; it coordinates the component stores inside one transaction per
// operation and emits notifier events only after commit.
type service struct {
	db       *sqlx.DB
	titles   *catalog.Store
	ledger   *loan.Ledger
	fines    *fine.Store
	queue    *reservation.Queue
	policies *policy.Store
	notifier notify.Notifier
	log      *zap.Logger
	tracer   trace.Tracer
}

// NewService creates a new circulation engine instance.
func NewService(
	db *sqlx.DB,
	titles *catalog.Store,
	ledger *loan.Ledger,
	fines *fine.Store,
	queue *reservation.Queue,
	policies *policy.Store,
	notifier notify.Notifier,
	log *zap.Logger,
) Service {
	return &service{
		db:       db,
		titles:   titles,
		ledger:   ledger,
		fines:    fines,
		queue:    queue,
		policies: policies,
		notifier: notifier,
		log:      log.Named("circulation"),
		tracer:   otel.Tracer("bookhive/circulation"),
	}
}

// inTx runs fn inside a transaction, rolling back on error or panic.
func (s *service) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IssueCopy hands a physical copy to a member: decrement the catalog,
// compute the due date from policy, create the loan record. The decrement
// and the loan row commit or roll back together, so a failed loan insert
// can never leak a lost copy.
func (s *service) IssueCopy(ctx context.Context, titleID, memberID uuid.UUID, issueDate time.Time) (*loan.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.issue",
		trace.WithAttributes(
			attribute.String("title.id", titleID.String()),
			attribute.String("member.id", memberID.String()),
		),
	)
	defer span.End()

	pol, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var issued *loan.Loan
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.titles.WithTx(tx).Adjust(ctx, titleID, -1); err != nil {
			return err
		}

		if pol.MaxBooksPerMember > 0 {
			open, err := s.ledger.WithTx(tx).CountOpenByMember(ctx, memberID)
			if err != nil {
				return err
			}
			if open >= pol.MaxBooksPerMember {
				return ErrLoanLimitReached
			}
		}

		dueDate := issueDate.AddDate(0, 0, pol.LoanPeriodDays)
		created, err := s.ledger.WithTx(tx).Create(ctx, titleID, memberID, issueDate, dueDate)
		if err != nil {
			return err
		}
		issued = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("copy issued",
		zap.String("loan_id", issued.ID.String()),
		zap.String("title_id", titleID.String()),
		zap.String("member_id", memberID.String()),
		zap.Time("due_date", issued.DueDate),
	)

	if err := s.notifier.LoanIssued(ctx, notify.LoanIssuedEvent{
		LoanID:    issued.ID,
		TitleID:   issued.TitleID,
		MemberID:  issued.MemberID,
		IssueDate: issued.IssueDate,
		DueDate:   issued.DueDate,
	}); err != nil {
		s.log.Warn("loan issued event not delivered", zap.Error(err))
	}

	return issued, nil
}

// ReturnCopy closes a loan: assess the fine against the policy in effect,
// record it when owed, mark the loan returned, put the copy back on the
// shelf, and earmark it for the oldest waiting reservation. The catalog
// keeps physical-count semantics: a notified reservation is advisory and
// does not remove the copy from availability; only Fulfill or expiry
// settles the hold.
func (s *service) ReturnCopy(ctx context.Context, loanID uuid.UUID, returnedAt time.Time) (*ReturnResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	pol, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var result ReturnResult
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		ledger := s.ledger.WithTx(tx)

		open, err := ledger.FindOpen(ctx, loanID)
		if err != nil {
			return err
		}

		amount := fine.Assess(*open, returnedAt, pol)

		returned, err := ledger.MarkReturned(ctx, loanID, returnedAt)
		if err != nil {
			return err
		}
		result.Loan = returned
		result.FineAssessed = amount

		if amount > 0 {
			recorded, err := s.fines.WithTx(tx).Record(ctx, loanID, amount, fine.ReasonOverdue)
			if err != nil {
				return err
			}
			result.Fine = recorded
		}

		if _, err := s.titles.WithTx(tx).Adjust(ctx, open.TitleID, +1); err != nil {
			return err
		}

		next, err := s.queue.WithTx(tx).NotifyNext(ctx, open.TitleID, returnedAt)
		if err != nil {
			return err
		}
		result.Reservation = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("copy returned",
		zap.String("loan_id", loanID.String()),
		zap.Float64("fine_assessed", result.FineAssessed),
		zap.Bool("reservation_notified", result.Reservation != nil),
	)

	if result.Fine != nil {
		if err := s.notifier.OverdueAssessed(ctx, notify.OverdueAssessedEvent{
			FineID:     result.Fine.ID,
			LoanID:     loanID,
			TitleID:    result.Loan.TitleID,
			MemberID:   result.Loan.MemberID,
			Amount:     result.Fine.Amount,
			AssessedAt: returnedAt,
		}); err != nil {
			s.log.Warn("overdue assessed event not delivered", zap.Error(err))
		}
	}
	if result.Reservation != nil {
		if err := s.notifier.ReservationReady(ctx, notify.ReservationReadyEvent{
			ReservationID: result.Reservation.ID,
			TitleID:       result.Reservation.TitleID,
			MemberID:      result.Reservation.MemberID,
			NotifiedAt:    returnedAt,
			ExpiresAt:     result.Reservation.ExpiresAt,
		}); err != nil {
			s.log.Warn("reservation ready event not delivered", zap.Error(err))
		}
	}

	return &result, nil
}

// RenewLoan pushes the due date forward by one loan period from the
// current due date. Overdue loans must be returned instead.
func (s *service) RenewLoan(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*loan.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.renew",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	pol, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !pol.AllowRenewals {
		return nil, ErrRenewalsDisabled
	}

	var renewed *loan.Loan
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		ledger := s.ledger.WithTx(tx)

		open, err := ledger.FindOpen(ctx, loanID)
		if err != nil {
			return err
		}
		if open.Overdue(asOf) {
			return ErrLoanOverdue
		}
		if open.Renewals >= pol.MaxRenewals {
			return ErrRenewalLimitReached
		}

		extended, err := ledger.ExtendDue(ctx, loanID, open.DueDate.AddDate(0, 0, pol.LoanPeriodDays))
		if err != nil {
			return err
		}
		renewed = extended
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loan renewed",
		zap.String("loan_id", loanID.String()),
		zap.Time("due_date", renewed.DueDate),
		zap.Int("renewals", renewed.Renewals),
	)
	return renewed, nil
}

// ReserveTitle queues a member for a title with no available copies.
func (s *service) ReserveTitle(ctx context.Context, titleID, memberID uuid.UUID, now time.Time) (*reservation.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.reserve",
		trace.WithAttributes(
			attribute.String("title.id", titleID.String()),
			attribute.String("member.id", memberID.String()),
		),
	)
	defer span.End()

	pol, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !pol.AllowReservations {
		return nil, ErrReservationsDisabled
	}

	var reserved *reservation.Reservation
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		title, err := s.titles.WithTx(tx).Get(ctx, titleID)
		if err != nil {
			return err
		}
		if title.Available > 0 {
			return reservation.ErrTitleCurrentlyAvailable
		}

		queue := s.queue.WithTx(tx)
		if pol.MaxReservationsPerMember > 0 {
			active, err := queue.CountActiveByMember(ctx, memberID)
			if err != nil {
				return err
			}
			if active >= pol.MaxReservationsPerMember {
				return reservation.ErrReservationLimitReached
			}
		}

		created, err := queue.Create(ctx, titleID, memberID, now, now.AddDate(0, 0, pol.ReservationHoldDays))
		if err != nil {
			return err
		}
		reserved = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("title reserved",
		zap.String("reservation_id", reserved.ID.String()),
		zap.String("title_id", titleID.String()),
		zap.String("member_id", memberID.String()),
	)
	return reserved, nil
}

// CancelReservation withdraws a member from the wait-list.
func (s *service) CancelReservation(ctx context.Context, reservationID uuid.UUID) error {
	return s.queue.Cancel(ctx, reservationID)
}

// FulfillReservation completes a hold once the member collects the copy.
func (s *service) FulfillReservation(ctx context.Context, reservationID uuid.UUID) (*reservation.Reservation, error) {
	fulfilled, err := s.queue.Fulfill(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation fulfilled", zap.String("reservation_id", reservationID.String()))
	return fulfilled, nil
}

// ExpireReservations sweeps holds whose period elapsed unclaimed. It is
// idempotent; a periodic external trigger re-runs it safely.
func (s *service) ExpireReservations(ctx context.Context, asOf time.Time) (int64, error) {
	expired, err := s.queue.ExpireStale(ctx, asOf)
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		s.log.Info("reservations expired", zap.Int64("count", expired))
	}
	return expired, nil
}
