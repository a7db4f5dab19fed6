// internal/reservation/implementation.go
package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const reservationColumns = `id, title_id, member_id, status, created_at, expires_at, notified_at, fulfilled_at`

// pgUniqueViolation is the Postgres error code raised by the partial
// unique index on active (title_id, member_id) pairs.
const pgUniqueViolation = "23505"

// Queue owns the reservations table: the FIFO wait-list per title.
type Queue struct {
	ext sqlx.ExtContext
}

func NewQueue(db *sqlx.DB) *Queue {
	return &Queue{ext: db}
}

// WithTx returns a copy of the queue bound to tx.
func (q *Queue) WithTx(tx *sqlx.Tx) *Queue {
	return &Queue{ext: tx}
}

const insertReservationQuery = `
	INSERT INTO reservations (id, title_id, member_id, status, created_at, expires_at)
	VALUES ($1, $2, $3, 'active', $4, $5)
	RETURNING ` + reservationColumns

// Create appends a member to a title's wait-list. The partial unique
// index is the authoritative duplicate guard; the pre-check just gives a
// clean error without burning the insert.
func (q *Queue) Create(ctx context.Context, titleID, memberID uuid.UUID, now, expiresAt time.Time) (*Reservation, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q.ext, &exists,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE title_id = $1 AND member_id = $2 AND status = 'active')`,
		titleID, memberID)
	if err != nil {
		return nil, fmt.Errorf("check active reservation: %w", err)
	}
	if exists {
		return nil, ErrDuplicateActiveReservation
	}

	var created Reservation
	err = sqlx.GetContext(ctx, q.ext, &created, insertReservationQuery,
		uuid.New(), titleID, memberID, now, expiresAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateActiveReservation
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	return &created, nil
}

// Get fetches one reservation.
func (q *Queue) Get(ctx context.Context, reservationID uuid.UUID) (*Reservation, error) {
	var found Reservation
	err := sqlx.GetContext(ctx, q.ext, &found,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, reservationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", reservationID, err)
	}
	return &found, nil
}

// CountActiveByMember returns how many active reservations a member holds.
func (q *Queue) CountActiveByMember(ctx context.Context, memberID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q.ext, &count,
		`SELECT COUNT(*) FROM reservations WHERE member_id = $1 AND status = 'active'`, memberID)
	if err != nil {
		return 0, fmt.Errorf("count reservations for member %s: %w", memberID, err)
	}
	return count, nil
}

// Cancel withdraws an active reservation. Cancelling a reservation that
// already reached a terminal state is a no-op, not an error, so a
// duplicate submission stays benign.
func (q *Queue) Cancel(ctx context.Context, reservationID uuid.UUID) error {
	result, err := q.ext.ExecContext(ctx,
		`UPDATE reservations SET status = 'cancelled' WHERE id = $1 AND status = 'active'`, reservationID)
	if err != nil {
		return fmt.Errorf("cancel reservation %s: %w", reservationID, err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		if _, err := q.Get(ctx, reservationID); err != nil {
			return err
		}
	}
	return nil
}

// ExpireStale transitions active reservations whose hold period has
// elapsed and returns how many it expired. Safe to re-run: a second sweep
// with the same asOf matches nothing.
func (q *Queue) ExpireStale(ctx context.Context, asOf time.Time) (int64, error) {
	result, err := q.ext.ExecContext(ctx,
		`UPDATE reservations SET status = 'expired' WHERE status = 'active' AND expires_at < $1`, asOf)
	if err != nil {
		return 0, fmt.Errorf("expire reservations: %w", err)
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire reservations: %w", err)
	}
	return expired, nil
}

const notifyNextQuery = `
	UPDATE reservations
	SET notified_at = $2
	WHERE id = (
		SELECT id FROM reservations
		WHERE title_id = $1 AND status = 'active'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	)
	RETURNING ` + reservationColumns

// NotifyNext stamps the oldest active reservation for a title as notified
// and returns it, or nil when nobody is waiting. The reservation stays
// active: the copy sits on the hold shelf until the member collects it
// (Fulfill) or the hold expires.
func (q *Queue) NotifyNext(ctx context.Context, titleID uuid.UUID, now time.Time) (*Reservation, error) {
	var next Reservation
	err := sqlx.GetContext(ctx, q.ext, &next, notifyNextQuery, titleID, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify next reservation for title %s: %w", titleID, err)
	}
	return &next, nil
}

const fulfillQuery = `
	UPDATE reservations
	SET status = 'fulfilled', fulfilled_at = now()
	WHERE id = $1 AND status = 'active'
	RETURNING ` + reservationColumns

// Fulfill completes an active reservation once the member collects the
// copy.
func (q *Queue) Fulfill(ctx context.Context, reservationID uuid.UUID) (*Reservation, error) {
	var fulfilled Reservation
	err := sqlx.GetContext(ctx, q.ext, &fulfilled, fulfillQuery, reservationID)
	if err == nil {
		return &fulfilled, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fulfill reservation %s: %w", reservationID, err)
	}

	if _, err := q.Get(ctx, reservationID); err != nil {
		return nil, err
	}
	return nil, ErrReservationNotActive
}

// ListActiveByTitle returns a title's wait-list in fulfillment order.
func (q *Queue) ListActiveByTitle(ctx context.Context, titleID uuid.UUID) ([]Reservation, error) {
	var waiting []Reservation
	err := sqlx.SelectContext(ctx, q.ext, &waiting,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE title_id = $1 AND status = 'active'
		 ORDER BY created_at ASC, id ASC`, titleID)
	if err != nil {
		return nil, fmt.Errorf("list reservations for title %s: %w", titleID, err)
	}
	return waiting, nil
}

// ListByMember returns a member's reservations, newest first.
func (q *Queue) ListByMember(ctx context.Context, memberID uuid.UUID, limit int) ([]Reservation, error) {
	if limit <= 0 {
		limit = 50
	}

	var reservations []Reservation
	err := sqlx.SelectContext(ctx, q.ext, &reservations,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE member_id = $1 ORDER BY created_at DESC LIMIT $2`, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reservations for member %s: %w", memberID, err)
	}
	return reservations, nil
}
