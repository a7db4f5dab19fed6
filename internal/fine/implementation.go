// internal/fine/implementation.go
package fine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const fineColumns = `id, loan_id, amount, reason, status, payment_method, transaction_id, waiver_reason, created_at, settled_at`

// Store owns the fines table and the unpaid -> paid/waived lifecycle.
type Store struct {
	ext sqlx.ExtContext
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{ext: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *Store) WithTx(tx *sqlx.Tx) *Store {
	return &Store{ext: tx}
}

const insertFineQuery = `
	INSERT INTO fines (id, loan_id, amount, reason, status)
	VALUES ($1, $2, $3, $4, 'unpaid')
	RETURNING ` + fineColumns

// Record persists an assessed fine against a loan.
func (s *Store) Record(ctx context.Context, loanID uuid.UUID, amount float64, reason string) (*Fine, error) {
	if amount < 0 {
		return nil, fmt.Errorf("fine amount must not be negative")
	}
	if reason == "" {
		reason = ReasonOverdue
	}

	var recorded Fine
	err := sqlx.GetContext(ctx, s.ext, &recorded, insertFineQuery, uuid.New(), loanID, amount, reason)
	if err != nil {
		return nil, fmt.Errorf("record fine for loan %s: %w", loanID, err)
	}
	return &recorded, nil
}

// Get fetches one fine.
func (s *Store) Get(ctx context.Context, fineID uuid.UUID) (*Fine, error) {
	var found Fine
	err := sqlx.GetContext(ctx, s.ext, &found,
		`SELECT `+fineColumns+` FROM fines WHERE id = $1`, fineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fine %s: %w", fineID, err)
	}
	return &found, nil
}

const markPaidQuery = `
	UPDATE fines
	SET status = 'paid', payment_method = $2, transaction_id = $3, settled_at = now()
	WHERE id = $1 AND status = 'unpaid'
	RETURNING ` + fineColumns

// MarkPaid settles an unpaid fine. Paid and waived fines refuse the
// transition with ErrFineAlreadySettled.
func (s *Store) MarkPaid(ctx context.Context, fineID uuid.UUID, paymentMethod, transactionID string) (*Fine, error) {
	var txnID *string
	if transactionID != "" {
		txnID = &transactionID
	}

	var paid Fine
	err := sqlx.GetContext(ctx, s.ext, &paid, markPaidQuery, fineID, paymentMethod, txnID)
	if err == nil {
		return &paid, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark fine %s paid: %w", fineID, err)
	}

	if _, err := s.Get(ctx, fineID); err != nil {
		return nil, err
	}
	return nil, ErrFineAlreadySettled
}

const waiveQuery = `
	UPDATE fines
	SET status = 'waived', waiver_reason = $2, settled_at = now()
	WHERE id = $1 AND status = 'unpaid'
	RETURNING ` + fineColumns

// Waive forgives an unpaid fine.
func (s *Store) Waive(ctx context.Context, fineID uuid.UUID, reason string) (*Fine, error) {
	var waived Fine
	err := sqlx.GetContext(ctx, s.ext, &waived, waiveQuery, fineID, reason)
	if err == nil {
		return &waived, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("waive fine %s: %w", fineID, err)
	}

	if _, err := s.Get(ctx, fineID); err != nil {
		return nil, err
	}
	return nil, ErrFineAlreadySettled
}

// ListByStatus returns fines filtered by status (all when empty), newest
// first.
func (s *Store) ListByStatus(ctx context.Context, status string, limit, offset int) ([]Fine, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + fineColumns + ` FROM fines`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	var fines []Fine
	if err := sqlx.SelectContext(ctx, s.ext, &fines, query, args...); err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	return fines, nil
}

// ListByLoan returns every fine assessed against a loan.
func (s *Store) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]Fine, error) {
	var fines []Fine
	err := sqlx.SelectContext(ctx, s.ext, &fines,
		`SELECT `+fineColumns+` FROM fines WHERE loan_id = $1 ORDER BY created_at ASC`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list fines for loan %s: %w", loanID, err)
	}
	return fines, nil
}

const memberUnpaidQuery = `
	SELECT COALESCE(SUM(f.amount), 0)
	FROM fines f
	JOIN loans l ON l.id = f.loan_id
	WHERE l.member_id = $1 AND f.status = 'unpaid'`

// MemberUnpaidTotal sums a member's outstanding recorded fines.
func (s *Store) MemberUnpaidTotal(ctx context.Context, memberID uuid.UUID) (float64, error) {
	var total float64
	if err := sqlx.GetContext(ctx, s.ext, &total, memberUnpaidQuery, memberID); err != nil {
		return 0, fmt.Errorf("sum unpaid fines for member %s: %w", memberID, err)
	}
	return total, nil
}

const statisticsQuery = `
	SELECT
		COALESCE(SUM(amount), 0) AS total,
		COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS paid,
		COALESCE(SUM(amount) FILTER (WHERE status = 'unpaid'), 0) AS unpaid,
		COALESCE(SUM(amount) FILTER (WHERE status = 'waived'), 0) AS waived
	FROM fines`

// Stats aggregates assessed amounts by lifecycle state.
func (s *Store) Stats(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	if err := sqlx.GetContext(ctx, s.ext, &stats, statisticsQuery); err != nil {
		return nil, fmt.Errorf("fine statistics: %w", err)
	}
	return &stats, nil
}
