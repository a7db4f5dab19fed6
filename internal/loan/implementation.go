// internal/loan/implementation.go
package loan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const loanColumns = `id, title_id, member_id, issue_date, due_date, returned_at, status, renewals, created_at`

// Ledger owns the loans table and the issued -> returned state machine.
type Ledger struct {
	ext sqlx.ExtContext
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{ext: db}
}

// WithTx returns a copy of the ledger bound to tx.
func (l *Ledger) WithTx(tx *sqlx.Tx) *Ledger {
	return &Ledger{ext: tx}
}

const insertLoanQuery = `
	INSERT INTO loans (id, title_id, member_id, issue_date, due_date, status)
	VALUES ($1, $2, $3, $4, $5, 'issued')
	RETURNING ` + loanColumns

// Create records an issue event. The caller must already hold a physical
// copy reserved through the catalog decrement.
func (l *Ledger) Create(ctx context.Context, titleID, memberID uuid.UUID, issueDate, dueDate time.Time) (*Loan, error) {
	if err := ValidateDates(issueDate, dueDate); err != nil {
		return nil, err
	}

	var created Loan
	err := sqlx.GetContext(ctx, l.ext, &created, insertLoanQuery, uuid.New(), titleID, memberID, issueDate, dueDate)
	if err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}
	return &created, nil
}

// Get fetches a loan regardless of status.
func (l *Ledger) Get(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	var found Loan
	err := sqlx.GetContext(ctx, l.ext, &found,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get loan %s: %w", loanID, err)
	}
	return &found, nil
}

// FindOpen fetches a loan that is still issued. A returned loan yields
// ErrLoanAlreadyReturned so callers can tell the benign duplicate case
// from a bad ID.
func (l *Ledger) FindOpen(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	found, err := l.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if found.Status != StatusIssued {
		return nil, ErrLoanAlreadyReturned
	}
	return found, nil
}

const markReturnedQuery = `
	UPDATE loans
	SET status = 'returned', returned_at = $2
	WHERE id = $1 AND status = 'issued'
	RETURNING ` + loanColumns

// MarkReturned transitions an issued loan to returned. The conditional
// UPDATE is the idempotency guard: of two concurrent returns only one
// row-matches, the other gets ErrLoanAlreadyReturned.
func (l *Ledger) MarkReturned(ctx context.Context, loanID uuid.UUID, returnedAt time.Time) (*Loan, error) {
	var returned Loan
	err := sqlx.GetContext(ctx, l.ext, &returned, markReturnedQuery, loanID, returnedAt)
	if err == nil {
		return &returned, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark loan %s returned: %w", loanID, err)
	}

	if _, err := l.Get(ctx, loanID); err != nil {
		return nil, err
	}
	return nil, ErrLoanAlreadyReturned
}

const extendDueQuery = `
	UPDATE loans
	SET due_date = $2, renewals = renewals + 1
	WHERE id = $1 AND status = 'issued'
	RETURNING ` + loanColumns

// ExtendDue moves the due date forward and counts the renewal.
func (l *Ledger) ExtendDue(ctx context.Context, loanID uuid.UUID, newDue time.Time) (*Loan, error) {
	var extended Loan
	err := sqlx.GetContext(ctx, l.ext, &extended, extendDueQuery, loanID, newDue)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := l.Get(ctx, loanID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrLoanAlreadyReturned
	}
	if err != nil {
		return nil, fmt.Errorf("extend loan %s: %w", loanID, err)
	}
	return &extended, nil
}

const listOverdueQuery = `
	SELECT ` + loanColumns + `
	FROM loans
	WHERE status = 'issued' AND due_date < $1
	ORDER BY due_date ASC`

// ListOverdue returns open loans past due as of the given moment.
func (l *Ledger) ListOverdue(ctx context.Context, asOf time.Time) ([]Loan, error) {
	var overdue []Loan
	if err := sqlx.SelectContext(ctx, l.ext, &overdue, listOverdueQuery, asOf); err != nil {
		return nil, fmt.Errorf("list overdue loans: %w", err)
	}
	return overdue, nil
}

// ListByMember returns a member's loans, newest first.
func (l *Ledger) ListByMember(ctx context.Context, memberID uuid.UUID, limit int) ([]Loan, error) {
	if limit <= 0 {
		limit = 50
	}

	var loans []Loan
	err := sqlx.SelectContext(ctx, l.ext, &loans,
		`SELECT `+loanColumns+` FROM loans WHERE member_id = $1 ORDER BY created_at DESC LIMIT $2`,
		memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list loans for member %s: %w", memberID, err)
	}
	return loans, nil
}

// CountOpenByMember returns how many loans a member currently has out.
func (l *Ledger) CountOpenByMember(ctx context.Context, memberID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, l.ext, &count,
		`SELECT COUNT(*) FROM loans WHERE member_id = $1 AND status = 'issued'`, memberID)
	if err != nil {
		return 0, fmt.Errorf("count open loans for member %s: %w", memberID, err)
	}
	return count, nil
}
