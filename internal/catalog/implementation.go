// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store owns the titles table. It runs against either the shared pool or,
// via WithTx, the transaction of an enclosing unit of work.
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

const adjustQuery = `
	UPDATE titles
	SET available = available + $1, updated_at = now()
	WHERE id = $2 AND available + $1 >= 0
	RETURNING available`

// Adjust changes the available copy count by delta and returns the new
// count. The floor check and the update are a single conditional UPDATE,
// so two issue attempts racing for the last copy cannot both succeed.
func (s *Store) Adjust(ctx context.Context, titleID uuid.UUID, delta int) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.ext, &count, adjustQuery, delta, titleID)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("adjust title %s: %w", titleID, err)
	}

	// No row matched: the title is missing or the floor was hit.
	var exists bool
	if err := sqlx.GetContext(ctx, s.ext, &exists,
		`SELECT EXISTS (SELECT 1 FROM titles WHERE id = $1)`, titleID); err != nil {
		return 0, fmt.Errorf("check title %s: %w", titleID, err)
	}
	if !exists {
		return 0, ErrTitleNotFound
	}
	return 0, ErrInsufficientCopies
}

const insertTitleQuery = `
	INSERT INTO titles (id, isbn, title, author, total_copies, available)
	VALUES ($1, $2, $3, $4, $5, $5)
	RETURNING id, isbn, title, author, total_copies, available, created_at, updated_at`

// Add creates a title with all copies available.
func (s *Store) Add(ctx context.Context, isbn, name, author string, totalCopies int) (*Title, error) {
	if totalCopies < 0 {
		return nil, fmt.Errorf("total copies must not be negative")
	}

	var title Title
	err := sqlx.GetContext(ctx, s.ext, &title, insertTitleQuery, uuid.New(), isbn, name, author, totalCopies)
	if err != nil {
		return nil, fmt.Errorf("add title: %w", err)
	}
	return &title, nil
}

const getTitleQuery = `
	SELECT id, isbn, title, author, total_copies, available, created_at, updated_at
	FROM titles
	WHERE id = $1`

// Get fetches one title.
func (s *Store) Get(ctx context.Context, titleID uuid.UUID) (*Title, error) {
	var title Title
	err := sqlx.GetContext(ctx, s.ext, &title, getTitleQuery, titleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTitleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get title %s: %w", titleID, err)
	}
	return &title, nil
}

const searchTitlesQuery = `
	SELECT id, isbn, title, author, total_copies, available, created_at, updated_at
	FROM titles
	WHERE title ILIKE '%' || $1 || '%' OR author ILIKE '%' || $1 || '%' OR isbn = $1
	ORDER BY title
	LIMIT $2`

// Search matches titles by name, author, or exact ISBN.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Title, error) {
	if limit <= 0 {
		limit = 20
	}

	var titles []Title
	if err := sqlx.SelectContext(ctx, s.ext, &titles, searchTitlesQuery, query, limit); err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}
	return titles, nil
}
