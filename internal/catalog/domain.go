// internal/catalog/domain.go
package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientCopies means a decrement would push availability below
	// zero. Under concurrency this is a normal business outcome, not a
	// system failure: callers should offer a reservation instead.
	ErrInsufficientCopies = errors.New("no copies available")

	// ErrTitleNotFound means the catalog has no such title.
	ErrTitleNotFound = errors.New("title not found")
)

// Title is a catalog entry. Available is the physical copy count on the
// shelf; it is mutated only through Adjust and never goes negative.
type Title struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ISBN        string    `db:"isbn" json:"isbn"`
	Title       string    `db:"title" json:"title"`
	Author      string    `db:"author" json:"author"`
	TotalCopies int       `db:"total_copies" json:"total_copies"`
	Available   int       `db:"available" json:"available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
