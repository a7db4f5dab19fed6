// internal/loan/domain_test.go
package loan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateDates(t *testing.T) {
	issue := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateDates(issue, issue.AddDate(0, 0, 14)))
	assert.ErrorIs(t, ValidateDates(issue, issue), ErrInvalidLoanInput)
	assert.ErrorIs(t, ValidateDates(issue, issue.AddDate(0, 0, -1)), ErrInvalidLoanInput)
}

func TestOverdue(t *testing.T) {
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	open := &Loan{Status: StatusIssued, DueDate: due}
	assert.False(t, open.Overdue(due), "not overdue on the due date itself")
	assert.False(t, open.Overdue(due.AddDate(0, 0, -1)))
	assert.True(t, open.Overdue(due.AddDate(0, 0, 1)))

	returned := &Loan{Status: StatusReturned, DueDate: due}
	assert.False(t, returned.Overdue(due.AddDate(0, 0, 30)), "returned loans are never overdue")
}
