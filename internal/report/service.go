// internal/report/service.go
package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookhive/internal/loan"
)

// DashboardStats is the summary shown on the admin dashboard.
type DashboardStats struct {
	TotalTitles      int     `json:"total_titles"`
	TotalCopies      int     `json:"total_copies"`
	AvailableCopies  int     `json:"available_copies"`
	OpenLoans        int     `json:"open_loans"`
	OverdueLoans     int     `json:"overdue_loans"`
	ActiveHolds      int     `json:"active_holds"`
	OutstandingFines float64 `json:"outstanding_fines"`
}

// OverdueLoan pairs an open, past-due loan with the fine it would incur
// if returned right now. The amount is a live projection, not a stored
// row: no fine exists until the copy actually comes back.
type OverdueLoan struct {
	loan.Loan
	DaysOverdue int     `json:"days_overdue"`
	LiveFine    float64 `json:"live_fine"`
}

// PopularTitle counts how often a title has been issued.
type PopularTitle struct {
	TitleID uuid.UUID `db:"title_id" json:"title_id"`
	Title   string    `db:"title" json:"title"`
	Author  string    `db:"author" json:"author"`
	Issues  int       `db:"issues" json:"issues"`
}

// MonthlyIssues counts issue events per calendar month.
type MonthlyIssues struct {
	Month  string `db:"month" json:"month"`
	Issues int    `db:"issues" json:"issues"`
}

// Service defines the read-only reporting queries. All reads reflect
// committed state only.
type Service interface {
	Dashboard(ctx context.Context, asOf time.Time) (*DashboardStats, error)
	Overdue(ctx context.Context, asOf time.Time) ([]OverdueLoan, error)
	PopularTitles(ctx context.Context, limit int) ([]PopularTitle, error)
	MonthlyIssueStats(ctx context.Context, months int) ([]MonthlyIssues, error)
}
