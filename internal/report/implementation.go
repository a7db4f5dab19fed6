// internal/report/implementation.go
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"

	"bookhive/internal/fine"
	"bookhive/internal/loan"
	"bookhive/internal/policy"
)

var dialect = goqu.Dialect("postgres")

// service implements the Service interface over the circulation tables.
type service struct {
	db       *sqlx.DB
	ledger   *loan.Ledger
	policies *policy.Store
}

// NewService creates a new reporting service instance.
func NewService(db *sqlx.DB, ledger *loan.Ledger, policies *policy.Store) Service {
	return &service{db: db, ledger: ledger, policies: policies}
}

func (s *service) scalarInt(ctx context.Context, ds *goqu.SelectDataset) (int, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}
	return n, nil
}

// Dashboard collects the summary counters plus the live outstanding fine
// total, computed by projecting the calculator over every overdue loan.
func (s *service) Dashboard(ctx context.Context, asOf time.Time) (*DashboardStats, error) {
	var stats DashboardStats

	copiesQuery, copiesArgs, err := dialect.From("titles").Select(
		goqu.COUNT("*").As("total_titles"),
		goqu.COALESCE(goqu.SUM("total_copies"), 0).As("total_copies"),
		goqu.COALESCE(goqu.SUM("available"), 0).As("available_copies"),
	).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build copies query: %w", err)
	}

	var copies struct {
		TotalTitles     int `db:"total_titles"`
		TotalCopies     int `db:"total_copies"`
		AvailableCopies int `db:"available_copies"`
	}
	if err := s.db.GetContext(ctx, &copies, copiesQuery, copiesArgs...); err != nil {
		return nil, fmt.Errorf("count copies: %w", err)
	}
	stats.TotalTitles = copies.TotalTitles
	stats.TotalCopies = copies.TotalCopies
	stats.AvailableCopies = copies.AvailableCopies

	stats.OpenLoans, err = s.scalarInt(ctx, dialect.From("loans").
		Select(goqu.COUNT("*")).
		Where(goqu.C("status").Eq(loan.StatusIssued)))
	if err != nil {
		return nil, err
	}

	stats.OverdueLoans, err = s.scalarInt(ctx, dialect.From("loans").
		Select(goqu.COUNT("*")).
		Where(goqu.C("status").Eq(loan.StatusIssued), goqu.C("due_date").Lt(asOf)))
	if err != nil {
		return nil, err
	}

	stats.ActiveHolds, err = s.scalarInt(ctx, dialect.From("reservations").
		Select(goqu.COUNT("*")).
		Where(goqu.C("status").Eq("active")))
	if err != nil {
		return nil, err
	}

	overdue, err := s.Overdue(ctx, asOf)
	if err != nil {
		return nil, err
	}
	for _, o := range overdue {
		stats.OutstandingFines += o.LiveFine
	}

	return &stats, nil
}

// Overdue lists open past-due loans with a live fine projection.
func (s *service) Overdue(ctx context.Context, asOf time.Time) ([]OverdueLoan, error) {
	pol, err := s.policies.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	loans, err := s.ledger.ListOverdue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	overdue := make([]OverdueLoan, 0, len(loans))
	for _, l := range loans {
		overdue = append(overdue, OverdueLoan{
			Loan:        l,
			DaysOverdue: int(asOf.Sub(l.DueDate).Hours() / 24),
			LiveFine:    fine.Assess(l, asOf, pol),
		})
	}
	return overdue, nil
}

// PopularTitles ranks titles by number of issue events.
func (s *service) PopularTitles(ctx context.Context, limit int) ([]PopularTitle, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := dialect.From(goqu.T("titles").As("t")).
		LeftJoin(goqu.T("loans").As("l"), goqu.On(goqu.I("l.title_id").Eq(goqu.I("t.id")))).
		Select(
			goqu.I("t.id").As("title_id"),
			goqu.I("t.title").As("title"),
			goqu.I("t.author").As("author"),
			goqu.COUNT(goqu.I("l.id")).As("issues"),
		).
		GroupBy(goqu.I("t.id"), goqu.I("t.title"), goqu.I("t.author")).
		Order(goqu.I("issues").Desc(), goqu.I("t.title").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build popular titles query: %w", err)
	}

	var popular []PopularTitle
	if err := s.db.SelectContext(ctx, &popular, query, args...); err != nil {
		return nil, fmt.Errorf("list popular titles: %w", err)
	}
	return popular, nil
}

// MonthlyIssueStats counts issue events per month over the trailing
// window.
func (s *service) MonthlyIssueStats(ctx context.Context, months int) ([]MonthlyIssues, error) {
	if months <= 0 {
		months = 6
	}
	since := time.Now().AddDate(0, -months, 0)

	query, args, err := dialect.From("loans").
		Select(
			goqu.L("to_char(issue_date, 'YYYY-MM')").As("month"),
			goqu.COUNT("*").As("issues"),
		).
		Where(goqu.C("issue_date").Gte(since)).
		GroupBy(goqu.L("to_char(issue_date, 'YYYY-MM')")).
		Order(goqu.I("month").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build monthly issues query: %w", err)
	}

	var monthly []MonthlyIssues
	if err := s.db.SelectContext(ctx, &monthly, query, args...); err != nil {
		return nil, fmt.Errorf("list monthly issues: %w", err)
	}
	return monthly, nil
}
