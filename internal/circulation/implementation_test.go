// internal/circulation/implementation_test.go
//
// These tests run against a real Postgres instance and are skipped unless
// BOOKHIVE_TEST_DATABASE_URL is set. The schema is re-applied per test,
// so point the variable at a throwaway database.
package circulation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookhive/internal/catalog"
	"bookhive/internal/fine"
	"bookhive/internal/loan"
	"bookhive/internal/notify"
	"bookhive/internal/policy"
	"bookhive/internal/reservation"
)

type testEnv struct {
	db       *sqlx.DB
	engine   Service
	titles   *catalog.Store
	ledger   *loan.Ledger
	fines    *fine.Store
	queue    *reservation.Queue
	policies *policy.Store
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("BOOKHIVE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BOOKHIVE_TEST_DATABASE_URL not set; skipping database tests")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "db", "schema.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	env := &testEnv{
		db:       db,
		titles:   catalog.NewStore(db),
		ledger:   loan.NewLedger(db),
		fines:    fine.NewStore(db),
		queue:    reservation.NewQueue(db),
		policies: policy.NewStore(db),
	}
	logger := zap.NewNop()
	env.engine = NewService(db, env.titles, env.ledger, env.fines, env.queue, env.policies, notify.NewLogNotifier(logger), logger)

	return env
}

func (e *testEnv) addTitle(t *testing.T, name string, copies int) *catalog.Title {
	t.Helper()
	title, err := e.titles.Add(context.Background(), "", name, "", copies)
	require.NoError(t, err)
	return title
}

func (e *testEnv) available(t *testing.T, titleID uuid.UUID) int {
	t.Helper()
	title, err := e.titles.Get(context.Background(), titleID)
	require.NoError(t, err)
	return title.Available
}

func TestIssueReturnRoundTrip(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Pride and Prejudice", 5)
	member := uuid.New()
	issueDate := time.Now()

	issued, err := env.engine.IssueCopy(ctx, title.ID, member, issueDate)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusIssued, issued.Status)
	assert.Equal(t, 4, env.available(t, title.ID))

	// Default policy: 14 day loan period.
	assert.WithinDuration(t, issueDate.AddDate(0, 0, 14), issued.DueDate, time.Second)

	result, err := env.engine.ReturnCopy(ctx, issued.ID, issueDate)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusReturned, result.Loan.Status)
	assert.Zero(t, result.FineAssessed)
	assert.Nil(t, result.Fine)
	assert.Equal(t, 5, env.available(t, title.ID), "round trip restores the copy count")
}

func TestConcurrentIssueLastCopy(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "The Great Gatsby", 1)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.engine.IssueCopy(ctx, title.ID, uuid.New(), time.Now())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, catalog.ErrInsufficientCopies)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one issue wins the last copy")
	assert.Equal(t, 0, env.available(t, title.ID))
}

func TestOverdueReturnWithWaitingReservation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Dune", 1)
	memberA := uuid.New()
	memberB := uuid.New()

	// A takes the only copy; the loan runs 14 days from the issue date.
	issueDate := time.Now().AddDate(0, 0, -20)
	issued, err := env.engine.IssueCopy(ctx, title.ID, memberA, issueDate)
	require.NoError(t, err)

	// B cannot issue and reserves instead.
	_, err = env.engine.IssueCopy(ctx, title.ID, memberB, time.Now())
	require.ErrorIs(t, err, catalog.ErrInsufficientCopies)

	reserved, err := env.engine.ReserveTitle(ctx, title.ID, memberB, time.Now())
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusActive, reserved.Status)

	// A returns 6 days late: grace 0, $10/day.
	result, err := env.engine.ReturnCopy(ctx, issued.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 60.0, result.FineAssessed)
	require.NotNil(t, result.Fine)
	assert.Equal(t, 60.0, result.Fine.Amount)
	assert.Equal(t, fine.StatusUnpaid, result.Fine.Status)

	// The returned copy is earmarked for B but stays on the physical count.
	require.NotNil(t, result.Reservation)
	assert.Equal(t, reserved.ID, result.Reservation.ID)
	assert.Equal(t, reservation.StatusActive, result.Reservation.Status)
	assert.NotNil(t, result.Reservation.NotifiedAt)
	assert.Equal(t, 1, env.available(t, title.ID))
}

func TestFineCapPersisted(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	require.NoError(t, env.policies.UpdateMany(ctx, map[string]string{
		policy.KeyMaxFineAmount: "50",
	}))

	title := env.addTitle(t, "Moby Dick", 1)

	// 24 days out on a 14 day loan: 10 days late, $100 raw, capped at $50.
	issueDate := time.Now().AddDate(0, 0, -24)
	issued, err := env.engine.IssueCopy(ctx, title.ID, uuid.New(), issueDate)
	require.NoError(t, err)

	result, err := env.engine.ReturnCopy(ctx, issued.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.FineAssessed)
	require.NotNil(t, result.Fine)
	assert.Equal(t, 50.0, result.Fine.Amount)
}

func TestDoubleReturnIsGuarded(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Emma", 1)
	issued, err := env.engine.IssueCopy(ctx, title.ID, uuid.New(), time.Now())
	require.NoError(t, err)

	_, err = env.engine.ReturnCopy(ctx, issued.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, env.available(t, title.ID))

	_, err = env.engine.ReturnCopy(ctx, issued.ID, time.Now())
	assert.ErrorIs(t, err, loan.ErrLoanAlreadyReturned)
	assert.Equal(t, 1, env.available(t, title.ID), "duplicate return leaves the count unchanged")
}

func TestReservationFIFO(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Hamlet", 0)
	base := time.Now().Add(-time.Hour)

	first, err := env.engine.ReserveTitle(ctx, title.ID, uuid.New(), base)
	require.NoError(t, err)
	second, err := env.engine.ReserveTitle(ctx, title.ID, uuid.New(), base.Add(time.Minute))
	require.NoError(t, err)
	third, err := env.engine.ReserveTitle(ctx, title.ID, uuid.New(), base.Add(2*time.Minute))
	require.NoError(t, err)

	next, err := env.queue.NotifyNext(ctx, title.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, first.ID, next.ID, "oldest reservation is notified first")

	// Notifying again without fulfillment still picks the head of the queue.
	next, err = env.queue.NotifyNext(ctx, title.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, first.ID, next.ID)

	_, err = env.engine.FulfillReservation(ctx, first.ID)
	require.NoError(t, err)

	next, err = env.queue.NotifyNext(ctx, title.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID)

	require.NoError(t, env.engine.CancelReservation(ctx, second.ID))

	next, err = env.queue.NotifyNext(ctx, title.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, third.ID, next.ID)
}

func TestDuplicateReservationRejected(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Ulysses", 0)
	member := uuid.New()

	_, err := env.engine.ReserveTitle(ctx, title.ID, member, time.Now())
	require.NoError(t, err)

	_, err = env.engine.ReserveTitle(ctx, title.ID, member, time.Now())
	assert.ErrorIs(t, err, reservation.ErrDuplicateActiveReservation)
}

func TestReserveAvailableTitleRejected(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Walden", 2)

	_, err := env.engine.ReserveTitle(ctx, title.ID, uuid.New(), time.Now())
	assert.ErrorIs(t, err, reservation.ErrTitleCurrentlyAvailable)
}

func TestExpireStaleIsIdempotent(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Beowulf", 0)

	// Default hold period is 3 days; reserve far enough in the past.
	created := time.Now().AddDate(0, 0, -5)
	reserved, err := env.engine.ReserveTitle(ctx, title.ID, uuid.New(), created)
	require.NoError(t, err)

	expired, err := env.engine.ExpireReservations(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	expired, err = env.engine.ExpireReservations(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, expired, "second sweep with the same clock changes nothing")

	got, err := env.queue.Get(ctx, reserved.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusExpired, got.Status)

	// Cancelling an expired reservation is a benign no-op.
	assert.NoError(t, env.engine.CancelReservation(ctx, reserved.ID))

	// Fulfilling it is not.
	_, err = env.engine.FulfillReservation(ctx, reserved.ID)
	assert.ErrorIs(t, err, reservation.ErrReservationNotActive)
}

func TestRenewals(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Middlemarch", 1)
	issued, err := env.engine.IssueCopy(ctx, title.ID, uuid.New(), time.Now())
	require.NoError(t, err)

	// Default policy allows 2 renewals of 14 days each.
	renewed, err := env.engine.RenewLoan(ctx, issued.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, renewed.Renewals)
	assert.WithinDuration(t, issued.DueDate.AddDate(0, 0, 14), renewed.DueDate, time.Second)

	renewed, err = env.engine.RenewLoan(ctx, issued.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, renewed.Renewals)

	_, err = env.engine.RenewLoan(ctx, issued.ID, time.Now())
	assert.ErrorIs(t, err, ErrRenewalLimitReached)
}

func TestRenewalsDisabledByPolicy(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	require.NoError(t, env.policies.UpdateMany(ctx, map[string]string{
		policy.KeyAllowRenewals: "0",
	}))

	title := env.addTitle(t, "Persuasion", 1)
	issued, err := env.engine.IssueCopy(ctx, title.ID, uuid.New(), time.Now())
	require.NoError(t, err)

	_, err = env.engine.RenewLoan(ctx, issued.ID, time.Now())
	assert.ErrorIs(t, err, ErrRenewalsDisabled)
}

func TestOverdueLoanCannotRenew(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Iliad", 1)
	issued, err := env.engine.IssueCopy(ctx, title.ID, uuid.New(), time.Now().AddDate(0, 0, -20))
	require.NoError(t, err)

	_, err = env.engine.RenewLoan(ctx, issued.ID, time.Now())
	assert.ErrorIs(t, err, ErrLoanOverdue)
}

func TestLoanLimit(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	require.NoError(t, env.policies.UpdateMany(ctx, map[string]string{
		policy.KeyMaxBooksPerMember: "2",
	}))

	member := uuid.New()
	for i := 0; i < 2; i++ {
		title := env.addTitle(t, fmt.Sprintf("Volume %d", i+1), 1)
		_, err := env.engine.IssueCopy(ctx, title.ID, member, time.Now())
		require.NoError(t, err)
	}

	extra := env.addTitle(t, "Volume 3", 1)
	_, err := env.engine.IssueCopy(ctx, extra.ID, member, time.Now())
	assert.ErrorIs(t, err, ErrLoanLimitReached)
	assert.Equal(t, 1, env.available(t, extra.ID), "failed issue rolls the decrement back")
}

func TestPolicyCacheInvalidation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	pol, err := env.policies.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 14, pol.LoanPeriodDays)

	require.NoError(t, env.policies.UpdateMany(ctx, map[string]string{
		policy.KeyLoanPeriodDays: "7",
	}))

	pol, err = env.policies.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, pol.LoanPeriodDays, "write invalidates the cached snapshot")

	// The next issue observes the new loan period.
	title := env.addTitle(t, "Odyssey", 1)
	issueDate := time.Now()
	issued, err := env.engine.IssueCopy(ctx, title.ID, uuid.New(), issueDate)
	require.NoError(t, err)
	assert.WithinDuration(t, issueDate.AddDate(0, 0, 7), issued.DueDate, time.Second)
}

func TestFineSettlementLifecycle(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	title := env.addTitle(t, "Crime and Punishment", 1)
	issued, err := env.engine.IssueCopy(ctx, title.ID, uuid.New(), time.Now().AddDate(0, 0, -20))
	require.NoError(t, err)

	result, err := env.engine.ReturnCopy(ctx, issued.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, result.Fine)

	paid, err := env.fines.MarkPaid(ctx, result.Fine.ID, "cash", "txn-123")
	require.NoError(t, err)
	assert.Equal(t, fine.StatusPaid, paid.Status)
	require.NotNil(t, paid.SettledAt)

	// Terminal states refuse re-transition.
	_, err = env.fines.MarkPaid(ctx, result.Fine.ID, "card", "")
	assert.ErrorIs(t, err, fine.ErrFineAlreadySettled)
	_, err = env.fines.Waive(ctx, result.Fine.ID, "goodwill")
	assert.ErrorIs(t, err, fine.ErrFineAlreadySettled)
}
