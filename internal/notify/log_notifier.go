// internal/notify/log_notifier.go
package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes events to the structured log. It is the default sink
// when no external transport is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) LoanIssued(_ context.Context, event LoanIssuedEvent) error {
	n.log.Info(TypeLoanIssued,
		zap.String("loan_id", event.LoanID.String()),
		zap.String("title_id", event.TitleID.String()),
		zap.String("member_id", event.MemberID.String()),
		zap.Time("due_date", event.DueDate),
	)
	return nil
}

func (n *LogNotifier) OverdueAssessed(_ context.Context, event OverdueAssessedEvent) error {
	n.log.Info(TypeOverdueAssessed,
		zap.String("fine_id", event.FineID.String()),
		zap.String("loan_id", event.LoanID.String()),
		zap.String("member_id", event.MemberID.String()),
		zap.Float64("amount", event.Amount),
	)
	return nil
}

func (n *LogNotifier) ReservationReady(_ context.Context, event ReservationReadyEvent) error {
	n.log.Info(TypeReservationReady,
		zap.String("reservation_id", event.ReservationID.String()),
		zap.String("title_id", event.TitleID.String()),
		zap.String("member_id", event.MemberID.String()),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}
