// internal/notify/redis_notifier.go
package notify

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel the external notifier subscribes
// to.
const DefaultChannel = "bookhive.circulation.events"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisNotifier publishes event envelopes to a Redis channel for the
// external notification service.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) publish(ctx context.Context, eventType string, occurredAt time.Time, data any) error {
	payload, err := json.Marshal(envelope{
		Type:       eventType,
		OccurredAt: occurredAt.UTC().Format(time.RFC3339),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

func (n *RedisNotifier) LoanIssued(ctx context.Context, event LoanIssuedEvent) error {
	return n.publish(ctx, TypeLoanIssued, event.IssueDate, event)
}

func (n *RedisNotifier) OverdueAssessed(ctx context.Context, event OverdueAssessedEvent) error {
	return n.publish(ctx, TypeOverdueAssessed, event.AssessedAt, event)
}

func (n *RedisNotifier) ReservationReady(ctx context.Context, event ReservationReadyEvent) error {
	return n.publish(ctx, TypeReservationReady, event.NotifiedAt, event)
}
