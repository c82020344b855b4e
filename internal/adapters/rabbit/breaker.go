package rabbit

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"github.com/sony/gobreaker"
)

type publisher interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// BreakerPublisher stops calling the broker after repeated failures. While
// the breaker is open Publish returns gobreaker.ErrOpenState immediately.
type BreakerPublisher struct {
	next publisher
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerPublisher(next publisher, logger observability.Logger) *BreakerPublisher {
	settings := gobreaker.Settings{
		Name:        "rabbit-publish",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}
	return &BreakerPublisher{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerPublisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, key, msg)
	})
	return err
}
