package outbox

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	mongoadapter "github.com/robertarktes/afterschool-bookings/internal/adapters/mongo"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"github.com/sony/gobreaker"
)

type Store interface {
	GetUnpublished(ctx context.Context, limit int) ([]mongoadapter.OutboxRecord, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Publisher moves outbox records to the broker. Delivery is at least once:
// a record whose publish succeeded but whose status update failed is sent
// again on the next pass with the same message id.
type Publisher struct {
	store     Store
	broker    Broker
	logger    observability.Logger
	batchSize int
	now       func() time.Time
}

func NewPublisher(store Store, broker Broker, logger observability.Logger, batchSize int) *Publisher {
	return &Publisher{store: store, broker: broker, logger: logger, batchSize: batchSize, now: time.Now}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishPending(ctx); err != nil {
				p.logger.WithError(err).Error("outbox pass failed")
			}
		}
	}
}

// PublishPending publishes one batch and returns how many records were
// published. A record that fails to publish stays NEW. The pass ends early
// when the broker circuit is open.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	records, err := p.store.GetUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) > 0 {
		observability.OutboxLag.Set(p.now().Sub(records[0].CreatedAt).Seconds())
	} else {
		observability.OutboxLag.Set(0)
	}

	published := 0
	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:    rec.DedupeKey,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    rec.CreatedAt,
			Type:         rec.EventType,
			Body:         rec.Payload,
		}
		if err := p.broker.Publish(ctx, rec.EventType, msg); err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				p.logger.Warn("broker circuit open, pass stopped")
				break
			}
			observability.RabbitPublishRetries.Inc()
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Warn("publish failed, will retry")
			continue
		}
		if err := p.store.MarkPublished(ctx, rec.ID, p.now()); err != nil {
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("failed to mark outbox record published")
			continue
		}
		published++
	}
	return published, nil
}
