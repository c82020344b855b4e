// Package rabbit publishes order events to RabbitMQ.
package rabbit

import (
	"context"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

const Exchange = "afterschool.events"

// Publisher sends to the events exchange on a channel in confirm mode.
// Publish returns only after the broker has acked the message.
type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", Exchange)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, errors.Wrap(err, "enable publisher confirms")
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, Exchange, key, false, false, msg)
	if err != nil {
		return errors.Wrapf(err, "publish %s", key)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return errors.Wrapf(err, "confirm %s", key)
	}
	if !acked {
		return errors.Newf("broker nacked %s", key)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}
