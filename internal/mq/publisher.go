// Package mq connects courtbook to RabbitMQ: domain events go out on a topic
// exchange and payment outcomes come in on a durable queue.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courtbook/internal/events"
	"courtbook/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	conn     *amqp.Connection
	ch       publishChannel
	closeCh  func() error
	exchange string
	logger   zerolog.Logger
}

func NewPublisher(url, exchange string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	p.closeCh = ch.Close
	return p, nil
}

func newPublisher(ch publishChannel, exchange string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "mq_publisher").Logger(),
	}
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.publish(ctx, key, b)
}

func (p *Publisher) publish(ctx context.Context, key string, body []byte) error {
	err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		metrics.IncBrokerMessage("out", "error")
		return fmt.Errorf("publish %s: %w", key, err)
	}
	metrics.IncBrokerMessage("out", "ok")
	return nil
}

// Forward relays every event on the bus to the exchange, using the event
// type as routing key. Failures go to the bus error hook.
func (p *Publisher) Forward(bus *events.EventBus) {
	bus.Subscribe(events.AllEvents, func(event *events.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		return p.publish(ctx, event.Type, event.Payload)
	})
	p.logger.Info().Str("exchange", p.exchange).Msg("forwarding domain events")
}

func (p *Publisher) Close() error {
	if p.closeCh != nil {
		_ = p.closeCh()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
