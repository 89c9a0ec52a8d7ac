package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"courtbook/internal/domain"
	"courtbook/internal/metrics"
	"courtbook/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const prefetch = 20

// PaymentApplier applies one payment outcome. The reconciler implements it.
type PaymentApplier interface {
	ApplyPaymentOutcome(ctx context.Context, sig models.PaymentSignal) error
}

type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
	keys     []string
}

func NewConsumer(url, exchange, queue string, keys []string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	fail := func(step string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fail("set qos", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	for _, rk := range keys {
		if err := ch.QueueBind(q.Name, rk, exchange, false, nil); err != nil {
			return fail("bind "+rk, err)
		}
	}
	return &Consumer{conn: conn, ch: ch, exchange: exchange, queue: q.Name, keys: keys}, nil
}

func (c *Consumer) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// PaymentHandler feeds payment outcome messages to the reconciler.
type PaymentHandler struct {
	applier PaymentApplier
	logger  zerolog.Logger
}

func NewPaymentHandler(applier PaymentApplier, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		applier: applier,
		logger:  logger.With().Str("component", "payment_consumer").Logger(),
	}
}

// Run handles deliveries until ctx is done or the channel closes.
func (h *PaymentHandler) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			h.Handle(ctx, d)
		}
	}
}

// Handle acks a processed message. Malformed or permanently failing messages
// are dropped. Anything else is requeued once.
func (h *PaymentHandler) Handle(ctx context.Context, d amqp.Delivery) {
	var sig models.PaymentSignal
	if err := json.Unmarshal(d.Body, &sig); err != nil {
		h.logger.Warn().Err(err).Uint64("tag", d.DeliveryTag).Msg("dropping malformed payment message")
		h.settle(d, "malformed", d.Nack(false, false))
		return
	}

	err := h.applier.ApplyPaymentOutcome(ctx, sig)
	switch {
	case err == nil:
		h.settle(d, "ok", d.Ack(false))
	case permanent(err):
		h.logger.Warn().Err(err).Str("reservation_id", sig.ReservationID).Msg("dropping payment message")
		h.settle(d, "rejected", d.Nack(false, false))
	default:
		requeue := !d.Redelivered
		h.logger.Error().Err(err).Str("reservation_id", sig.ReservationID).Bool("requeue", requeue).Msg("payment message failed")
		h.settle(d, "error", d.Nack(false, requeue))
	}
}

func (h *PaymentHandler) settle(d amqp.Delivery, result string, err error) {
	metrics.IncBrokerMessage("in", result)
	if err != nil {
		h.logger.Error().Err(err).Uint64("tag", d.DeliveryTag).Msg("failed to settle delivery")
	}
}

func permanent(err error) bool {
	return domain.IsValidation(err) || errors.Is(err, domain.ErrNotFound)
}
