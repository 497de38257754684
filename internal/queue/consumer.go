package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Handler processes one delivery body taken from queue.  Returning an
// error rejects the message without requeueing it.
type Handler func(ctx context.Context, queue string, body []byte) error

// Consumer reads the booking event queues and hands each message to a
// Handler.  It reconnects with exponential backoff until its context is
// cancelled.
type Consumer struct {
	url     string
	queues  []string
	handler Handler
	log     logrus.FieldLogger
}

// NewConsumer returns a consumer for the given queues.  With no queues it
// listens to every event queue this service publishes.
func NewConsumer(url string, handler Handler, log logrus.FieldLogger, queues ...string) *Consumer {
	if len(queues) == 0 {
		queues = []string{BookingConfirmedQueue, BookingCancelledQueue, ReservationExpiredQueue}
	}
	return &Consumer{url: url, queues: queues, handler: handler, log: log}
}

// Run blocks until ctx is done.  Broker failures are logged and retried;
// they never end the loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warnf("booking-consumer: dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Warn("booking-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("booking-consumer: set QoS failed")
	}

	type delivery struct {
		queue string
		amqp.Delivery
	}
	merged := make(chan delivery)
	stop := make(chan struct{})
	defer close(stop)
	for _, q := range c.queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		go func(q string, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case merged <- delivery{queue: q, Delivery: d}:
				case <-stop:
					return
				}
			}
			select {
			case merged <- delivery{queue: q}:
			case <-stop:
			}
		}(q, msgs)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-merged:
			if d.Acknowledger == nil {
				return errors.New("deliveries channel closed")
			}
			if err := c.handler(ctx, d.queue, d.Body); err != nil {
				c.log.WithError(err).WithField("queue", d.queue).Error("booking-consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
