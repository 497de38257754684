package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-booking/internal/queue"
)

// QueuePublisher publishes events to RabbitMQ.  Each event type goes to
// its own durable queue through the default exchange and is marked
// persistent.  The connection is dialled lazily and re-dialled after the
// broker drops it.  Dialling, including the AMQP handshake, is bounded by
// the publish timeout; after a failed dial further publishes fail fast
// until the retry delay has passed.
type QueuePublisher struct {
	url        string
	timeout    time.Duration
	retryDelay time.Duration

	mu        sync.Mutex
	conn      *amqp.Connection
	nextDial  time.Time
	lastError error
}

// NewQueuePublisher returns a publisher for the broker at url.
func NewQueuePublisher(url string) *QueuePublisher {
	return &QueuePublisher{url: url, timeout: 5 * time.Second, retryDelay: 10 * time.Second}
}

func (p *QueuePublisher) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	return p.publish(ctx, queue.BookingConfirmedQueue, ev)
}

func (p *QueuePublisher) PublishBookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error {
	return p.publish(ctx, queue.BookingCancelledQueue, ev)
}

func (p *QueuePublisher) PublishReservationExpired(ctx context.Context, ev queue.ReservationExpiredEvent) error {
	return p.publish(ctx, queue.ReservationExpiredQueue, ev)
}

// Close shuts the broker connection down.
func (p *QueuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

func (p *QueuePublisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	if now := time.Now(); now.Before(p.nextDial) {
		return nil, fmt.Errorf("rabbitmq: broker unavailable, next dial in %s: %w", p.nextDial.Sub(now).Round(time.Millisecond), p.lastError)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.timeout),
	})
	if err != nil {
		p.lastError = err
		p.nextDial = time.Now().Add(p.retryDelay)
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	p.conn = conn
	p.nextDial = time.Time{}
	return conn, nil
}

func (p *QueuePublisher) publish(ctx context.Context, queueName string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal %s: %w", queueName, err)
	}
	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare %s: %w", queueName, err)
	}

	// The request may already be finished; the broker gets its own timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	return ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}
