package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/slotswap/internal/lib/logger/sl"
)

// Publisher sends SwapEvents to a durable queue on the default exchange.
// The broker connection is dialled lazily and re-dialled after it drops, so
// a broker outage only fails individual publishes.
type Publisher struct {
	log   *slog.Logger
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewPublisher returns a Publisher for queue on the broker at url.  No
// connection is made until the first publish.
func NewPublisher(log *slog.Logger, url, queue string) *Publisher {
	return &Publisher{log: log, url: url, queue: queue}
}

func (p *Publisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	p.conn = conn
	return conn, nil
}

// PublishSwapEvent marshals ev and publishes it as a persistent message.
// Errors are logged and returned so the caller can decide to ignore them.
func (p *Publisher) PublishSwapEvent(ctx context.Context, ev SwapEvent) error {
	const op = "queue.Publisher.PublishSwapEvent"
	log := p.log.With(slog.String("op", op), slog.String("type", string(ev.Type)), slog.Uint64("swap_id", ev.SwapID))

	body, err := json.Marshal(ev)
	if err != nil {
		log.Error("marshal event failed", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	conn, err := p.connection()
	if err != nil {
		log.Warn("broker unavailable", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Warn("channel open failed", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := declareQueue(ch, p.queue); err != nil {
		log.Warn("queue declare failed", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		log.Warn("publish failed", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close closes the broker connection if one is open.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

// declareQueue makes sure the durable queue exists; declaring is idempotent.
func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(name, true, false, false, false, nil)
}
