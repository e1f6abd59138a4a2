package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/slotswap/internal/lib/logger/sl"
)

// Consumer reads SwapEvents from the swap queue and appends one line per
// event to a log file.
type Consumer struct {
	log     *slog.Logger
	url     string
	queue   string
	logPath string
}

// NewConsumer returns a Consumer for queue on the broker at url that writes
// to logPath.
func NewConsumer(log *slog.Logger, url, queue, logPath string) *Consumer {
	return &Consumer{log: log, url: url, queue: queue, logPath: logPath}
}

// Run connects to the broker and consumes until ctx is cancelled.  Dial
// failures and dropped connections are retried with exponential backoff
// capped at 30s.  Malformed messages are rejected without requeue so they
// cannot loop.
func (c *Consumer) Run(ctx context.Context) {
	const op = "queue.Consumer.Run"
	log := c.log.With(slog.String("op", op), slog.String("queue", c.queue))

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn("failed to dial broker", sl.Err(err), slog.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			log.Info("consumer stopped")
			return
		}
		log.Warn("consume loop ended, reconnecting", sl.Err(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return
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
		c.log.Warn("set QoS failed", sl.Err(err))
	}
	if _, err := declareQueue(ch, c.queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				c.log.Warn("handle message failed", sl.Err(err), slog.String("message_id", d.MessageId))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(body []byte) error {
	var ev SwapEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.SwapID == 0 {
		return fmt.Errorf("incomplete event %q", ev.ID)
	}
	return appendLine(c.logPath, FormatLogLine(ev))
}

// FormatLogLine renders ev as a single human-readable log line ending in a
// newline.
func FormatLogLine(ev SwapEvent) string {
	return fmt.Sprintf("[%s] %s | swap_id=%d | requester_id=%d | receiver_id=%d | my_slot=%d | their_slot=%d | status=%s | event_id=%s\n",
		ev.OccurredAt, ev.Type, ev.SwapID, ev.RequesterID, ev.ReceiverID, ev.MySlotID, ev.TheirSlotID, ev.Status, ev.ID)
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
