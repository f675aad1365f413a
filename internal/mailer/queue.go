package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/scitech-admin-api/internal/logging"
)

// Message is a queued reset-code delivery.
type Message struct {
	To       string    `json:"to"`
	Code     string    `json:"code"`
	QueuedAt time.Time `json:"queued_at"`
}

// Sender delivers a reset code to an address.
type Sender interface {
	SendPasswordResetCode(ctx context.Context, toEmail, code string) error
}

// Queue hands messages to the delivery worker through a redis list.
// It satisfies Sender so the API can use it in place of a direct sender.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

// SendPasswordResetCode enqueues the message and returns without waiting for delivery.
func (q *Queue) SendPasswordResetCode(ctx context.Context, toEmail, code string) error {
	raw, err := json.Marshal(Message{To: toEmail, Code: code, QueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode mail message: %w", err)
	}

	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("failed to enqueue mail message: %w", err)
	}
	return nil
}

// pop blocks up to timeout for the next message. It returns (nil, nil) on timeout.
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (*Message, error) {
	res, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop mail message: %w", err)
	}

	// BLPOP returns [key, value]
	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to decode mail message: %w", err)
	}
	return &msg, nil
}

// Worker drains the queue into a Sender.
type Worker struct {
	queue       *Queue
	sender      Sender
	logger      *logging.Logger
	pollTimeout time.Duration
	maxAge      time.Duration
}

// NewWorker builds a worker. Messages older than maxAge are dropped since the
// code inside has expired by then.
func NewWorker(queue *Queue, sender Sender, logger *logging.Logger, maxAge time.Duration) *Worker {
	return &Worker{
		queue:       queue,
		sender:      sender,
		logger:      logger,
		pollTimeout: 5 * time.Second,
		maxAge:      maxAge,
	}
}

// Run processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("mail worker started", "queue", w.queue.key)
	for {
		if ctx.Err() != nil {
			w.logger.Info("mail worker stopped")
			return nil
		}

		if _, err := w.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("mail worker iteration failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOne handles at most one message. Delivery failures are logged and the
// message is dropped; only queue errors are returned.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	msg, err := w.queue.pop(ctx, w.pollTimeout)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	if w.maxAge > 0 && time.Since(msg.QueuedAt) > w.maxAge {
		w.logger.Warn("dropping stale reset code message", "email", msg.To, "queued_at", msg.QueuedAt)
		return true, nil
	}

	sendCtx := w.logger.WithFields(map[string]any{"email": msg.To}).WithContext(ctx)
	if err := w.sender.SendPasswordResetCode(sendCtx, msg.To, msg.Code); err != nil {
		w.logger.Warn("failed to deliver reset code", "email", msg.To, "error", err)
	}
	return true, nil
}
