package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
)

const payloadField = "payload"

// Handler processes one notification. A nil error acknowledges the message.
type Handler func(ctx context.Context, n model.ChangeNotification) error

// Queue carries change notifications over a Redis stream with a consumer group
type Queue struct {
	client *redis.Client
	stream string
	group  string
	logger *logging.Logger
}

// NewQueue ensures the stream and consumer group exist
func NewQueue(ctx context.Context, client *redis.Client, cfg model.RedisConfig, logger *logging.Logger) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	q := &Queue{
		client: client,
		stream: cfg.Stream,
		group:  cfg.Group,
		logger: logger.With("component", "vault-queue", "stream", cfg.Stream),
	}
	if q.stream == "" {
		q.stream = "aclarai:vault:changes"
	}
	if q.group == "" {
		q.group = "aclarai-sync"
	}
	err := client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return q, nil
}

// Publish appends a notification to the stream and returns its message id
func (q *Queue) Publish(ctx context.Context, n model.ChangeNotification) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{payloadField: string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return id, nil
}

// ReadOnce reads up to count messages for consumer and handles them in order.
// With pending set it re-reads this consumer's unacknowledged messages instead
// of new ones. A negative block returns immediately when nothing is waiting.
// It returns the number of acknowledged messages.
func (q *Queue) ReadOnce(ctx context.Context, consumer string, count int64, block time.Duration, pending bool, h Handler) (int, error) {
	start := ">"
	if pending {
		start = "0"
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, start},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read stream: %w", err)
	}

	acked := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			if q.handle(ctx, msg, h) {
				if err := q.client.XAck(ctx, q.stream, q.group, msg.ID).Err(); err != nil {
					return acked, fmt.Errorf("ack %s: %w", msg.ID, err)
				}
				acked++
			}
		}
	}
	return acked, nil
}

// handle reports whether msg should be acknowledged. Undecodable messages are
// acknowledged so they do not block the group.
func (q *Queue) handle(ctx context.Context, msg redis.XMessage, h Handler) bool {
	raw, _ := msg.Values[payloadField].(string)
	n, err := ParseNotification([]byte(raw))
	if err != nil {
		q.logger.Warn("dropping malformed notification", "message_id", msg.ID, "error", err.Error())
		return true
	}
	if err := h(ctx, n); err != nil {
		q.logger.Warn("notification failed, leaving pending", "message_id", msg.ID, "block_id", n.ID, "error", err.Error())
		return false
	}
	return true
}

// Consume drains this consumer's pending messages, then handles new ones
// until ctx is done.
func (q *Queue) Consume(ctx context.Context, consumer string, h Handler) error {
	q.logger.Info("consuming notifications", "group", q.group, "consumer", consumer)
	for {
		if _, err := q.ReadOnce(ctx, consumer, 100, -1, true, h); err != nil && ctx.Err() == nil {
			q.logger.Warn("pending redelivery failed", "error", err.Error())
		}
		for i := 0; i < 30; i++ {
			if ctx.Err() != nil {
				return nil
			}
			_, err := q.ReadOnce(ctx, consumer, 10, 2*time.Second, false, h)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				q.logger.Error("read notifications failed", "error", err.Error())
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Pending returns the number of delivered but unacknowledged messages
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	p, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return p.Count, nil
}
