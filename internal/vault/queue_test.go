package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/aclarai/internal/graph"
	"github.com/ppiankov/aclarai/internal/model"
)

func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q, err := NewQueue(context.Background(), client, model.DefaultConfig().Redis, nil)
	require.NoError(t, err)
	return q, client
}

func TestQueue_GroupCreationIsIdempotent(t *testing.T) {
	q, client := newTestQueue(t)
	_, err := NewQueue(context.Background(), client, model.RedisConfig{Stream: q.stream, Group: q.group}, nil)
	assert.NoError(t, err)

	_, err = NewQueue(context.Background(), nil, model.RedisConfig{}, nil)
	assert.Error(t, err)
}

func TestQueue_AcksOnlySuccesses(t *testing.T) {
	ctx := context.Background()
	q, client := newTestQueue(t)

	_, err := q.Publish(ctx, model.ChangeNotification{ID: "ok", FilePath: "a.md", ChangeType: model.ChangeCreated, Version: 1})
	require.NoError(t, err)
	_, err = q.Publish(ctx, model.ChangeNotification{ID: "bad", FilePath: "b.md", ChangeType: model.ChangeCreated, Version: 1})
	require.NoError(t, err)
	// A malformed payload is dropped rather than redelivered forever
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: q.stream, Values: map[string]interface{}{"payload": "{"}}).Err())

	var seen []string
	handler := func(_ context.Context, n model.ChangeNotification) error {
		seen = append(seen, n.ID)
		if n.ID == "bad" {
			return errors.New("graph unavailable")
		}
		return nil
	}

	acked, err := q.ReadOnce(ctx, "worker-1", 10, -1, false, handler)
	require.NoError(t, err)
	assert.Equal(t, 2, acked)
	assert.Equal(t, []string{"ok", "bad"}, seen)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	// Nothing new, the failed message is redelivered from the pending list
	acked, err = q.ReadOnce(ctx, "worker-1", 10, -1, false, handler)
	require.NoError(t, err)
	assert.Zero(t, acked)

	acked, err = q.ReadOnce(ctx, "worker-1", 10, -1, true, func(context.Context, model.ChangeNotification) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, acked)

	pending, err = q.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestQueue_PublishRejectsInvalid(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Publish(context.Background(), model.ChangeNotification{ChangeType: model.ChangeCreated})
	assert.Error(t, err)
}

func TestQueue_ConsumeFeedsEngine(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "note.md", "queued text", "blk_q", 1)
	store := graph.NewMemoryStore()
	engine := NewEngine(store, dir, syncConfig(), nil)
	q, _ := newTestQueue(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := q.Publish(ctx, modified("blk_q", "note.md", 1))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, "worker-1", func(ctx context.Context, n model.ChangeNotification) error {
			_, err := engine.Process(ctx, n)
			return err
		})
	}()

	require.Eventually(t, func() bool {
		_, err := store.GetBlock(context.Background(), "blk_q")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Consume did not stop after cancel")
	}
}
