package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/models"
)

func newTestQueue(t *testing.T, visibilityTimeout time.Duration) *Queue {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	q, err := NewQueue(db, "test", visibilityTimeout, 3, arbor.NewLogger())
	require.NoError(t, err)
	return q
}

func TestQueue_EnqueueReceiveAck(t *testing.T) {
	q := newTestQueue(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "src1", models.RawNews{ExternalID: "1", Title: "Новость"}))

	item, ack, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "src1", item.SourceID)
	assert.Equal(t, "1", item.Raw.ExternalID)
	assert.Equal(t, 1, item.ReceiveCount)

	_, _, err = q.Receive(ctx)
	assert.Equal(t, ErrNoMessage, err, "item should be invisible until visibility timeout elapses")

	require.NoError(t, ack())

	_, _, err = q.Receive(ctx)
	assert.Equal(t, ErrNoMessage, err, "acked item should never come back")
}

func TestQueue_RedeliveryAfterVisibilityTimeout(t *testing.T) {
	q := newTestQueue(t, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "src1", models.RawNews{ExternalID: "1"}))

	_, _, err := q.Receive(ctx)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	item, _, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, item.ReceiveCount)
}

func TestQueue_MaxReceiveDropsPoisonItem(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "src1", models.RawNews{ExternalID: "1"}))

	for i := 0; i < 3; i++ {
		_, _, err := q.Receive(ctx)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	_, _, err := q.Receive(ctx)
	assert.Equal(t, ErrNoMessage, err, "item should be dropped after max receive")
}
