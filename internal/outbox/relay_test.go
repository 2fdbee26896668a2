package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/models"
)

type fakeOutboxStore struct {
	events map[string]*models.OutboxEvent
}

func newFakeOutboxStore(events ...*models.OutboxEvent) *fakeOutboxStore {
	byID := map[string]*models.OutboxEvent{}
	for _, e := range events {
		byID[e.ID] = e
	}
	return &fakeOutboxStore{events: byID}
}

func (f *fakeOutboxStore) Enqueue(ctx context.Context, event *models.OutboxEvent) error {
	event.Status = models.OutboxPending
	f.events[event.ID] = event
	return nil
}

func (f *fakeOutboxStore) ClaimPending(ctx context.Context, owner string, limit int) ([]*models.OutboxEvent, error) {
	var out []*models.OutboxEvent
	for _, e := range f.events {
		if e.Status == models.OutboxPending {
			out = append(out, e)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
func (f *fakeOutboxStore) MarkSent(ctx context.Context, id string) error {
	f.events[id].Status = models.OutboxSent
	return nil
}
func (f *fakeOutboxStore) MarkRetry(ctx context.Context, id string, nextAttemptAt time.Time) error {
	f.events[id].Retries++
	f.events[id].NextAttemptAt = nextAttemptAt
	return nil
}
func (f *fakeOutboxStore) MarkDeadLettered(ctx context.Context, id string) error {
	f.events[id].Status = models.OutboxDeadLettered
	return nil
}
func (f *fakeOutboxStore) PurgeSentBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	for id, e := range f.events {
		if e.Status == models.OutboxSent && e.CreatedAt.Before(cutoff) {
			delete(f.events, id)
			n++
		}
	}
	return n, nil
}

type fakePublisher struct {
	fail bool
}

func (f *fakePublisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	if f.fail {
		return errors.New("publish failed")
	}
	return nil
}

func testOutboxConfig() common.OutboxConfig {
	return common.OutboxConfig{BatchSize: 10, MaxRetries: 3, BaseBackoff: "60s", KeepDays: 7}
}

func TestDeliver_SuccessMarksSentAndCountsMetric(t *testing.T) {
	store := newFakeOutboxStore(&models.OutboxEvent{ID: "e1", Type: models.OutboxEventNewsEnriched, Status: models.OutboxPending})
	metrics := common.NewMetrics()
	relay := New(store, &fakePublisher{}, testOutboxConfig(), metrics, arbor.NewLogger(), "relay-0")

	require.NoError(t, relay.drainOnce(context.Background()))

	assert.Equal(t, models.OutboxSent, store.events["e1"].Status)
	assert.Equal(t, int64(1), metrics.Snapshot().OutboxSent)
}

func TestDeliver_FailureIncrementsRetryWithBackoff(t *testing.T) {
	store := newFakeOutboxStore(&models.OutboxEvent{ID: "e1", Type: models.OutboxEventNewsEnriched, Status: models.OutboxPending, Retries: 0})
	metrics := common.NewMetrics()
	relay := New(store, &fakePublisher{fail: true}, testOutboxConfig(), metrics, arbor.NewLogger(), "relay-0")

	require.NoError(t, relay.drainOnce(context.Background()))

	assert.Equal(t, models.OutboxPending, store.events["e1"].Status)
	assert.Equal(t, 1, store.events["e1"].Retries)
	assert.Equal(t, int64(1), metrics.Snapshot().OutboxRetried)
}

func TestDeliver_ExhaustedRetriesDeadLetters(t *testing.T) {
	store := newFakeOutboxStore(&models.OutboxEvent{ID: "e1", Type: models.OutboxEventNewsEnriched, Status: models.OutboxPending, Retries: 2})
	metrics := common.NewMetrics()
	relay := New(store, &fakePublisher{fail: true}, testOutboxConfig(), metrics, arbor.NewLogger(), "relay-0")

	require.NoError(t, relay.drainOnce(context.Background()))

	assert.Equal(t, models.OutboxDeadLettered, store.events["e1"].Status)
	assert.Equal(t, int64(1), metrics.Snapshot().OutboxDeadLettered)
}

func TestPurge_RemovesOldSentRows(t *testing.T) {
	old := &models.OutboxEvent{ID: "old", Status: models.OutboxSent, CreatedAt: time.Now().AddDate(0, 0, -10)}
	fresh := &models.OutboxEvent{ID: "fresh", Status: models.OutboxSent, CreatedAt: time.Now()}
	store := newFakeOutboxStore(old, fresh)
	relay := New(store, &fakePublisher{}, testOutboxConfig(), common.NewMetrics(), arbor.NewLogger(), "relay-0")

	n, err := relay.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, stillThere := store.events["fresh"]
	assert.True(t, stillThere)
}
