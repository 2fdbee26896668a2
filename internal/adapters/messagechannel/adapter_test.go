package messagechannel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/adapters/ratelimit"
	"github.com/cegradar/cegradar/internal/models"
)

type fakeChannelClient struct {
	messages []ChannelMessage
	nextID   string
	err      error
}

func (f *fakeChannelClient) FetchSince(ctx context.Context, locator, afterExternalID string) ([]ChannelMessage, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.messages, f.nextID, nil
}

func TestStrategy_Poll(t *testing.T) {
	client := &fakeChannelClient{
		messages: []ChannelMessage{
			{ExternalID: "1", Title: "Газпром нарастил добычу", PublishedAt: time.Now()},
		},
		nextID: "1",
	}
	strategy := NewStrategy(client, ratelimit.New(100), arbor.NewLogger())

	source := &models.Source{ID: "src1", Locator: "tg_channel", TrustLevel: 8}
	items, next, err := strategy.Poll(context.Background(), source, "")

	require.NoError(t, err)
	assert.Equal(t, "1", next)
	require.Len(t, items, 1)
	assert.Equal(t, "src1", items[0].SourceID)
	assert.Equal(t, 8, items[0].TrustLevel)
}

func TestStrategy_Backfill_FiltersHorizon(t *testing.T) {
	old := ChannelMessage{ExternalID: "old", PublishedAt: time.Now().Add(-48 * time.Hour)}
	fresh := ChannelMessage{ExternalID: "fresh", PublishedAt: time.Now()}
	client := &fakeChannelClient{messages: []ChannelMessage{old, fresh}}

	strategy := NewStrategy(client, ratelimit.New(100), arbor.NewLogger())
	source := &models.Source{ID: "src1", Locator: "tg_channel"}

	out, errs := strategy.Backfill(context.Background(), source, 24*time.Hour)

	var got []models.RawNews
	for item := range out {
		got = append(got, item)
	}
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].ExternalID)
}
