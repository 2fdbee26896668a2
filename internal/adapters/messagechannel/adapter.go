// Package messagechannel implements the message-channel source strategy
// (C3, §4.1) over an abstract ChannelClient. The concrete client for any
// particular messaging platform is an external collaborator this module
// never names; a real implementation plugs in behind ChannelClient.
package messagechannel

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/adapters"
	"github.com/cegradar/cegradar/internal/adapters/ratelimit"
	"github.com/cegradar/cegradar/internal/models"
)

// ChannelMessage is one message read from a channel, before normalization
// into models.RawNews.
type ChannelMessage struct {
	ExternalID  string
	Title       string
	Text        string
	HTML        string
	PublishedAt time.Time
	Images      []models.RawImage
}

// ChannelClient is the abstract long-poll/backfill contract any message
// channel API must satisfy to plug into this adapter.
type ChannelClient interface {
	// FetchSince returns messages newer than afterExternalID (empty means
	// "from the beginning"), oldest first, plus the external ID to resume
	// from next time.
	FetchSince(ctx context.Context, locator string, afterExternalID string) ([]ChannelMessage, string, error)

	// FetchSince also backs the backfill horizon: callers filter by
	// PublishedAt after fetching, since most channel APIs paginate by
	// cursor rather than by date range.
}

// NewStrategy builds an adapters.Strategy bound to a ChannelClient, rate
// limited per source (§4.1: long-poll, not flood).
func NewStrategy(client ChannelClient, limiter *ratelimit.Limiter, logger arbor.ILogger) adapters.Strategy {
	return adapters.Strategy{
		Poll: func(ctx context.Context, source *models.Source, cursor string) ([]models.RawNews, string, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, cursor, err
			}

			messages, next, err := client.FetchSince(ctx, source.Locator, cursor)
			if err != nil {
				return nil, cursor, err
			}

			raw := make([]models.RawNews, 0, len(messages))
			for _, m := range messages {
				raw = append(raw, toRawNews(source, m))
			}
			return raw, next, nil
		},
		Backfill: func(ctx context.Context, source *models.Source, horizon time.Duration) (<-chan models.RawNews, <-chan error) {
			out := make(chan models.RawNews)
			errs := make(chan error, 1)

			go func() {
				defer close(out)
				defer close(errs)

				if err := limiter.Wait(ctx); err != nil {
					errs <- err
					return
				}

				cutoff := time.Now().Add(-horizon)
				messages, _, err := client.FetchSince(ctx, source.Locator, "")
				if err != nil {
					errs <- err
					return
				}

				for _, m := range messages {
					if m.PublishedAt.Before(cutoff) {
						continue
					}
					select {
					case out <- toRawNews(source, m):
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				}
			}()

			return out, errs
		},
	}
}

func toRawNews(source *models.Source, m ChannelMessage) models.RawNews {
	return models.RawNews{
		SourceID:    source.ID,
		ExternalID:  m.ExternalID,
		Title:       m.Title,
		Text:        m.Text,
		HTML:        m.HTML,
		PublishedAt: m.PublishedAt,
		Images:      m.Images,
		TrustLevel:  source.TrustLevel,
	}
}
