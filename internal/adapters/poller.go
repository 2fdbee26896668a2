package adapters

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/adapters/backoff"
	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/ingest"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// BacklogProbe reports how many news items are currently waiting for
// enrichment, so the poller can honor the back-pressure rule in §5: sleep
// BackoffPoll when the backlog exceeds MaxBacklog.
type BacklogProbe func(ctx context.Context) (int, error)

// PollerConfig bounds how aggressively the poller fleet runs.
type PollerConfig struct {
	MaxBacklog  int
	BackoffPoll time.Duration
}

// ImageHook is called after a new (non-duplicate) News row is ingested and
// carries at least one pending image, so the image service (C5) can fetch
// and persist thumbnails without the ingest pipeline itself depending on
// image storage.
type ImageHook func(ctx context.Context, newsID string)

// Poller runs one goroutine per enabled Source, polling through the
// registered Strategy and writing through an ingest.Pipeline (C3, §4.1/§5).
type Poller struct {
	registry *Registry
	sources  interfaces.SourceStorage
	pipeline *ingest.Pipeline
	backlog  BacklogProbe
	config   PollerConfig
	logger   arbor.ILogger
	onImages ImageHook
}

// NewPoller creates a Poller. backlog may be nil to disable the
// back-pressure check. onImages may be nil to skip image processing
// entirely.
func NewPoller(registry *Registry, sources interfaces.SourceStorage, pipeline *ingest.Pipeline, backlog BacklogProbe, config PollerConfig, logger arbor.ILogger, onImages ImageHook) *Poller {
	return &Poller{registry: registry, sources: sources, pipeline: pipeline, backlog: backlog, config: config, logger: logger, onImages: onImages}
}

// Run starts one poll loop per enabled source and blocks until ctx is
// cancelled.
func (p *Poller) Run(ctx context.Context) error {
	sources, err := p.sources.ListEnabledSources(ctx)
	if err != nil {
		return err
	}

	for _, source := range sources {
		src := source
		common.SafeGoWithContext(ctx, p.logger, "adapters.poller."+src.Code, func() {
			p.runSource(ctx, src)
		})
	}

	<-ctx.Done()
	return nil
}

func (p *Poller) runSource(ctx context.Context, source *models.Source) {
	strategy, err := p.registry.Get(source.Kind)
	if err != nil {
		p.logger.Error().Err(err).Str("source", source.Code).Msg("no adapter strategy, poller exiting")
		return
	}

	interval := parsePollInterval(source.PollInterval)
	policy := backoff.NewPolicy()
	retries := 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if p.waitOutBacklog(ctx) {
			continue
		}

		if err := p.pollOnce(ctx, source, strategy); err != nil {
			retries++
			action := backoff.Classify(err)
			p.logger.Warn().Err(err).Str("source", source.Code).Int("retries", retries).Msg("poll failed")

			switch action {
			case backoff.ActionUnhealthy:
				if retries >= backoff.MaxChannelRetries {
					_ = p.sources.MarkHealth(ctx, source.ID, models.SourceHealthUnhealthy, err.Error())
					return
				}
			case backoff.ActionSkipAndLog:
				// single item dropped inside pollOnce already logged it
			default:
				_ = p.sources.MarkHealth(ctx, source.ID, models.SourceHealthDegraded, err.Error())
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(policy.Delay(retries)):
			}
			continue
		}

		retries = 0
		_ = p.sources.MarkHealth(ctx, source.ID, models.SourceHealthHealthy, "")
	}
}

func (p *Poller) pollOnce(ctx context.Context, source *models.Source, strategy Strategy) error {
	state, err := p.sources.GetParserState(ctx, source.ID)
	if err != nil {
		return err
	}

	items, nextCursor, err := strategy.Poll(ctx, source, state.LastExternalID)
	if err != nil {
		return err
	}

	for _, raw := range items {
		news, duplicate, err := p.pipeline.Ingest(ctx, source, raw)
		if err != nil {
			if backoff.Classify(err) == backoff.ActionSkipAndLog {
				p.logger.Warn().Err(err).Str("source", source.Code).Str("external_id", raw.ExternalID).Msg("skipping invalid item")
				continue
			}
			return err
		}

		if !duplicate && p.onImages != nil && len(news.PendingImages) > 0 {
			p.onImages(ctx, news.ID)
		}
	}

	if nextCursor != "" && nextCursor != state.LastExternalID {
		state.LastExternalID = nextCursor
		state.LastPolledAt = time.Now()
		if err := p.sources.UpdateParserState(ctx, state); err != nil {
			return err
		}
	}

	return nil
}

// waitOutBacklog sleeps for BackoffPoll and returns true if the current
// backlog exceeds MaxBacklog, telling the caller to skip this tick.
func (p *Poller) waitOutBacklog(ctx context.Context) bool {
	if p.backlog == nil || p.config.MaxBacklog <= 0 {
		return false
	}

	n, err := p.backlog(ctx)
	if err != nil || n <= p.config.MaxBacklog {
		return false
	}

	p.logger.Debug().Int("backlog", n).Int("max_backlog", p.config.MaxBacklog).Msg("backlog exceeded, backing off poll")
	select {
	case <-ctx.Done():
	case <-time.After(p.config.BackoffPoll):
	}
	return true
}

func parsePollInterval(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}
