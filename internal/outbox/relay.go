// Package outbox is the Outbox Relay (C13): it drains the durable
// at-least-once delivery queue written by every other component's
// transactional writes and hands each row to the broker, with
// exponential backoff and dead-lettering on repeated failure (§4.11).
// The claim-and-poll loop is grounded on internal/queue/worker.go's
// WorkerPool — stagger-free here since the relay is a single-writer-
// per-partition loop (§5), not a concurrent pool.
package outbox

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// Publisher is the broker collaborator the relay delivers to.
// internal/broker.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}

// Relay is one partition's outbox-draining loop.
type Relay struct {
	storage   interfaces.OutboxStorage
	publisher Publisher
	cfg       common.OutboxConfig
	logger    arbor.ILogger
	metrics   *common.Metrics
	owner     string

	pollInterval time.Duration
	baseBackoff  time.Duration
}

// New creates a Relay. owner identifies this partition for the storage
// layer's claim column.
func New(storage interfaces.OutboxStorage, publisher Publisher, cfg common.OutboxConfig, metrics *common.Metrics, logger arbor.ILogger, owner string) *Relay {
	base, err := time.ParseDuration(cfg.BaseBackoff)
	if err != nil || base <= 0 {
		base = 60 * time.Second
	}
	return &Relay{
		storage:      storage,
		publisher:    publisher,
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		owner:        owner,
		pollInterval: 2 * time.Second,
		baseBackoff:  base,
	}
}

// Run polls for pending rows until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("outbox: drain pass failed")
			}
		}
	}
}

func (r *Relay) drainOnce(ctx context.Context) error {
	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	events, err := r.storage.ClaimPending(ctx, r.owner, batchSize)
	if err != nil {
		if strings.Contains(err.Error(), "no message") {
			return nil
		}
		return err
	}

	for _, event := range events {
		r.deliver(ctx, event)
	}
	return nil
}

func (r *Relay) deliver(ctx context.Context, event *models.OutboxEvent) {
	err := r.publisher.Publish(ctx, string(event.Type), event.Payload)
	if err == nil {
		if err := r.storage.MarkSent(ctx, event.ID); err != nil {
			r.logger.Warn().Err(err).Str("outbox_id", event.ID).Msg("outbox: mark sent failed")
			return
		}
		r.metrics.OutboxSent.Add(1)
		return
	}

	maxRetries := r.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	if event.Retries+1 >= maxRetries {
		if err := r.storage.MarkDeadLettered(ctx, event.ID); err != nil {
			r.logger.Warn().Err(err).Str("outbox_id", event.ID).Msg("outbox: mark dead-lettered failed")
			return
		}
		r.metrics.OutboxDeadLettered.Add(1)
		r.logger.Error().Str("outbox_id", event.ID).Str("type", string(event.Type)).
			Int("retries", event.Retries+1).Msg("outbox: event dead-lettered")
		return
	}

	delay := r.baseBackoff * time.Duration(1<<uint(event.Retries))
	nextAttempt := time.Now().Add(delay)
	if err := r.storage.MarkRetry(ctx, event.ID, nextAttempt); err != nil {
		r.logger.Warn().Err(err).Str("outbox_id", event.ID).Msg("outbox: mark retry failed")
		return
	}
	r.metrics.OutboxRetried.Add(1)
}

// Purge removes Sent rows older than KeepDays. It is called from the cron job
// app.App registers on Outbox.PurgeSchedule, not inline in the poll loop.
func (r *Relay) Purge(ctx context.Context) (int, error) {
	keepDays := r.cfg.KeepDays
	if keepDays <= 0 {
		keepDays = 7
	}
	cutoff := time.Now().AddDate(0, 0, -keepDays)
	n, err := r.storage.PurgeSentBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info().Int("purged", n).Msg("outbox: purged old sent rows")
	}
	return n, nil
}
