package enrichment

import (
	"context"
	"runtime"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
)

// WorkerPool runs Concurrency goroutines that each poll NewsStorage's
// claim-based cursor and hand claimed rows to Pipeline.ProcessOne,
// staggering starts across the poll interval the way
// internal/queue.WorkerPool spreads its own workers to cut lock
// contention on the claim table.
type WorkerPool struct {
	pipeline *Pipeline
	logger   arbor.ILogger

	concurrency   int
	batchSize     int
	leaseDuration time.Duration
	pollInterval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool creates a pool over pipeline's NewsStorage collaborator.
func NewWorkerPool(pipeline *Pipeline, cfg common.EnrichmentConfig, logger arbor.ILogger) *WorkerPool {
	concurrency := cfg.Workers
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	lease := time.Duration(cfg.ClaimLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 300 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		pipeline:      pipeline,
		logger:        logger,
		concurrency:   concurrency,
		batchSize:     batchSize,
		leaseDuration: lease,
		pollInterval:  2 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start launches the worker goroutines. It returns immediately; call Stop
// to end the pool.
func (wp *WorkerPool) Start() {
	wp.logger.Info().Int("concurrency", wp.concurrency).Msg("enrichment: starting worker pool")
	for i := 0; i < wp.concurrency; i++ {
		go wp.worker(i)
	}
}

// Stop signals every worker to exit after its current batch.
func (wp *WorkerPool) Stop() {
	wp.logger.Info().Msg("enrichment: stopping worker pool")
	wp.cancel()
}

func (wp *WorkerPool) worker(workerID int) {
	staggerDelay := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		time.Sleep(staggerDelay)
	}

	owner := common.NewID("enrichment-worker")
	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Int("worker_id", workerID).Msg("enrichment: worker stopped")
			return
		case <-ticker.C:
			wp.drainOnce(workerID, owner)
		}
	}
}

func (wp *WorkerPool) drainOnce(workerID int, owner string) {
	claimed, err := wp.pipeline.news.ClaimUnenriched(wp.ctx, owner, wp.batchSize, wp.leaseDuration)
	if err != nil {
		wp.logger.Warn().Err(err).Int("worker_id", workerID).Msg("enrichment: claim failed")
		return
	}

	for _, item := range claimed {
		if err := wp.pipeline.ProcessOne(wp.ctx, item); err != nil {
			wp.logger.Error().Err(err).Str("news_id", item.ID).Int("worker_id", workerID).Msg("enrichment: processing failed")
		}
	}
}
