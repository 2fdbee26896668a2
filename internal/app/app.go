// Package app is the composition root: it wires every collaborator built
// across internal/* into one running process, the way the teacher's
// internal/app/app.go builds its App struct via a sequence of initX()
// helpers called from New.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/adapters"
	"github.com/cegradar/cegradar/internal/adapters/html"
	"github.com/cegradar/cegradar/internal/adapters/ratelimit"
	"github.com/cegradar/cegradar/internal/antispam"
	"github.com/cegradar/cegradar/internal/broker"
	"github.com/cegradar/cegradar/internal/ceg"
	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/enrichment"
	"github.com/cegradar/cegradar/internal/eodhd"
	"github.com/cegradar/cegradar/internal/eventextractor"
	"github.com/cegradar/cegradar/internal/eventstudy"
	"github.com/cegradar/cegradar/internal/graphwriter"
	"github.com/cegradar/cegradar/internal/images"
	"github.com/cegradar/cegradar/internal/ingest"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/linker"
	"github.com/cegradar/cegradar/internal/models"
	"github.com/cegradar/cegradar/internal/nerextract"
	"github.com/cegradar/cegradar/internal/outbox"
	"github.com/cegradar/cegradar/internal/refdata"
	badgerqueue "github.com/cegradar/cegradar/internal/storage/badger"
	"github.com/cegradar/cegradar/internal/storage/sqlite"
)

// App holds every wired collaborator for the process: storage, adapters,
// the enrichment pipeline, and the background loops that drive them.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc

	Storage interfaces.StorageManager
	StageQ  *badgerqueue.Queue
	Metrics *common.Metrics

	RefCache *refdata.Cache
	Linker   *linker.Linker

	Registry *adapters.Registry
	Poller   *adapters.Poller
	Images   *images.Service

	CEG        *ceg.Engine
	EventStudy *eventstudy.Analyzer
	Graph      *graphwriter.Writer

	Broker *broker.Client
	Outbox *outbox.Relay

	Pipeline *enrichment.Pipeline
	Workers  *enrichment.WorkerPool

	cron *cron.Cron
}

// New builds and wires every collaborator but does not start any background
// loop; call Start for that.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:  cfg,
		Logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		Metrics: common.NewMetrics(),
	}

	if err := a.initStorage(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := a.initRefData(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize securities master cache: %w", err)
	}

	a.initIngest()

	if err := a.seedSources(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to seed sources: %w", err)
	}

	a.initMarketCollaborators()
	a.initGraphAndBroker()
	a.initEnrichment()
	a.initCronSchedule()

	return a, nil
}

// initStorage opens the SQLite manager (the News/Source/Event/Outbox store
// of record) and the Badger-backed staging queue. No component enqueues into
// the staging queue: adapters write through ingest.Pipeline directly, and
// the queue is only held open until Close.
func (a *App) initStorage() error {
	mgr, err := sqlite.NewManager(a.Logger, a.Config.Storage.SQLitePath)
	if err != nil {
		return err
	}
	a.Storage = mgr

	queue, err := badgerqueue.Open(a.Config.Storage.Badger.Path, "ingest-staging", 5*time.Minute, 5, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open staging queue: %w", err)
	}
	a.StageQ = queue
	return nil
}

// initRefData brings up the curated securities master cache (C1): it loads
// whatever TOML seed files exist, rebuilds the in-memory alias snapshot from
// storage, then starts the single-writer goroutine that serializes
// auto-learned aliases (§4.6's auto_learn path).
//
// interfaces.SecuritiesMasterClient (internal/interfaces/collaborators.go)
// has no implementation here: no example repo in the pack carries an HTTP
// SDK for a securities-master service, so the curated master is seeded from
// the TOML fixtures refdata.Loader reads instead, matching how the teacher
// seeds its own connector catalogue from static files on startup.
func (a *App) initRefData() error {
	a.RefCache = refdata.New(a.Storage.RefDataStorage(), a.Logger)

	loader := refdata.NewLoader(a.Storage.RefDataStorage(), a.Logger)
	if err := loader.LoadFromDir(a.ctx, filepath.Join("config", "securities")); err != nil {
		return err
	}

	if err := a.RefCache.Load(a.ctx); err != nil {
		return err
	}
	common.SafeGoWithContext(a.ctx, a.Logger, "refdata.cache.writer", func() {
		a.RefCache.Run(a.ctx)
	})

	a.Linker = linker.New(a.RefCache, a.Storage.RefDataStorage(), a.Config.Linker.AutoLearnThreshold, a.Logger)
	return nil
}

// initIngest wires the adapter registry (only the html strategy: the
// message_channel collaborator is external and never named in this module,
// so message_channel sources register no strategy and simply never poll),
// the image service, and the poller that drives both off configured
// Sources.
func (a *App) initIngest() {
	a.Registry = adapters.NewRegistry()

	limiter := ratelimit.New(1.0)
	fetcher := html.NewHTTPFetcher(15 * time.Second)
	a.Registry.Register(models.SourceKindHTML, html.NewStrategy(fetcher, limiter, a.Logger))

	rules, rulesErr := antispam.LoadRuleSet(a.Config.Antispam.RulesFile)
	if rulesErr != nil {
		a.Logger.Warn().Err(rulesErr).Str("path", a.Config.Antispam.RulesFile).Msg("antispam rules file unusable, using default rules")
		rules = antispam.DefaultRuleSet()
	}
	pipeline := ingest.New(a.Storage.NewsStorage(), rules, a.Logger)

	var err error
	a.Images, err = images.New(images.DefaultConfig(a.Config.Storage.ImagesRoot), a.Storage.ImageStorage(), a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("image service unavailable, pending images will not be fetched")
	}

	var onImages adapters.ImageHook
	if a.Images != nil {
		onImages = func(ctx context.Context, newsID string) {
			if _, err := a.Images.ProcessNews(ctx, newsID); err != nil {
				a.Logger.Warn().Err(err).Str("news_id", newsID).Msg("image processing failed")
			}
		}
	}

	// No storage-level backlog counter exists (NewsStorage exposes
	// ClaimUnenriched, not a cheap count), so the poller runs without
	// back-pressure: a nil probe disables the MaxBacklog check entirely.
	a.Poller = adapters.NewPoller(a.Registry, a.Storage.SourceStorage(), pipeline, nil, adapters.PollerConfig{
		MaxBacklog:  0,
		BackoffPoll: 30 * time.Second,
	}, a.Logger, onImages)
}

// seedSources upserts every configured SourceSeedConfig as a Source row,
// skipping ones that already exist by code so re-running the process never
// clobbers the adapter's learned cursor or health state.
func (a *App) seedSources() error {
	for _, seed := range a.Config.Sources {
		existing, err := a.Storage.SourceStorage().GetSourceByCode(a.ctx, seed.Code)
		if err == nil && existing != nil {
			continue
		}

		source := &models.Source{
			ID:           common.NewID("src"),
			Code:         seed.Code,
			Kind:         models.SourceKind(seed.Kind),
			Locator:      seed.Locator,
			TrustLevel:   seed.TrustLevel,
			Enabled:      seed.Enabled,
			PollInterval: seed.PollInterval,
			BackfillDays: seed.BackfillDays,
			Config:       models.Metadata(seed.Config),
			Health:       models.SourceHealthHealthy,
		}
		if err := source.Validate(); err != nil {
			a.Logger.Warn().Err(err).Str("code", seed.Code).Msg("skipping invalid configured source")
			continue
		}
		if err := a.Storage.SourceStorage().SaveSource(a.ctx, source); err != nil {
			return fmt.Errorf("failed to seed source %s: %w", seed.Code, err)
		}
	}
	return nil
}

// initMarketCollaborators wires the event-study analyser (C11) over the
// EODHD price client and the causal engine (C10) that scores candidate
// edges using it as the market-confidence term.
func (a *App) initMarketCollaborators() {
	eodhdClient := eodhd.NewClient(a.Config.PriceAPI.APIKey)
	priceClient := eventstudy.NewEODHDPriceClient(eodhdClient)
	a.EventStudy = eventstudy.New(priceClient, a.Config.EventStudy, a.Logger)

	a.CEG = ceg.New(a.Storage.EventStorage(), a.Storage.NewsStorage(), a.EventStudy, a.Config.CEG, a.Logger)
}

// initGraphAndBroker wires the two independent outward-facing systems: the
// graph store mirror (C12, HTTP) and the message broker the outbox relay
// (C13) publishes through.
func (a *App) initGraphAndBroker() {
	httpClient := graphwriter.NewHTTPClient(a.Config.GraphStore, a.Logger)
	a.Graph = graphwriter.New(httpClient)

	a.Broker = broker.New(a.Config.Broker, a.Logger)
	a.Outbox = outbox.New(a.Storage.OutboxStorage(), a.Broker, a.Config.Outbox, a.Metrics, a.Logger, common.NewID("relay-owner"))
}

// initEnrichment wires the C6 pipeline over every collaborator prepared so
// far and its worker pool.
func (a *App) initEnrichment() {
	collaborators := enrichment.Collaborators{
		Sources:        a.Storage.SourceStorage(),
		News:           a.Storage.NewsStorage(),
		Entities:       a.Storage.EntityStorage(),
		Topics:         a.Storage.TopicStorage(),
		RefData:        a.Storage.RefDataStorage(),
		Events:         a.Storage.EventStorage(),
		Outbox:         a.Storage.OutboxStorage(),
		Extractor:      nerextract.New(),
		Linker:         a.Linker,
		EventExtractor: eventextractor.New(a.Config.CEG),
		Causal:         a.CEG,
		Study:          a.EventStudy,
		Graph:          a.Graph,
	}
	a.Pipeline = enrichment.New(collaborators, a.Config.Enrichment, a.Metrics, a.Logger)
	a.Workers = enrichment.NewWorkerPool(a.Pipeline, a.Config.Enrichment, a.Logger)
}

// initCronSchedule registers the outbox purge job. Purge is intentionally
// not run inline in the relay's poll loop (see outbox.Relay.Purge's own doc
// comment), so it gets a dedicated cron entry the way the teacher's
// scheduler service registers its own periodic jobs.
func (a *App) initCronSchedule() {
	a.cron = cron.New()
	schedule := a.Config.Outbox.PurgeSchedule
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	_, err := a.cron.AddFunc(schedule, func() {
		purged, err := a.Outbox.Purge(a.ctx)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("outbox purge failed")
			return
		}
		a.Logger.Info().Int("purged", purged).Msg("outbox purge complete")
	})
	if err != nil {
		a.Logger.Warn().Err(err).Str("schedule", schedule).Msg("invalid purge schedule, purge disabled")
		a.cron = nil
	}
}

// Start launches every background loop: the per-source pollers, the
// enrichment worker pool, the outbox relay, and the cron scheduler. It
// returns immediately.
func (a *App) Start() {
	common.SafeGoWithContext(a.ctx, a.Logger, "adapters.poller", func() {
		if err := a.Poller.Run(a.ctx); err != nil {
			a.Logger.Error().Err(err).Msg("poller exited")
		}
	})

	a.Workers.Start()

	common.SafeGoWithContext(a.ctx, a.Logger, "outbox.relay", func() {
		if err := a.Outbox.Run(a.ctx); err != nil {
			a.Logger.Error().Err(err).Msg("outbox relay exited")
		}
	})

	if a.cron != nil {
		a.cron.Start()
	}

	a.Logger.Info().Msg("application started")
}

// Close stops every background loop in reverse dependency order and
// releases storage handles.
func (a *App) Close() error {
	if a.cron != nil {
		stopCtx := a.cron.Stop()
		<-stopCtx.Done()
	}

	if a.Workers != nil {
		a.Workers.Stop()
	}

	a.cancel()
	time.Sleep(100 * time.Millisecond)

	if a.StageQ != nil {
		if err := a.StageQ.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close staging queue database")
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("application stopped")
	return nil
}
