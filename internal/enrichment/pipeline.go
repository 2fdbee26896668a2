// Package enrichment is the Enrichment Pipeline (C6): the per-News
// orchestration of every component between ingestion and a mirrored,
// queryable graph entry — external extraction, entity persistence,
// linking, classification, event extraction, causal scoring, and impact
// analysis (§4.4). Grounded on internal/ingest.Pipeline's shape (a thin
// orchestrator holding only its collaborators and a logger, one
// transactional write at the boundary) generalized from one storage call
// to the full seven-step sequence.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/ceg"
	"github.com/cegradar/cegradar/internal/classifier"
	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/eventextractor"
	"github.com/cegradar/cegradar/internal/eventstudy"
	"github.com/cegradar/cegradar/internal/graphwriter"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/linker"
	"github.com/cegradar/cegradar/internal/models"
)

// Pipeline runs the seven steps of §4.4 for one News item at a time.
type Pipeline struct {
	sources  interfaces.SourceStorage
	news     interfaces.NewsStorage
	entities interfaces.EntityStorage
	topics   interfaces.TopicStorage
	refdata  interfaces.RefDataStorage
	events   interfaces.EventStorage
	outbox   interfaces.OutboxStorage

	extractor      interfaces.Extractor
	linker         *linker.Linker
	eventExtractor *eventextractor.Extractor
	causal         *ceg.Engine
	study          *eventstudy.Analyzer
	graph          *graphwriter.Writer

	cfg     common.EnrichmentConfig
	metrics *common.Metrics
	logger  arbor.ILogger

	extractorTimeout time.Duration
}

// Collaborators bundles every dependency Pipeline needs, to keep New's
// argument list from sprawling across a dozen positional parameters.
type Collaborators struct {
	Sources        interfaces.SourceStorage
	News           interfaces.NewsStorage
	Entities       interfaces.EntityStorage
	Topics         interfaces.TopicStorage
	RefData        interfaces.RefDataStorage
	Events         interfaces.EventStorage
	Outbox         interfaces.OutboxStorage
	Extractor      interfaces.Extractor
	Linker         *linker.Linker
	EventExtractor *eventextractor.Extractor
	Causal         *ceg.Engine
	Study          *eventstudy.Analyzer
	Graph          *graphwriter.Writer
}

// New creates a Pipeline.
func New(c Collaborators, cfg common.EnrichmentConfig, metrics *common.Metrics, logger arbor.ILogger) *Pipeline {
	timeout, err := time.ParseDuration(cfg.ExtractorTimeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Pipeline{
		sources: c.Sources, news: c.News, entities: c.Entities, topics: c.Topics,
		refdata: c.RefData, events: c.Events, outbox: c.Outbox,
		extractor: c.Extractor, linker: c.Linker, eventExtractor: c.EventExtractor,
		causal: c.Causal, study: c.Study, graph: c.Graph,
		cfg: cfg, metrics: metrics, logger: logger, extractorTimeout: timeout,
	}
}

type newsEnrichedEnvelope struct {
	NewsID string    `json:"news_id"`
	At     time.Time `json:"at"`
}

type newsEnrichmentFailedEnvelope struct {
	NewsID string    `json:"news_id"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

type impactEdgeUpsertedEnvelope struct {
	EdgeID  string    `json:"edge_id"`
	EventID string    `json:"event_id"`
	Ticker  string    `json:"ticker"`
	At      time.Time `json:"at"`
}

// ProcessOne runs the full §4.4 sequence for one claimed News item. Only
// the external extractor call (step 1) is retried; any other step's error
// fails the item the same way an exhausted extractor retry does — the News
// is marked Failed and stays readable, per §4.4's closing paragraph. An
// ad-flagged item is marked Done straight away, with no steps run, so no
// entities, links or events come from it.
func (p *Pipeline) ProcessOne(ctx context.Context, news *models.News) error {
	if news.IsAd {
		news.EnrichmentStatus = models.EnrichmentDone
		envelope, _ := json.Marshal(newsEnrichedEnvelope{NewsID: news.ID, At: time.Now()})
		if err := p.news.UpdateEnrichment(ctx, news, models.OutboxEventNewsEnriched, envelope); err != nil {
			return fmt.Errorf("enrichment: mark ad %s done: %w", news.ID, err)
		}
		return nil
	}

	source, err := p.sources.GetSource(ctx, news.SourceID)
	if err != nil {
		return fmt.Errorf("enrichment: load source %s: %w", news.SourceID, err)
	}

	payload, err := p.extractWithRetry(ctx, news)
	if err != nil {
		return p.fail(ctx, news, fmt.Sprintf("extractor exhausted retries: %v", err))
	}

	if err := p.enrich(ctx, news, source, payload); err != nil {
		return p.fail(ctx, news, err.Error())
	}

	p.metrics.EnrichmentSucceeded.Add(1)
	return nil
}

// extractWithRetry calls the external extractor up to ExtractorRetries
// times, each attempt bounded by ExtractorTimeout (§4.4: "retryable with
// budget 3").
func (p *Pipeline) extractWithRetry(ctx context.Context, news *models.News) (interfaces.ExtractedEventPayload, error) {
	retries := p.cfg.ExtractorRetries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.extractorTimeout)
		payloads, err := p.extractor.Extract(attemptCtx, news.Title, news.Text)
		cancel()
		if err == nil {
			if len(payloads) == 0 {
				return interfaces.ExtractedEventPayload{}, nil
			}
			return payloads[0], nil
		}
		lastErr = err
		p.logger.Warn().Err(err).Str("news_id", news.ID).Int("attempt", attempt+1).Msg("enrichment: extractor call failed")
	}
	return interfaces.ExtractedEventPayload{}, lastErr
}

// enrich runs steps 2-7 given the external extraction result.
func (p *Pipeline) enrich(ctx context.Context, news *models.News, source *models.Source, payload interfaces.ExtractedEventPayload) error {
	entityRows := buildEntities(payload)
	if err := p.entities.SaveEntities(ctx, news.ID, entityRows); err != nil {
		return fmt.Errorf("save entities: %w", err)
	}

	var orgEntities []models.Entity
	for _, e := range entityRows {
		if e.Kind == models.EntityOrg {
			orgEntities = append(orgEntities, e)
		}
	}
	linkedCompanies, err := p.linker.LinkNews(ctx, news, orgEntities)
	if err != nil {
		return fmt.Errorf("link news: %w", err)
	}

	issuers, err := p.issuersFor(ctx, linkedCompanies)
	if err != nil {
		return fmt.Errorf("load linked issuers: %w", err)
	}

	result := classifier.Classify(news, issuers, "")
	if err := p.topics.SaveTopics(ctx, news.ID, topicsFor(news.ID, result.Tags)); err != nil {
		return fmt.Errorf("save topics: %w", err)
	}

	events := p.eventExtractor.Extract(eventextractor.Input{
		News:            news,
		Entities:        entityRows,
		LinkedCompanies: linkedCompanies,
		SourceTrust:     source.TrustLevel,
		Tickers:         payload.Tickers,
		Markets:         payload.Markets,
	})
	newEventPtrs := make([]*models.Event, 0, len(events))
	for i := range events {
		events[i].CreatedAt = time.Now()
		if err := p.events.SaveEvent(ctx, &events[i]); err != nil {
			return fmt.Errorf("save event %s: %w", events[i].ID, err)
		}
		newEventPtrs = append(newEventPtrs, &events[i])
		if p.graph != nil {
			if err := p.graph.UpsertEvent(ctx, &events[i]); err != nil {
				p.logger.Warn().Err(err).Str("event_id", events[i].ID).Msg("enrichment: graph mirror of event failed")
			}
		}
	}

	if len(newEventPtrs) > 0 && p.causal != nil {
		if err := p.causal.Link(ctx, news.ID, newEventPtrs, p.announceCausalEdge(ctx)); err != nil {
			return fmt.Errorf("causal link: %w", err)
		}
	}

	if p.study != nil {
		for _, ev := range newEventPtrs {
			if err := p.analyzeImpacts(ctx, ev); err != nil {
				p.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("enrichment: event-study analysis failed")
			}
		}
	}

	news.Sector = result.Sector
	news.Country = result.Country
	news.NewsType = result.NewsType
	news.NewsSubtype = result.NewsSubtype
	news.Tags = result.Tags
	news.EnrichmentStatus = models.EnrichmentDone

	envelope, _ := json.Marshal(newsEnrichedEnvelope{NewsID: news.ID, At: time.Now()})
	if err := p.news.UpdateEnrichment(ctx, news, models.OutboxEventNewsEnriched, envelope); err != nil {
		return fmt.Errorf("update enrichment: %w", err)
	}
	return nil
}

// causalEdgeAnnouncement mirrors ceg.Engine's own causalEdgeUpsertedEnvelope
// just enough to recover the cause/effect pair from the outbox payload.
type causalEdgeAnnouncement struct {
	CauseID  string `json:"cause_id"`
	EffectID string `json:"effect_id"`
}

// announceCausalEdge returns the outbox-fan-out callback ceg.Engine.Link
// invokes per touched edge. It enqueues a standalone outbox row (the edge
// write isn't part of the News transaction, unlike steps 2-7's relational
// writes — see interfaces.OutboxStorage.Enqueue's doc comment) and, since
// the Graph Store (§6.5) and the outbox/broker (§6.6) are independent
// systems rather than one routed through the other, separately re-fetches
// the full edge to mirror it into the graph directly.
func (p *Pipeline) announceCausalEdge(ctx context.Context) func(models.OutboxEventType, []byte) {
	return func(eventType models.OutboxEventType, payload []byte) {
		if err := p.outbox.Enqueue(ctx, &models.OutboxEvent{ID: common.NewID("obx"), Type: eventType, Payload: payload}); err != nil {
			p.logger.Warn().Err(err).Msg("enrichment: outbox enqueue for causal edge failed")
		}

		if p.graph == nil {
			return
		}
		var ann causalEdgeAnnouncement
		if err := json.Unmarshal(payload, &ann); err != nil {
			p.logger.Warn().Err(err).Msg("enrichment: could not parse causal edge announcement for graph mirror")
			return
		}
		edge, err := p.events.GetCausalEdge(ctx, ann.CauseID, ann.EffectID)
		if err != nil {
			p.logger.Warn().Err(err).Str("cause_id", ann.CauseID).Str("effect_id", ann.EffectID).Msg("enrichment: could not reload causal edge for graph mirror")
			return
		}
		if err := p.graph.UpsertCausesEdge(ctx, edge); err != nil {
			p.logger.Warn().Err(err).Str("edge_id", edge.ID).Msg("enrichment: graph mirror of causal edge failed")
		}
	}
}

// analyzeImpacts runs the event-study analyser against every ticker the
// event mentions and persists+mirrors a resulting ImpactEdge, per §4.4
// step 6's second half.
func (p *Pipeline) analyzeImpacts(ctx context.Context, event *models.Event) error {
	for _, ticker := range event.Attrs.Tickers {
		result, err := p.study.AnalyzeImpact(ctx, ticker, event.Timestamp)
		if err != nil {
			return fmt.Errorf("analyze impact for %s/%s: %w", event.ID, ticker, err)
		}

		edge := &models.ImpactEdge{
			ID:          common.NewID("imp"),
			EventID:     event.ID,
			Ticker:      ticker,
			AR:          result.AR,
			CAR:         result.CAR,
			VolumeRatio: result.VolumeRatio,
			Significant: result.Significant,
			ConfMarket:  result.ConfMarket,
			CreatedAt:   time.Now(),
		}
		if err := p.events.SaveImpactEdge(ctx, edge); err != nil {
			return fmt.Errorf("save impact edge %s/%s: %w", event.ID, ticker, err)
		}
		if p.graph != nil {
			if err := p.graph.UpsertImpactsEdge(ctx, edge); err != nil {
				p.logger.Warn().Err(err).Str("event_id", event.ID).Str("ticker", ticker).Msg("enrichment: graph mirror of impact edge failed")
			}
		}

		payload, _ := json.Marshal(impactEdgeUpsertedEnvelope{EdgeID: edge.ID, EventID: edge.EventID, Ticker: edge.Ticker, At: edge.CreatedAt})
		if err := p.outbox.Enqueue(ctx, &models.OutboxEvent{ID: common.NewID("obx"), Type: models.OutboxEventImpactEdgeUpserted, Payload: payload}); err != nil {
			p.logger.Warn().Err(err).Msg("enrichment: outbox enqueue for impact edge failed")
		}
	}
	return nil
}

// fail marks news Failed and emits NewsEnrichmentFail, matching §4.4's
// closing paragraph: the item stays readable, just unenriched.
func (p *Pipeline) fail(ctx context.Context, news *models.News, reason string) error {
	news.EnrichmentStatus = models.EnrichmentFailed
	envelope, _ := json.Marshal(newsEnrichmentFailedEnvelope{NewsID: news.ID, Reason: reason, At: time.Now()})
	if err := p.news.UpdateEnrichment(ctx, news, models.OutboxEventNewsEnrichmentFail, envelope); err != nil {
		return fmt.Errorf("enrichment: mark %s failed: %w", news.ID, err)
	}
	p.metrics.EnrichmentFailed.Add(1)
	p.logger.Error().Str("news_id", news.ID).Str("reason", reason).Msg("enrichment: news item failed")
	return nil
}

func (p *Pipeline) issuersFor(ctx context.Context, linked []models.LinkedCompany) ([]*models.Issuer, error) {
	issuers := make([]*models.Issuer, 0, len(linked))
	for _, lc := range linked {
		issuer, err := p.refdata.GetIssuer(ctx, lc.IssuerID)
		if err != nil {
			var notFound *common.ResourceNotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return nil, err
		}
		issuers = append(issuers, issuer)
	}
	return issuers, nil
}

func topicsFor(newsID string, tags []string) []models.Topic {
	topics := make([]models.Topic, 0, len(tags))
	for i, tag := range tags {
		if i >= 3 {
			break
		}
		topics = append(topics, models.Topic{NewsID: newsID, Tag: tag, Rank: i})
	}
	return topics
}

// buildEntities turns the external extractor's flat mention lists into
// Entity rows per §4.4 step 2. Markets have no Entity representation (the
// step names only people/orgs/money/dates/metrics); they flow straight
// into eventextractor.Input instead.
func buildEntities(payload interfaces.ExtractedEventPayload) []models.Entity {
	var entities []models.Entity
	rank := 0
	for _, company := range payload.Companies {
		entities = append(entities, models.Entity{ID: common.NewID("ent"), Kind: models.EntityOrg, Text: company, Rank: rank})
		rank++
	}
	for _, person := range payload.People {
		entities = append(entities, models.Entity{ID: common.NewID("ent"), Kind: models.EntityPerson, Text: person, Rank: rank})
		rank++
	}
	for _, metric := range payload.Metrics {
		entities = append(entities, models.Entity{ID: common.NewID("ent"), Kind: models.EntityMetric, Text: metric, Rank: rank})
		rank++
	}
	return entities
}
