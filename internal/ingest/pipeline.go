// Package ingest is the orchestration glue between a source adapter's
// models.RawNews and the News repository: antispam scoring, content
// hashing, and the transactional write itself (C4, §4.2-§4.3).
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/antispam"
	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// Pipeline turns a RawNews item from any adapter into a persisted News row,
// scoring it for spam and announcing it on the outbox in the same
// transaction (§4.3 invariant 1).
type Pipeline struct {
	news   interfaces.NewsStorage
	rules  *antispam.RuleSet
	logger arbor.ILogger
}

// New creates a Pipeline.
func New(news interfaces.NewsStorage, rules *antispam.RuleSet, logger arbor.ILogger) *Pipeline {
	return &Pipeline{news: news, rules: rules, logger: logger}
}

// newsIngestedEnvelope is the JSON body of an OutboxEventNewsIngested
// payload, intentionally minimal: the broker re-reads the full News row by
// ID rather than trusting a denormalized copy in the outbox (§4.3).
type newsIngestedEnvelope struct {
	NewsID   string    `json:"news_id"`
	SourceID string    `json:"source_id"`
	IsAd     bool      `json:"is_ad"`
	At       time.Time `json:"at"`
}

// Ingest scores raw for spam, computes its content hash, and writes it
// through NewsStorage.TryInsert. Returns the persisted row (which may be
// the pre-existing duplicate) and whether it was a duplicate.
func (p *Pipeline) Ingest(ctx context.Context, source *models.Source, raw models.RawNews) (*models.News, bool, error) {
	if raw.ExternalID == "" {
		return nil, false, &common.DataValidationError{Field: "external_id", Reason: "must not be empty"}
	}

	result := antispam.Score(raw, source.TrustLevel, p.rules)

	news := &models.News{
		ID:               common.NewID("news"),
		SourceID:         source.ID,
		ExternalID:       raw.ExternalID,
		Title:            raw.Title,
		Text:             raw.Text,
		ContentHash:      contentHash(raw),
		PublishedAt:      raw.PublishedAt,
		IngestedAt:       time.Now(),
		PendingImages:    raw.Images,
		IsAd:             result.IsAd,
		AntispamScore:    result.Score,
		AntispamReasons:  result.Reasons,
		EnrichmentStatus: models.EnrichmentPending,
	}

	var outboxPayload []byte
	if !result.IsAd {
		envelope := newsIngestedEnvelope{NewsID: news.ID, SourceID: source.ID, IsAd: result.IsAd, At: news.IngestedAt}
		payload, err := json.Marshal(envelope)
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal outbox envelope: %w", err)
		}
		outboxPayload = payload
	}

	insertResult, err := p.news.TryInsert(ctx, news, raw.Images, outboxPayload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert news: %w", err)
	}

	if insertResult.Duplicate {
		p.logger.Debug().Str("external_id", raw.ExternalID).Str("source_id", source.ID).Msg("duplicate news item skipped")
	}

	return insertResult.News, insertResult.Duplicate, nil
}

// contentHash is the dedup key for §3 invariant 1: same title+text from any
// source collapses to one News row.
func contentHash(raw models.RawNews) string {
	sum := sha256.Sum256([]byte(raw.Title + "\x00" + raw.Text))
	return hex.EncodeToString(sum[:])
}
