package nerextract

import (
	"context"
	"strings"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// Extractor is the local deterministic implementation of
// interfaces.Extractor used as the enrichment pipeline's step 1 collaborator
// when no remote NER service is configured (§4.4, §6.2).
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract satisfies interfaces.Extractor by bundling every mention found in
// title+text into a single payload; this module's deterministic extractor
// has no per-event framing the way a remote LLM extractor would, so the
// Type/Title/Confidence fields of ExtractedEventPayload are left at their
// zero values and only the mention slices carry content.
func (e *Extractor) Extract(ctx context.Context, newsTitle, newsText string) ([]interfaces.ExtractedEventPayload, error) {
	entities := e.ExtractEntities(newsTitle, newsText)

	payload := interfaces.ExtractedEventPayload{}
	for _, ent := range entities {
		switch ent.Kind {
		case models.EntityOrg:
			payload.Companies = append(payload.Companies, ent.Text)
		case models.EntityPerson:
			payload.People = append(payload.People, ent.Text)
		case models.EntityMetric, models.EntityMoney:
			payload.Metrics = append(payload.Metrics, ent.Text)
		}
	}
	return []interfaces.ExtractedEventPayload{payload}, nil
}

// ExtractEntities is the pipeline's direct entry point for §4.4 step 2:
// persist Entity rows for people/orgs/money/dates/metrics. Rank preserves
// the order mentions were found in, title first, then body.
func (e *Extractor) ExtractEntities(title, text string) []models.Entity {
	var entities []models.Entity
	rank := 0

	addAll := func(source string) {
		for _, m := range quotedNamePattern.FindAllStringSubmatch(source, -1) {
			entities = append(entities, newEntity(models.EntityOrg, strings.TrimSpace(m[1]), "", rank))
			rank++
		}
		for _, m := range capitalizedRunPattern.FindAllString(source, -1) {
			firstWord := strings.SplitN(m, " ", 2)[0]
			if nonNameCapitalizedWords[firstWord] {
				continue
			}
			entities = append(entities, newEntity(models.EntityPerson, m, "", rank))
			rank++
		}
		for _, m := range moneyPattern.FindAllString(source, -1) {
			entities = append(entities, newEntity(models.EntityMoney, strings.TrimSpace(m), "", rank))
			rank++
		}
		for _, m := range amountPattern.FindAllString(source, -1) {
			entities = append(entities, newEntity(models.EntityMetric, strings.TrimSpace(m), "", rank))
			rank++
		}
		for _, m := range percentPattern.FindAllString(source, -1) {
			entities = append(entities, newEntity(models.EntityMetric, strings.TrimSpace(m), "", rank))
			rank++
		}
		for _, m := range datePattern.FindAllString(source, -1) {
			entities = append(entities, newEntity(models.EntityDate, strings.TrimSpace(m), "", rank))
			rank++
		}
	}

	addAll(title)
	addAll(text)

	return dedupe(entities)
}

func newEntity(kind models.EntityKind, text, value string, rank int) models.Entity {
	return models.Entity{ID: common.NewID("ent"), Kind: kind, Text: text, Value: value, Rank: rank}
}

// dedupe drops repeat mentions of the same (kind, text) pair, keeping the
// first (earliest-ranked) occurrence — a news item repeating "Газпром"
// five times should produce one Entity row, not five.
func dedupe(entities []models.Entity) []models.Entity {
	seen := make(map[string]bool, len(entities))
	out := make([]models.Entity, 0, len(entities))
	for _, e := range entities {
		key := string(e.Kind) + "\x00" + strings.ToLower(e.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
