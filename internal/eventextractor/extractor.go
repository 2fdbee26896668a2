package eventextractor

import (
	"sort"
	"strings"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/models"
)

// Extractor detects event-type families in a News item's text and builds
// Event rows for each match, up to a configurable ceiling.
type Extractor struct {
	families            []family
	maxEventsPerNews    int
	anchorEligibleTypes map[string]bool
}

// New builds an Extractor from CEGConfig's knobs.
func New(config common.CEGConfig) *Extractor {
	anchor := make(map[string]bool, len(config.AnchorEligibleTypes))
	for _, t := range config.AnchorEligibleTypes {
		anchor[t] = true
	}
	maxEvents := config.MaxEventsPerNews
	if maxEvents <= 0 {
		maxEvents = 5
	}
	return &Extractor{
		families:            compileFamilies(),
		maxEventsPerNews:    maxEvents,
		anchorEligibleTypes: anchor,
	}
}

// Input bundles what the extractor needs beyond the raw text: the entities
// and linked companies the earlier enrichment steps already produced, and
// the source's trust level (§4.7's is_anchor trust-≥7 clause).
type Input struct {
	News            *models.News
	Entities        []models.Entity
	LinkedCompanies []models.LinkedCompany
	SourceTrust     int
	// Tickers and Markets come straight from the external extractor's
	// Extraction.{markets,financial_metrics}-adjacent fields (§6.2) — they
	// have no Entity representation of their own, unlike companies/people/
	// metrics, so the pipeline passes them through rather than routing
	// them via Entities.
	Tickers []string
	Markets []string
}

// Extract returns up to maxEventsPerNews events, ordered by family priority
// (most specific/important first), matching §4.7.
func (e *Extractor) Extract(in Input) []models.Event {
	fullText := strings.ToLower(in.News.Title + " " + in.News.Text)

	type match struct {
		family
		count int
	}
	var matches []match
	for _, fam := range e.families {
		found := fam.pattern.FindAllString(fullText, -1)
		if len(found) > 0 {
			matches = append(matches, match{family: fam, count: len(found)})
		}
	}

	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].priority > matches[j].priority
	})

	if len(matches) > e.maxEventsPerNews {
		matches = matches[:e.maxEventsPerNews]
	}

	attrs := buildAttrs(in)

	events := make([]models.Event, 0, len(matches))
	for _, m := range matches {
		confidence := confidenceFor(m.count)
		title := firstSentenceContaining(in.News.Title, in.News.Text, m.pattern)

		isAnchor := e.anchorEligibleTypes[m.eventType] &&
			confidence >= 0.7 &&
			in.SourceTrust >= 7

		events = append(events, models.Event{
			ID:         common.NewID("evt"),
			NewsID:     in.News.ID,
			Type:       m.eventType,
			Title:      title,
			Timestamp:  in.News.PublishedAt,
			Confidence: confidence,
			IsAnchor:   isAnchor,
			Attrs:      attrs,
		})
	}
	return events
}

// confidenceFor scales a base 0.7 confidence up by repeated marker hits,
// capped at [0.5, 0.95], matching the original's _calculate_confidence.
func confidenceFor(matchCount int) float64 {
	confidence := 0.7 + float64(matchCount-1)*0.1
	if confidence > 0.95 {
		confidence = 0.95
	}
	if confidence < 0.5 {
		confidence = 0.5
	}
	return confidence
}

// firstSentenceContaining returns the first sentence of title+text that
// matches pattern, falling back to the News title when no sentence matches
// (can happen when the match spans a sentence boundary).
func firstSentenceContaining(title, text string, pattern interface{ MatchString(string) bool }) string {
	for _, sentence := range splitSentences(title + ". " + text) {
		if pattern.MatchString(sentence) {
			return strings.TrimSpace(sentence)
		}
	}
	return title
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func buildAttrs(in Input) models.EventAttrs {
	attrs := models.EventAttrs{Tickers: in.Tickers, Markets: in.Markets}
	for _, lc := range in.LinkedCompanies {
		attrs.Companies = append(attrs.Companies, lc.IssuerID)
	}
	for _, ent := range in.Entities {
		switch ent.Kind {
		case models.EntityPerson:
			attrs.People = append(attrs.People, ent.Text)
		case models.EntityMoney, models.EntityMetric:
			attrs.FinancialMetrics = append(attrs.FinancialMetrics, ent.Text)
		}
	}
	return attrs
}
