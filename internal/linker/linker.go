// Package linker is the Linker (C7): it resolves a free-text organisation
// mention to a securities-master Issuer. Grounded on the shape of the
// original moex_linker.py's MOEXLinker.link_organization cascade (known
// aliases, then fuzzy match against the securities catalogue) but replaces
// its Redis/ALGOPACK/Neo4j dependencies with the in-process refdata.Cache
// and RefDataStorage already built for this module.
package linker

import (
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
	"github.com/cegradar/cegradar/internal/refdata"
)

// Result is the outcome of resolving one mention.
type Result struct {
	IssuerID string
	Method   models.LinkMethod
	Score    float64
	Resolved bool
}

// Linker resolves organisation mentions per §4.5's five-step algorithm.
type Linker struct {
	cache              *refdata.Cache
	store              interfaces.RefDataStorage
	autoLearnThreshold float64
	logger             arbor.ILogger
}

// New builds a Linker. autoLearnThreshold is LinkerConfig.AutoLearnThreshold.
func New(cache *refdata.Cache, store interfaces.RefDataStorage, autoLearnThreshold int, logger arbor.ILogger) *Linker {
	threshold := float64(autoLearnThreshold)
	if threshold <= 0 {
		threshold = 50
	}
	return &Linker{cache: cache, store: store, autoLearnThreshold: threshold, logger: logger}
}

// Resolve implements §4.5 steps 1-5 for a single free-text mention.
func (l *Linker) Resolve(ctx context.Context, mention string) (Result, error) {
	normalized := refdata.Normalize(mention)
	if normalized == "" {
		return Result{}, nil
	}

	if alias, ok := l.cache.Lookup(normalized); ok {
		return Result{IssuerID: alias.IssuerID, Method: models.LinkMethodAliasHit, Score: 100, Resolved: true}, nil
	}

	candidates, err := l.store.SearchIssuers(ctx, normalized)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		return Result{}, nil
	}

	best, bestScore := l.bestCandidate(normalized, candidates)
	if best == nil {
		return Result{}, nil
	}

	if bestScore >= l.autoLearnThreshold {
		if err := l.cache.Learn(ctx, normalized, best.ID, bestScore); err != nil {
			l.logger.Warn().Err(err).Str("normalized", normalized).Msg("failed to persist learned alias")
		}
		return Result{IssuerID: best.ID, Method: models.LinkMethodAutoLearned, Score: bestScore, Resolved: true}, nil
	}

	return Result{}, nil
}

// bestCandidate scores every candidate per §4.5 step 3 and returns the
// argmax, breaking ties by shorter legal name.
func (l *Linker) bestCandidate(normalized string, candidates []*models.Issuer) (*models.Issuer, float64) {
	type scored struct {
		issuer *models.Issuer
		score  float64
	}
	results := make([]scored, 0, len(candidates))

	for _, issuer := range candidates {
		results = append(results, scored{issuer: issuer, score: l.score(normalized, issuer)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return len(results[i].issuer.LegalName) < len(results[j].issuer.LegalName)
	})

	if len(results) == 0 {
		return nil, 0
	}
	return results[0].issuer, results[0].score
}

// score implements §4.5 step 3's weighted scoring.
func (l *Linker) score(normalized string, issuer *models.Issuer) float64 {
	nameSim := bestNameSimilarity(normalized, issuer)
	score := nameSim * 50

	if issuer.Traded {
		score += 20
	}
	if issuer.EquityMarket {
		score += 15
	}
	if issuer.PrimaryBoard {
		score += 10
	}
	if issuer.ISIN != "" {
		score += 25
	}

	return score
}

// bestNameSimilarity compares the mention against the issuer's legal name
// and every short name, keeping the highest ratio.
func bestNameSimilarity(normalized string, issuer *models.Issuer) float64 {
	best := ratio(normalized, refdata.Normalize(issuer.LegalName))
	for _, short := range issuer.ShortNames {
		if s := ratio(normalized, refdata.Normalize(short)); s > best {
			best = s
		}
	}
	return best
}

// LinkNews resolves every Org entity for a News item and persists
// LinkedCompany rows, marking is_primary when the mention also appears in
// the title (§4.4 step 3).
func (l *Linker) LinkNews(ctx context.Context, news *models.News, orgEntities []models.Entity) ([]models.LinkedCompany, error) {
	var linked []models.LinkedCompany
	seen := make(map[string]bool)
	titleNormalized := refdata.Normalize(news.Title)

	for _, entity := range orgEntities {
		result, err := l.Resolve(ctx, entity.Text)
		if err != nil {
			return linked, err
		}
		if !result.Resolved || seen[result.IssuerID] {
			continue
		}
		seen[result.IssuerID] = true

		mentionNormalized := refdata.Normalize(entity.Text)
		link := models.LinkedCompany{
			NewsID:    news.ID,
			IssuerID:  result.IssuerID,
			Method:    result.Method,
			Score:     result.Score,
			IsPrimary: mentionNormalized != "" && strings.Contains(titleNormalized, mentionNormalized),
		}
		if err := l.store.SaveLinkedCompany(ctx, &link); err != nil {
			return linked, err
		}
		linked = append(linked, link)
	}

	return linked, nil
}
