package refdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/models"
)

// fakeRefDataStorage is an in-memory interfaces.RefDataStorage used only to
// exercise the cache's load/mutate cycle without a real database.
type fakeRefDataStorage struct {
	issuers map[string]*models.Issuer
	aliases map[string]*models.Alias
}

func newFakeRefDataStorage() *fakeRefDataStorage {
	return &fakeRefDataStorage{
		issuers: map[string]*models.Issuer{},
		aliases: map[string]*models.Alias{},
	}
}

func (f *fakeRefDataStorage) SaveIssuer(ctx context.Context, issuer *models.Issuer) error {
	f.issuers[issuer.ID] = issuer
	return nil
}
func (f *fakeRefDataStorage) GetIssuer(ctx context.Context, id string) (*models.Issuer, error) {
	return f.issuers[id], nil
}
func (f *fakeRefDataStorage) SearchIssuers(ctx context.Context, query string) ([]*models.Issuer, error) {
	return nil, nil
}
func (f *fakeRefDataStorage) ListIssuers(ctx context.Context) ([]*models.Issuer, error) {
	var out []*models.Issuer
	for _, iss := range f.issuers {
		out = append(out, iss)
	}
	return out, nil
}
func (f *fakeRefDataStorage) LookupAlias(ctx context.Context, normalized string) (*models.Alias, error) {
	return f.aliases[normalized], nil
}
func (f *fakeRefDataStorage) UpsertAlias(ctx context.Context, alias *models.Alias) error {
	f.aliases[alias.Normalized] = alias
	return nil
}
func (f *fakeRefDataStorage) TombstoneAlias(ctx context.Context, normalized string) error {
	if a, ok := f.aliases[normalized]; ok {
		a.Tombstoned = true
	}
	return nil
}
func (f *fakeRefDataStorage) AllAliases(ctx context.Context) ([]*models.Alias, error) {
	var out []*models.Alias
	for _, a := range f.aliases {
		if !a.Tombstoned {
			out = append(out, a)
		}
	}
	return out, nil
}
func (f *fakeRefDataStorage) SaveLinkedCompany(ctx context.Context, link *models.LinkedCompany) error {
	return nil
}
func (f *fakeRefDataStorage) LinkedCompaniesForNews(ctx context.Context, newsID string) ([]*models.LinkedCompany, error) {
	return nil, nil
}

func TestCache_LookupPrefersCurated(t *testing.T) {
	store := newFakeRefDataStorage()
	store.issuers["gazp"] = &models.Issuer{ID: "gazp", LegalName: "Газпром"}
	store.aliases["газпром"] = &models.Alias{Normalized: "газпром", IssuerID: "gazp", Origin: models.AliasOriginCurated}

	cache := New(store, arbor.NewLogger())
	require.NoError(t, cache.Load(context.Background()))

	alias, ok := cache.Lookup("газпром")
	require.True(t, ok)
	assert.Equal(t, "gazp", alias.IssuerID)
	assert.Equal(t, models.AliasOriginCurated, alias.Origin)

	_, ok = cache.Issuer("gazp")
	assert.True(t, ok)
}

func TestCache_LearnIsVisibleAfterMutation(t *testing.T) {
	store := newFakeRefDataStorage()
	store.issuers["nvtk"] = &models.Issuer{ID: "nvtk", LegalName: "Новатэк"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := New(store, arbor.NewLogger())
	require.NoError(t, cache.Load(ctx))
	cache.Run(ctx)

	require.NoError(t, cache.Learn(ctx, "новатэк", "nvtk", 62))

	alias, ok := cache.Lookup("новатэк")
	require.True(t, ok)
	assert.Equal(t, models.AliasOriginLearned, alias.Origin)
	assert.Equal(t, float64(62), alias.Score)

	require.NoError(t, cache.Tombstone(ctx, "новатэк"))
	_, ok = cache.Lookup("новатэк")
	assert.False(t, ok)
}

func TestCache_LearnTimesOutOnCancelledContext(t *testing.T) {
	store := newFakeRefDataStorage()
	cache := New(store, arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	time.Sleep(time.Millisecond) // writer goroutine was never started

	err := cache.Learn(ctx, "x", "y", 1)
	assert.Error(t, err)
}
