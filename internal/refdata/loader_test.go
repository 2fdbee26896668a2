package refdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestLoader_LoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()

	seed := `[[issuer]]
id = "gazp"
legal_name = "Газпром"
short_names = ["Газпром"]
aliases = ["ПАО Газпром", "GAZP"]
ticker = "GAZP"
isin = "RU0007661625"
traded = true
equity_market = true
primary_board = true
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "moex.toml"), []byte(seed), 0644))

	store := newFakeRefDataStorage()
	loader := NewLoader(store, arbor.NewLogger())

	require.NoError(t, loader.LoadFromDir(context.Background(), tmpDir))

	issuer, err := store.GetIssuer(context.Background(), "gazp")
	require.NoError(t, err)
	assert.Equal(t, "Газпром", issuer.LegalName)
	assert.True(t, issuer.Traded)

	alias, err := store.LookupAlias(context.Background(), "газпром")
	require.NoError(t, err)
	assert.Equal(t, "gazp", alias.IssuerID)

	alias, err = store.LookupAlias(context.Background(), "gazp")
	require.NoError(t, err)
	assert.Equal(t, "gazp", alias.IssuerID)
}

func TestLoader_MissingDirIsNotError(t *testing.T) {
	store := newFakeRefDataStorage()
	loader := NewLoader(store, arbor.NewLogger())
	assert.NoError(t, loader.LoadFromDir(context.Background(), "/nonexistent/path"))
}
