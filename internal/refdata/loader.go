package refdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// issuerFile is one [[issuer]] table in a seed TOML file.
type issuerFile struct {
	ID           string   `toml:"id"`
	LegalName    string   `toml:"legal_name"`
	ShortNames   []string `toml:"short_names"`
	Aliases      []string `toml:"aliases"`
	Ticker       string   `toml:"ticker"`
	ISIN         string   `toml:"isin"`
	SectorID     string   `toml:"sector_id"`
	Traded       bool     `toml:"traded"`
	EquityMarket bool     `toml:"equity_market"`
	PrimaryBoard bool     `toml:"primary_board"`
}

type seedFile struct {
	Issuer []issuerFile `toml:"issuer"`
}

// Loader seeds the curated securities master from TOML files on startup,
// the way the teacher's load_connectors.go seeds connectors: idempotent
// upserts, one directory of *.toml files, warn-and-skip on bad entries.
type Loader struct {
	store  interfaces.RefDataStorage
	logger arbor.ILogger
}

// NewLoader creates a Loader.
func NewLoader(store interfaces.RefDataStorage, logger arbor.ILogger) *Loader {
	return &Loader{store: store, logger: logger}
}

// LoadFromDir reads every *.toml file under dirPath and upserts the issuers
// and curated aliases it defines. A missing directory is not an error: the
// curated master is optional, the cache can run on learned aliases alone.
func (l *Loader) LoadFromDir(ctx context.Context, dirPath string) error {
	l.logger.Info().Str("path", dirPath).Msg("loading securities master seed files")

	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		l.logger.Debug().Str("path", dirPath).Msg("securities master seed directory not found, skipping")
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read securities master seed directory: %w", err)
	}

	var loaded, skipped int
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}

		n, err := l.loadFile(ctx, filepath.Join(dirPath, entry.Name()))
		if err != nil {
			l.logger.Warn().Err(err).Str("file", entry.Name()).Msg("failed to load seed file")
			skipped++
			continue
		}
		loaded += n
	}

	l.logger.Info().Int("issuers_loaded", loaded).Int("files_skipped", skipped).Msg("finished loading securities master seed files")
	return nil
}

func (l *Loader) loadFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	var file seedFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse TOML: %w", err)
	}

	now := time.Now()
	count := 0
	for _, entry := range file.Issuer {
		if err := l.loadIssuer(ctx, entry, now); err != nil {
			l.logger.Warn().Err(err).Str("issuer_id", entry.ID).Msg("failed to load issuer entry")
			continue
		}
		count++
	}
	return count, nil
}

func (l *Loader) loadIssuer(ctx context.Context, entry issuerFile, now time.Time) error {
	if entry.ID == "" || entry.LegalName == "" {
		return fmt.Errorf("issuer entry missing id or legal_name")
	}

	issuer := &models.Issuer{
		ID:           entry.ID,
		LegalName:    entry.LegalName,
		ShortNames:   entry.ShortNames,
		Ticker:       entry.Ticker,
		ISIN:         entry.ISIN,
		SectorID:     entry.SectorID,
		Traded:       entry.Traded,
		EquityMarket: entry.EquityMarket,
		PrimaryBoard: entry.PrimaryBoard,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.store.SaveIssuer(ctx, issuer); err != nil {
		return fmt.Errorf("failed to save issuer: %w", err)
	}

	names := append([]string{entry.LegalName}, entry.ShortNames...)
	names = append(names, entry.Aliases...)
	for _, name := range names {
		normalized := Normalize(name)
		if normalized == "" {
			continue
		}
		alias := &models.Alias{
			Normalized: normalized,
			IssuerID:   entry.ID,
			Origin:     models.AliasOriginCurated,
			CreatedAt:  now,
		}
		if err := l.store.UpsertAlias(ctx, alias); err != nil {
			return fmt.Errorf("failed to save alias %q: %w", normalized, err)
		}
	}

	return nil
}
