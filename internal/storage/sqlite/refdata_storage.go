package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
	"github.com/cegradar/cegradar/internal/models"
)

// RefDataStorage implements interfaces.RefDataStorage for SQLite: the
// curated securities master and the curated-plus-learned alias cache (C1).
type RefDataStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewRefDataStorage creates a new RefDataStorage instance.
func NewRefDataStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.RefDataStorage {
	return &RefDataStorage{db: db, logger: logger}
}

func (s *RefDataStorage) SaveIssuer(ctx context.Context, issuer *models.Issuer) error {
	shortNamesJSON, err := json.Marshal(issuer.ShortNames)
	if err != nil {
		return fmt.Errorf("failed to marshal short names: %w", err)
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO issuers (id, legal_name, short_names, ticker, isin, sector_id, traded, equity_market, primary_board, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			legal_name = excluded.legal_name,
			short_names = excluded.short_names,
			ticker = excluded.ticker,
			isin = excluded.isin,
			sector_id = excluded.sector_id,
			traded = excluded.traded,
			equity_market = excluded.equity_market,
			primary_board = excluded.primary_board,
			updated_at = excluded.updated_at
	`,
		issuer.ID, issuer.LegalName, string(shortNamesJSON), nullableString(issuer.Ticker), nullableString(issuer.ISIN),
		nullableString(issuer.SectorID), boolToInt(issuer.Traded), boolToInt(issuer.EquityMarket), boolToInt(issuer.PrimaryBoard),
		issuer.CreatedAt.Unix(), issuer.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save issuer: %w", err)
	}
	return nil
}

func (s *RefDataStorage) GetIssuer(ctx context.Context, id string) (*models.Issuer, error) {
	row := s.db.DB().QueryRowContext(ctx, issuerSelectColumns+" FROM issuers WHERE id = ?", id)
	issuer, err := scanIssuer(row)
	if err == sql.ErrNoRows {
		return nil, &common.ResourceNotFoundError{Kind: "issuer", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issuer: %w", err)
	}
	return issuer, nil
}

// SearchIssuers runs a simple substring match against legal_name and ticker,
// used by the linker's securities-master fallback search when the alias
// cache misses (§6.3). The curated master is small enough that a LIKE scan
// beats standing up FTS5 for a second table.
func (s *RefDataStorage) SearchIssuers(ctx context.Context, query string) ([]*models.Issuer, error) {
	like := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.DB().QueryContext(ctx, issuerSelectColumns+`
		FROM issuers
		WHERE LOWER(legal_name) LIKE ? OR LOWER(ticker) LIKE ?
		LIMIT 20
	`, like, like)
	if err != nil {
		return nil, fmt.Errorf("failed to search issuers: %w", err)
	}
	defer rows.Close()
	return scanIssuers(rows)
}

func (s *RefDataStorage) ListIssuers(ctx context.Context) ([]*models.Issuer, error) {
	rows, err := s.db.DB().QueryContext(ctx, issuerSelectColumns+" FROM issuers ORDER BY legal_name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list issuers: %w", err)
	}
	defer rows.Close()
	return scanIssuers(rows)
}

func (s *RefDataStorage) LookupAlias(ctx context.Context, normalized string) (*models.Alias, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT normalized, issuer_id, origin, score, tombstoned, created_at FROM aliases WHERE normalized = ? AND tombstoned = 0`, normalized)

	var alias models.Alias
	var origin string
	var tombstoned int
	var createdAt int64
	err := row.Scan(&alias.Normalized, &alias.IssuerID, &origin, &alias.Score, &tombstoned, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &common.ResourceNotFoundError{Kind: "alias", ID: normalized}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup alias: %w", err)
	}
	alias.Origin = models.AliasOrigin(origin)
	alias.Tombstoned = tombstoned == 1
	alias.CreatedAt = time.Unix(createdAt, 0)
	return &alias, nil
}

func (s *RefDataStorage) UpsertAlias(ctx context.Context, alias *models.Alias) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO aliases (normalized, issuer_id, origin, score, tombstoned, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(normalized) DO UPDATE SET
			issuer_id = excluded.issuer_id,
			origin = excluded.origin,
			score = excluded.score,
			tombstoned = excluded.tombstoned
	`, alias.Normalized, alias.IssuerID, string(alias.Origin), alias.Score, boolToInt(alias.Tombstoned), alias.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert alias: %w", err)
	}
	return nil
}

// TombstoneAlias marks a learned alias as retracted without deleting the
// row, preserving the audit trail of what the linker once believed (§6.3).
func (s *RefDataStorage) TombstoneAlias(ctx context.Context, normalized string) error {
	_, err := s.db.DB().ExecContext(ctx, `UPDATE aliases SET tombstoned = 1 WHERE normalized = ?`, normalized)
	if err != nil {
		return fmt.Errorf("failed to tombstone alias: %w", err)
	}
	return nil
}

// AllAliases returns every non-tombstoned alias, used to rebuild the
// in-memory snapshot the linker's single-writer cache serves reads from.
func (s *RefDataStorage) AllAliases(ctx context.Context) ([]*models.Alias, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT normalized, issuer_id, origin, score, tombstoned, created_at FROM aliases WHERE tombstoned = 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []*models.Alias
	for rows.Next() {
		var alias models.Alias
		var origin string
		var tombstoned int
		var createdAt int64
		if err := rows.Scan(&alias.Normalized, &alias.IssuerID, &origin, &alias.Score, &tombstoned, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		alias.Origin = models.AliasOrigin(origin)
		alias.Tombstoned = tombstoned == 1
		alias.CreatedAt = time.Unix(createdAt, 0)
		aliases = append(aliases, &alias)
	}
	return aliases, rows.Err()
}

func (s *RefDataStorage) SaveLinkedCompany(ctx context.Context, link *models.LinkedCompany) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO linked_companies (news_id, issuer_id, method, score, is_primary)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(news_id, issuer_id) DO UPDATE SET method = excluded.method, score = excluded.score, is_primary = excluded.is_primary
	`, link.NewsID, link.IssuerID, string(link.Method), link.Score, link.IsPrimary)
	if err != nil {
		return fmt.Errorf("failed to save linked company: %w", err)
	}
	return nil
}

func (s *RefDataStorage) LinkedCompaniesForNews(ctx context.Context, newsID string) ([]*models.LinkedCompany, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT news_id, issuer_id, method, score, is_primary FROM linked_companies WHERE news_id = ? ORDER BY score DESC`, newsID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked companies: %w", err)
	}
	defer rows.Close()

	var links []*models.LinkedCompany
	for rows.Next() {
		var link models.LinkedCompany
		var method string
		if err := rows.Scan(&link.NewsID, &link.IssuerID, &method, &link.Score, &link.IsPrimary); err != nil {
			return nil, fmt.Errorf("failed to scan linked company: %w", err)
		}
		link.Method = models.LinkMethod(method)
		links = append(links, &link)
	}
	return links, rows.Err()
}

const issuerSelectColumns = `SELECT id, legal_name, short_names, ticker, isin, sector_id, traded, equity_market, primary_board, created_at, updated_at`

func scanIssuer(row rowScanner) (*models.Issuer, error) {
	var issuer models.Issuer
	var shortNamesJSON string
	var ticker, isin, sectorID sql.NullString
	var traded, equityMarket, primaryBoard int
	var createdAt, updatedAt int64

	err := row.Scan(&issuer.ID, &issuer.LegalName, &shortNamesJSON, &ticker, &isin, &sectorID,
		&traded, &equityMarket, &primaryBoard, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if ticker.Valid {
		issuer.Ticker = ticker.String
	}
	if isin.Valid {
		issuer.ISIN = isin.String
	}
	if sectorID.Valid {
		issuer.SectorID = sectorID.String
	}
	issuer.Traded = traded == 1
	issuer.EquityMarket = equityMarket == 1
	issuer.PrimaryBoard = primaryBoard == 1
	if shortNamesJSON != "" {
		if err := json.Unmarshal([]byte(shortNamesJSON), &issuer.ShortNames); err != nil {
			return nil, fmt.Errorf("failed to unmarshal short names: %w", err)
		}
	}
	issuer.CreatedAt = time.Unix(createdAt, 0)
	issuer.UpdatedAt = time.Unix(updatedAt, 0)

	return &issuer, nil
}

func scanIssuers(rows *sql.Rows) ([]*models.Issuer, error) {
	var issuers []*models.Issuer
	for rows.Next() {
		issuer, err := scanIssuer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issuer: %w", err)
		}
		issuers = append(issuers, issuer)
	}
	return issuers, rows.Err()
}
