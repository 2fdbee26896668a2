package sqlite

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL,
	kind TEXT NOT NULL,
	locator TEXT NOT NULL,
	trust_level INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	poll_interval TEXT NOT NULL DEFAULT '',
	backfill_days INTEGER NOT NULL DEFAULT 0,
	config TEXT,
	health TEXT NOT NULL DEFAULT 'healthy',
	last_error TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_sources_code ON sources(code);
CREATE INDEX IF NOT EXISTS idx_sources_enabled ON sources(enabled);

CREATE TABLE IF NOT EXISTS parser_states (
	source_id TEXT PRIMARY KEY,
	last_external_id TEXT NOT NULL DEFAULT '',
	last_polled_at INTEGER,
	FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
);

-- News is the deduplicated, enrichable core of the pipeline. content_hash
-- and (source_id, external_id) both serve as dedup keys (§4.2 invariant).
CREATE TABLE IF NOT EXISTS news (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	title TEXT NOT NULL,
	text TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	published_at INTEGER NOT NULL,
	ingested_at INTEGER NOT NULL,
	pending_images TEXT,
	is_ad INTEGER NOT NULL DEFAULT 0,
	antispam_score REAL NOT NULL DEFAULT 0,
	antispam_reasons TEXT,
	enrichment_status TEXT NOT NULL DEFAULT 'pending',
	claimed_by TEXT,
	claimed_at INTEGER,
	sector TEXT,
	country TEXT,
	news_type TEXT,
	news_subtype TEXT,
	tags TEXT,
	FOREIGN KEY (source_id) REFERENCES sources(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_news_content_hash ON news(content_hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_news_source_external ON news(source_id, external_id);
CREATE INDEX IF NOT EXISTS idx_news_enrichment_claim ON news(enrichment_status, claimed_at);
CREATE INDEX IF NOT EXISTS idx_news_published ON news(published_at DESC);

CREATE VIRTUAL TABLE IF NOT EXISTS news_fts USING fts5(
	title,
	text,
	content=news,
	content_rowid=rowid
);

CREATE TRIGGER IF NOT EXISTS news_fts_insert AFTER INSERT ON news BEGIN
	INSERT INTO news_fts(rowid, title, text) VALUES (new.rowid, new.title, new.text);
END;

CREATE TRIGGER IF NOT EXISTS news_fts_update AFTER UPDATE ON news BEGIN
	UPDATE news_fts SET title = new.title, text = new.text WHERE rowid = new.rowid;
END;

CREATE TRIGGER IF NOT EXISTS news_fts_delete AFTER DELETE ON news BEGIN
	DELETE FROM news_fts WHERE rowid = old.rowid;
END;

CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	digest TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	thumb_path TEXT,
	content_type TEXT NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_images_digest ON images(digest);

CREATE TABLE IF NOT EXISTS news_images (
	news_id TEXT NOT NULL,
	image_id TEXT NOT NULL,
	alt_text TEXT,
	rank INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (news_id, image_id),
	FOREIGN KEY (news_id) REFERENCES news(id) ON DELETE CASCADE,
	FOREIGN KEY (image_id) REFERENCES images(id)
);

CREATE TABLE IF NOT EXISTS issuers (
	id TEXT PRIMARY KEY,
	legal_name TEXT NOT NULL,
	short_names TEXT,
	ticker TEXT,
	isin TEXT,
	sector_id TEXT,
	traded INTEGER NOT NULL DEFAULT 0,
	equity_market INTEGER NOT NULL DEFAULT 0,
	primary_board INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issuers_ticker ON issuers(ticker);
CREATE INDEX IF NOT EXISTS idx_issuers_isin ON issuers(isin);

-- Alias cache: curated aliases seeded from the securities master, learned
-- aliases auto-added by the linker once a normalized mention clears the
-- auto-learn score threshold (§6.3).
CREATE TABLE IF NOT EXISTS aliases (
	normalized TEXT PRIMARY KEY,
	issuer_id TEXT NOT NULL,
	origin TEXT NOT NULL,
	score INTEGER NOT NULL DEFAULT 0,
	tombstoned INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (issuer_id) REFERENCES issuers(id)
);

CREATE INDEX IF NOT EXISTS idx_aliases_issuer ON aliases(issuer_id);
CREATE INDEX IF NOT EXISTS idx_aliases_tombstoned ON aliases(tombstoned);

CREATE TABLE IF NOT EXISTS linked_companies (
	news_id TEXT NOT NULL,
	issuer_id TEXT NOT NULL,
	method TEXT NOT NULL,
	score INTEGER NOT NULL DEFAULT 0,
	is_primary INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (news_id, issuer_id),
	FOREIGN KEY (news_id) REFERENCES news(id) ON DELETE CASCADE,
	FOREIGN KEY (issuer_id) REFERENCES issuers(id)
);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	news_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	text TEXT NOT NULL,
	value TEXT,
	rank INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (news_id) REFERENCES news(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entities_news ON entities(news_id);

CREATE TABLE IF NOT EXISTS topics (
	news_id TEXT NOT NULL,
	tag TEXT NOT NULL,
	rank INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (news_id, tag),
	FOREIGN KEY (news_id) REFERENCES news(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	news_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	is_anchor INTEGER NOT NULL DEFAULT 0,
	attrs TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (news_id) REFERENCES news(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_news ON events(news_id);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_anchor ON events(is_anchor, timestamp);

CREATE TABLE IF NOT EXISTS causal_edges (
	id TEXT PRIMARY KEY,
	cause_id TEXT NOT NULL,
	effect_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	conf_prior REAL NOT NULL DEFAULT 0,
	conf_text REAL NOT NULL DEFAULT 0,
	conf_market REAL NOT NULL DEFAULT 0,
	conf_total REAL NOT NULL DEFAULT 0,
	lag_matched INTEGER NOT NULL DEFAULT 0,
	retroactive INTEGER NOT NULL DEFAULT 0,
	evidence_set TEXT,
	description TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY (cause_id) REFERENCES events(id) ON DELETE CASCADE,
	FOREIGN KEY (effect_id) REFERENCES events(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_causal_edges_pair ON causal_edges(cause_id, effect_id);
CREATE INDEX IF NOT EXISTS idx_causal_edges_cause ON causal_edges(cause_id);
CREATE INDEX IF NOT EXISTS idx_causal_edges_effect ON causal_edges(effect_id);

CREATE TABLE IF NOT EXISTS impact_edges (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	ticker TEXT NOT NULL,
	ar REAL NOT NULL DEFAULT 0,
	car REAL NOT NULL DEFAULT 0,
	volume_ratio REAL NOT NULL DEFAULT 0,
	significant INTEGER NOT NULL DEFAULT 0,
	conf_market REAL NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_impact_edges_event_ticker ON impact_edges(event_id, ticker);

-- Outbox: transactional-outbox pattern. Rows are written in the same
-- transaction as the domain change they announce and relayed at-least-once
-- to the broker by the outbox relay (C13), claimed the same way the
-- enrichment worker pool claims pending news.
CREATE TABLE IF NOT EXISTS outbox_events (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	payload BLOB NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	retries INTEGER NOT NULL DEFAULT 0,
	next_attempt_at INTEGER NOT NULL,
	claimed_by TEXT,
	claimed_at INTEGER,
	created_at INTEGER NOT NULL,
	sent_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_outbox_claim ON outbox_events(status, next_attempt_at, claimed_at);
CREATE INDEX IF NOT EXISTS idx_outbox_sent ON outbox_events(status, sent_at);
`

