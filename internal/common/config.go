package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration for the process. Every subsystem gets its
// own nested struct, loaded from TOML with environment variable overrides
// applied last (CEG_* takes priority over anything in the file).
type Config struct {
	Environment      string                 `toml:"environment"`
	Server           ServerConfig           `toml:"server"`
	Logging          LoggingConfig          `toml:"logging"`
	Storage          StorageConfig          `toml:"storage"`
	Sources          []SourceSeedConfig     `toml:"sources"`
	Antispam         AntispamConfig         `toml:"antispam"`
	Enrichment       EnrichmentConfig       `toml:"enrichment"`
	Linker           LinkerConfig           `toml:"linker"`
	CEG              CEGConfig              `toml:"ceg"`
	EventStudy       EventStudyConfig       `toml:"event_study"`
	Outbox           OutboxConfig           `toml:"outbox"`
	Broker           BrokerConfig           `toml:"broker"`
	GraphStore       GraphStoreConfig       `toml:"graph_store"`
	SecuritiesMaster SecuritiesMasterConfig `toml:"securities_master"`
	PriceAPI         PriceAPIConfig         `toml:"price_api"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

type StorageConfig struct {
	SQLitePath string       `toml:"sqlite_path"`
	Badger     BadgerConfig `toml:"badger"`
	ImagesRoot string       `toml:"images_root"`
}

type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// SourceSeedConfig seeds a Source row on startup if it does not already
// exist; ongoing source state (cursor, health) lives in storage afterward.
type SourceSeedConfig struct {
	Code         string            `toml:"code"`
	Kind         string            `toml:"kind"` // "message_channel" | "html"
	Locator      string            `toml:"locator"`
	TrustLevel   int               `toml:"trust_level"`
	Enabled      bool              `toml:"enabled"`
	PollInterval string            `toml:"poll_interval"`
	BackfillDays int               `toml:"backfill_days"`
	Config       map[string]string `toml:"config"`
}

type AntispamConfig struct {
	RulesFile        string  `toml:"rules_file"`
	Threshold        float64 `toml:"threshold"`
	TrustedThreshold float64 `toml:"trusted_threshold"`
}

type EnrichmentConfig struct {
	Workers           int    `toml:"workers"`
	BatchSize         int    `toml:"batch_size"`
	ClaimLeaseSeconds int    `toml:"claim_lease_seconds"`
	ExtractorRetries  int    `toml:"extractor_retries"`
	ExtractorTimeout  string `toml:"extractor_timeout"`
}

type LinkerConfig struct {
	AutoLearnThreshold int `toml:"auto_learn_threshold"`
}

type CEGConfig struct {
	LookbackWindowDays   int      `toml:"lookback_window_days"`
	RetroWindowDays      int      `toml:"retro_window_days"`
	LinkThreshold        float64  `toml:"link_threshold"`
	ConfirmedThreshold   float64  `toml:"confirmed_threshold"`
	LagPenaltyMultiplier float64  `toml:"lag_penalty_multiplier"`
	WeightPrior          float64  `toml:"weight_prior"`
	WeightText           float64  `toml:"weight_text"`
	WeightMarket         float64  `toml:"weight_market"`
	MaxEventsPerNews     int      `toml:"max_events_per_news"`
	MaxChainDepth        int      `toml:"max_chain_depth"`
	AnchorEligibleTypes  []string `toml:"anchor_eligible_types"`
	RetroEligibleTypes   []string `toml:"retro_eligible_types"`
}

type EventStudyConfig struct {
	EstimationWindowDays int `toml:"estimation_window_days"`
	EventWindowDays      int `toml:"event_window_days"`
	MinBaselineObs       int `toml:"min_baseline_obs"`
}

type OutboxConfig struct {
	BatchSize     int    `toml:"batch_size"`
	MaxRetries    int    `toml:"max_retries"`
	BaseBackoff   string `toml:"base_backoff"`
	KeepDays      int    `toml:"keep_days"`
	PurgeSchedule string `toml:"purge_schedule"`
}

type BrokerConfig struct {
	URL            string `toml:"url"`
	ReconnectMinMs int    `toml:"reconnect_min_ms"`
	ReconnectMaxMs int    `toml:"reconnect_max_ms"`
}

type GraphStoreConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type SecuritiesMasterConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type PriceAPIConfig struct {
	BaseURL   string        `toml:"base_url"`
	APIKey    string        `toml:"api_key"`
	RateLimit time.Duration `toml:"rate_limit"`
}

// NewDefaultConfig returns a config with sane production defaults; callers
// layer a file and environment overrides on top.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8090,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			SQLitePath: "./data/cegradar.db",
			Badger: BadgerConfig{
				Path: "./data/badger",
			},
			ImagesRoot: "./data/images",
		},
		Antispam: AntispamConfig{
			RulesFile:        "./antispam_rules.yaml",
			Threshold:        5.0,
			TrustedThreshold: 8.0,
		},
		Enrichment: EnrichmentConfig{
			Workers:           0, // 0 means runtime.NumCPU()
			BatchSize:         20,
			ClaimLeaseSeconds: 300,
			ExtractorRetries:  3,
			ExtractorTimeout:  "30s",
		},
		Linker: LinkerConfig{
			AutoLearnThreshold: 50,
		},
		CEG: CEGConfig{
			LookbackWindowDays:   30,
			RetroWindowDays:      30,
			LinkThreshold:        0.3,
			ConfirmedThreshold:   0.6,
			LagPenaltyMultiplier: 0.75,
			WeightPrior:          0.4,
			WeightText:           0.3,
			WeightMarket:         0.3,
			MaxEventsPerNews:     5,
			MaxChainDepth:        3,
			AnchorEligibleTypes: []string{
				"sanctions", "rate_hike", "rate_cut", "earnings_miss",
				"earnings_beat", "default", "regulatory", "mna", "ipo",
			},
			RetroEligibleTypes: []string{"sanctions", "regulatory", "default"},
		},
		EventStudy: EventStudyConfig{
			EstimationWindowDays: 30,
			EventWindowDays:      1,
			MinBaselineObs:       20,
		},
		Outbox: OutboxConfig{
			BatchSize:     100,
			MaxRetries:    3,
			BaseBackoff:   "60s",
			KeepDays:      7,
			PurgeSchedule: "0 3 * * *",
		},
		Broker: BrokerConfig{
			ReconnectMinMs: 500,
			ReconnectMaxMs: 30000,
		},
	}
}

// LoadFromFile loads defaults, overlays the TOML file at path (if non-empty),
// then applies environment overrides.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Field: "file", Err: err}
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, &ConfigError{Field: "file", Err: err}
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations that would leave a component unable to
// start. Intentionally conservative: anything downstream can default its
// own zero values is left alone here.
func (c *Config) Validate() error {
	if c.Storage.SQLitePath == "" {
		return &ConfigError{Field: "storage.sqlite_path", Err: fmt.Errorf("must not be empty")}
	}
	if c.CEG.WeightPrior+c.CEG.WeightText+c.CEG.WeightMarket <= 0 {
		return &ConfigError{Field: "ceg.weight_*", Err: fmt.Errorf("weights must sum to a positive value")}
	}
	for i, s := range c.Sources {
		if s.Code == "" {
			return &ConfigError{Field: fmt.Sprintf("sources[%d].code", i), Err: fmt.Errorf("must not be empty")}
		}
		if s.Kind != "message_channel" && s.Kind != "html" {
			return &ConfigError{Field: fmt.Sprintf("sources[%d].kind", i), Err: fmt.Errorf("unknown kind %q", s.Kind)}
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CEG_ENV"); env != "" {
		config.Environment = env
	}
	if level := os.Getenv("CEG_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("CEG_SQLITE_PATH"); path != "" {
		config.Storage.SQLitePath = path
	}
	if url := os.Getenv("CEG_BROKER_URL"); url != "" {
		config.Broker.URL = url
	}
	if url := os.Getenv("CEG_GRAPH_STORE_URL"); url != "" {
		config.GraphStore.BaseURL = url
	}
	if key := os.Getenv("CEG_GRAPH_STORE_API_KEY"); key != "" {
		config.GraphStore.APIKey = key
	}
	if url := os.Getenv("CEG_SECURITIES_MASTER_URL"); url != "" {
		config.SecuritiesMaster.BaseURL = url
	}
	if url := os.Getenv("CEG_PRICE_API_URL"); url != "" {
		config.PriceAPI.BaseURL = url
	}
	if key := os.Getenv("CEG_PRICE_API_KEY"); key != "" {
		config.PriceAPI.APIKey = key
	}
	if workers := os.Getenv("CEG_ENRICHMENT_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Enrichment.Workers = w
		}
	}
}
