package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"quorum/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Workflow      WorkflowConfig
	Fusion        FusionConfig
	Execution     ExecutionConfig
	Sizing        SizingConfig
	MarketData    MarketDataConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"quorum"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
}

// WorkflowConfig controls the analysis coordinator
type WorkflowConfig struct {
	StageTimeout   time.Duration `envconfig:"WORKFLOW_STAGE_TIMEOUT" default:"30s"`
	HistorySize    int           `envconfig:"WORKFLOW_HISTORY_SIZE" default:"500"`
	MaxParallel    int           `envconfig:"WORKFLOW_MAX_PARALLEL" default:"3"`
	DisclosureSize int           `envconfig:"WORKFLOW_DISCLOSURE_LIMIT" default:"5"`
	HistoryDays    int           `envconfig:"WORKFLOW_HISTORY_DAYS" default:"120"`
	ArchiveTTL     time.Duration `envconfig:"WORKFLOW_ARCHIVE_TTL" default:"168h"`
}

// FusionConfig holds per-source weights for signal fusion
type FusionConfig struct {
	Weights        map[string]float64 `envconfig:"FUSION_WEIGHTS" default:"news:0.2,financial:0.4,technical:0.4"`
	FallbackWeight float64            `envconfig:"FUSION_FALLBACK_WEIGHT" default:"0.1"`
}

// ExecutionConfig holds simulator limits and fee schedule
type ExecutionConfig struct {
	MaxNotional     float64 `envconfig:"EXECUTION_MAX_NOTIONAL" default:"1000000"`
	OpenHour        int     `envconfig:"EXECUTION_OPEN_HOUR" default:"9"`
	CloseHour       int     `envconfig:"EXECUTION_CLOSE_HOUR" default:"18"`
	Timezone        string  `envconfig:"EXECUTION_TIMEZONE" default:"Europe/Istanbul"`
	EnforceHours    bool    `envconfig:"EXECUTION_ENFORCE_HOURS" default:"true"`
	CommissionRate  float64 `envconfig:"EXECUTION_COMMISSION_RATE" default:"0.001"`
	MinCommission   float64 `envconfig:"EXECUTION_MIN_COMMISSION" default:"5"`
	ExchangeFeeRate float64 `envconfig:"EXECUTION_EXCHANGE_FEE_RATE" default:"0.0003"`
	HistorySize     int     `envconfig:"EXECUTION_HISTORY_SIZE" default:"1000"`
}

// SizingConfig holds defaults for Kelly-blend trade sizing
type SizingConfig struct {
	PortfolioValue float64 `envconfig:"SIZING_PORTFOLIO_VALUE" default:"1000000"`
	AvgWinPct      float64 `envconfig:"SIZING_AVG_WIN_PCT" default:"15"`
	MaxKelly       float64 `envconfig:"SIZING_MAX_KELLY" default:"0.25"`
	LotSize        float64 `envconfig:"SIZING_LOT_SIZE" default:"1000"`
}

// MarketDataConfig selects and tunes the data source
type MarketDataConfig struct {
	Provider       string        `envconfig:"MARKET_DATA_PROVIDER" default:"static"`
	SymbolSuffix   string        `envconfig:"MARKET_DATA_SYMBOL_SUFFIX" default:".IS"`
	FXBaseURL      string        `envconfig:"MARKET_DATA_FX_URL" default:"https://open.er-api.com/v6"`
	FXBase         string        `envconfig:"MARKET_DATA_FX_BASE" default:"USD"`
	DisclosuresURL string        `envconfig:"MARKET_DATA_DISCLOSURES_URL"`
	FinancialsURL  string        `envconfig:"MARKET_DATA_FINANCIALS_URL"`
	Timeout        time.Duration `envconfig:"MARKET_DATA_TIMEOUT" default:"15s"`
	RateLimit      float64       `envconfig:"MARKET_DATA_RATE_LIMIT" default:"5"`
	RateBurst      int           `envconfig:"MARKET_DATA_RATE_BURST" default:"10"`
	CacheTTL       time.Duration `envconfig:"MARKET_DATA_CACHE_TTL" default:"1m"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

// Enabled reports whether any broker is configured
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
}

// WorkerConfig controls background workers
type WorkerConfig struct {
	Watchlist           []string      `envconfig:"WORKERS_WATCHLIST"`
	WatchlistInterval   time.Duration `envconfig:"WORKERS_WATCHLIST_INTERVAL" default:"15m"`
	HealthCheckInterval time.Duration `envconfig:"WORKERS_HEALTH_INTERVAL" default:"1m"`
}

func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	var errs errors.MultiError

	if c.Workflow.HistorySize <= 0 {
		errs.Add(errors.NewValidationError("WORKFLOW_HISTORY_SIZE", "must be positive", c.Workflow.HistorySize))
	}
	if c.Workflow.StageTimeout <= 0 {
		errs.Add(errors.NewValidationError("WORKFLOW_STAGE_TIMEOUT", "must be positive", c.Workflow.StageTimeout))
	}
	if c.Execution.OpenHour < 0 || c.Execution.CloseHour > 23 || c.Execution.OpenHour > c.Execution.CloseHour {
		errs.Add(errors.NewValidationError("EXECUTION_OPEN_HOUR", "invalid trading hours",
			fmt.Sprintf("%d-%d", c.Execution.OpenHour, c.Execution.CloseHour)))
	}
	for source, w := range c.Fusion.Weights {
		if w <= 0 {
			errs.Add(errors.NewValidationError("FUSION_WEIGHTS", "weight must be positive", source))
		}
	}
	if c.Sizing.PortfolioValue <= 0 {
		errs.Add(errors.NewValidationError("SIZING_PORTFOLIO_VALUE", "must be positive", c.Sizing.PortfolioValue))
	}

	if err := errs.ToError(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
