package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"bridge-router/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Collector   CollectorConfig   `mapstructure:"collector"`
	Ranking     RankingConfig     `mapstructure:"ranking"`
	Slippage    SlippageConfig    `mapstructure:"slippage"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Liquidity   LiquidityConfig   `mapstructure:"liquidity"`
	Providers   []ProviderConfig  `mapstructure:"providers"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CollectorConfig bounds the quote fan-out.
type CollectorConfig struct {
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

// RankingConfig carries the named weight profiles.
type RankingConfig struct {
	DefaultMode string                   `mapstructure:"default_mode"`
	Profiles    map[string]WeightsConfig `mapstructure:"profiles"`
	History     HistoryAdjustmentConfig  `mapstructure:"history"`
}

// WeightsConfig is one raw weight vector; normalised on load.
type WeightsConfig struct {
	Cost        float64 `mapstructure:"cost"`
	Speed       float64 `mapstructure:"speed"`
	Reliability float64 `mapstructure:"reliability"`
	Liquidity   float64 `mapstructure:"liquidity"`
}

// HistoryAdjustmentConfig governs how historical reliability feeds ranking.
type HistoryAdjustmentConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	Threshold         float64 `mapstructure:"threshold"`
	IgnoreReliability bool    `mapstructure:"ignore_reliability"`
}

// SlippageConfig tunes the price-impact estimator.
type SlippageConfig struct {
	MaxMultiplier       float64 `mapstructure:"max_multiplier"`
	HighConfidencePct   float64 `mapstructure:"high_confidence_pct"`
	MediumConfidencePct float64 `mapstructure:"medium_confidence_pct"`
	FallbackRatePct     float64 `mapstructure:"fallback_rate_pct"`
	FallbackCapPct      float64 `mapstructure:"fallback_cap_pct"`
}

// ReliabilityConfig tunes rolling-window reliability scoring.
type ReliabilityConfig struct {
	MinAttempts        int     `mapstructure:"min_attempts"`
	TimeoutPenaltyRate float64 `mapstructure:"timeout_penalty_rate"`
	TimeoutPenaltyCap  float64 `mapstructure:"timeout_penalty_cap"`
	HighTierCutoff     float64 `mapstructure:"high_tier_cutoff"`
	MediumTierCutoff   float64 `mapstructure:"medium_tier_cutoff"`
	RankingPenalty     float64 `mapstructure:"ranking_penalty"`
	DefaultWindowMode  string  `mapstructure:"default_window_mode"`
	DefaultWindowSize  int     `mapstructure:"default_window_size"`
}

// LiquidityConfig describes where pool TVL figures come from.
type LiquidityConfig struct {
	RPCURL         string                `mapstructure:"rpc_url"`
	RequestTimeout time.Duration         `mapstructure:"request_timeout"`
	Pools          []LiquidityPoolConfig `mapstructure:"pools"`
}

// LiquidityPoolConfig is one known pool for a (token, chain) pair.
type LiquidityPoolConfig struct {
	Token         string  `mapstructure:"token"`
	Chain         string  `mapstructure:"chain"`
	TVLUSD        float64 `mapstructure:"tvl_usd"`
	PoolAddress   string  `mapstructure:"pool_address"`
	TokenAddress  string  `mapstructure:"token_address"`
	TokenDecimals int32   `mapstructure:"token_decimals"`
	TokenPriceUSD float64 `mapstructure:"token_price_usd"`
}

// ProviderConfig declares one bridge provider adapter.
type ProviderConfig struct {
	ID             string        `mapstructure:"id"`
	Name           string        `mapstructure:"name"`
	BaseURL        string        `mapstructure:"base_url"`
	QuotePath      string        `mapstructure:"quote_path"`
	APIKey         string        `mapstructure:"api_key"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Chains         []string      `mapstructure:"chains"`
	Tokens         []string      `mapstructure:"tokens"`
	Active         bool          `mapstructure:"active"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BRIDGEROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bridgerouter")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("collector.provider_timeout", "10s")

	v.SetDefault("ranking.default_mode", "balanced")
	v.SetDefault("ranking.profiles.balanced", map[string]any{
		"cost": 0.25, "speed": 0.25, "reliability": 0.25, "liquidity": 0.25,
	})
	v.SetDefault("ranking.profiles.lowest-cost", map[string]any{
		"cost": 0.55, "speed": 0.15, "reliability": 0.15, "liquidity": 0.15,
	})
	v.SetDefault("ranking.profiles.fastest", map[string]any{
		"cost": 0.15, "speed": 0.55, "reliability": 0.15, "liquidity": 0.15,
	})
	v.SetDefault("ranking.profiles.most-reliable", map[string]any{
		"cost": 0.15, "speed": 0.15, "reliability": 0.55, "liquidity": 0.15,
	})
	v.SetDefault("ranking.history.enabled", true)
	v.SetDefault("ranking.history.threshold", 70.0)
	v.SetDefault("ranking.history.ignore_reliability", false)

	v.SetDefault("slippage.max_multiplier", 2.5)
	v.SetDefault("slippage.high_confidence_pct", 0.1)
	v.SetDefault("slippage.medium_confidence_pct", 1.0)
	v.SetDefault("slippage.fallback_rate_pct", 0.0001)
	v.SetDefault("slippage.fallback_cap_pct", 5.0)

	v.SetDefault("reliability.min_attempts", 10)
	v.SetDefault("reliability.timeout_penalty_rate", 10.0)
	v.SetDefault("reliability.timeout_penalty_cap", 5.0)
	v.SetDefault("reliability.high_tier_cutoff", 95.0)
	v.SetDefault("reliability.medium_tier_cutoff", 85.0)
	v.SetDefault("reliability.ranking_penalty", 20.0)
	v.SetDefault("reliability.default_window_mode", "transaction_count")
	v.SetDefault("reliability.default_window_size", 100)

	v.SetDefault("liquidity.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Collector.ProviderTimeout <= 0 {
		return fmt.Errorf("collector.provider_timeout must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if len(c.Ranking.Profiles) == 0 {
		return fmt.Errorf("ranking.profiles must define at least one profile")
	}
	if _, ok := c.Ranking.Profiles[c.Ranking.DefaultMode]; !ok {
		return fmt.Errorf("ranking.default_mode %q has no matching profile", c.Ranking.DefaultMode)
	}
	for name, p := range c.Ranking.Profiles {
		if p.Cost < 0 || p.Speed < 0 || p.Reliability < 0 || p.Liquidity < 0 {
			return fmt.Errorf("ranking.profiles.%s: weights cannot be negative", name)
		}
		if p.Cost+p.Speed+p.Reliability+p.Liquidity == 0 {
			return fmt.Errorf("ranking.profiles.%s: weights cannot all be zero", name)
		}
	}
	if c.Reliability.MinAttempts < 0 {
		return fmt.Errorf("reliability.min_attempts cannot be negative")
	}
	if c.Reliability.MediumTierCutoff > c.Reliability.HighTierCutoff {
		return fmt.Errorf("reliability.medium_tier_cutoff cannot exceed high_tier_cutoff")
	}
	if c.Slippage.MaxMultiplier < 1 {
		return fmt.Errorf("slippage.max_multiplier must be at least 1")
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("providers[]: id is required")
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("providers[]: duplicate id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
