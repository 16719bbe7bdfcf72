package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FilterConfig holds the alert thresholds. Zero disables a threshold.
type FilterConfig struct {
	MinLiquidityUSD float64 `mapstructure:"min_liquidity_usd"`
	MinMarketCapUSD float64 `mapstructure:"min_mcap_usd"`
	MinVolumeH24USD float64 `mapstructure:"min_volume_h24_usd"`
	MaxAgeMinutes   float64 `mapstructure:"max_age_minutes"`
}

type ScheduleConfig struct {
	IngestInterval     time.Duration `mapstructure:"ingest_interval"`
	DiscoveryInterval  time.Duration `mapstructure:"discovery_interval"`
	RefreshInterval    time.Duration `mapstructure:"refresh_interval"`
	SocialInterval     time.Duration `mapstructure:"social_interval"`
	MaxTrackingWindow  time.Duration `mapstructure:"max_tracking_window"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	TopNPerTick        int           `mapstructure:"top_n_per_tick"`
	ManualTradeDefault int           `mapstructure:"manual_trade_default"`
}

type MarketConfig struct {
	ChainID     string        `mapstructure:"chain_id"`
	BaseURL     string        `mapstructure:"base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	Tries       int           `mapstructure:"tries"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	RateBurst   int           `mapstructure:"rate_burst"`
}

type ProxyConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type SocialConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	MaxUsernames  int           `mapstructure:"max_usernames"`
	ProxyDelay    time.Duration `mapstructure:"proxy_delay"`
	VariantDelay  time.Duration `mapstructure:"variant_delay"`
	MinBodyLength int           `mapstructure:"min_body_length"`
	ProxyRate     float64       `mapstructure:"proxy_rate"`
	Blacklist     []string      `mapstructure:"blacklist"`
	Proxies       []ProxyConfig `mapstructure:"proxies"`
	QueueSize     int           `mapstructure:"queue_size"`
}

type TelegramConfig struct {
	SendRate     float64 `mapstructure:"send_rate"`
	SendBurst    int     `mapstructure:"send_burst"`
	MaxRetries   int     `mapstructure:"max_retries"`
	MirrorErrors bool    `mapstructure:"mirror_errors"`
}

// Config defines the global configuration structure
type Config struct {
	App struct {
		Environment string `mapstructure:"environment"`
	} `mapstructure:"app"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Filters  FilterConfig   `mapstructure:"filters"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Market   MarketConfig   `mapstructure:"market"`
	Social   SocialConfig   `mapstructure:"social"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "production")
	v.SetDefault("logging.level", "info")

	v.SetDefault("filters.min_liquidity_usd", 35000)
	v.SetDefault("filters.min_mcap_usd", 70000)
	v.SetDefault("filters.min_volume_h24_usd", 40000)
	v.SetDefault("filters.max_age_minutes", 120)

	v.SetDefault("schedule.ingest_interval", "12s")
	v.SetDefault("schedule.discovery_interval", "5s")
	v.SetDefault("schedule.refresh_interval", "90s")
	v.SetDefault("schedule.social_interval", "2s")
	v.SetDefault("schedule.max_tracking_window", "60m")
	v.SetDefault("schedule.heartbeat_interval", "8m")
	v.SetDefault("schedule.top_n_per_tick", 0)
	v.SetDefault("schedule.manual_trade_default", 10)

	v.SetDefault("market.chain_id", "solana")
	v.SetDefault("market.base_url", "https://api.dexscreener.com")
	v.SetDefault("market.http_timeout", "15s")
	v.SetDefault("market.tries", 2)
	v.SetDefault("market.rate_limit", 4.66)
	v.SetDefault("market.rate_burst", 5)

	v.SetDefault("social.enabled", true)
	v.SetDefault("social.timeout", "30s")
	v.SetDefault("social.cache_ttl", "1h")
	v.SetDefault("social.max_usernames", 200)
	v.SetDefault("social.proxy_delay", "300ms")
	v.SetDefault("social.variant_delay", "500ms")
	v.SetDefault("social.min_body_length", 500)
	v.SetDefault("social.proxy_rate", 2)
	v.SetDefault("social.queue_size", 256)
	v.SetDefault("social.proxies", []map[string]any{
		{"name": "Jina", "url": "https://r.jina.ai/"},
		{"name": "Txtify", "url": "https://txtify.it/"},
	})

	v.SetDefault("telegram.send_rate", 20)
	v.SetDefault("telegram.send_burst", 5)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.mirror_errors", false)
}

// bindEnv maps the flat environment names used by the deployment onto config keys.
func bindEnv(v *viper.Viper) {
	v.BindEnv("app.environment", "ENVIRONMENT")
	v.BindEnv("logging.level", "LOG_LEVEL")

	v.BindEnv("filters.min_liquidity_usd", "MIN_LIQ_USD")
	v.BindEnv("filters.min_mcap_usd", "MIN_MCAP_USD")
	v.BindEnv("filters.min_volume_h24_usd", "MIN_VOL_H24_USD")
	v.BindEnv("filters.max_age_minutes", "MAX_AGE_MIN")

	v.BindEnv("schedule.top_n_per_tick", "TOP_N_PER_TICK")

	v.BindEnv("market.chain_id", "CHAIN_ID")
	v.BindEnv("social.enabled", "TWITTER_SCRAPER_ENABLED")
	v.BindEnv("social.max_usernames", "TWITTER_MAX_FOLLOWERS")
}

// secondsEnv lets the legacy *_SEC and *_MIN integer variables override duration keys.
var secondsEnv = []struct {
	key  string
	name string
	unit time.Duration
}{
	{"schedule.ingest_interval", "INGEST_INTERVAL_SEC", time.Second},
	{"schedule.discovery_interval", "TRADE_SUMMARY_SEC", time.Second},
	{"schedule.refresh_interval", "UPDATE_INTERVAL_SEC", time.Second},
	{"schedule.max_tracking_window", "UPDATE_MAX_DURATION_MIN", time.Minute},
	{"market.http_timeout", "HTTP_TIMEOUT", time.Second},
	{"social.timeout", "TWITTER_SCRAPE_TIMEOUT", time.Second},
}

// LoadConfig loads configuration from the specified file path and merges it with environment variables.
// A missing file is not an error; defaults and the environment still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file %s: %v", path, err)
	}

	for _, s := range secondsEnv {
		v.BindEnv(s.key+"_raw", s.name)
		if n := v.GetInt(s.key + "_raw"); n > 0 {
			v.Set(s.key, time.Duration(n)*s.unit)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Printf("Loaded configuration from file: %s", path)
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Market.ChainID == "" {
		return fmt.Errorf("market.chain_id is required")
	}
	if cfg.Market.Tries < 1 {
		return fmt.Errorf("market.tries must be at least 1")
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"schedule.ingest_interval", cfg.Schedule.IngestInterval},
		{"schedule.discovery_interval", cfg.Schedule.DiscoveryInterval},
		{"schedule.refresh_interval", cfg.Schedule.RefreshInterval},
		{"schedule.social_interval", cfg.Schedule.SocialInterval},
		{"schedule.max_tracking_window", cfg.Schedule.MaxTrackingWindow},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	if cfg.Schedule.TopNPerTick < 0 {
		return fmt.Errorf("schedule.top_n_per_tick must not be negative")
	}
	if cfg.Social.Enabled && len(cfg.Social.Proxies) == 0 {
		return fmt.Errorf("social.proxies must not be empty when the scraper is enabled")
	}
	return nil
}
