package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/crossvenue/arbscan/pkg/types"
)

// Config holds all application configuration. Values come from a YAML file,
// overridden by environment variables, with defaults filled last.
type Config struct {
	LogLevel string `yaml:"log_level"`
	HTTPPort string `yaml:"http_port"`

	// MappingsFile points at the manual cross-venue mappings YAML. Empty
	// means no manual tier; a configured path must exist.
	MappingsFile string `yaml:"mappings_file"`

	Arbitrage    ArbitrageConfig    `yaml:"arbitrage"`
	Matching     MatchingConfig     `yaml:"matching"`
	Realtime     RealtimeConfig     `yaml:"realtime"`
	Venues       VenuesConfig       `yaml:"venues"`
	Notification NotificationConfig `yaml:"notification"`
}

// ArbitrageConfig controls the evaluator and the scan loop.
type ArbitrageConfig struct {
	// MinArbitrageThreshold is the minimum net edge, in percent.
	MinArbitrageThreshold float64 `yaml:"min_arbitrage_threshold"`
	// ScanIntervalSeconds is the period of the scan loop.
	ScanIntervalSeconds int `yaml:"scan_interval"`
	// CooldownMinutes is the per-key notification cooldown.
	CooldownMinutes int `yaml:"cooldown_minutes"`
	// TradingFee is the per-leg fee fraction. The evaluator always
	// subtracts two legs.
	TradingFee float64 `yaml:"trading_fee"`
	// DerivedPenaltyPct is added to the threshold when a leg carries
	// derived quotes.
	DerivedPenaltyPct float64 `yaml:"derived_penalty_pct"`
	// FetchTimeoutSeconds bounds each adapter's catalog call per scan.
	FetchTimeoutSeconds int `yaml:"fetch_timeout"`
	// MissedScansForRemoval is how many consecutive scans an opportunity
	// may be absent before it is dropped.
	MissedScansForRemoval int `yaml:"missed_scans_for_removal"`
	// MaxEndTimeGapDays rejects pairs whose resolution deadlines differ
	// by more than this many days.
	MaxEndTimeGapDays int `yaml:"max_end_time_gap_days"`
}

// MatchingConfig controls the cross-venue market matcher.
type MatchingConfig struct {
	// MinSimilarity is the default score floor for automatic matches.
	MinSimilarity float64 `yaml:"min_similarity"`
	// PairMinSimilarity overrides the floor per venue pair, keyed
	// "POLY/KALSHI" (order-insensitive).
	PairMinSimilarity map[string]float64 `yaml:"pair_min_similarity"`
}

// RealtimeConfig controls the per-venue WebSocket workers. Durations are
// whole seconds so the YAML stays plain numbers.
type RealtimeConfig struct {
	// TopMarkets is how many markets per venue, by 24h volume, the
	// realtime worker subscribes to beyond live opportunities.
	TopMarkets int `yaml:"top_markets"`

	DialTimeoutSeconds           int `yaml:"dial_timeout"`
	PingIntervalSeconds          int `yaml:"ping_interval"`
	PongTimeoutSeconds           int `yaml:"pong_timeout"`
	ReconnectInitialDelaySeconds int `yaml:"reconnect_initial_delay"`
	ReconnectMaxDelaySeconds     int `yaml:"reconnect_max_delay"`
	ReconnectMaxAttempts         int `yaml:"reconnect_max_attempts"`
	MessageBufferSize            int `yaml:"message_buffer_size"`
}

// DialTimeout returns the WebSocket dial deadline as a duration.
func (r RealtimeConfig) DialTimeout() time.Duration {
	return time.Duration(r.DialTimeoutSeconds) * time.Second
}

// PingInterval returns the heartbeat period as a duration.
func (r RealtimeConfig) PingInterval() time.Duration {
	return time.Duration(r.PingIntervalSeconds) * time.Second
}

// PongTimeout returns how long a connection may go without a pong before
// it is treated as dead.
func (r RealtimeConfig) PongTimeout() time.Duration {
	return time.Duration(r.PongTimeoutSeconds) * time.Second
}

// ReconnectInitialDelay returns the first backoff step as a duration.
func (r RealtimeConfig) ReconnectInitialDelay() time.Duration {
	return time.Duration(r.ReconnectInitialDelaySeconds) * time.Second
}

// ReconnectMaxDelay returns the backoff cap as a duration.
func (r RealtimeConfig) ReconnectMaxDelay() time.Duration {
	return time.Duration(r.ReconnectMaxDelaySeconds) * time.Second
}

// VenueConfig is one venue's REST/WS endpoints and credentials.
type VenueConfig struct {
	// Enabled defaults to true when absent; set false to skip the venue.
	Enabled *bool  `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	// ClobURL is the order-book API for venues that split catalog and
	// book hosts. Empty uses the venue default.
	ClobURL      string `yaml:"clob_url"`
	WSURL        string `yaml:"ws_url"`
	APIKey       string `yaml:"api_key"`
	CacheSeconds int    `yaml:"cache_seconds"`
	MaxPages     int    `yaml:"max_pages"`
}

// IsEnabled reports whether the venue participates in scans.
func (vc VenueConfig) IsEnabled() bool {
	return vc.Enabled == nil || *vc.Enabled
}

// VenuesConfig groups the per-venue sections.
type VenuesConfig struct {
	Poly    VenueConfig `yaml:"poly"`
	Opinion VenueConfig `yaml:"opinion"`
	Predict VenueConfig `yaml:"predict"`
	Kalshi  VenueConfig `yaml:"kalshi"`
}

// NotificationConfig groups notification sinks.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig configures the Telegram sink.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Load reads the YAML file at path, applies environment overrides, fills
// defaults, and validates. An empty path skips the file and configures
// from environment and defaults alone. A .env file in the working
// directory is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", types.ErrConfig, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", types.ErrConfig, path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrideString("LOG_LEVEL", &c.LogLevel)
	overrideString("HTTP_PORT", &c.HTTPPort)
	overrideString("MAPPINGS_FILE", &c.MappingsFile)

	overrideFloat64("MIN_ARBITRAGE_THRESHOLD", &c.Arbitrage.MinArbitrageThreshold)
	overrideInt("SCAN_INTERVAL", &c.Arbitrage.ScanIntervalSeconds)
	overrideInt("COOLDOWN_MINUTES", &c.Arbitrage.CooldownMinutes)
	overrideFloat64("TRADING_FEE", &c.Arbitrage.TradingFee)
	overrideFloat64("DERIVED_PENALTY_PCT", &c.Arbitrage.DerivedPenaltyPct)

	overrideFloat64("MIN_SIMILARITY", &c.Matching.MinSimilarity)
	overrideInt("REALTIME_TOP_MARKETS", &c.Realtime.TopMarkets)

	overrideVenueEnv("POLY", &c.Venues.Poly)
	overrideVenueEnv("OPINION", &c.Venues.Opinion)
	overrideVenueEnv("PREDICT", &c.Venues.Predict)
	overrideVenueEnv("KALSHI", &c.Venues.Kalshi)

	overrideBool("TELEGRAM_ENABLED", &c.Notification.Telegram.Enabled)
	overrideString("TELEGRAM_BOT_TOKEN", &c.Notification.Telegram.BotToken)
	overrideString("TELEGRAM_CHAT_ID", &c.Notification.Telegram.ChatID)
}

func overrideVenueEnv(prefix string, vc *VenueConfig) {
	if v := os.Getenv(prefix + "_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			vc.Enabled = &b
		}
	}
	overrideString(prefix+"_BASE_URL", &vc.BaseURL)
	overrideString(prefix+"_CLOB_URL", &vc.ClobURL)
	overrideString(prefix+"_WS_URL", &vc.WSURL)
	overrideString(prefix+"_API_KEY", &vc.APIKey)
	overrideInt(prefix+"_CACHE_SECONDS", &vc.CacheSeconds)
}

//nolint:gocyclo // straight-line default filling
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPPort == "" {
		c.HTTPPort = "8080"
	}

	if c.Arbitrage.MinArbitrageThreshold == 0 {
		c.Arbitrage.MinArbitrageThreshold = 2.0
	}
	if c.Arbitrage.ScanIntervalSeconds <= 0 {
		c.Arbitrage.ScanIntervalSeconds = 15
	}
	if c.Arbitrage.CooldownMinutes <= 0 {
		c.Arbitrage.CooldownMinutes = 5
	}
	if c.Arbitrage.TradingFee == 0 {
		c.Arbitrage.TradingFee = 0.005
	}
	if c.Arbitrage.DerivedPenaltyPct == 0 {
		c.Arbitrage.DerivedPenaltyPct = 1.0
	}
	if c.Arbitrage.FetchTimeoutSeconds <= 0 {
		c.Arbitrage.FetchTimeoutSeconds = 15
	}
	if c.Arbitrage.MissedScansForRemoval <= 0 {
		// Roughly five minutes at the default scan interval.
		c.Arbitrage.MissedScansForRemoval = 20
	}
	if c.Arbitrage.MaxEndTimeGapDays <= 0 {
		c.Arbitrage.MaxEndTimeGapDays = 30
	}

	if c.Matching.MinSimilarity == 0 {
		c.Matching.MinSimilarity = 0.40
	}
	if c.Matching.PairMinSimilarity == nil {
		c.Matching.PairMinSimilarity = map[string]float64{
			"POLY/KALSHI":  0.50,
			"POLY/OPINION": 0.35,
		}
	}

	if c.Realtime.TopMarkets <= 0 {
		c.Realtime.TopMarkets = 150
	}
	if c.Realtime.DialTimeoutSeconds <= 0 {
		c.Realtime.DialTimeoutSeconds = 10
	}
	if c.Realtime.PingIntervalSeconds <= 0 {
		c.Realtime.PingIntervalSeconds = 10
	}
	if c.Realtime.PongTimeoutSeconds <= 0 {
		// Three missed ping intervals.
		c.Realtime.PongTimeoutSeconds = 30
	}
	if c.Realtime.ReconnectInitialDelaySeconds <= 0 {
		c.Realtime.ReconnectInitialDelaySeconds = 1
	}
	if c.Realtime.ReconnectMaxDelaySeconds <= 0 {
		c.Realtime.ReconnectMaxDelaySeconds = 60
	}
	if c.Realtime.ReconnectMaxAttempts <= 0 {
		c.Realtime.ReconnectMaxAttempts = 10
	}
	if c.Realtime.MessageBufferSize <= 0 {
		c.Realtime.MessageBufferSize = 1000
	}

	applyVenueDefaults(&c.Venues.Poly, "https://gamma-api.polymarket.com",
		"wss://ws-subscriptions-clob.polymarket.com/ws/market", 60)
	applyVenueDefaults(&c.Venues.Opinion, "https://api.opinion.trade", "", 90)
	applyVenueDefaults(&c.Venues.Predict, "https://api.predictmarket.io",
		"wss://stream.predictmarket.io/ws", 60)
	applyVenueDefaults(&c.Venues.Kalshi, "https://api.elections.kalshi.com/trade-api/v2",
		"wss://api.elections.kalshi.com/trade-api/ws/v2", 30)
}

func applyVenueDefaults(vc *VenueConfig, baseURL, wsURL string, cacheSeconds int) {
	if vc.BaseURL == "" {
		vc.BaseURL = baseURL
	}
	if vc.WSURL == "" {
		vc.WSURL = wsURL
	}
	if vc.CacheSeconds <= 0 {
		vc.CacheSeconds = cacheSeconds
	}
	if vc.MaxPages <= 0 {
		vc.MaxPages = 10
	}
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Arbitrage.MinArbitrageThreshold <= 0 {
		return fmt.Errorf("%w: min_arbitrage_threshold must be positive, got %f",
			types.ErrConfig, c.Arbitrage.MinArbitrageThreshold)
	}
	if c.Arbitrage.TradingFee < 0 || c.Arbitrage.TradingFee >= 0.5 {
		return fmt.Errorf("%w: trading_fee must be in [0, 0.5), got %f",
			types.ErrConfig, c.Arbitrage.TradingFee)
	}
	if c.Matching.MinSimilarity <= 0 || c.Matching.MinSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity must be in (0, 1], got %f",
			types.ErrConfig, c.Matching.MinSimilarity)
	}
	if len(c.EnabledVenues()) < 2 {
		return fmt.Errorf("%w: need at least two enabled venues to scan across", types.ErrConfig)
	}
	if c.Notification.Telegram.Enabled {
		if c.Notification.Telegram.BotToken == "" || c.Notification.Telegram.ChatID == "" {
			return fmt.Errorf("%w: telegram enabled without bot_token/chat_id", types.ErrConfig)
		}
	}
	return nil
}

// Venue returns the section for the given venue.
func (c *Config) Venue(v types.Venue) VenueConfig {
	switch v {
	case types.VenuePoly:
		return c.Venues.Poly
	case types.VenueOpinion:
		return c.Venues.Opinion
	case types.VenuePredict:
		return c.Venues.Predict
	case types.VenueKalshi:
		return c.Venues.Kalshi
	}
	return VenueConfig{}
}

// EnabledVenues lists the venues participating in scans, in display order.
func (c *Config) EnabledVenues() []types.Venue {
	var out []types.Venue
	for _, v := range types.AllVenues() {
		if c.Venue(v).IsEnabled() {
			out = append(out, v)
		}
	}
	return out
}

// ScanInterval returns the scan period as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Arbitrage.ScanIntervalSeconds) * time.Second
}

// Cooldown returns the notification cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Arbitrage.CooldownMinutes) * time.Minute
}

// FetchTimeout returns the per-adapter catalog deadline as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Arbitrage.FetchTimeoutSeconds) * time.Second
}

// MinSimilarityFor returns the score floor for a venue pair, falling back
// to the global default. The key is order-insensitive.
func (c *Config) MinSimilarityFor(a, b types.Venue) float64 {
	if v, ok := c.Matching.PairMinSimilarity[pairKey(a, b)]; ok {
		return v
	}
	if v, ok := c.Matching.PairMinSimilarity[pairKey(b, a)]; ok {
		return v
	}
	return c.Matching.MinSimilarity
}

func pairKey(a, b types.Venue) string {
	return string(a) + "/" + string(b)
}

func overrideString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

func overrideFloat64(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*dst = f
}

func overrideBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return
	}
	*dst = b
}
