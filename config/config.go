package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DerivConfig        DerivConfig        `json:"deriv"`
	EngineConfig       EngineConfig       `json:"engine"`
	MarketConfig       MarketConfig       `json:"market"`
	ParamsConfig       ParamsConfig       `json:"params"`
	ForecastConfig     ForecastConfig     `json:"forecast"`
	RiskConfig         RiskConfig         `json:"risk"`
	ConfirmConfig      ConfirmConfig      `json:"confirm"`
	NotificationConfig NotificationConfig `json:"notification"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	ServerConfig       ServerConfig       `json:"server"`
	VaultConfig        VaultConfig        `json:"vault"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// DerivConfig holds Deriv websocket API settings
type DerivConfig struct {
	Endpoint string `json:"endpoint"` // wss://ws.derivws.com/websockets/v3
	AppID    string `json:"app_id"`
	APIToken string `json:"api_token"`
	Currency string `json:"currency"`
	MockMode bool   `json:"mock_mode"` // Use simulated data when the Deriv API is unavailable
}

// EngineConfig holds the decision-engine cycle settings
type EngineConfig struct {
	Instruments          []string      `json:"instruments"`            // Candidate synthetic indices
	TradeCadence         time.Duration `json:"trade_cadence"`          // Pause between auto-rebuy contracts
	DrawdownLimit        float64       `json:"drawdown_limit"`         // Cumulative loss that triggers analysis
	ContingencyFactor    float64       `json:"contingency_factor"`     // Drawdown limit multiplier when analysis fails
	DrawLimit            float64       `json:"draw_limit"`             // Single-trade loss guardrail multiplier
	DailyTargetMin       float64       `json:"daily_target_min"`       // Lower bound of the random daily target (fraction)
	DailyTargetMax       float64       `json:"daily_target_max"`       // Upper bound of the random daily target (fraction)
	DailyTargetBuffer    float64       `json:"daily_target_buffer"`    // Extra margin before auto-stop (fraction)
	WinStreakThreshold   int           `json:"win_streak_threshold"`   // Consecutive wins before scaling back
	WinStreakStakeFactor float64       `json:"win_streak_stake_factor"`
	WinStreakTPFactor    float64       `json:"win_streak_tp_factor"`
	StatusRefresh        time.Duration `json:"status_refresh"`
}

// MarketConfig holds market-analyzer settings
type MarketConfig struct {
	LookbackSamples    int           `json:"lookback_samples"`
	FetchTimeout       time.Duration `json:"fetch_timeout"`
	Workers            int           `json:"workers"`
	MinSampleSize      int           `json:"min_sample_size"`
	MinLiquidityVolume float64       `json:"min_liquidity_volume"`
}

// ParamsConfig holds parameter-optimizer settings
type ParamsConfig struct {
	BaseGrowthRate     float64 `json:"base_growth_rate"`
	BaseTakeProfit     float64 `json:"base_take_profit"`
	GrowthExponent     float64 `json:"growth_exponent"`
	ProfitExponent     float64 `json:"profit_exponent"`
	AlphaMin           float64 `json:"alpha_min"`
	AlphaMax           float64 `json:"alpha_max"`
	SmallBalanceMax    float64 `json:"small_balance_max"`
	MediumBalanceMax   float64 `json:"medium_balance_max"`
	SmallStake         float64 `json:"small_stake"`
	MediumStake        float64 `json:"medium_stake"`
	LargeStake         float64 `json:"large_stake"`
	HighVolThreshold   float64 `json:"high_vol_threshold"`
	LowVolThreshold    float64 `json:"low_vol_threshold"`
	RecoveryMultiplier float64 `json:"recovery_multiplier"`
	StakeCapFraction   float64 `json:"stake_cap_fraction"`
}

// ForecastConfig holds recovery-forecast settings
type ForecastConfig struct {
	Buffer       float64       `json:"buffer"`        // Safety margin on the loss to recover
	TradeCadence time.Duration `json:"trade_cadence"` // Assumed seconds per trade for time estimates
	Steepness    float64       `json:"steepness"`     // Logistic slope for the success probability
	Pivot        float64       `json:"pivot"`
	VolWeight    float64       `json:"vol_weight"`
	VolNorm      float64       `json:"vol_norm"` // Volatility considered "fully risky"
}

// RiskConfig holds adaptive risk-reduction settings
type RiskConfig struct {
	Decay float64 `json:"decay"` // Per-failure stake decay in recovery
	Floor float64 `json:"floor"` // Lowest allowed reduction factor
}

// ConfirmConfig holds operator-confirmation settings
type ConfirmConfig struct {
	Timeout time.Duration `json:"timeout"`
	Tick    time.Duration `json:"tick"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis settings for the live status mirror
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or console
	Output string `json:"output"` // stdout, stderr, or file path
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment always takes precedence over the config file.
func applyEnvOverrides(cfg *Config) {
	// Deriv config
	cfg.DerivConfig.Endpoint = getEnvOrDefault("DERIV_ENDPOINT", cfg.DerivConfig.Endpoint)
	if cfg.DerivConfig.Endpoint == "" {
		cfg.DerivConfig.Endpoint = "wss://ws.derivws.com/websockets/v3"
	}
	cfg.DerivConfig.AppID = getEnvOrDefault("DERIV_APP_ID", cfg.DerivConfig.AppID)
	cfg.DerivConfig.APIToken = getEnvOrDefault("DERIV_API_TOKEN", cfg.DerivConfig.APIToken)
	cfg.DerivConfig.Currency = getEnvOrDefault("DERIV_CURRENCY", defaultStr(cfg.DerivConfig.Currency, "USD"))
	cfg.DerivConfig.MockMode = getEnvOrDefault("MOCK_MODE", "false") == "true"

	// Engine config
	if v := os.Getenv("ENGINE_INSTRUMENTS"); v != "" {
		cfg.EngineConfig.Instruments = splitAndTrim(v)
	}
	if len(cfg.EngineConfig.Instruments) == 0 {
		cfg.EngineConfig.Instruments = []string{"R_10", "R_25", "R_50", "R_75", "R_100", "1HZ100V"}
	}
	cfg.EngineConfig.TradeCadence = getEnvDurationOrDefault("ENGINE_TRADE_CADENCE", defaultDur(cfg.EngineConfig.TradeCadence, 30*time.Second))
	cfg.EngineConfig.DrawdownLimit = getEnvFloatOrDefault("ENGINE_DRAWDOWN_LIMIT", defaultFloat(cfg.EngineConfig.DrawdownLimit, 100.0))
	cfg.EngineConfig.ContingencyFactor = getEnvFloatOrDefault("ENGINE_CONTINGENCY_FACTOR", defaultFloat(cfg.EngineConfig.ContingencyFactor, 1.25))
	cfg.EngineConfig.DrawLimit = getEnvFloatOrDefault("ENGINE_DRAW_LIMIT", defaultFloat(cfg.EngineConfig.DrawLimit, 10.0))
	cfg.EngineConfig.DailyTargetMin = getEnvFloatOrDefault("ENGINE_DAILY_TARGET_MIN", defaultFloat(cfg.EngineConfig.DailyTargetMin, 0.03))
	cfg.EngineConfig.DailyTargetMax = getEnvFloatOrDefault("ENGINE_DAILY_TARGET_MAX", defaultFloat(cfg.EngineConfig.DailyTargetMax, 0.05))
	cfg.EngineConfig.DailyTargetBuffer = getEnvFloatOrDefault("ENGINE_DAILY_TARGET_BUFFER", defaultFloat(cfg.EngineConfig.DailyTargetBuffer, 0.005))
	cfg.EngineConfig.WinStreakThreshold = getEnvIntOrDefault("ENGINE_WIN_STREAK_THRESHOLD", defaultInt(cfg.EngineConfig.WinStreakThreshold, 10))
	cfg.EngineConfig.WinStreakStakeFactor = getEnvFloatOrDefault("ENGINE_WIN_STREAK_STAKE_FACTOR", defaultFloat(cfg.EngineConfig.WinStreakStakeFactor, 0.7))
	cfg.EngineConfig.WinStreakTPFactor = getEnvFloatOrDefault("ENGINE_WIN_STREAK_TP_FACTOR", defaultFloat(cfg.EngineConfig.WinStreakTPFactor, 0.9))
	cfg.EngineConfig.StatusRefresh = getEnvDurationOrDefault("ENGINE_STATUS_REFRESH", defaultDur(cfg.EngineConfig.StatusRefresh, 3*time.Second))

	// Market config
	cfg.MarketConfig.LookbackSamples = getEnvIntOrDefault("MARKET_LOOKBACK_SAMPLES", defaultInt(cfg.MarketConfig.LookbackSamples, 1800))
	cfg.MarketConfig.FetchTimeout = getEnvDurationOrDefault("MARKET_FETCH_TIMEOUT", defaultDur(cfg.MarketConfig.FetchTimeout, 30*time.Second))
	cfg.MarketConfig.Workers = getEnvIntOrDefault("MARKET_WORKERS", defaultInt(cfg.MarketConfig.Workers, 4))
	cfg.MarketConfig.MinSampleSize = getEnvIntOrDefault("MARKET_MIN_SAMPLE_SIZE", defaultInt(cfg.MarketConfig.MinSampleSize, 300))
	cfg.MarketConfig.MinLiquidityVolume = getEnvFloatOrDefault("MARKET_MIN_LIQUIDITY_VOLUME", defaultFloat(cfg.MarketConfig.MinLiquidityVolume, 1000))

	// Params config
	cfg.ParamsConfig.BaseGrowthRate = getEnvFloatOrDefault("PARAMS_BASE_GROWTH_RATE", defaultFloat(cfg.ParamsConfig.BaseGrowthRate, 0.01))
	cfg.ParamsConfig.BaseTakeProfit = getEnvFloatOrDefault("PARAMS_BASE_TAKE_PROFIT", defaultFloat(cfg.ParamsConfig.BaseTakeProfit, 0.015))
	cfg.ParamsConfig.GrowthExponent = getEnvFloatOrDefault("PARAMS_GROWTH_EXPONENT", defaultFloat(cfg.ParamsConfig.GrowthExponent, 0.5))
	cfg.ParamsConfig.ProfitExponent = getEnvFloatOrDefault("PARAMS_PROFIT_EXPONENT", defaultFloat(cfg.ParamsConfig.ProfitExponent, 0.7))
	cfg.ParamsConfig.AlphaMin = getEnvFloatOrDefault("PARAMS_ALPHA_MIN", defaultFloat(cfg.ParamsConfig.AlphaMin, 0.5))
	cfg.ParamsConfig.AlphaMax = getEnvFloatOrDefault("PARAMS_ALPHA_MAX", defaultFloat(cfg.ParamsConfig.AlphaMax, 2.0))
	cfg.ParamsConfig.SmallBalanceMax = getEnvFloatOrDefault("PARAMS_SMALL_BALANCE_MAX", defaultFloat(cfg.ParamsConfig.SmallBalanceMax, 100))
	cfg.ParamsConfig.MediumBalanceMax = getEnvFloatOrDefault("PARAMS_MEDIUM_BALANCE_MAX", defaultFloat(cfg.ParamsConfig.MediumBalanceMax, 1000))
	cfg.ParamsConfig.SmallStake = getEnvFloatOrDefault("PARAMS_SMALL_STAKE", defaultFloat(cfg.ParamsConfig.SmallStake, 0.5))
	cfg.ParamsConfig.MediumStake = getEnvFloatOrDefault("PARAMS_MEDIUM_STAKE", defaultFloat(cfg.ParamsConfig.MediumStake, 2.0))
	cfg.ParamsConfig.LargeStake = getEnvFloatOrDefault("PARAMS_LARGE_STAKE", defaultFloat(cfg.ParamsConfig.LargeStake, 5.0))
	cfg.ParamsConfig.HighVolThreshold = getEnvFloatOrDefault("PARAMS_HIGH_VOL_THRESHOLD", defaultFloat(cfg.ParamsConfig.HighVolThreshold, 0.40))
	cfg.ParamsConfig.LowVolThreshold = getEnvFloatOrDefault("PARAMS_LOW_VOL_THRESHOLD", defaultFloat(cfg.ParamsConfig.LowVolThreshold, 0.15))
	cfg.ParamsConfig.RecoveryMultiplier = getEnvFloatOrDefault("PARAMS_RECOVERY_MULTIPLIER", defaultFloat(cfg.ParamsConfig.RecoveryMultiplier, 1.8))
	cfg.ParamsConfig.StakeCapFraction = getEnvFloatOrDefault("PARAMS_STAKE_CAP_FRACTION", defaultFloat(cfg.ParamsConfig.StakeCapFraction, 0.10))

	// Forecast config
	cfg.ForecastConfig.Buffer = getEnvFloatOrDefault("FORECAST_BUFFER", defaultFloat(cfg.ForecastConfig.Buffer, 0.20))
	cfg.ForecastConfig.TradeCadence = getEnvDurationOrDefault("FORECAST_TRADE_CADENCE", defaultDur(cfg.ForecastConfig.TradeCadence, 30*time.Second))
	cfg.ForecastConfig.Steepness = getEnvFloatOrDefault("FORECAST_STEEPNESS", defaultFloat(cfg.ForecastConfig.Steepness, 60))
	cfg.ForecastConfig.Pivot = getEnvFloatOrDefault("FORECAST_PIVOT", defaultFloat(cfg.ForecastConfig.Pivot, 1.01))
	cfg.ForecastConfig.VolWeight = getEnvFloatOrDefault("FORECAST_VOL_WEIGHT", defaultFloat(cfg.ForecastConfig.VolWeight, 0.25))
	cfg.ForecastConfig.VolNorm = getEnvFloatOrDefault("FORECAST_VOL_NORM", defaultFloat(cfg.ForecastConfig.VolNorm, 0.5))

	// Risk config
	cfg.RiskConfig.Decay = getEnvFloatOrDefault("RISK_DECAY", defaultFloat(cfg.RiskConfig.Decay, 0.85))
	cfg.RiskConfig.Floor = getEnvFloatOrDefault("RISK_FLOOR", defaultFloat(cfg.RiskConfig.Floor, 0.30))

	// Confirm config
	cfg.ConfirmConfig.Timeout = getEnvDurationOrDefault("CONFIRM_TIMEOUT", defaultDur(cfg.ConfirmConfig.Timeout, 30*time.Second))
	cfg.ConfirmConfig.Tick = getEnvDurationOrDefault("CONFIRM_TICK", defaultDur(cfg.ConfirmConfig.Tick, 5*time.Second))

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", "false") == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", "false") == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", "false") == "true"
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DATABASE_ENABLED", "false") == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", defaultStr(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DATABASE_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", defaultStr(cfg.DatabaseConfig.User, "decter"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Name = getEnvOrDefault("DATABASE_NAME", defaultStr(cfg.DatabaseConfig.Name, "decter"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DATABASE_SSL_MODE", defaultStr(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultStr(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", defaultStr(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultStr(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", defaultInt(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", defaultInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", defaultStr(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", defaultStr(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", defaultStr(cfg.VaultConfig.SecretPath, "decter/deriv"))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultStr(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.Format = getEnvOrDefault("LOG_FORMAT", defaultStr(cfg.LoggingConfig.Format, "json"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultStr(cfg.LoggingConfig.Output, "stdout"))
}

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	e := c.EngineConfig
	if e.DrawdownLimit <= 0 {
		return fmt.Errorf("engine.drawdown_limit must be positive, got %f", e.DrawdownLimit)
	}
	if e.ContingencyFactor < 1 {
		return fmt.Errorf("engine.contingency_factor must be >= 1, got %f", e.ContingencyFactor)
	}
	if e.DailyTargetMin <= 0 || e.DailyTargetMax < e.DailyTargetMin {
		return fmt.Errorf("engine daily target range [%f, %f] is invalid", e.DailyTargetMin, e.DailyTargetMax)
	}
	r := c.RiskConfig
	if r.Decay <= 0 || r.Decay >= 1 {
		return fmt.Errorf("risk.decay must be in (0, 1), got %f", r.Decay)
	}
	if r.Floor <= 0 || r.Floor > 1 {
		return fmt.Errorf("risk.floor must be in (0, 1], got %f", r.Floor)
	}
	p := c.ParamsConfig
	if p.AlphaMin > p.AlphaMax {
		return fmt.Errorf("params alpha range [%f, %f] is invalid", p.AlphaMin, p.AlphaMax)
	}
	if p.StakeCapFraction <= 0 || p.StakeCapFraction > 1 {
		return fmt.Errorf("params.stake_cap_fraction must be in (0, 1], got %f", p.StakeCapFraction)
	}
	if c.ConfirmConfig.Timeout <= 0 || c.ConfirmConfig.Tick <= 0 {
		return fmt.Errorf("confirm timeout and tick must be positive")
	}
	if c.ConfirmConfig.Tick > c.ConfirmConfig.Timeout {
		return fmt.Errorf("confirm.tick %s exceeds confirm.timeout %s", c.ConfirmConfig.Tick, c.ConfirmConfig.Timeout)
	}
	if c.MarketConfig.MinSampleSize > c.MarketConfig.LookbackSamples {
		return fmt.Errorf("market.min_sample_size %d exceeds lookback %d", c.MarketConfig.MinSampleSize, c.MarketConfig.LookbackSamples)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func defaultDur(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
