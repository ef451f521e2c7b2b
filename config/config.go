package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process-lifetime, read-only (after Load) configuration
// tree. Per §9's design note, there are no module-level mutable
// singletons: main.go loads one Config and hands it (or derived
// sub-configs) to each component at construction time. The tree is loaded
// once at startup; there is no reload.
type Config struct {
	Broker     BrokerConfig     `json:"broker"`
	Indicator  IndicatorConfig  `json:"indicator"`
	Classifier ClassifierConfig `json:"classifier"`
	Lot        LotConfig        `json:"lot"`
	Server     ServerConfig     `json:"server"`
	Auth       AuthConfig       `json:"auth"`
	Vault      VaultConfig      `json:"vault"`
	Redis      RedisConfig      `json:"redis"`
	Database   DatabaseConfig   `json:"database"`
	Logging    LoggingConfig    `json:"logging"`
}

// BrokerConfig describes the Upstream Session's connection (§4.4).
type BrokerConfig struct {
	URL              string        `json:"url"`
	AppID            string        `json:"app_id"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
	AuthorizeTimeout time.Duration `json:"authorize_timeout"`
	HistoryTimeout   time.Duration `json:"history_timeout"`
	Granularity      int           `json:"granularity"` // seconds per candle, 60 per §3.1
	HistoryCount     int           `json:"history_count"`
}

// IndicatorConfig mirrors spec.md §6.3's indicator config file: periods and
// moving-average kind per EMA tier plus the other indicators' periods.
type IndicatorConfig struct {
	ShortKind      string  `json:"short_kind"` // EMA | HMA | EHMA
	MediumKind     string  `json:"medium_kind"`
	LongKind       string  `json:"long_kind"`
	ShortPeriod    int     `json:"short_period"`
	MediumPeriod   int     `json:"medium_period"`
	LongPeriod     int     `json:"long_period"`
	ATRPeriod      int     `json:"atr_period"`
	ATRMultiplier  float64 `json:"atr_multiplier"`
	BollingerPeriod int    `json:"bollinger_period"`
	ChoppyPeriod   int     `json:"choppy_period"`
	ADXPeriod      int     `json:"adx_period"`
	RSIPeriod      int     `json:"rsi_period"`
	FlatThreshold  float64 `json:"flat_threshold"`
	MACDNarrow     float64 `json:"macd_narrow"`
}

// ClassifierConfig points at the two startup-loaded tables (§6.3).
type ClassifierConfig struct {
	MasterCodePath string `json:"master_code_path"`
	SignalTablePath string `json:"signal_table_path"`
}

// LotConfig seeds a fresh LotState on START_AUTO_TRADE (§4.7).
type LotConfig struct {
	Policy       string    `json:"policy"` // Fixed | Martingale
	Ladder       []float64 `json:"ladder"`
	InitialStake float64   `json:"initial_stake"`
	TargetProfit float64   `json:"target_profit"`
	TargetWin    int       `json:"target_win"`
}

// ServerConfig holds the Relay Core's HTTP+WS listener settings.
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	ShutdownTimeout int    `json:"shutdown_timeout"`
	MailboxSize     int    `json:"mailbox_size"` // per-client bounded mailbox (§4.8)
}

// AuthConfig drives JWT issuance/validation for the command channel.
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	MinPasswordLength   int           `json:"min_password_length"`
}

// VaultConfig enables loading the broker app secret + JWT signing key from
// HashiCorp Vault instead of config/env.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
}

// RedisConfig backs the contract-id dedup lock and analysis snapshot cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig backs the Postgres audit log.
type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"`
}

// LoggingConfig drives internal/logging.New.
type LoggingConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"`
	JSONFormat bool   `json:"json_format"`
}

// Load reads config.json (if present) then applies environment overrides,
// exactly as the teacher's config.Load does.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = defaultConfig()
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Indicator: IndicatorConfig{
			ShortKind: "EMA", MediumKind: "EMA", LongKind: "EMA",
			ShortPeriod: 9, MediumPeriod: 21, LongPeriod: 50,
			ATRPeriod: 14, ATRMultiplier: 2,
			BollingerPeriod: 20, ChoppyPeriod: 14, ADXPeriod: 14, RSIPeriod: 14,
			FlatThreshold: 0.05, MACDNarrow: 0.15,
		},
		Lot: LotConfig{
			Policy:       "Fixed",
			Ladder:       []float64{1, 2, 6, 8, 16, 54, 162},
			InitialStake: 1.0,
		},
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg := defaultConfig()
	if err := json.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Broker.URL = getEnvOrDefault("BROKER_WS_URL", cfg.Broker.URL)
	cfg.Broker.AppID = getEnvOrDefault("BROKER_APP_ID", cfg.Broker.AppID)
	if cfg.Broker.Granularity == 0 {
		cfg.Broker.Granularity = 60
	}
	if cfg.Broker.HistoryCount == 0 {
		cfg.Broker.HistoryCount = 200
	}
	if cfg.Broker.ConnectTimeout == 0 {
		cfg.Broker.ConnectTimeout = 10 * time.Second
	}
	if cfg.Broker.AuthorizeTimeout == 0 {
		cfg.Broker.AuthorizeTimeout = 10 * time.Second
	}
	if cfg.Broker.HistoryTimeout == 0 {
		cfg.Broker.HistoryTimeout = 10 * time.Second
	}

	cfg.Classifier.MasterCodePath = getEnvOrDefault("CLASSIFIER_MASTER_CODE_PATH", cfg.Classifier.MasterCodePath)
	cfg.Classifier.SignalTablePath = getEnvOrDefault("CLASSIFIER_SIGNAL_TABLE_PATH", cfg.Classifier.SignalTablePath)

	cfg.Server.Port = getEnvIntOrDefault("SERVER_PORT", orDefault(cfg.Server.Port, 8080))
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", orDefaultStr(cfg.Server.Host, "0.0.0.0"))
	cfg.Server.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", orDefaultStr(cfg.Server.AllowedOrigins, "*"))
	cfg.Server.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", orDefault(cfg.Server.ReadTimeout, 30))
	cfg.Server.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", orDefault(cfg.Server.WriteTimeout, 30))
	cfg.Server.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", orDefault(cfg.Server.ShutdownTimeout, 10))
	cfg.Server.MailboxSize = getEnvIntOrDefault("SERVER_MAILBOX_SIZE", orDefault(cfg.Server.MailboxSize, 64))

	cfg.Auth.Enabled = getEnvOrDefault("AUTH_ENABLED", "true") == "true"
	cfg.Auth.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", orDefaultDur(cfg.Auth.AccessTokenDuration, time.Hour))
	cfg.Auth.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", orDefault(cfg.Auth.MinPasswordLength, 8))

	cfg.Vault.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", orDefaultStr(cfg.Vault.Address, "http://127.0.0.1:8200"))
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)
	cfg.Vault.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", orDefaultStr(cfg.Vault.MountPath, "secret"))
	cfg.Vault.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", orDefaultStr(cfg.Vault.SecretPath, "options-relay/broker"))

	cfg.Redis.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", orDefaultStr(cfg.Redis.Address, "127.0.0.1:6379"))
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", orDefault(cfg.Redis.PoolSize, 10))

	cfg.Database.Enabled = getEnvOrDefault("DATABASE_ENABLED", "false") == "true"
	cfg.Database.DSN = getEnvOrDefault("DATABASE_DSN", cfg.Database.DSN)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", orDefaultStr(cfg.Logging.Level, "INFO"))
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", orDefaultStr(cfg.Logging.Output, "stdout"))
	cfg.Logging.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
}

func orDefault(v, d int) int {
	if v == 0 {
		return d
	}
	return v
}

func orDefaultStr(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func orDefaultDur(v, d time.Duration) time.Duration {
	if v == 0 {
		return d
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
