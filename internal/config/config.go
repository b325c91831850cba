package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names. Env values override the config file.
const (
	EnvConfigPath          = "CONFIG_PATH"
	EnvPort                = "PORT"
	EnvCORSOrigin          = "CORS_ORIGIN"
	EnvRateLimitRPM        = "RATE_LIMIT_RPM"
	EnvFreeTierDaily       = "FREE_TIER_DAILY"
	EnvGlobalDailyLimit    = "GLOBAL_DAILY_LIMIT"
	EnvBYOKBypassesQuota   = "BYOK_BYPASSES_QUOTA"
	EnvMaxRawBytes         = "MAX_RAW_BYTES"
	EnvAllowedModels       = "ALLOWED_MODELS"
	EnvMaxCompletionTokens = "MAX_COMPLETION_TOKENS"
	EnvOpenAIAPIKey        = "OPENAI_API_KEY"
	EnvOpenAIBaseURL       = "OPENAI_BASE_URL"
	EnvDBConnection        = "DB_CONNECTION"
	EnvRedisAddr           = "REDIS_ADDR"
	EnvRedisPassword       = "REDIS_PASSWORD"
	EnvRedisDB             = "REDIS_DB"
	EnvRedisPrefix         = "REDIS_PREFIX"
	EnvAdminUsername       = "ADMIN_USERNAME"
	EnvAdminPasswordHash   = "ADMIN_PASSWORD_HASH"
	EnvJWTSecret           = "JWT_SECRET"
	EnvJWTExpiry           = "JWT_EXPIRY"
)

// Defaults match the original deployment: a tight free tier with an optional
// shared daily pool.
const (
	DefaultPort                = 8787
	DefaultRateLimitRPM        = 2
	DefaultFreeTierDaily       = 5
	DefaultGlobalDailyLimit    = 100
	DefaultMaxRawBytes         = 8192
	DefaultMaxCompletionTokens = 600
	DefaultModel               = "gpt-4o-mini"
	DefaultRedisPrefix         = "storydeck"
	DefaultJWTExpiry           = 24 * time.Hour
)

// RateLimitConfig holds the admission tier caps.
type RateLimitConfig struct {
	PerMinute         int  `yaml:"per-minute"`          // Per-identity requests per minute.
	Daily             int  `yaml:"daily"`               // Per-identity requests per calendar day.
	GlobalDaily       int  `yaml:"global-daily"`        // Shared requests per calendar day; 0 disables.
	BYOKBypassesQuota bool `yaml:"byok-bypasses-quota"` // Callers with their own key skip quota.
}

// RedisConfig holds the optional shared counter store settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// OpenAIConfig holds upstream completion settings.
type OpenAIConfig struct {
	APIKey              string   `yaml:"api-key"`
	BaseURL             string   `yaml:"base-url"`
	AllowedModels       []string `yaml:"allowed-models"`
	MaxRawBytes         int      `yaml:"max-raw-bytes"`
	MaxCompletionTokens int      `yaml:"max-completion-tokens"`
}

// AdminConfig holds the operator account for the admin API. Empty values
// disable the admin surface.
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password-hash"` // bcrypt hash
}

// JWTConfig holds admin session token settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// DatabaseConfig holds the usage ledger connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// Config is the resolved application configuration.
type Config struct {
	Port        int             `yaml:"port"`
	CORSOrigins []string        `yaml:"cors-origins"`
	RateLimit   RateLimitConfig `yaml:"rate-limit"`
	Redis       RedisConfig     `yaml:"redis"`
	OpenAI      OpenAIConfig    `yaml:"openai"`
	Database    DatabaseConfig  `yaml:"database"`
	Admin       AdminConfig     `yaml:"admin"`
	JWT         JWTConfig       `yaml:"jwt"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the config file (when present), applies defaults, then applies
// environment overrides.
func Load(configPath string) (Config, error) {
	cfg := defaults()

	data, errRead := os.ReadFile(ResolveConfigPath(configPath))
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return Config{}, fmt.Errorf("config: read %s: %w", configPath, errRead)
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		Port: DefaultPort,
		RateLimit: RateLimitConfig{
			PerMinute:         DefaultRateLimitRPM,
			Daily:             DefaultFreeTierDaily,
			GlobalDaily:       DefaultGlobalDailyLimit,
			BYOKBypassesQuota: true,
		},
		Redis: RedisConfig{Prefix: DefaultRedisPrefix},
		OpenAI: OpenAIConfig{
			AllowedModels:       []string{DefaultModel},
			MaxRawBytes:         DefaultMaxRawBytes,
			MaxCompletionTokens: DefaultMaxCompletionTokens,
		},
		JWT: JWTConfig{Expiry: DefaultJWTExpiry},
	}
}

func applyEnv(cfg *Config) {
	if v, ok := envInt(EnvPort); ok {
		cfg.Port = v
	}
	if v, ok := envList(EnvCORSOrigin); ok {
		cfg.CORSOrigins = v
	}
	if v, ok := envInt(EnvRateLimitRPM); ok {
		cfg.RateLimit.PerMinute = v
	}
	if v, ok := envInt(EnvFreeTierDaily); ok {
		cfg.RateLimit.Daily = v
	}
	if v, ok := envInt(EnvGlobalDailyLimit); ok {
		cfg.RateLimit.GlobalDaily = v
	}
	if v, ok := envBool(EnvBYOKBypassesQuota); ok {
		cfg.RateLimit.BYOKBypassesQuota = v
	}
	if v, ok := envInt(EnvMaxRawBytes); ok {
		cfg.OpenAI.MaxRawBytes = v
	}
	if v, ok := envList(EnvAllowedModels); ok {
		cfg.OpenAI.AllowedModels = v
	}
	if v, ok := envInt(EnvMaxCompletionTokens); ok {
		cfg.OpenAI.MaxCompletionTokens = v
	}
	if v, ok := envString(EnvOpenAIAPIKey); ok {
		cfg.OpenAI.APIKey = v
	}
	if v, ok := envString(EnvOpenAIBaseURL); ok {
		cfg.OpenAI.BaseURL = v
	}
	if v, ok := envString(EnvDBConnection); ok {
		cfg.Database.DSN = v
	}
	if v, ok := envString(EnvRedisAddr); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := envString(EnvRedisPassword); ok {
		cfg.Redis.Password = v
	}
	if v, ok := envInt(EnvRedisDB); ok {
		cfg.Redis.DB = v
	}
	if v, ok := envString(EnvRedisPrefix); ok {
		cfg.Redis.Prefix = v
	}
	if v, ok := envString(EnvAdminUsername); ok {
		cfg.Admin.Username = v
	}
	if v, ok := envString(EnvAdminPasswordHash); ok {
		cfg.Admin.PasswordHash = v
	}
	if v, ok := envString(EnvJWTSecret); ok {
		cfg.JWT.Secret = v
	}
	if raw, ok := envString(EnvJWTExpiry); ok {
		if expiry, errParse := time.ParseDuration(raw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
}

func normalize(cfg *Config) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}
	if cfg.RateLimit.PerMinute < 0 {
		cfg.RateLimit.PerMinute = 0
	}
	if cfg.RateLimit.Daily < 0 {
		cfg.RateLimit.Daily = 0
	}
	if cfg.RateLimit.GlobalDaily < 0 {
		cfg.RateLimit.GlobalDaily = 0
	}
	if cfg.OpenAI.MaxRawBytes <= 0 {
		cfg.OpenAI.MaxRawBytes = DefaultMaxRawBytes
	}
	if cfg.OpenAI.MaxCompletionTokens <= 0 {
		cfg.OpenAI.MaxCompletionTokens = DefaultMaxCompletionTokens
	}
	models := make([]string, 0, len(cfg.OpenAI.AllowedModels))
	for _, model := range cfg.OpenAI.AllowedModels {
		if model = strings.TrimSpace(model); model != "" {
			models = append(models, model)
		}
	}
	if len(models) == 0 {
		models = []string{DefaultModel}
	}
	cfg.OpenAI.AllowedModels = models
	if cfg.Redis.DB < 0 {
		cfg.Redis.DB = 0
	}
	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = DefaultRedisPrefix
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = DefaultJWTExpiry
	}
}

// ModelAllowed reports whether model is on the allowlist.
func (c OpenAIConfig) ModelAllowed(model string) bool {
	for _, allowed := range c.AllowedModels {
		if allowed == model {
			return true
		}
	}
	return false
}

// DefaultModelName returns the first allowlist entry.
func (c OpenAIConfig) DefaultModelName() string {
	if len(c.AllowedModels) > 0 {
		return c.AllowedModels[0]
	}
	return DefaultModel
}

// AdminEnabled reports whether the admin API is configured.
func (c Config) AdminEnabled() bool {
	return strings.TrimSpace(c.Admin.Username) != "" &&
		strings.TrimSpace(c.Admin.PasswordHash) != "" &&
		strings.TrimSpace(c.JWT.Secret) != ""
}

func envString(name string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(name))
	return value, value != ""
}

func envInt(name string) (int, bool) {
	raw, ok := envString(name)
	if !ok {
		return 0, false
	}
	value, errParse := strconv.Atoi(raw)
	if errParse != nil {
		return 0, false
	}
	return value, true
}

func envBool(name string) (bool, bool) {
	raw, ok := envString(name)
	if !ok {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	}
	return false, false
}

func envList(name string) ([]string, bool) {
	raw, ok := envString(name)
	if !ok {
		return nil, false
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, len(out) > 0
}
