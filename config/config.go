// Package config loads the bot configuration from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for slim images

	"github.com/joho/godotenv"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Session drivers.
const (
	SessionDriverMemory = "memory"
	SessionDriverRedis  = "redis"
	SessionDriverBadger = "badger"
)

// Telegram update intake modes.
const (
	TelegramModePolling = "polling"
	TelegramModeWebhook = "webhook"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Telegram      TelegramConfig
	ProfileStore  ProfileStoreConfig
	Session       SessionConfig
	Redis         RedisConfig
	Database      DatabaseConfig
	HTTP          HTTPConfig
	Reference     ReferenceConfig
	Stickers      StickerConfig
	Features      *FeatureFlags
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Version     string

	// Timezone is used for times shown to admins (default: Europe/Moscow).
	Timezone string
	Location *time.Location

	ShutdownTimeout time.Duration

	// EmailRelayDomain backs the "Без почты" choice.
	EmailRelayDomain string
}

// TelegramConfig holds Telegram Bot settings.
type TelegramConfig struct {
	Token string

	// Mode is polling or webhook.
	Mode          string
	WebhookURL    string
	WebhookSecret string
	WebhookPath   string

	PollingTimeout time.Duration

	// Per-user rate limiting.
	UserRateLimit int // updates per minute
	UserBurst     int
	UserBanAfter  int
	UserBan       time.Duration

	Workers int

	AdminIDs []int64

	// NotifyRegistrations sends a note to admins for every new registration.
	NotifyRegistrations bool
}

// ProfileStoreConfig holds the remote profile store settings.
type ProfileStoreConfig struct {
	URL       string
	APIKey    string
	Timeout   time.Duration
	RateLimit int // requests per second
}

// SessionConfig selects and tunes the checkpoint store.
type SessionConfig struct {
	Driver string

	// TTL expires idle checkpoints. Zero keeps them forever (memory, badger).
	TTL time.Duration

	// Secret seals checkpoints at rest when set.
	Secret string

	BadgerPath       string
	BadgerGCInterval time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// DatabaseConfig holds the optional support ledger connection.
type DatabaseConfig struct {
	// URL enables the ledger when set. Pool size goes in the URL
	// (pool_max_conns).
	URL string
}

// HTTPConfig holds the keep-alive server settings.
type HTTPConfig struct {
	Port int
}

// ReferenceConfig points at the school/banned-words file; empty uses the
// embedded default.
type ReferenceConfig struct {
	File string
}

// StickerConfig holds Telegram sticker file ids. Empty ids are skipped.
type StickerConfig struct {
	Welcome string
	Sent    string
	Error   string
	Success string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// Load reads .env (if present) and the environment, then validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		App:           loadAppConfig(),
		Telegram:      loadTelegramConfig(),
		ProfileStore:  loadProfileStoreConfig(),
		Session:       loadSessionConfig(),
		Redis:         loadRedisConfig(),
		Database:      loadDatabaseConfig(),
		HTTP:          HTTPConfig{Port: getEnvInt("PORT", 8080)},
		Reference:     ReferenceConfig{File: getEnv("REFERENCE_FILE", "")},
		Stickers:      loadStickerConfig(),
		Features:      LoadFeatureFlags(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAppConfig() AppConfig {
	timezone := getEnv("APP_TIMEZONE", "Europe/Moscow")
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = nil
	}

	return AppConfig{
		Name:             getEnv("APP_NAME", "vuntgram-bot"),
		Environment:      Environment(getEnv("APP_ENV", string(EnvDevelopment))),
		Version:          getEnv("APP_VERSION", "0.1.0"),
		Timezone:         timezone,
		Location:         loc,
		ShutdownTimeout:  getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
		EmailRelayDomain: getEnv("EMAIL_RELAY_DOMAIN", ""),
	}
}

func loadTelegramConfig() TelegramConfig {
	return TelegramConfig{
		Token:               getEnv("TELEGRAM_BOT_TOKEN", ""),
		Mode:                strings.ToLower(getEnv("TELEGRAM_MODE", TelegramModePolling)),
		WebhookURL:          getEnv("TELEGRAM_WEBHOOK_URL", ""),
		WebhookSecret:       getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		WebhookPath:         getEnv("TELEGRAM_WEBHOOK_PATH", "/webhook"),
		PollingTimeout:      getEnvDuration("TELEGRAM_POLLING_TIMEOUT", 60*time.Second),
		UserRateLimit:       getEnvInt("TELEGRAM_USER_RATE_LIMIT", 30),
		UserBurst:           getEnvInt("TELEGRAM_USER_BURST", 8),
		UserBanAfter:        getEnvInt("TELEGRAM_USER_BAN_AFTER", 5),
		UserBan:             getEnvDuration("TELEGRAM_USER_BAN", 10*time.Minute),
		Workers:             getEnvInt("TELEGRAM_WORKERS", 16),
		AdminIDs:            getEnvInt64Slice("TELEGRAM_ADMIN_IDS", nil),
		NotifyRegistrations: getEnvBool("TELEGRAM_NOTIFY_REGISTRATIONS", false),
	}
}

func loadProfileStoreConfig() ProfileStoreConfig {
	return ProfileStoreConfig{
		URL:       getEnv("PROFILE_STORE_URL", ""),
		APIKey:    getEnv("PROFILE_STORE_API_KEY", ""),
		Timeout:   getEnvDuration("PROFILE_STORE_TIMEOUT", 10*time.Second),
		RateLimit: getEnvInt("PROFILE_STORE_RATE_LIMIT", 10),
	}
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		Driver:           strings.ToLower(getEnv("SESSION_DRIVER", SessionDriverMemory)),
		TTL:              getEnvDuration("SESSION_TTL", 0),
		Secret:           getEnv("SESSION_SECRET", ""),
		BadgerPath:       getEnv("BADGER_PATH", "./data/sessions"),
		BadgerGCInterval: getEnvDuration("BADGER_GC_INTERVAL", 10*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:      getEnv("REDIS_HOST", "localhost"),
		Port:      getEnvInt("REDIS_PORT", 6379),
		Password:  getEnv("REDIS_PASSWORD", ""),
		DB:        getEnvInt("REDIS_DB", 0),
		PoolSize:  getEnvInt("REDIS_POOL_SIZE", 10),
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", "vuntgram:"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{URL: getEnv("DATABASE_URL", "")}
}

func loadStickerConfig() StickerConfig {
	return StickerConfig{
		Welcome: getEnv("STICKER_WELCOME", ""),
		Sent:    getEnv("STICKER_SENT", ""),
		Error:   getEnv("STICKER_ERROR", ""),
		Success: getEnv("STICKER_SUCCESS", ""),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.Token == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.ProfileStore.URL == "" {
		errs = append(errs, "PROFILE_STORE_URL is required")
	}
	if c.App.Location == nil {
		errs = append(errs, fmt.Sprintf("APP_TIMEZONE %q is not a known time zone", c.App.Timezone))
	}

	switch c.Telegram.Mode {
	case TelegramModePolling:
	case TelegramModeWebhook:
		if c.Telegram.WebhookURL == "" {
			errs = append(errs, "TELEGRAM_WEBHOOK_URL is required in webhook mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("TELEGRAM_MODE must be polling or webhook, got %q", c.Telegram.Mode))
	}
	if c.Telegram.Workers <= 0 {
		errs = append(errs, "TELEGRAM_WORKERS must be positive")
	}

	switch c.Session.Driver {
	case SessionDriverMemory, SessionDriverRedis:
	case SessionDriverBadger:
		if c.Session.BadgerPath == "" {
			errs = append(errs, "BADGER_PATH is required for the badger session driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("SESSION_DRIVER must be memory, redis or badger, got %q", c.Session.Driver))
	}
	if c.Session.Secret != "" && len(c.Session.Secret) < 16 {
		errs = append(errs, "SESSION_SECRET must be at least 16 characters")
	}
	if c.IsProduction() && c.Session.Driver == SessionDriverMemory {
		errs = append(errs, "SESSION_DRIVER=memory loses dialogues on restart; use redis or badger in production")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, "PORT must be 1-65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvInt64Slice(key string, defaultVal []int64) []int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	parts := strings.Split(val, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		i, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		result = append(result, i)
	}
	return result
}
