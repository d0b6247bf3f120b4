package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Session   SessionConfig
	Challenge ChallengeConfig
	Telegram  TelegramConfig
	MinIO     MinIOConfig
}

type ServerConfig struct {
	Port string
}

type DBConfig struct {
	Path string
}

type SessionConfig struct {
	CookieName      string
	TTL             time.Duration
	CookieSecure    bool
	CleanupInterval time.Duration
}

type ChallengeConfig struct {
	TTL         time.Duration
	MaxAttempts int
	CodeDigits  int
}

// TelegramMode selects the single active ingestion channel. Polling and
// webhook delivery share one update counter, so only one runs at a time.
type TelegramMode string

const (
	TelegramModePoll    TelegramMode = "poll"
	TelegramModeWebhook TelegramMode = "webhook"
)

type TelegramConfig struct {
	BotToken      string
	Mode          TelegramMode
	PollInterval  time.Duration
	PollTimeout   int
	WebhookSecret string
	MaxQuantity   int
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		DB: DBConfig{
			Path: getEnv("DB_PATH", "data/greendelivery.db"),
		},
		Session: SessionConfig{
			CookieName:      getEnv("SESSION_COOKIE_NAME", "gd_session"),
			TTL:             time.Duration(getEnvAsInt("SESSION_TTL_HOURS", 12)) * time.Hour,
			CookieSecure:    getEnvAsBool("SESSION_COOKIE_SECURE", false),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Challenge: ChallengeConfig{
			TTL:         time.Duration(getEnvAsInt("LOGIN_CHALLENGE_TTL_MINUTES", 5)) * time.Minute,
			MaxAttempts: getEnvAsInt("LOGIN_CHALLENGE_MAX_ATTEMPTS", 5),
			CodeDigits:  getEnvAsInt("LOGIN_CHALLENGE_CODE_DIGITS", 6),
		},
		Telegram: TelegramConfig{
			BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			Mode:          loadTelegramMode(),
			PollInterval:  getEnvAsDuration("TELEGRAM_POLL_INTERVAL", 3*time.Second),
			PollTimeout:   getEnvAsInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 20),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
			MaxQuantity:   getEnvAsInt("ORDER_MAX_QUANTITY", 999),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "greendelivery"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "greendelivery_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "product-images"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
	}
}

func loadTelegramMode() TelegramMode {
	if getEnv("TELEGRAM_MODE", "poll") == string(TelegramModeWebhook) {
		return TelegramModeWebhook
	}
	return TelegramModePoll
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
