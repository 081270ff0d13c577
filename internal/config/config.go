// Package config provides environment configuration for the HR bot.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Database settings
	DatabaseDriver string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnMaxLife  time.Duration

	// Bitrix24 settings
	BitrixWebhookURL    string
	BitrixBaseURL       string
	BitrixAccessToken   string
	BitrixRelayTimeout  time.Duration
	BitrixResponsibleID string
	WebhookToken        string

	// LLM settings
	LLMProvider       string
	LLMModel          string
	LLMTimeout        time.Duration
	LLMTemperature    float64
	LLMMaxTokens      int
	YandexAPIKey      string
	YandexFolderID    string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	AnthropicAPIKey   string
	ForbiddenKeywords []string

	// Knowledge base
	CategoriesFile string
	SeedDefaults   bool

	// NATS settings
	NATSURL      string
	NATSToken    string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DedupeTTL     time.Duration

	// JWT settings
	JWTSecret string

	// Rate limiting
	RateLimitRequests   int
	RateLimitWindow     time.Duration
	WebhookRateRequests int
	CORSAllowedOrigins  []string

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "5000"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),

		// Database
		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", "./data/hrbot.db"),
		DBMaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLife:  getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		// Bitrix24
		BitrixWebhookURL:    getEnv("BITRIX_WEBHOOK_URL", ""),
		BitrixBaseURL:       getEnv("BITRIX_BASE_URL", ""),
		BitrixAccessToken:   getEnv("BITRIX_ACCESS_TOKEN", ""),
		BitrixRelayTimeout:  getDurationEnv("BITRIX_TIMEOUT", 10*time.Second),
		BitrixResponsibleID: getEnv("BITRIX_HR_RESPONSIBLE_ID", ""),
		WebhookToken:        getEnv("WEBHOOK_TOKEN", ""),

		// LLM
		LLMProvider:       getEnv("LLM_PROVIDER", "yandex"),
		LLMModel:          getEnv("LLM_MODEL", ""),
		LLMTimeout:        getDurationEnv("LLM_TIMEOUT", 30*time.Second),
		LLMTemperature:    getFloatEnv("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:      getIntEnv("LLM_MAX_TOKENS", 2000),
		YandexAPIKey:      getEnv("YANDEX_GPT_API_KEY", ""),
		YandexFolderID:    getEnv("YANDEX_FOLDER_ID", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		ForbiddenKeywords: getListEnv("FORBIDDEN_KEYWORDS", nil),

		// Knowledge base
		CategoriesFile: getEnv("CATEGORIES_FILE", ""),
		SeedDefaults:   getBoolEnv("SEED_DEFAULT_ARTICLES", true),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		DedupeTTL:     getDurationEnv("DEDUPE_TTL", 10*time.Minute),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Rate limiting
		RateLimitRequests:   getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:     getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		WebhookRateRequests: getIntEnv("WEBHOOK_RATE_LIMIT", 600),
		CORSAllowedOrigins:  getListEnv("CORS_ALLOWED_ORIGINS", nil),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv parses a comma-separated value, dropping empty items.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
