package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
	Analytics AnalyticsConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	SocketLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	Provider        string // "ollama", "openai" or "gemini"
	Model           string // e.g. "llama3", "gpt-4o-mini", "gemini-2.5-flash"
	ClassifierModel string // Model used for topic-shift checks, defaults to Model
	OllamaBaseURL   string
	OpenAIBaseURL   string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	Timeout         time.Duration
}

// BaseURL and APIKey resolve the settings for the selected provider.
func (l LLMConfig) BaseURL() string {
	switch l.Provider {
	case "openai", "huggingface":
		return l.OpenAIBaseURL
	case "gemini":
		return ""
	default:
		return l.OllamaBaseURL
	}
}

func (l LLMConfig) APIKey() string {
	switch l.Provider {
	case "openai", "huggingface":
		return l.OpenAIAPIKey
	case "gemini":
		return l.GeminiAPIKey
	default:
		return ""
	}
}

type RateLimitConfig struct {
	Max     int
	Window  time.Duration
	Backend string // "memory" or "redis"
}

type AnalyticsConfig struct {
	Topic string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	llmModel := getEnv("LLM_MODEL", "llama3")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.json"),
			SocketLogFilePath:  getEnv("SOCKET_LOG_FILE_PATH", "workspace.log.json"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", "ollama")),
			Model:           llmModel,
			ClassifierModel: getEnv("LLM_CLASSIFIER_MODEL", llmModel),
			OllamaBaseURL:   getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			GeminiAPIKey:    getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 2*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Max:     getEnvAsInt("RATE_LIMIT_MAX", 20),
			Window:  getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			Backend: getEnv("RATE_LIMIT_BACKEND", "memory"),
		},
		Analytics: AnalyticsConfig{
			Topic: getEnv("ANALYTICS_TOPIC", "ANONYMOUS_MINDMAP"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "promptmap-api"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
