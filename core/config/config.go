package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     string
	OTel     OTelConfig
	Fetch    FetchConfig
	OpenAI   OpenAIConfig
	Store    StoreConfig
	Pipeline PipelineConfig
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// FetchConfig points at the remote render-capable page-fetch service.
type FetchConfig struct {
	BaseURL string
	APIKey  string
	Country string
	Timeout time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// StoreConfig selects the job registry backing. An empty RedisURL keeps the
// default in-memory, process-lifetime store.
type StoreConfig struct {
	RedisURL string
	JobTTL   time.Duration
}

type PipelineConfig struct {
	ItemDelay     time.Duration
	FallbackDelay time.Duration
	DefaultLimit  int
}

// Load reads configuration from environment variables. In development a
// local .env file is loaded first if present.
func Load() (Config, error) {
	if getEnv("HARVESTER_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("HARVESTER_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "harvester"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Fetch: FetchConfig{
			BaseURL: getEnv("FETCH_API_URL", "https://app.scrapingbee.com/api/v1/"),
			APIKey:  getEnv("FETCH_API_KEY", ""),
			Country: getEnv("FETCH_COUNTRY", "us"),
			Timeout: time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Store: StoreConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			JobTTL:   time.Duration(getEnvInt("JOB_TTL_HOURS", 24)) * time.Hour,
		},
		Pipeline: PipelineConfig{
			ItemDelay:     time.Duration(getEnvInt("PIPELINE_ITEM_DELAY_MS", 1000)) * time.Millisecond,
			FallbackDelay: time.Duration(getEnvInt("PIPELINE_FALLBACK_DELAY_MS", 500)) * time.Millisecond,
			DefaultLimit:  getEnvInt("PIPELINE_DEFAULT_LIMIT", 10),
		},
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c FetchConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c StoreConfig) RedisEnabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
