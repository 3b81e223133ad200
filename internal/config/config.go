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
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Agent    AgentConfig
	Tools    ToolsConfig
	Otel     OtelConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	HeartbeatInterval  time.Duration
	DefaultTenant      string
	MaxQueryLength     int
}

type DatabaseConfig struct {
	Connection      string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ContextCacheTTL time.Duration // cached knowledge base summary
}

// BackendConfig describes one entry of a provider fallback chain.
type BackendConfig struct {
	Type    string // "ollama" or "openai" (any OpenAI-compatible server, e.g. LiteLLM)
	BaseURL string
	APIKey  string
	Model   string
}

func (b BackendConfig) Enabled() bool {
	return b.Type != "" && b.BaseURL != ""
}

type AIConfig struct {
	LLMPrimary         BackendConfig
	LLMSecondary       BackendConfig
	EmbeddingPrimary   BackendConfig
	EmbeddingSecondary BackendConfig
	EmbeddingDimension int

	MaxRetries       int
	RetryBaseDelay   time.Duration
	GenerateTimeout  time.Duration // whole generate or plan stage
	QuickCallTimeout time.Duration
	LLMCallTimeout   time.Duration // one attempt against one backend

	TopK         int
	FastModeTopK int
	Temperature  float64
}

type AgentConfig struct {
	Mode    string // "local" or "remote"
	BaseURL string
}

type ToolsConfig struct {
	APIBase string
	Timeout time.Duration
}

type OtelConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			HeartbeatInterval:  getEnvAsDuration("WS_HEARTBEAT_INTERVAL", 60*time.Second),
			DefaultTenant:      getEnv("DEFAULT_TENANT_ID", "demo"),
			MaxQueryLength:     getEnvAsInt("MAX_QUERY_LENGTH", 4000),
		},
		Database: DatabaseConfig{
			Connection:      getEnv("DB_CONNECTION_STRING", ""),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ContextCacheTTL: getEnvAsDuration("DB_CONTEXT_CACHE_TTL", 5*time.Minute),
		},
		Ai: AIConfig{
			LLMPrimary: BackendConfig{
				Type:    getEnv("LLM_PRIMARY_PROVIDER", "openai"),
				BaseURL: getEnv("LITELLM_BASE_URL", "http://localhost:4000/v1"),
				APIKey:  getEnv("LITELLM_API_KEY", ""),
				Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
			},
			LLMSecondary: BackendConfig{
				Type:    getEnv("LLM_SECONDARY_PROVIDER", "openai"),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			},
			EmbeddingPrimary: BackendConfig{
				Type:    getEnv("EMBEDDING_PRIMARY_PROVIDER", "ollama"),
				BaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   getEnv("OLLAMA_EMBEDDING_MODEL", "mxbai-embed-large"),
			},
			EmbeddingSecondary: BackendConfig{
				Type:    getEnv("EMBEDDING_SECONDARY_PROVIDER", ""),
				BaseURL: getEnv("EMBEDDING_SECONDARY_URL", ""),
				APIKey:  getEnv("EMBEDDING_SECONDARY_API_KEY", ""),
				Model:   getEnv("EMBEDDING_SECONDARY_MODEL", "text-embedding-3-small"),
			},
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1024),
			MaxRetries:         getEnvAsInt("LLM_MAX_RETRIES", 2),
			RetryBaseDelay:     getEnvAsDuration("LLM_RETRY_BASE_DELAY", time.Second),
			GenerateTimeout:    getEnvAsDuration("LLM_GENERATE_TIMEOUT", 60*time.Second),
			QuickCallTimeout:   getEnvAsDuration("QUICK_CALL_TIMEOUT", 10*time.Second),
			LLMCallTimeout:     getEnvAsDuration("LLM_CALL_TIMEOUT", 20*time.Second),
			TopK:               getEnvAsInt("RETRIEVAL_TOP_K", 8),
			FastModeTopK:       getEnvAsInt("RETRIEVAL_FAST_TOP_K", 5),
			Temperature:        getEnvAsFloat("LLM_TEMPERATURE", 0.2),
		},
		Agent: AgentConfig{
			Mode:    getEnv("AGENT_MODE", "local"),
			BaseURL: getEnv("AGENT_BASE_URL", "http://localhost:9010"),
		},
		Tools: ToolsConfig{
			APIBase: strings.TrimRight(getEnv("API_BASE", "http://localhost:8787"), "/"),
			Timeout: getEnvAsDuration("TOOLS_TIMEOUT", 10*time.Second),
		},
		Otel: OtelConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

// AttemptTimeout bounds one LLM call against one backend. It is capped at
// half the stage deadline so a hanging primary leaves room for a fallback.
func (a AIConfig) AttemptTimeout() time.Duration {
	limit := a.GenerateTimeout / 2
	if a.LLMCallTimeout <= 0 || (limit > 0 && a.LLMCallTimeout > limit) {
		return limit
	}
	return a.LLMCallTimeout
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
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
