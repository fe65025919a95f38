package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/llm-council-router/internal/council"
)

// Config represents the complete application configuration
type Config struct {
	Server           ServerConfig
	Database         *DatabaseConfig // Optional: when nil, audit entries are only logged.
	Providers        ProvidersConfig
	Council          CouncilConfig
	Classifier       ClassifierConfig
	SLM              SLMConfig
	Audit            AuditConfig
	Auth             AuthConfig
	Observability    ObservabilityConfig
	RoutingTablePath string
	Environment      string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Google    ProviderConfig
	Ollama    ProviderConfig
}

// ProviderConfig holds the connection settings of one LLM provider
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// CouncilConfig selects and tunes the council used for routing
type CouncilConfig struct {
	Strategy        string
	DefaultModel    string // Overrides the routing table default when set
	Selectors       []string
	Weights         map[string]float64
	Threshold       float64
	Seed            uint64
	SelectorTimeout time.Duration
}

// ClassifierConfig holds the zero-shot classification endpoint settings
type ClassifierConfig struct {
	APIKey  string
	URL     string
	Timeout time.Duration
}

// SLMConfig holds the small local model used as a selector
type SLMConfig struct {
	Model   string
	BaseURL string
	Timeout time.Duration
}

// AuditConfig sizes the asynchronous audit pipeline
type AuditConfig struct {
	BufferSize    int
	WorkerCount   int
	RedactPrompts bool
}

// AuthConfig holds bearer token settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	ollamaURL := getEnv("OLLAMA_BASE_URL", "http://localhost:11434")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 110*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				APIKey:     getEnv("OPENAI_API_KEY", ""),
				BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout:    getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("OPENAI_MAX_RETRIES", 3),
			},
			Anthropic: ProviderConfig{
				APIKey:     getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL:    getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Timeout:    getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("ANTHROPIC_MAX_RETRIES", 3),
			},
			Google: ProviderConfig{
				APIKey:     getEnv("GEMINI_API_KEY", ""),
				BaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
				Timeout:    getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("GEMINI_MAX_RETRIES", 3),
			},
			Ollama: ProviderConfig{
				BaseURL:    ollamaURL,
				Timeout:    getEnvAsDuration("OLLAMA_TIMEOUT", 120*time.Second),
				MaxRetries: getEnvAsInt("OLLAMA_MAX_RETRIES", 1),
			},
		},
		Council: CouncilConfig{
			Strategy:        getEnv("COUNCIL_STRATEGY", string(council.StrategyMajority)),
			DefaultModel:    getEnv("COUNCIL_DEFAULT_MODEL", ""),
			Selectors:       getEnvAsList("COUNCIL_SELECTORS", []string{"heuristics", "length"}),
			Weights:         getEnvAsWeights("COUNCIL_WEIGHTS"),
			Threshold:       getEnvAsFloat("COUNCIL_THRESHOLD", council.DefaultCascadeThreshold),
			Seed:            uint64(getEnvAsInt("COUNCIL_SEED", 0)),
			SelectorTimeout: getEnvAsDuration("SELECTOR_TIMEOUT", council.DefaultSelectorTimeout),
		},
		Classifier: ClassifierConfig{
			APIKey:  getEnv("HF_API_KEY", ""),
			URL:     getEnv("HF_API_URL", "https://api-inference.huggingface.co/models/facebook/bart-large-mnli"),
			Timeout: getEnvAsDuration("HF_TIMEOUT", 30*time.Second),
		},
		SLM: SLMConfig{
			Model:   getEnv("SLM_MODEL", "gemma2:2b"),
			BaseURL: ollamaURL,
			Timeout: getEnvAsDuration("SLM_TIMEOUT", 30*time.Second),
		},
		Audit: AuditConfig{
			BufferSize:    getEnvAsInt("AUDIT_BUFFER_SIZE", 10000),
			WorkerCount:   getEnvAsInt("AUDIT_WORKERS", 5),
			RedactPrompts: getEnvAsBool("AUDIT_REDACT_PROMPTS", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
		RoutingTablePath: getEnv("ROUTING_TABLE_PATH", ""),
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if _, err := council.ParseStrategy(c.Council.Strategy); err != nil {
		return err
	}
	if !council.ValidThreshold(c.Council.Threshold) {
		return fmt.Errorf("council threshold must be in (0, 1], got %v", c.Council.Threshold)
	}
	if len(c.Council.Selectors) == 0 {
		return fmt.Errorf("at least one selector must be configured")
	}
	for name, w := range c.Council.Weights {
		if !council.ValidWeight(w) {
			return fmt.Errorf("selector weight %s=%v must be finite and not negative", name, w)
		}
	}

	if c.Audit.BufferSize <= 0 || c.Audit.WorkerCount <= 0 {
		return fmt.Errorf("audit buffer size and worker count must be positive")
	}

	// Tokens must be verifiable in production
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither is set.
func loadDatabaseConfig() *DatabaseConfig {
	pool := func(d *DatabaseConfig) *DatabaseConfig {
		d.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", 10)
		d.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", 2)
		d.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
		return d
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		return pool(&DatabaseConfig{ConnectionString: dbURL})
	}
	if getEnv("DB_HOST", "") == "" {
		return nil
	}
	return pool(&DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "router"),
		Password: getEnv("DB_PASSWORD", ""),
		Database: getEnv("DB_NAME", "router_audit"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	})
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvAsWeights parses "name=1.5,other=0.5". Malformed pairs are skipped.
func getEnvAsWeights(key string) map[string]float64 {
	weights := map[string]float64{}
	for _, pair := range getEnvAsList(key, nil) {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}
		weights[strings.TrimSpace(name)] = w
	}
	return weights
}
