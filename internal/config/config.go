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

// Provider names, also used as keys in stored query results
const (
	ProviderChatGPT    = "chatgpt"
	ProviderPerplexity = "perplexity"
	ProviderGoogle     = "google"
	ProviderGemini     = "gemini"
	ProviderAzure      = "azure-openai"
)

// Config represents the application configuration
type Config struct {
	LogLevel      string           `yaml:"log_level"`
	NoSQLDatabase DatabaseConfig   `yaml:"nosql_database"` // MongoDB for brands, history and analytics
	SQLDatabase   DatabaseConfig   `yaml:"sql_database"`   // SQLite for the credit ledger
	Redis         RedisConfig      `yaml:"redis"`
	Server        ServerConfig     `yaml:"server"`
	Providers     ProvidersConfig  `yaml:"providers"`
	Processing    ProcessingConfig `yaml:"processing"`
	Credits       CreditsConfig    `yaml:"credits"`
	Scheduler     SchedulerConfig  `yaml:"scheduler"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Provider string            `yaml:"provider"` // sqlite, mongodb, memory
	URI      string            `yaml:"uri"`
	Database string            `yaml:"database"`
	Options  map[string]string `yaml:"options,omitempty"`
}

// RedisConfig points at the Redis instance holding cancellation flags. An
// empty address keeps the flags in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin,omitempty"`
	JWTSecret  string `yaml:"jwt_secret,omitempty"`
	JWTIssuer  string `yaml:"jwt_issuer,omitempty"`
}

// ProviderConfig configures one provider adapter
type ProviderConfig struct {
	Enabled           bool    `yaml:"enabled"`
	APIKey            string  `yaml:"api_key,omitempty"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	Model             string  `yaml:"model,omitempty"`
	APIVersion        string  `yaml:"api_version,omitempty"`
	Zone              string  `yaml:"zone,omitempty"`
	MaxTokens         int     `yaml:"max_tokens,omitempty"`
	RequestsPerMinute float64 `yaml:"requests_per_minute,omitempty"`
	TimeoutSeconds    int     `yaml:"timeout_seconds,omitempty"`
	MaxAttempts       int     `yaml:"max_attempts,omitempty"`
	RetryDelaySeconds int     `yaml:"retry_delay_seconds,omitempty"`
}

// Configured reports whether the adapter is enabled and has its credentials
func (p ProviderConfig) Configured() bool {
	return p.Enabled && p.APIKey != ""
}

// Timeout returns the per-attempt timeout
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RetryDelay returns the fixed delay between attempts
func (p ProviderConfig) RetryDelay() time.Duration {
	if p.RetryDelaySeconds < 0 {
		return 0
	}
	if p.RetryDelaySeconds == 0 {
		return 2 * time.Second
	}
	return time.Duration(p.RetryDelaySeconds) * time.Second
}

// Attempts returns the bounded attempt count
func (p ProviderConfig) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

// ProvidersConfig holds one entry per supported provider
type ProvidersConfig struct {
	ChatGPT    ProviderConfig `yaml:"chatgpt"`
	Perplexity ProviderConfig `yaml:"perplexity"`
	Google     ProviderConfig `yaml:"google"` // Google AI Overview through the BrightData SERP API
	Gemini     ProviderConfig `yaml:"gemini"`
	Azure      ProviderConfig `yaml:"azure_openai"`
}

// ProcessingConfig holds limits for processing sessions and stored history
type ProcessingConfig struct {
	QueryDelayMs          int `yaml:"query_delay_ms"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	HistoryCap            int `yaml:"history_cap"`
	MaxResponseChars      int `yaml:"max_response_chars"`
}

// QueryDelay returns the pause between two queries of a session
func (p ProcessingConfig) QueryDelay() time.Duration {
	if p.QueryDelayMs < 0 {
		return 0
	}
	return time.Duration(p.QueryDelayMs) * time.Millisecond
}

// RequestTimeout returns the deadline for one fanned-out request
func (p ProcessingConfig) RequestTimeout() time.Duration {
	if p.RequestTimeoutSeconds <= 0 {
		return 3 * time.Minute
	}
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

// CreditsConfig configures the per-user credit ledger
type CreditsConfig struct {
	Enabled      bool    `yaml:"enabled"`
	PerQuery     float64 `yaml:"per_query"`
	InitialGrant float64 `yaml:"initial_grant"`
}

// SchedulerConfig configures cron-driven brand processing
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "INFO",
		NoSQLDatabase: DatabaseConfig{
			Provider: "mongodb",
			URI:      "mongodb://localhost:27017",
			Database: "brandlens",
		},
		SQLDatabase: DatabaseConfig{
			Provider: "sqlite",
			URI:      "~/.brandlens/credits.db",
			Database: "brandlens",
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      "8989",
			JWTIssuer: "brandlens",
		},
		Providers: ProvidersConfig{
			ChatGPT:    ProviderConfig{Enabled: true, Model: "gpt-4o-search-preview", MaxTokens: 2000, RequestsPerMinute: 60},
			Perplexity: ProviderConfig{Enabled: true, Model: "sonar", MaxTokens: 2000, RequestsPerMinute: 50},
			Google:     ProviderConfig{Enabled: true, Zone: "serp_api1", RequestsPerMinute: 30, TimeoutSeconds: 90},
			Gemini:     ProviderConfig{Enabled: true, Model: "gemini-2.0-flash", MaxTokens: 2000, RequestsPerMinute: 60},
			Azure:      ProviderConfig{Enabled: true, APIVersion: "2024-12-01-preview", MaxTokens: 2000, RequestsPerMinute: 60},
		},
		Processing: ProcessingConfig{
			QueryDelayMs:          2000,
			RequestTimeoutSeconds: 180,
			HistoryCap:            50,
			MaxResponseChars:      5000,
		},
		Credits: CreditsConfig{
			Enabled:      true,
			PerQuery:     1,
			InitialGrant: 25,
		},
	}
}

// Load loads configuration from file and applies environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyEnv(os.LookupEnv)
	return config, nil
}

// Save saves configuration to file. Credentials read from the environment are
// not written back.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment values on top of the file configuration
func (c *Config) ApplyEnv(lookup LookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("BRANDLENS_LOG_LEVEL", &c.LogLevel)
	str("MONGODB_URI", &c.NoSQLDatabase.URI)
	str("MONGODB_DATABASE", &c.NoSQLDatabase.Database)
	str("BRANDLENS_CREDITS_DB", &c.SQLDatabase.URI)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("BRANDLENS_JWT_SECRET", &c.Server.JWTSecret)
	str("BRANDLENS_CORS_ORIGIN", &c.Server.CORSOrigin)

	str("OPENAI_API_KEY", &c.Providers.ChatGPT.APIKey)
	str("OPENAI_SEARCH_MODEL", &c.Providers.ChatGPT.Model)
	str("PERPLEXITY_API_KEY", &c.Providers.Perplexity.APIKey)
	str("BRIGHTDATA_API_KEY", &c.Providers.Google.APIKey)
	str("BRIGHTDATA_SERP_ZONE", &c.Providers.Google.Zone)
	str("GEMINI_API_KEY", &c.Providers.Gemini.APIKey)
	str("AZURE_OPENAI_API_KEY", &c.Providers.Azure.APIKey)
	str("AZURE_OPENAI_ENDPOINT", &c.Providers.Azure.BaseURL)
	str("AZURE_OPENAI_DEPLOYMENT", &c.Providers.Azure.Model)
	str("AZURE_OPENAI_API_VERSION", &c.Providers.Azure.APIVersion)

	if v, ok := lookup("BRANDLENS_QUERY_DELAY_MS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Processing.QueryDelayMs = n
		}
	}
	if v, ok := lookup("BRANDLENS_HISTORY_CAP"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Processing.HistoryCap = n
		}
	}
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if envPath := os.Getenv("BRANDLENS_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".brandlens/config.yaml"
	}
	return filepath.Join(home, ".brandlens", "config.yaml")
}

// Exists checks if config file exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
