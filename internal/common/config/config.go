// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Camunda      CamundaConfig      `mapstructure:"camunda"`
	Database     DatabaseConfig     `mapstructure:"database"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	ValueService ValueServiceConfig `mapstructure:"value_service"`
	Values       ValuesConfig       `mapstructure:"values"`
	Resolution   ResolutionConfig   `mapstructure:"resolution"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address for the API server.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OpenAIConfig holds settings for the intent extraction collaborator.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

// ValueServiceConfig holds settings for the reporting-service distinct values API.
type ValueServiceConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	SessionCookie string `mapstructure:"session_cookie"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
	MaxRetries    int    `mapstructure:"max_retries"`
	MaxValues     int    `mapstructure:"max_values"`
}

// ValuesConfig selects the fetch backend per filter source type.
// Valid backends: "api", "postgres", "elasticsearch".
type ValuesConfig struct {
	LensBackend       string `mapstructure:"lens_backend"`
	DimensionsBackend string `mapstructure:"dimensions_backend"`
	CacheTTL          int    `mapstructure:"cache_ttl"` // milliseconds
	ElasticsearchIndex string `mapstructure:"elasticsearch_index"`
}

// ResolutionConfig holds the matcher and orchestrator tuning knobs.
type ResolutionConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxSuggestions      int     `mapstructure:"max_suggestions"`
	SmallValueSetLimit  int     `mapstructure:"small_value_set_limit"`
}

// ConversationConfig holds conversation state store settings.
// Backend is "memory" or "redis".
type ConversationConfig struct {
	Backend         string `mapstructure:"backend"`
	IdleTimeout     int    `mapstructure:"idle_timeout"`     // milliseconds
	CleanupInterval int    `mapstructure:"cleanup_interval"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
