// Package config defines the orchestrator's declarative configuration
// (spec §9's ambient stack): YAML on disk, validated against a reflected
// JSON Schema, following the teacher's internal/config/{config,schema}.go
// split.
package config

import "time"

// Config is the top-level process configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	LLM         LLMConfig         `yaml:"llm"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Session     SessionConfig     `yaml:"session"`
	EntityCache EntityCacheConfig `yaml:"entity_cache"`
	Providers   ProvidersConfig   `yaml:"providers"`
}

// ServerConfig configures the process's listening surface.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// LoggingConfig configures the log/slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "text" | "json"
}

// LLMConfig selects and configures the LLM collaborator (spec §6.2).
type LLMConfig struct {
	// Provider selects which configured provider backs the collaborator
	// contract: "anthropic" or "openai".
	Provider  string            `yaml:"provider"`
	Anthropic AnthropicLLMConfig `yaml:"anthropic"`
	OpenAI    OpenAILLMConfig    `yaml:"openai"`
}

type AnthropicLLMConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url,omitempty"`
	DefaultModel string `yaml:"default_model,omitempty"`
}

type OpenAILLMConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url,omitempty"`
	DefaultModel string `yaml:"default_model,omitempty"`
}

// CatalogConfig points at the declarative tool-definition document (spec
// §4.2) and the provider-key alias equivalence groups the User Tool Filter
// uses (spec §4.3).
type CatalogConfig struct {
	ToolDefinitionsPath string              `yaml:"tool_definitions_path"`
	ProviderAliasGroups map[string][]string `yaml:"provider_alias_groups,omitempty"`
}

// SessionConfig selects the session/history persistence backend (spec
// §6.4).
type SessionConfig struct {
	Backend  string         `yaml:"backend"` // "memory" | "postgres"
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// EntityCacheConfig selects the TTL key-value backend for the entity and
// dedup cache and warmup state (spec §4.4, §4.1). The session->user reverse
// index is not kept in this backend.
type EntityCacheConfig struct {
	Backend string      `yaml:"backend"` // "memory" | "redis"
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// ProvidersConfig holds the static, single-tenant connection credentials
// for the mail/calendar/CRM adapters used by local runs and the dev
// resolver (spec §2 DOMAIN STACK); a multi-tenant deployment replaces
// these resolvers with one backed by its own connection store.
type ProvidersConfig struct {
	Mail     MailProviderConfig     `yaml:"mail"`
	Calendar CalendarProviderConfig `yaml:"calendar"`
}

type MailProviderConfig struct {
	IMAPAddr string `yaml:"imap_addr"`
	SMTPAddr string `yaml:"smtp_addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type CalendarProviderConfig struct {
	BaseURL      string `yaml:"base_url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CalendarPath string `yaml:"calendar_path"`
}

// Default returns a Config with the same safe-for-local-runs defaults the
// teacher ships (in-memory stores, text logging, anthropic provider).
func Default() Config {
	return Config{
		Server:  ServerConfig{Host: "0.0.0.0", HTTPPort: 8080, MetricsPort: 9090},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		LLM:     LLMConfig{Provider: "anthropic"},
		Catalog: CatalogConfig{ToolDefinitionsPath: "config/tools.yaml"},
		Session: SessionConfig{Backend: "memory"},
		EntityCache: EntityCacheConfig{Backend: "memory"},
	}
}
