package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for brain-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8710"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Curation pipeline tuning
	Curation CurationConfig `yaml:"curation"`

	// Query engine tuning
	Query QueryConfig `yaml:"query"`

	// Optional LLM answer phrasing
	LLM LLMConfig `yaml:"llm"`

	// Seed knowledge loaded on first startup
	SeedPath string `yaml:"seed_path" env:"SEED_PATH" env-default:"seed.yaml"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// DevIdentity is the email assumed for unauthenticated requests when
	// verification is disabled. Ignored when EnableVerification is true.
	DevIdentity string `yaml:"dev_identity" env:"AUTH_DEV_IDENTITY" env-default:"dev@localhost"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"brain"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"brain_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// CurationConfig holds tuning knobs for extraction, conflict detection and
// the staging queue.
type CurationConfig struct {
	// RetentionHours is how long a pending contribution survives before the
	// expiry sweep marks it expired.
	RetentionHours int `yaml:"retention_hours" env:"CURATION_RETENTION_HOURS" env-default:"168"`

	// DuplicateThreshold is the minimum token overlap for a claim to count
	// as a duplicate of an already-pending claim.
	DuplicateThreshold float64 `yaml:"duplicate_threshold" env:"CURATION_DUPLICATE_THRESHOLD" env-default:"0.8"`

	// RecencyWindowHours is how recently an entry must have changed for a
	// conflicting claim to receive the recency confidence bump.
	RecencyWindowHours int `yaml:"recency_window_hours" env:"CURATION_RECENCY_WINDOW_HOURS" env-default:"24"`

	// MaxInputLength caps the raw text of a single contribution.
	MaxInputLength int `yaml:"max_input_length" env:"CURATION_MAX_INPUT_LENGTH" env-default:"8192"`
}

// QueryConfig holds tuning knobs for the query engine.
type QueryConfig struct {
	// MinScore is the minimum lexical coverage for an entry to be
	// considered relevant. Below this the engine refuses to answer.
	MinScore float64 `yaml:"min_score" env:"QUERY_MIN_SCORE" env-default:"0.2"`

	// MaxResults caps how many entries feed a single answer.
	MaxResults int `yaml:"max_results" env:"QUERY_MAX_RESULTS" env-default:"5"`
}

// LLMConfig holds optional LLM phrasing configuration. When disabled the
// query engine answers from templates only.
type LLMConfig struct {
	// EnablePhrasing turns on LLM rewording of template answers.
	EnablePhrasing bool `yaml:"enable_phrasing" env:"LLM_ENABLE_PHRASING" env-default:"false"`

	// Provider selects the client implementation: "anthropic" or "openai".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`

	Model   string `yaml:"model" env:"LLM_MODEL" env-default:""`
	BaseURL string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	APIKey  string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, LLM_API_KEY) must come from environment variables
// (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.EnableVerification && len(c.Auth.JWKSEndpoints) == 0 {
		return fmt.Errorf("auth verification enabled but no JWKS endpoints configured")
	}
	if c.Curation.DuplicateThreshold < 0 || c.Curation.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate_threshold must be in [0,1], got %f", c.Curation.DuplicateThreshold)
	}
	if c.Query.MinScore < 0 || c.Query.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0,1], got %f", c.Query.MinScore)
	}
	if c.LLM.EnablePhrasing && c.LLM.Provider != "anthropic" && c.LLM.Provider != "openai" {
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
