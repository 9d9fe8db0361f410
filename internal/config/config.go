// ABOUTME: Configuration loading and parsing for attache-server
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete attache-server configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	RelyingParty RelyingPartyConfig `yaml:"relying_party"`
	Auth         AuthConfig         `yaml:"auth"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RelyingPartyConfig identifies this service to authenticators.
// ID is the relying party identifier (a registrable domain suffix of the
// origins), Name is what authenticator UIs display, and Origins lists the
// web origins allowed to complete ceremonies.
type RelyingPartyConfig struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Origins []string `yaml:"origins"`
}

// AuthConfig holds session token and ceremony configuration
type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	TokenLifetime      time.Duration `yaml:"-"`
	ChallengeTTL       time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TokenLifetimeRaw string `yaml:"token_lifetime"`
	ChallengeTTLRaw  string `yaml:"challenge_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied by Load when the config file omits a value.
const (
	DefaultHTTPAddr      = "localhost:8080"
	DefaultRPName        = "attaché"
	DefaultTokenLifetime = 168 * time.Hour // 7 days
	DefaultChallengeTTL  = 5 * time.Minute
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the config file may omit
func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.RelyingParty.Name == "" {
		cfg.RelyingParty.Name = DefaultRPName
	}
	if cfg.Auth.TokenLifetimeRaw == "" {
		cfg.Auth.TokenLifetime = DefaultTokenLifetime
	}
	if cfg.Auth.ChallengeTTLRaw == "" {
		cfg.Auth.ChallengeTTL = DefaultChallengeTTL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.RelyingParty.ID == "" {
		return fmt.Errorf("relying_party.id is required")
	}

	if len(c.RelyingParty.Origins) == 0 {
		return fmt.Errorf("relying_party.origins must list at least one origin")
	}

	if c.Auth.TokenLifetime <= 0 {
		return fmt.Errorf("auth.token_lifetime must be positive")
	}

	if c.Auth.ChallengeTTL <= 0 {
		return fmt.Errorf("auth.challenge_ttl must be positive")
	}

	if c.Auth.RateLimitPerMinute < 0 {
		return fmt.Errorf("auth.rate_limit_per_minute cannot be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenLifetimeRaw != "" {
		cfg.Auth.TokenLifetime, err = time.ParseDuration(cfg.Auth.TokenLifetimeRaw)
		if err != nil {
			return fmt.Errorf("parsing token_lifetime %q: %w", cfg.Auth.TokenLifetimeRaw, err)
		}
	}

	if cfg.Auth.ChallengeTTLRaw != "" {
		cfg.Auth.ChallengeTTL, err = time.ParseDuration(cfg.Auth.ChallengeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing challenge_ttl %q: %w", cfg.Auth.ChallengeTTLRaw, err)
		}
	}

	return nil
}
