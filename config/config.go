// Package config defines the crewkit application configuration.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/crewkit/crewkit/failover"
	"github.com/crewkit/crewkit/routing"
)

// Config is the top-level crewkit configuration.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Routing  RoutingConfig  `json:"routing" yaml:"routing"`
	Failover FailoverConfig `json:"failover" yaml:"failover"`
	DataDir  string         `json:"data_dir" yaml:"data_dir" env:"CREWKIT_DATA_DIR"`
	LogLevel string         `json:"log_level" yaml:"log_level" env:"CREWKIT_LOG_LEVEL"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" env:"CREWKIT_ADDR"` // listen address, e.g. ":8420"
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret" env:"CREWKIT_JWT_SECRET"`
	AdminUser string `json:"admin_user" yaml:"admin_user" env:"CREWKIT_ADMIN_USER"`
	AdminPass string `json:"admin_pass" yaml:"admin_pass" env:"CREWKIT_ADMIN_PASS"` // bcrypt hash
}

// RoutingConfig holds the rule tables for the routing engine. Empty
// lists fall back to the built-in tables.
type RoutingConfig struct {
	Skills           []routing.SkillRule   `json:"skills,omitempty" yaml:"skills"`
	Keywords         []routing.KeywordRule `json:"keywords,omitempty" yaml:"keywords"`
	Default          *routing.Selection    `json:"default,omitempty" yaml:"default"`
	Gateway          *routing.Selection    `json:"gateway,omitempty" yaml:"gateway"`
	AvgTokensPerTask int                   `json:"avg_tokens_per_task,omitempty" yaml:"avg_tokens_per_task" env:"CREWKIT_AVG_TOKENS"`
}

// FailoverConfig holds the static fallback table and live priority list.
// Empty values fall back to the built-ins.
type FailoverConfig struct {
	Table    failover.Table `json:"table,omitempty" yaml:"table"`
	Priority []string       `json:"priority,omitempty" yaml:"priority"`
}

// DefaultConfig returns a config with sensible defaults and the built-in
// routing and failover tables.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8420"},
		Auth:     AuthConfig{AdminUser: "admin"},
		Routing:  RoutingConfig{AvgTokensPerTask: routing.DefaultAvgTokensPerTask},
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads a YAML config file, applies environment overrides, and
// returns the parsed configuration. A missing file is not an error when
// allowMissing is true; defaults (plus env) are used instead.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && allowMissing:
		// fall through to env overrides
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, nil
}

// Engine builds a routing engine from the configured rule tables,
// substituting built-ins for any empty section.
func (c *Config) Engine() *routing.Engine {
	e := routing.NewEngine()
	if len(c.Routing.Skills) > 0 {
		e.Skills = c.Routing.Skills
	}
	if len(c.Routing.Keywords) > 0 {
		e.Keywords = c.Routing.Keywords
	}
	if c.Routing.Default != nil {
		e.Default = *c.Routing.Default
	}
	if c.Routing.Gateway != nil {
		e.Gateway = *c.Routing.Gateway
	}
	return e
}

// Coordinator builds a failover coordinator from the configured table
// and priority list, substituting built-ins for any empty section.
func (c *Config) Coordinator(engine *routing.Engine) *failover.Coordinator {
	coord := failover.New(engine)
	if len(c.Failover.Table) > 0 {
		coord.Table = c.Failover.Table
	}
	if len(c.Failover.Priority) > 0 {
		coord.Priority = c.Failover.Priority
	}
	return coord
}
