// Package config loads the project configuration from sqlport.yaml with
// SQLPORT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full project configuration.
type Config struct {
	General      GeneralConfig      `mapstructure:"general"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Verification VerificationConfig `mapstructure:"verification"`
	LLM          LLMConfig          `mapstructure:"llm"`
}

// GeneralConfig holds project-wide settings.
type GeneralConfig struct {
	ProjectName  string `mapstructure:"project_name"`
	MetadataPath string `mapstructure:"metadata_path"`
	ExportDir    string `mapstructure:"export_dir"`
	MaxRetries   int    `mapstructure:"max_retries"`
	Workers      int    `mapstructure:"workers"`
}

// DatabaseConfig names the two endpoints of a port.
type DatabaseConfig struct {
	Source EndpointConfig `mapstructure:"source"`
	Target EndpointConfig `mapstructure:"target"`
}

// EndpointConfig describes one database endpoint. Type is the SQL dialect;
// Driver selects the Go driver for the target ("pgx" or "postgres").
type EndpointConfig struct {
	Type               string `mapstructure:"type"`
	URI                string `mapstructure:"uri"`
	Driver             string `mapstructure:"driver"`
	StatementTimeoutMS int    `mapstructure:"statement_timeout_ms"`
}

// VerificationConfig is the statement safety policy.
type VerificationConfig struct {
	AllowDangerousStatements bool `mapstructure:"allow_dangerous_statements"`
	AllowProcedureExecution  bool `mapstructure:"allow_procedure_execution"`
}

// LLMConfig points at the model server.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

// Load reads the configuration file at path. An empty path searches for
// sqlport.yaml in the working directory. Environment variables with the
// SQLPORT_ prefix override file values, with dots mapped to underscores
// (SQLPORT_GENERAL_MAX_RETRIES overrides general.max_retries).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("general.project_name", "default")
	v.SetDefault("general.metadata_path", "sqlport_meta.db")
	v.SetDefault("general.export_dir", "output")
	v.SetDefault("general.max_retries", 3)
	v.SetDefault("general.workers", 1)
	v.SetDefault("database.source.type", "oracle")
	v.SetDefault("database.target.type", "postgres")
	v.SetDefault("database.target.driver", "pgx")
	v.SetDefault("database.target.statement_timeout_ms", 5000)
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "qwen2.5-coder:14b")
	v.SetDefault("llm.temperature", 0.1)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sqlport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SQLPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing default config file is fine; an explicit path must exist.
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the workflow cannot run with.
func (c *Config) Validate() error {
	if c.General.MaxRetries < 1 {
		return fmt.Errorf("general.max_retries must be at least 1, got %d", c.General.MaxRetries)
	}
	if c.General.Workers < 1 {
		return fmt.Errorf("general.workers must be at least 1, got %d", c.General.Workers)
	}
	switch c.Database.Target.Driver {
	case "", "pgx", "postgres":
	default:
		return fmt.Errorf("database.target.driver must be pgx or postgres, got %q", c.Database.Target.Driver)
	}
	if c.Database.Target.StatementTimeoutMS < 0 {
		return fmt.Errorf("database.target.statement_timeout_ms must not be negative")
	}
	return nil
}
