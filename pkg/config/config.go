package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Load merges a YAML file over
// Default(), so files only state what they change.
type Config struct {
	Listen          string `yaml:"listen" validate:"required,hostname_port"`
	DataDir         string `yaml:"data_dir" validate:"required"`
	BootstrapSecret string `yaml:"bootstrap_secret" validate:"required"`

	// Standalone runs without an external provisioner: claims are tracked
	// in memory and sagas advance without cluster readiness.
	Standalone bool `yaml:"standalone"`

	// PolicyFile overlays the compiled-in candidate pool and tiers.
	PolicyFile string `yaml:"policy_file"`
	// ProductsDir overlays the built-in product catalog.
	ProductsDir string `yaml:"products_dir"`

	Store StoreConfig `yaml:"store"`
	TLS   TLSConfig   `yaml:"tls"`
	Auth  AuthConfig  `yaml:"auth"`
	Raft  RaftConfig  `yaml:"raft"`
	Saga  SagaConfig  `yaml:"saga"`
	Log   LogConfig   `yaml:"log"`
}

// StoreConfig selects the state store backend.
type StoreConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=bolt postgres"`
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
}

// TLSConfig controls the optional HTTPS listener.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`
	// CertDir holds the CA pair; empty means <data_dir>/certs.
	CertDir string `yaml:"cert_dir"`
}

// AuthConfig controls bearer-token auth on the admin routes.
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RaftConfig controls the HA store replication.
type RaftConfig struct {
	Enabled   bool     `yaml:"enabled"`
	NodeID    string   `yaml:"node_id" validate:"required_if=Enabled true"`
	BindAddr  string   `yaml:"bind_addr" validate:"required_if=Enabled true"`
	Bootstrap bool     `yaml:"bootstrap"`
	Peers     []string `yaml:"peers"`
}

// SagaConfig bounds the saga executor's retry loops.
type SagaConfig struct {
	ApplyAttempts     int `yaml:"apply_attempts" validate:"min=1"`
	ReadyAttempts     int `yaml:"ready_attempts" validate:"min=1"`
	ReadyDelaySeconds int `yaml:"ready_delay_seconds" validate:"min=0"`
}

// ReadyDelay returns the wait_ready poll interval.
func (s SagaConfig) ReadyDelay() time.Duration {
	return time.Duration(s.ReadyDelaySeconds) * time.Second
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// Default returns the development configuration: bolt store under
// ./strata-data, plain HTTP on localhost, no raft.
func Default() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		DataDir:         "./strata-data",
		BootstrapSecret: "strata-dev",
		Store: StoreConfig{
			Backend: "bolt",
		},
		Raft: RaftConfig{
			BindAddr: "127.0.0.1:7946",
		},
		Saga: SagaConfig{
			ApplyAttempts:     2,
			ReadyAttempts:     5,
			ReadyDelaySeconds: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML configuration file, merges it over the defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse merges YAML bytes over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := mergo.Merge(&cfg, *Default()); err != nil {
		return nil, fmt.Errorf("merge config defaults: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize derives dependent paths left empty by the file.
func (c *Config) normalize() {
	if c.TLS.CertDir == "" {
		c.TLS.CertDir = filepath.Join(c.DataDir, "certs")
	}
	if c.Raft.NodeID == "" && c.Raft.Enabled {
		host, err := os.Hostname()
		if err == nil {
			c.Raft.NodeID = host
		}
	}
}

// Validate checks the configuration's structural constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config: field %s fails '%s'", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
