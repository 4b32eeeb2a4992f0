// Package config loads server settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// DatabaseConfig locates the Postgres database. ConnStr wins over the individual fields.
type DatabaseConfig struct {
	ConnStr  string `yaml:"conn_str"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN returns the connection string for lib/pq
func (d DatabaseConfig) DSN() string {
	if d.ConnStr != "" {
		return d.ConnStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// Config holds every server setting
type Config struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"` // Empty disables the HTTP API
	APIToken string `yaml:"api_token"`

	Owner   string `yaml:"owner_address"`
	Oracle  string `yaml:"oracle_address"`
	Custody string `yaml:"custody_address"`

	Store      string         `yaml:"store"`
	Database   DatabaseConfig `yaml:"database"`
	JournalDir string         `yaml:"journal_dir"` // Empty keeps the journal in memory

	LogMode        string `yaml:"log_mode"`
	DemoSeed       bool   `yaml:"demo_seed"`
	EmbeddedOracle bool   `yaml:"embedded_oracle"`
}

// Default returns the settings used when nothing overrides them
func Default() *Config {
	return &Config{
		GRPCAddr: ":8080",
		HTTPAddr: ":8081",
		APIToken: "dev-token",
		Custody:  "0xbundlemarket",
		Store:    StoreMemory,
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "bundlemarket",
		},
		LogMode: "development",
	}
}

// Load reads the YAML file at path over the defaults, then applies the environment.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config file %q: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"GRPC_ADDR", &c.GRPCAddr},
		{"HTTP_ADDR", &c.HTTPAddr},
		{"API_TOKEN", &c.APIToken},
		{"OWNER_ADDRESS", &c.Owner},
		{"ORACLE_ADDRESS", &c.Oracle},
		{"CUSTODY_ADDRESS", &c.Custody},
		{"STORE", &c.Store},
		{"DB_CONN_STR", &c.Database.ConnStr},
		{"DB_HOST", &c.Database.Host},
		{"DB_PORT", &c.Database.Port},
		{"DB_USER", &c.Database.User},
		{"DB_PASSWORD", &c.Database.Password},
		{"DB_NAME", &c.Database.Name},
		{"JOURNAL_DIR", &c.JournalDir},
		{"LOG_MODE", &c.LogMode},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok {
			*s.dst = v
		}
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"DEMO_SEED", &c.DemoSeed},
		{"EMBEDDED_ORACLE", &c.EmbeddedOracle},
	}
	for _, b := range bools {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", b.name, v, err)
		}
		*b.dst = parsed
	}
	return nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Owner) == "" {
		errs = append(errs, errors.New("owner address is required"))
	}
	if strings.TrimSpace(c.Custody) == "" {
		errs = append(errs, errors.New("custody address is required"))
	}
	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	switch c.Store {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.EmbeddedOracle && strings.TrimSpace(c.Oracle) == "" {
		errs = append(errs, errors.New("embedded oracle needs an oracle address"))
	}
	return errors.Join(errs...)
}
