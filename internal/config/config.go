// Package config loads stopit settings from defaults, a YAML file, STOPIT_*
// environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/jmcleod/stopit/crypto"
)

// Storage backends.
const (
	BackendBbolt    = "bbolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STOPIT_"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full set of settings.
type Config struct {
	DataDir    string        `yaml:"data_dir"`
	Backend    string        `yaml:"backend"`
	DSN        string        `yaml:"dsn"`
	Iterations int           `yaml:"iterations"`
	KDFProfile string        `yaml:"kdf_profile,omitempty"` // interactive, moderate, sensitive; overrides iterations
	SessionTTL string        `yaml:"session_ttl"`
	Logging    LoggingConfig `yaml:"logging"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DataDir:    defaultDataDir(),
		Backend:    BackendBbolt,
		Iterations: crypto.DefaultParams().Iterations,
		SessionTTL: "24h",
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "stopit")
	}
	return "./data"
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("DATA_DIR", &c.DataDir)
	str("BACKEND", &c.Backend)
	str("DSN", &c.DSN)
	str("SESSION_TTL", &c.SessionTTL)
	str("KDF_PROFILE", &c.KDFProfile)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	if v, ok := lookup(EnvPrefix + "ITERATIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sITERATIONS: %v", ErrInvalid, EnvPrefix, err)
		}
		c.Iterations = n
	}
	return nil
}

// Save writes c as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Flag names shared by BindFlags and ApplyFlags.
const (
	FlagDataDir    = "data-dir"
	FlagBackend    = "backend"
	FlagDSN        = "dsn"
	FlagLogLevel   = "log-level"
	FlagLogFormat  = "log-format"
	FlagIterations = "iterations"
	FlagKDFProfile = "kdf-profile"
)

// BindFlags declares the override flags on fs. Defaults are left empty so
// only flags the user sets take effect.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(FlagDataDir, "", "Directory for persistent data")
	fs.String(FlagBackend, "", "Storage backend: bbolt, sqlite, postgres or memory")
	fs.String(FlagDSN, "", "PostgreSQL connection string")
	fs.String(FlagLogLevel, "", "Log level: debug, info, warn or error")
	fs.String(FlagLogFormat, "", "Log format: text or json")
	fs.Int(FlagIterations, 0, "PBKDF2 iterations for new accounts")
	fs.String(FlagKDFProfile, "", "Key derivation profile: interactive, moderate or sensitive")
}

// ApplyFlags copies every flag the user changed into c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	str := func(name string, dst *string) error {
		if !fs.Changed(name) {
			return nil
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	for name, dst := range map[string]*string{
		FlagDataDir:    &c.DataDir,
		FlagBackend:    &c.Backend,
		FlagDSN:        &c.DSN,
		FlagLogLevel:   &c.Logging.Level,
		FlagLogFormat:  &c.Logging.Format,
		FlagKDFProfile: &c.KDFProfile,
	} {
		if err := str(name, dst); err != nil {
			return err
		}
	}
	if fs.Changed(FlagIterations) {
		n, err := fs.GetInt(FlagIterations)
		if err != nil {
			return err
		}
		c.Iterations = n
	}
	return nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendBbolt, BackendSQLite, BackendMemory:
		if c.Backend != BackendMemory && strings.TrimSpace(c.DataDir) == "" {
			errs = append(errs, errors.New("data_dir is required"))
		}
	case BackendPostgres:
		if c.DSN == "" {
			errs = append(errs, errors.New("dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.KDFProfile != "" {
		if _, err := crypto.ParamsProfile(c.KDFProfile); err != nil {
			errs = append(errs, err)
		}
	} else if err := crypto.ValidateParams(c.Params()); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GetSessionTTL(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// GetSessionTTL parses SessionTTL. Zero disables expiry.
func (c *Config) GetSessionTTL() (time.Duration, error) {
	if c.SessionTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("session_ttl: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("session_ttl must not be negative")
	}
	return d, nil
}

// Params returns the key derivation parameters for new accounts. A valid
// KDFProfile wins over Iterations.
func (c *Config) Params() crypto.Params {
	if c.KDFProfile != "" {
		if p, err := crypto.ParamsProfile(c.KDFProfile); err == nil {
			return p
		}
	}
	p := crypto.DefaultParams()
	p.Iterations = c.Iterations
	return p
}

// DatabasePath is the store file for file-backed backends.
func (c *Config) DatabasePath() string {
	if c.Backend == BackendSQLite {
		return filepath.Join(c.DataDir, "stopit.sqlite")
	}
	return filepath.Join(c.DataDir, "stopit.db")
}
