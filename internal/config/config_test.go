package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/stopit/crypto"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendBbolt, cfg.Backend)
	assert.Equal(t, crypto.DefaultParams().Iterations, cfg.Iterations)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stopit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/stopit
backend: sqlite
session_ttl: 1h
logging:
  level: info
`), 0o600))

	cfg, err := load(path, envMap(map[string]string{
		"STOPIT_LOG_FORMAT": "json",
		"STOPIT_ITERATIONS": "200000",
	}))
	require.NoError(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--backend", "bbolt"}))
	require.NoError(t, cfg.ApplyFlags(fs))

	want := &Config{
		DataDir:    "/var/lib/stopit",
		Backend:    BackendBbolt,
		Iterations: 200000,
		SessionTTL: "1h",
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	ttl, err := cfg.GetSessionTTL()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)
	assert.Equal(t, filepath.Join("/var/lib/stopit", "stopit.db"), cfg.DatabasePath())
}

func TestLoad_BadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [oops"), 0o600))
	_, err := load(path, envMap(nil))
	require.Error(t, err)

	_, err = load("", envMap(map[string]string{"STOPIT_ITERATIONS": "many"}))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "redis" }},
		{"postgres without dsn", func(c *Config) { c.Backend = BackendPostgres }},
		{"few iterations", func(c *Config) { c.Iterations = 1000 }},
		{"bad ttl", func(c *Config) { c.SessionTTL = "soon" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty data dir", func(c *Config) { c.DataDir = " " }},
		{"unknown kdf profile", func(c *Config) { c.KDFProfile = "paranoid" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	cfg := Default()
	cfg.Backend = BackendMemory
	cfg.DataDir = ""
	require.NoError(t, cfg.Validate())
}

func TestParams_Profile(t *testing.T) {
	cfg := Default()
	assert.Equal(t, crypto.DefaultParams(), cfg.Params())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--kdf-profile", "sensitive"}))
	require.NoError(t, cfg.ApplyFlags(fs))
	require.NoError(t, cfg.Validate())

	want, err := crypto.ParamsProfile("sensitive")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.Params())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stopit.yaml")
	cfg := Default()
	cfg.Backend = BackendSQLite
	require.NoError(t, cfg.Save(path))

	got, err := load(path, envMap(nil))
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}
