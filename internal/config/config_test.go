package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubelogx/kubelogx/internal/classifier"
	"github.com/kubelogx/kubelogx/internal/types"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kubelogx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 1000, cfg.Stream.BufferCapacity)
	assert.Equal(t, 500, cfg.Viewer.BufferCapacity)
	assert.Equal(t, int64(100), cfg.Stream.TailLines)
	assert.Equal(t, 10*time.Second, cfg.Stream.ConnectTimeout.Duration)
	assert.Equal(t, 3, cfg.Stream.Retry.MaxAttempts)
	assert.Equal(t, 50, cfg.Analysis.Window)
	assert.Equal(t, classifier.DefaultRules(), cfg.Classifier.Rules)
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, `
listenAddr: ":9090"
logFormat: console
stream:
  bufferCapacity: 200
  connectTimeout: 3s
  retry:
    maxAttempts: 5
    initialDelay: 250ms
classifier:
  rules:
  - level: ERROR
    tokens: [boom]
  - level: WARN
    tokens: [meh]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 200, cfg.Stream.BufferCapacity)
	assert.Equal(t, 3*time.Second, cfg.Stream.ConnectTimeout.Duration)
	assert.Equal(t, 5, cfg.Stream.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.Retry.InitialDelay.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Stream.Retry.MaxDelay.Duration)
	assert.Equal(t, int64(100), cfg.Stream.TailLines)
	require.Len(t, cfg.Classifier.Rules, 2)
	assert.Equal(t, types.LevelWarn, cfg.Classifier.Rules[1].Level)

	c := classifier.New(cfg.Classifier.Rules)
	assert.Equal(t, types.LevelError, c.Classify("kaBOOM"))
	assert.Equal(t, types.LevelInfo, c.Classify("ERROR without the custom token"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "listenAdress: typo\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "stream:\n  connectTimeout: soon\n"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"KUBELOGX_LISTEN_ADDR":             ":7000",
		"KUBELOGX_LOG_LEVEL":               "debug",
		"KUBELOGX_BUFFER_CAPACITY":         "64",
		"KUBELOGX_TAIL_LINES":              "10",
		"KUBELOGX_CONNECT_TIMEOUT":         "2s",
		"KUBELOGX_RETRY_MAX_ATTEMPTS":      "7",
		"KUBELOGX_VIEWER_CAPACITY":         "250",
		"KUBELOGX_SERVER_URL":              "http://kubelogx:8080",
		"KUBELOGX_CLASSIFIER_ERROR_TOKENS": "oops, kaput",
		"KUBELOGX_ANALYSIS_MODEL":          "gemini-pro",
		"KUBELOGX_ANALYSIS_TIMEOUT":        "5s",
		"API_KEY":                          "fallback-key",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 64, cfg.Stream.BufferCapacity)
	assert.Equal(t, int64(10), cfg.Stream.TailLines)
	assert.Equal(t, 2*time.Second, cfg.Stream.ConnectTimeout.Duration)
	assert.Equal(t, 7, cfg.Stream.Retry.MaxAttempts)
	assert.Equal(t, 250, cfg.Viewer.BufferCapacity)
	assert.Equal(t, "http://kubelogx:8080", cfg.Viewer.ServerURL)
	assert.Equal(t, []string{"oops", "kaput"}, cfg.Classifier.Rules[0].Tokens)
	assert.Equal(t, "gemini-pro", cfg.Analysis.Model)
	assert.Equal(t, 5*time.Second, cfg.Analysis.Timeout.Duration)
	assert.Equal(t, "fallback-key", cfg.Analysis.APIKey)
}

func TestApplyEnv_PrefixedKeyWins(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"API_KEY":          "plain",
		"KUBELOGX_API_KEY": "prefixed",
	})))
	assert.Equal(t, "prefixed", cfg.Analysis.APIKey)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"KUBELOGX_BUFFER_CAPACITY": "lots",
		"KUBELOGX_CONNECT_TIMEOUT": "10",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KUBELOGX_BUFFER_CAPACITY")
	assert.Contains(t, err.Error(), "KUBELOGX_CONNECT_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no listen address", func(c *Config) { c.ListenAddr = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"zero buffer", func(c *Config) { c.Stream.BufferCapacity = 0 }},
		{"negative viewer buffer", func(c *Config) { c.Viewer.BufferCapacity = -1 }},
		{"negative tail lines", func(c *Config) { c.Stream.TailLines = -5 }},
		{"zero connect timeout", func(c *Config) { c.Stream.ConnectTimeout.Duration = 0 }},
		{"negative retries", func(c *Config) { c.Stream.Retry.MaxAttempts = -1 }},
		{"empty rules", func(c *Config) { c.Classifier.Rules = nil }},
		{"bad rule level", func(c *Config) { c.Classifier.Rules[0].Level = "LOUD" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Stream.BufferCapacity = 42
	cfg.Analysis.APIKey = "k"

	opts := cfg.SessionOptions(nil)
	assert.Equal(t, 42, opts.Capacity)
	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
	assert.Equal(t, 3, opts.Retry.MaxAttempts)
	require.NotNil(t, opts.Classifier)
	assert.Equal(t, types.LevelError, opts.Classifier.Classify("Connection refused to database:5432"))

	ac := cfg.AnalysisClientConfig()
	assert.Equal(t, "k", ac.APIKey)
	assert.Equal(t, 50, ac.Window)

	red := cfg.Redacted()
	assert.Equal(t, "REDACTED", red.Analysis.APIKey)
	assert.Equal(t, "k", cfg.Analysis.APIKey)
}
