// Package config loads kubelogx settings. Values come from Default, then an
// optional YAML or JSON file, then KUBELOGX_* environment variables; the CLI
// binds flags over the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/kubelogx/kubelogx/internal/analysis"
	"github.com/kubelogx/kubelogx/internal/classifier"
	"github.com/kubelogx/kubelogx/internal/ringbuffer"
	"github.com/kubelogx/kubelogx/internal/stream"
	"github.com/kubelogx/kubelogx/internal/types"
	"github.com/kubelogx/kubelogx/internal/util"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KUBELOGX_"

// DefaultViewerCapacity is the client-side history size.
const DefaultViewerCapacity = 500

// Config is the full kubelogx configuration.
type Config struct {
	ListenAddr  string `json:"listenAddr"`
	Kubeconfig  string `json:"kubeconfig,omitempty"`
	KubeContext string `json:"kubeContext,omitempty"`
	LogLevel    string `json:"logLevel"`
	// LogFormat is "json" or "console".
	LogFormat string `json:"logFormat"`

	Stream     StreamConfig     `json:"stream"`
	Viewer     ViewerConfig     `json:"viewer"`
	Classifier ClassifierConfig `json:"classifier"`
	Analysis   AnalysisConfig   `json:"analysis"`
}

// StreamConfig tunes server-side sessions.
type StreamConfig struct {
	BufferCapacity int             `json:"bufferCapacity"`
	TailLines      int64           `json:"tailLines"`
	ConnectTimeout metav1.Duration `json:"connectTimeout"`
	WriteTimeout   metav1.Duration `json:"writeTimeout"`
	Heartbeat      metav1.Duration `json:"heartbeat"`
	Retry          RetryConfig     `json:"retry"`
}

// RetryConfig is the file form of stream.RetryPolicy.
type RetryConfig struct {
	MaxAttempts  int             `json:"maxAttempts"`
	InitialDelay metav1.Duration `json:"initialDelay"`
	MaxDelay     metav1.Duration `json:"maxDelay"`
	Factor       float64         `json:"factor"`
	Jitter       float64         `json:"jitter"`
	MaxElapsed   metav1.Duration `json:"maxElapsed"`
}

// ViewerConfig tunes the terminal viewer.
type ViewerConfig struct {
	ServerURL      string `json:"serverURL"`
	BufferCapacity int    `json:"bufferCapacity"`
}

// ClassifierConfig holds the ordered level rules.
type ClassifierConfig struct {
	Rules []classifier.Rule `json:"rules"`
}

// AnalysisConfig configures the summary collaborator.
type AnalysisConfig struct {
	Endpoint string          `json:"endpoint"`
	Model    string          `json:"model"`
	APIKey   string          `json:"apiKey,omitempty"`
	Timeout  metav1.Duration `json:"timeout"`
	Window   int             `json:"window"`
	MaxChars int             `json:"maxChars"`
}

// Default returns the built-in configuration.
func Default() Config {
	sd := stream.DefaultOptions()
	rp := sd.Retry
	ad := analysis.DefaultConfig()
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		LogFormat:  "json",
		Stream: StreamConfig{
			BufferCapacity: ringbuffer.DefaultCapacity,
			TailLines:      sd.TailLines,
			ConnectTimeout: metav1.Duration{Duration: sd.ConnectTimeout},
			WriteTimeout:   metav1.Duration{Duration: 10 * time.Second},
			Heartbeat:      metav1.Duration{Duration: 15 * time.Second},
			Retry: RetryConfig{
				MaxAttempts:  rp.MaxAttempts,
				InitialDelay: metav1.Duration{Duration: rp.InitialDelay},
				MaxDelay:     metav1.Duration{Duration: rp.MaxDelay},
				Factor:       rp.Factor,
				Jitter:       rp.Jitter,
				MaxElapsed:   metav1.Duration{Duration: rp.MaxElapsed},
			},
		},
		Viewer: ViewerConfig{
			ServerURL:      "http://localhost:8080",
			BufferCapacity: DefaultViewerCapacity,
		},
		Classifier: ClassifierConfig{Rules: classifier.DefaultRules()},
		Analysis: AnalysisConfig{
			Endpoint: ad.Endpoint,
			Model:    ad.Model,
			Timeout:  metav1.Duration{Duration: ad.Timeout},
			Window:   ad.Window,
			MaxChars: ad.MaxChars,
		},
	}
}

// Load reads path over Default. An empty path returns Default.
// Unknown fields are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays KUBELOGX_* variables. API_KEY is honoured as a fallback
// for KUBELOGX_API_KEY.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	var errs []string
	setInt := func(name string, dst *int) {
		if v, ok := env(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *metav1.Duration) {
		if v, ok := env(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, name, err))
				return
			}
			dst.Duration = d
		}
	}
	setString := func(name string, dst *string) {
		if v, ok := env(name); ok {
			*dst = v
		}
	}

	setString("LISTEN_ADDR", &c.ListenAddr)
	setString("KUBECONFIG", &c.Kubeconfig)
	setString("KUBE_CONTEXT", &c.KubeContext)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_FORMAT", &c.LogFormat)

	setInt("BUFFER_CAPACITY", &c.Stream.BufferCapacity)
	if v, ok := env("TAIL_LINES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sTAIL_LINES: %v", EnvPrefix, err))
		} else {
			c.Stream.TailLines = n
		}
	}
	setDuration("CONNECT_TIMEOUT", &c.Stream.ConnectTimeout)
	setDuration("WRITE_TIMEOUT", &c.Stream.WriteTimeout)
	setDuration("HEARTBEAT", &c.Stream.Heartbeat)
	setInt("RETRY_MAX_ATTEMPTS", &c.Stream.Retry.MaxAttempts)
	setDuration("RETRY_INITIAL_DELAY", &c.Stream.Retry.InitialDelay)
	setDuration("RETRY_MAX_DELAY", &c.Stream.Retry.MaxDelay)
	setDuration("RETRY_MAX_ELAPSED", &c.Stream.Retry.MaxElapsed)

	setString("SERVER_URL", &c.Viewer.ServerURL)
	setInt("VIEWER_CAPACITY", &c.Viewer.BufferCapacity)

	for _, lvl := range []types.Level{types.LevelError, types.LevelWarn, types.LevelDebug} {
		if v, ok := env("CLASSIFIER_" + string(lvl) + "_TOKENS"); ok {
			c.setRuleTokens(lvl, util.SplitCSV(v))
		}
	}

	setString("ANALYSIS_ENDPOINT", &c.Analysis.Endpoint)
	setString("ANALYSIS_MODEL", &c.Analysis.Model)
	setDuration("ANALYSIS_TIMEOUT", &c.Analysis.Timeout)
	setInt("ANALYSIS_WINDOW", &c.Analysis.Window)
	if v, ok := env("API_KEY"); ok {
		c.Analysis.APIKey = v
	} else if v, ok := lookup("API_KEY"); ok && c.Analysis.APIKey == "" {
		c.Analysis.APIKey = strings.TrimSpace(v)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// setRuleTokens replaces the tokens of the rule for lvl, appending a rule
// when none exists.
func (c *Config) setRuleTokens(lvl types.Level, tokens []string) {
	for i := range c.Classifier.Rules {
		if c.Classifier.Rules[i].Level == lvl {
			c.Classifier.Rules[i].Tokens = tokens
			return
		}
	}
	c.Classifier.Rules = append(c.Classifier.Rules, classifier.Rule{Level: lvl, Tokens: tokens})
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listenAddr is required")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("logFormat must be json or console, got %q", c.LogFormat)
	}
	if c.Stream.BufferCapacity <= 0 {
		return fmt.Errorf("stream.bufferCapacity must be > 0, got %d", c.Stream.BufferCapacity)
	}
	if c.Viewer.BufferCapacity <= 0 {
		return fmt.Errorf("viewer.bufferCapacity must be > 0, got %d", c.Viewer.BufferCapacity)
	}
	if c.Stream.TailLines < 0 {
		return fmt.Errorf("stream.tailLines must be >= 0, got %d", c.Stream.TailLines)
	}
	if c.Stream.ConnectTimeout.Duration <= 0 {
		return fmt.Errorf("stream.connectTimeout must be > 0")
	}
	if c.Stream.WriteTimeout.Duration < 0 || c.Stream.Heartbeat.Duration < 0 {
		return fmt.Errorf("stream timeouts must not be negative")
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("stream.retry: %w", err)
	}
	if err := classifier.ValidateRules(c.Classifier.Rules); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if c.Analysis.Window < 0 || c.Analysis.MaxChars < 0 {
		return fmt.Errorf("analysis window and maxChars must not be negative")
	}
	return nil
}

// RetryPolicy converts the retry settings.
func (c Config) RetryPolicy() stream.RetryPolicy {
	r := c.Stream.Retry
	return stream.RetryPolicy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay.Duration,
		MaxDelay:     r.MaxDelay.Duration,
		Factor:       r.Factor,
		Jitter:       r.Jitter,
		MaxElapsed:   r.MaxElapsed.Duration,
	}
}

// SessionOptions builds stream options for the server.
func (c Config) SessionOptions(logger *zap.Logger) stream.Options {
	return stream.Options{
		Capacity:       c.Stream.BufferCapacity,
		TailLines:      c.Stream.TailLines,
		ConnectTimeout: c.Stream.ConnectTimeout.Duration,
		Retry:          c.RetryPolicy(),
		Classifier:     classifier.New(c.Classifier.Rules),
		Logger:         logger,
	}
}

// AnalysisClientConfig converts the analysis settings.
func (c Config) AnalysisClientConfig() analysis.Config {
	return analysis.Config{
		Endpoint: c.Analysis.Endpoint,
		Model:    c.Analysis.Model,
		APIKey:   c.Analysis.APIKey,
		Timeout:  c.Analysis.Timeout.Duration,
		Window:   c.Analysis.Window,
		MaxChars: c.Analysis.MaxChars,
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Analysis.APIKey != "" {
		c.Analysis.APIKey = "REDACTED"
	}
	rules := make([]classifier.Rule, len(c.Classifier.Rules))
	copy(rules, c.Classifier.Rules)
	c.Classifier.Rules = rules
	return c
}
