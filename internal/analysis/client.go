package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kubelogx/kubelogx/internal/types"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-2.5-flash"
	DefaultTimeout  = 30 * time.Second
	DefaultWindow   = 50
	DefaultMaxChars = 10000

	apiVersion = "v1beta"
	userAgent  = "kubelogx/1.0"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("analysis is not configured")
	// ErrNoLogs is returned for an empty window.
	ErrNoLogs = errors.New("no logs provided")
)

// Analyzer produces a Result for a log window.
type Analyzer interface {
	Analyze(ctx context.Context, entries []types.LogEntry) (Result, error)
}

// Config configures a Client.
type Config struct {
	Endpoint string        `json:"endpoint"`
	Model    string        `json:"model"`
	APIKey   string        `json:"-"`
	Timeout  time.Duration `json:"timeout"`
	// Window is how many trailing entries are sent. Default: 50.
	Window int `json:"window"`
	// MaxChars bounds the formatted log text. Default: 10000.
	MaxChars int `json:"maxChars"`
}

// DefaultConfig returns the Gemini defaults without an API key.
func DefaultConfig() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		Model:    DefaultModel,
		Timeout:  DefaultTimeout,
		Window:   DefaultWindow,
		MaxChars: DefaultMaxChars,
	}
}

// Client calls the Gemini generateContent API.
type Client struct {
	genai  *genai.Client
	logger *zap.Logger
	cfg    Config
}

// NewClient validates cfg and builds a Client. A missing API key is not an
// error; Configured reports false and Analyze returns ErrNotConfigured.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = d.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.Window <= 0 {
		cfg.Window = d.Window
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = d.MaxChars
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid analysis endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("analysis endpoint must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("analysis endpoint must include a host")
	}

	c := &Client{logger: logger.Named("analysis"), cfg: cfg}
	if cfg.APIKey == "" {
		return c, nil
	}

	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/",
			APIVersion: apiVersion,
			Headers:    http.Header{"User-Agent": []string{userAgent}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

// Window returns the configured entry window.
func (c *Client) Window() int { return c.cfg.Window }

// Analyze sends the trailing window of entries for analysis.
func (c *Client) Analyze(ctx context.Context, entries []types.LogEntry) (Result, error) {
	if !c.Configured() {
		return Result{}, ErrNotConfigured
	}
	if len(entries) == 0 {
		return Result{}, ErrNoLogs
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res, err := c.generate(ctx, BuildPrompt(entries, c.cfg.Window, c.cfg.MaxChars))
	duration := time.Since(start).Seconds()
	if err != nil {
		analysisRequests.WithLabelValues("error").Inc()
		analysisDuration.WithLabelValues("error").Observe(duration)
		c.logger.Warn("Analysis failed", zap.Error(err), zap.Int("entries", len(entries)))
		return Result{}, err
	}
	analysisRequests.WithLabelValues("success").Inc()
	analysisDuration.WithLabelValues("success").Observe(duration)
	return res, nil
}

var resultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary":        {Type: genai.TypeString},
		"rootCause":      {Type: genai.TypeString},
		"suggestedFix":   {Type: genai.TypeString},
		"kubectlCommand": {Type: genai.TypeString},
	},
	Required: []string{"summary", "rootCause", "suggestedFix"},
}

func (c *Client) generate(ctx context.Context, prompt string) (Result, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   resultSchema,
	})
	if err != nil {
		return Result{}, fmt.Errorf("analysis request: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Result{}, errors.New("empty response from model")
	}

	var res Result
	if err := json.Unmarshal([]byte(stripFence(text)), &res); err != nil {
		return Result{}, fmt.Errorf("decode analysis: %w", err)
	}
	if res.Summary == "" {
		return Result{}, errors.New("analysis is missing a summary")
	}
	return res, nil
}

// stripFence removes a ```json fence some models wrap around JSON output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
