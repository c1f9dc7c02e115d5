package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/analysis"
	"github.com/kubelogx/kubelogx/internal/delivery"
	"github.com/kubelogx/kubelogx/internal/types"
)

const (
	defaultRequestTimeout = 10 * time.Second
	userAgent             = "kubelogx-cli/v1"
)

// Client talks to a kubelogx server.
type Client struct {
	base           *url.URL
	httpClient     *http.Client
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewClient creates a Client for serverURL. Returns an error if the URL is invalid.
func NewClient(serverURL string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if serverURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server URL must include a host")
	}

	// No client-wide timeout: streams stay open. Unary calls are bounded per request.
	return &Client{
		base:           u,
		httpClient:     &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		requestTimeout: defaultRequestTimeout,
		logger:         logger.Named("client"),
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String()
}

// Namespaces lists the cluster namespaces.
func (c *Client) Namespaces(ctx context.Context) ([]types.NamespaceInfo, error) {
	var out []types.NamespaceInfo
	if err := c.getJSON(ctx, "/api/namespaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Pods lists pods in namespace, or across all namespaces when it is empty.
func (c *Client) Pods(ctx context.Context, namespace string) ([]types.PodInfo, error) {
	q := url.Values{}
	if namespace != "" {
		q.Set("namespace", namespace)
	}
	var out []types.PodInfo
	if err := c.getJSON(ctx, "/api/pods", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Analyze asks the server to summarise entries. A server that is not
// configured for analysis or whose upstream failed still returns its
// labelled placeholder result.
func (c *Client) Analyze(ctx context.Context, entries []types.LogEntry) (analysis.Result, error) {
	body, err := json.Marshal(struct {
		Logs []types.LogEntry `json:"logs"`
	}{Logs: entries})
	if err != nil {
		return analysis.Result{}, fmt.Errorf("marshal analyze request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout+analysis.DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/analyze", nil), bytes.NewReader(body))
	if err != nil {
		return analysis.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return analysis.Result{}, fmt.Errorf("POST /api/analyze: %w", err)
	}
	defer drainClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadGateway, http.StatusServiceUnavailable:
		var r analysis.Result
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return analysis.Result{}, fmt.Errorf("decode analysis: %w", err)
		}
		return r, nil
	default:
		return analysis.Result{}, responseError(resp)
	}
}

// Subscribe opens the live log stream for src. A negative tailLines leaves
// the server default in place; zero asks for no history.
func (c *Client) Subscribe(ctx context.Context, src types.SourceID, tailLines int64) (*Subscription, error) {
	q := url.Values{}
	q.Set("namespace", src.Namespace)
	q.Set("pod", src.Pod)
	if src.Container != "" {
		q.Set("container", src.Container)
	}
	if tailLines >= 0 {
		q.Set("tailLines", strconv.FormatInt(tailLines, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/logs/stream", q), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET /api/logs/stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer drainClose(resp.Body)
		return nil, responseError(resp)
	}

	c.logger.Debug("Subscribed", zap.String("source", src.String()))
	return &Subscription{body: resp.Body, dec: delivery.NewDecoder(resp.Body)}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, q), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// StatusError is a non-success reply from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	msg := string(bytes.TrimSpace(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	_ = body.Close()
}

// Subscription is an open SSE stream.
type Subscription struct {
	body io.ReadCloser
	dec  *delivery.Decoder
}

// Next returns the next frame of the stream.
func (s *Subscription) Next() (delivery.Frame, error) {
	return s.dec.Next()
}

// Close releases the connection. The server observes a disconnect.
func (s *Subscription) Close() error {
	err := s.body.Close()
	if errors.Is(err, http.ErrBodyReadAfterClose) {
		return nil
	}
	return err
}
