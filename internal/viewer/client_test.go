package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/analysis"
	"github.com/kubelogx/kubelogx/internal/api"
	"github.com/kubelogx/kubelogx/internal/stream"
	"github.com/kubelogx/kubelogx/internal/testutil"
	"github.com/kubelogx/kubelogx/internal/types"
)

type staticDirectory struct{}

func (staticDirectory) ListNamespaces(context.Context) ([]types.NamespaceInfo, error) {
	return []types.NamespaceInfo{{Name: "default", Status: "Active"}}, nil
}

func (staticDirectory) ListPods(_ context.Context, ns string) ([]types.PodInfo, error) {
	return []types.PodInfo{{ID: "uid-1", Name: "web", Namespace: "default", Status: "Running", Age: "2h"}}, nil
}

func newServer(t *testing.T, source *testutil.ScriptedSource) *httptest.Server {
	t.Helper()
	opts := stream.DefaultOptions()
	opts.Retry = stream.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond}
	m := stream.NewManager(source, opts)
	srv := httptest.NewServer(api.NewServer(staticDirectory{}, m, nil, api.ServerOptions{}).Handler())
	t.Cleanup(func() {
		m.Shutdown()
		srv.Close()
	})
	return srv
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://host", "http://", "://bad"} {
		_, err := NewClient(u, nil)
		assert.Error(t, err, u)
	}
}

func TestClient_Directory(t *testing.T) {
	srv := newServer(t, testutil.NewScriptedSource())
	c, err := NewClient(srv.URL, zap.NewNop())
	require.NoError(t, err)

	ns, err := c.Namespaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.NamespaceInfo{{Name: "default", Status: "Active"}}, ns)

	pods, err := c.Pods(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, pods, 1)
	assert.Equal(t, "web", pods[0].Name)
}

func TestClient_SubscribeAndConsume(t *testing.T) {
	source := testutil.NewScriptedSource(testutil.Attempt{
		Lines: testutil.Lines("FATAL: out of memory", "warning: slow query", "listening on :80"),
	})
	srv := newServer(t, source)
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	sub, err := c.Subscribe(context.Background(), types.SourceID{Namespace: "default", Pod: "web"}, 25)
	require.NoError(t, err)
	defer sub.Close()

	v := New(Options{})
	term, err := v.Consume(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, types.EndedNormally, term.Kind)
	assert.NotEmpty(t, v.SessionID())
	levels := []types.Level{}
	for _, e := range v.Entries() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []types.Level{types.LevelError, types.LevelWarn, types.LevelInfo}, levels)
	assert.Equal(t, int64(25), source.Opens()[0].TailLines)
}

func TestClient_SubscribeBadRequest(t *testing.T) {
	srv := newServer(t, testutil.NewScriptedSource())
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Subscribe(context.Background(), types.SourceID{Namespace: "default"}, 0)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "Missing namespace or pod parameters", se.Message)
}

func TestClient_AnalyzeNotConfigured(t *testing.T) {
	srv := newServer(t, testutil.NewScriptedSource())
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	r, err := c.Analyze(context.Background(), testutil.MakeEntries(2))
	require.NoError(t, err)
	assert.Equal(t, analysis.NotConfigured(), r)
}

func TestClient_AnalyzeSendsLogs(t *testing.T) {
	var got struct {
		Logs []types.LogEntry `json:"logs"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(analysis.Result{Summary: "OOM", RootCause: "limit too low", SuggestedFix: "raise memory"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	r, err := c.Analyze(context.Background(), testutil.MakeEntries(3))
	require.NoError(t, err)

	assert.Equal(t, "OOM", r.Summary)
	assert.Len(t, got.Logs, 3)
}

func TestClient_AnalyzeBadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"No logs provided"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	_, err = c.Analyze(context.Background(), nil)
	assert.EqualError(t, err, "server returned 400: No logs provided")
}
