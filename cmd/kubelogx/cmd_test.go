package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kubelogx/kubelogx/internal/analysis"
	"github.com/kubelogx/kubelogx/internal/api"
	"github.com/kubelogx/kubelogx/internal/config"
	"github.com/kubelogx/kubelogx/internal/directory"
	"github.com/kubelogx/kubelogx/internal/stream"
	"github.com/kubelogx/kubelogx/internal/tail"
	"github.com/kubelogx/kubelogx/internal/testutil"
	"github.com/kubelogx/kubelogx/internal/types"
)

func newFakeClient() *fake.Clientset {
	return fake.NewSimpleClientset(
		&corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{Name: "default"},
			Status:     corev1.NamespaceStatus{Phase: corev1.NamespaceActive},
		},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default", UID: "uid-web"},
			Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "app"}}},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		},
	)
}

// newTestServer serves the real API over a fake clientset and a scripted source.
func newTestServer(t *testing.T, source *testutil.ScriptedSource, analyzer api.Analyzer) *httptest.Server {
	t.Helper()
	opts := stream.DefaultOptions()
	opts.Retry = stream.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond}
	m := stream.NewManager(source, opts)
	dir := directory.New(newFakeClient(), nil)
	srv := httptest.NewServer(api.NewServer(dir, m, analyzer, api.ServerOptions{}).Handler())
	t.Cleanup(func() {
		m.Shutdown()
		srv.Close()
	})
	return srv
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var errTestUnavailable = tail.Unavailable(
	types.SourceID{Namespace: "default", Pod: "web"},
	errors.New(`pods "web" not found`),
)

type stubAnalyzer struct{ result analysis.Result }

func (s stubAnalyzer) Configured() bool { return true }

func (s stubAnalyzer) Analyze(context.Context, []types.LogEntry) (analysis.Result, error) {
	return s.result, nil
}

func TestNamespacesCommand(t *testing.T) {
	srv := newTestServer(t, testutil.NewScriptedSource(), nil)

	out, err := run(t, "", "namespaces", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "Active")

	out, err = run(t, "", "ns", "--server", srv.URL, "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"default","status":"Active"}]`, out)
}

func TestPodsCommand(t *testing.T) {
	srv := newTestServer(t, testutil.NewScriptedSource(), nil)

	out, err := run(t, "", "pods", "--server", srv.URL, "-n", "default")
	require.NoError(t, err)
	assert.Contains(t, out, "RESTARTS")
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "Running")

	out, err = run(t, "", "pods", "--server", srv.URL, "-A", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: web")
	assert.Contains(t, out, "namespace: default")
}

func TestPodsCommand_ServerDown(t *testing.T) {
	_, err := run(t, "", "pods", "--server", "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestTailCommand(t *testing.T) {
	source := testutil.NewScriptedSource(testutil.Attempt{
		Lines: testutil.Lines("Connection refused to database:5432", "Health check passed"),
	})
	srv := newTestServer(t, source, stubAnalyzer{result: analysis.Result{
		Summary:      "Database unreachable",
		RootCause:    "Connection refused",
		SuggestedFix: "Check the database service",
	}})

	out, err := run(t, "", "tail", "web", "-n", "default", "-c", "app", "--tail", "10",
		"--no-color", "--summary", "--server", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "[ERROR] Connection refused to database:5432")
	assert.Contains(t, out, "[INFO ] Health check passed")
	assert.Contains(t, out, "-- stream ended")
	assert.Contains(t, out, "Database unreachable")

	opens := source.Opens()
	require.Len(t, opens, 1)
	assert.Equal(t, int64(10), opens[0].TailLines)
}

func TestTailCommand_Grep(t *testing.T) {
	source := testutil.NewScriptedSource(testutil.Attempt{
		Lines: testutil.Lines("Connection refused to database:5432", "Health check passed"),
	})
	srv := newTestServer(t, source, nil)

	out, err := run(t, "", "tail", "web", "--no-color", "--grep", "REFUSED", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "[ERROR] Connection refused to database:5432")
	assert.NotContains(t, out, "Health check passed")
}

func TestTailCommand_StreamError(t *testing.T) {
	source := testutil.NewScriptedSource(testutil.Attempt{
		OpenErr: errTestUnavailable,
	})
	srv := newTestServer(t, source, nil)

	out, err := run(t, "", "tail", "web", "--no-color", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream failed: source unavailable")
	assert.Contains(t, out, "-- stream failed")
}

func TestTailCommand_RequiresPod(t *testing.T) {
	_, err := run(t, "", "tail")
	assert.Error(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	srv := newTestServer(t, testutil.NewScriptedSource(), stubAnalyzer{result: analysis.Result{
		Summary: "All good", RootCause: "none", SuggestedFix: "nothing", KubectlCommand: "kubectl get pods",
	}})

	in := `{"id":"s","source":"default/web","entries":[{"id":"1","level":"ERROR","message":"boom"}]}`
	out, err := run(t, in, "analyze", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "All good")
	assert.Contains(t, out, "$ kubectl get pods")

	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"1","level":"INFO","message":"ok"}]`), 0o600))
	out, err = run(t, "", "analyze", "-f", path, "-o", "json", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, `"summary": "All good"`)
}

func TestAnalyzeCommand_NotConfigured(t *testing.T) {
	srv := newTestServer(t, testutil.NewScriptedSource(), nil)

	out, err := run(t, `[{"id":"1","message":"x"}]`, "analyze", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "AI Not Configured")
}

func TestAnalyzeCommand_EmptyInput(t *testing.T) {
	_, err := run(t, `[]`, "analyze")
	assert.EqualError(t, err, "no log entries in input")

	_, err = run(t, `not json`, "analyze")
	assert.ErrorContains(t, err, "failed to parse entries")
}

func TestRootOptions_Load(t *testing.T) {
	t.Setenv("KUBELOGX_SERVER_URL", "http://env:8080")
	t.Setenv("KUBELOGX_LOG_LEVEL", "debug")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "warn"}))
	opts := &rootOptions{logLevel: "warn"}
	cfg, err := opts.load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "http://env:8080", cfg.Viewer.ServerURL)
}

func TestRootOptions_LoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kubelogx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stream:\n  bufferCapacity: 0\n"), 0o600))

	_, err := run(t, "", "namespaces", "--config", path)
	assert.ErrorContains(t, err, "bufferCapacity")
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, newFakeClient(), zap.NewNop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Stream.BufferCapacity = 0
	err := serve(context.Background(), cfg, newFakeClient(), zap.NewNop())
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestServeCommand_ClientError(t *testing.T) {
	orig := getClientFunc
	defer func() { getClientFunc = orig }()
	getClientFunc = func(string, string) (kubernetes.Interface, error) {
		return nil, errTestUnavailable
	}

	_, err := run(t, "", "serve", "--kubeconfig", "/nonexistent")
	assert.ErrorIs(t, err, errTestUnavailable)
}

