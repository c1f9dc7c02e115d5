package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/delivery"
	"github.com/kubelogx/kubelogx/internal/stream"
	"github.com/kubelogx/kubelogx/internal/tail"
	"github.com/kubelogx/kubelogx/internal/testutil"
	"github.com/kubelogx/kubelogx/internal/types"
)

func newTestManager(source tail.Source) *stream.Manager {
	opts := stream.DefaultOptions()
	opts.Retry = stream.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond}
	return stream.NewManager(source, opts)
}

func newStreamServer(t *testing.T, m *stream.Manager) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewStreamHandler(m, StreamOptions{}, zap.NewNop()))
	t.Cleanup(func() {
		m.Shutdown()
		srv.Close()
	})
	return srv
}

func readFrames(t *testing.T, resp *http.Response) []delivery.Frame {
	t.Helper()
	d := delivery.NewDecoder(resp.Body)
	var frames []delivery.Frame
	for {
		f, err := d.Next()
		if err != nil {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestStreamHandler_StreamsClassifiedEntries(t *testing.T) {
	source := testutil.NewScriptedSource(testutil.Attempt{
		Lines: testutil.Lines("Connection refused to database:5432", "Health check passed"),
	})
	srv := newStreamServer(t, newTestManager(source))

	resp, err := http.Get(srv.URL + "?namespace=default&pod=web&container=app&tailLines=20")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	frames := readFrames(t, resp)
	require.Len(t, frames, 4)
	assert.Equal(t, delivery.EventConnected, frames[0].Event)

	first, err := delivery.DecodeEntry(frames[1])
	require.NoError(t, err)
	assert.Equal(t, types.LevelError, first.Level)
	assert.Equal(t, "default/web/app", first.SourceID)
	second, err := delivery.DecodeEntry(frames[2])
	require.NoError(t, err)
	assert.Equal(t, types.LevelInfo, second.Level)

	assert.Equal(t, delivery.EventEnd, frames[3].Event)

	opens := source.Opens()
	require.Len(t, opens, 1)
	assert.Equal(t, int64(20), opens[0].TailLines)
}

func TestStreamHandler_ZeroTailLinesPassesThrough(t *testing.T) {
	source := testutil.NewScriptedSource(testutil.Attempt{Lines: testutil.Lines("fresh")})
	srv := newStreamServer(t, newTestManager(source))

	resp, err := http.Get(srv.URL + "?namespace=default&pod=web&tailLines=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	readFrames(t, resp)

	opens := source.Opens()
	require.Len(t, opens, 1)
	assert.Equal(t, int64(0), opens[0].TailLines)
}

func TestStreamHandler_SourceUnavailableSendsErrorEvent(t *testing.T) {
	src := types.SourceID{Namespace: "default", Pod: "missing"}
	source := testutil.NewScriptedSource(testutil.Attempt{
		OpenErr: tail.Unavailable(src, errors.New(`pods "missing" not found`)),
	})
	srv := newStreamServer(t, newTestManager(source))

	resp, err := http.Get(srv.URL + "?namespace=default&pod=missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	frames := readFrames(t, resp)
	require.Len(t, frames, 2)
	assert.Equal(t, delivery.EventError, frames[1].Event)
	assert.JSONEq(t, `{"error":"source unavailable: pods \"missing\" not found"}`, string(frames[1].Data))
}

func TestStreamHandler_BadRequests(t *testing.T) {
	srv := newStreamServer(t, newTestManager(testutil.NewScriptedSource()))

	for _, q := range []string{"", "?namespace=default", "?pod=web", "?namespace=default&pod=web&tailLines=-1", "?namespace=default&pod=web&tailLines=x"} {
		resp, err := http.Get(srv.URL + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query %q", q)
	}

	resp, err := http.Post(srv.URL+"?namespace=default&pod=web", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStreamHandler_ClientDisconnectReleasesSource(t *testing.T) {
	source := testutil.NewScriptedSource(testutil.Attempt{Hold: true})
	m := newTestManager(source)
	srv := newStreamServer(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?namespace=default&pod=web", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	f, err := delivery.NewDecoder(resp.Body).Next()
	require.NoError(t, err)
	assert.Equal(t, delivery.EventConnected, f.Event)
	require.Eventually(t, func() bool { return len(source.Handles()) == 1 }, 2*time.Second, time.Millisecond)

	cancel()

	assert.Eventually(t, func() bool {
		return m.Len() == 0 && source.Handles()[0].IsClosed()
	}, 5*time.Second, 5*time.Millisecond)
}
