package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/delivery"
	"github.com/kubelogx/kubelogx/internal/stream"
	"github.com/kubelogx/kubelogx/internal/types"
)

// StreamOptions configures the SSE connection of each subscriber.
type StreamOptions struct {
	// WriteTimeout bounds each frame write. Default: 10s.
	WriteTimeout time.Duration
	// Heartbeat sends keepalive comments while idle. Zero disables them.
	Heartbeat time.Duration
}

// StreamHandler handles GET /api/logs/stream?namespace=&pod=&container=&tailLines=.
// tailLines=0 starts at the live edge with no history.
type StreamHandler struct {
	logger  *zap.Logger
	manager *stream.Manager
	opts    StreamOptions
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(m *stream.Manager, opts StreamOptions, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{logger: logger.Named("stream"), manager: m, opts: opts}
}

// ServeHTTP subscribes the caller to one container log until either side ends it.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	src := types.SourceID{
		Namespace: q.Get("namespace"),
		Pod:       q.Get("pod"),
		Container: q.Get("container"),
	}
	if src.Namespace == "" || src.Pod == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Missing namespace or pod parameters")
		return
	}

	var startOpts []stream.StartOption
	if raw := q.Get("tailLines"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, h.logger, http.StatusBadRequest, "tailLines must be a non-negative integer")
			return
		}
		startOpts = append(startOpts, stream.WithTailLines(n))
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("Streaming unsupported by response writer", zap.Error(err))
		return
	}

	ch := delivery.NewChannel(w, delivery.ChannelOptions{
		Flush:            rc.Flush,
		SetWriteDeadline: rc.SetWriteDeadline,
		WriteTimeout:     h.opts.WriteTimeout,
		Heartbeat:        h.opts.Heartbeat,
		Logger:           h.logger,
	})
	defer ch.Close()

	sess, err := h.manager.Start(r.Context(), src, ch, startOpts...)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, stream.ErrInvalidSource) {
			reason = "invalid source: " + src.String()
		}
		ch.End(types.Termination{Kind: types.EndedError, Reason: reason})
		return
	}

	h.logger.Info("Starting log stream", zap.String("session", sess.ID()), zap.String("source", src.String()))
	<-sess.Done()
	h.logger.Info("Log stream finished",
		zap.String("session", sess.ID()),
		zap.String("outcome", string(sess.Outcome())))
}
