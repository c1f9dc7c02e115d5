package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/healthz"

	"github.com/kubelogx/kubelogx/internal/stream"
)

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	// Addr to listen on. Default: ":8080".
	Addr string
	// Stream configures subscriber connections.
	Stream StreamOptions
	// ShutdownTimeout bounds graceful shutdown. Default: 5s.
	ShutdownTimeout time.Duration
	// Logger for server operations.
	Logger *zap.Logger
}

// Server is the kubelogx HTTP server.
type Server struct {
	logger     *zap.Logger
	opts       ServerOptions
	manager    *stream.Manager
	directory  Directory
	analyzer   Analyzer
	ready      atomic.Bool
	httpServer *http.Server
}

// NewServer wires the HTTP handlers. analyzer may be nil.
func NewServer(dir Directory, m *stream.Manager, analyzer Analyzer, opts ServerOptions) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		logger:    opts.Logger.Named("api-server"),
		opts:      opts,
		manager:   m,
		directory: dir,
		analyzer:  analyzer,
	}
	s.ready.Store(true)
	return s
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	RegisterHandlers(mux, s.directory, s.manager, s.analyzer, s.opts.Stream, s.logger)

	mux.Handle("/metrics", promhttp.Handler())
	s.registerHealthCheck(mux, "/healthz", map[string]healthz.Checker{"ping": healthz.Ping})
	s.registerHealthCheck(mux, "/readyz", map[string]healthz.Checker{"serving": s.readyCheck})

	return withCORS(mux)
}

// RegisterHandlers adds the /api routes to mux.
func RegisterHandlers(mux *http.ServeMux, dir Directory, m *stream.Manager, analyzer Analyzer, streamOpts StreamOptions, logger *zap.Logger) {
	sessions := NewSessionsHandler(m, logger)

	mux.Handle("/api/namespaces", NewNamespacesHandler(dir, logger))
	mux.Handle("/api/pods", NewPodsHandler(dir, logger))
	mux.Handle("/api/logs/stream", NewStreamHandler(m, streamOpts, logger))
	mux.Handle("/api/analyze", NewAnalyzeHandler(analyzer, logger))
	mux.HandleFunc("/api/sessions", sessions.List)
	mux.HandleFunc("/api/sessions/{id}", sessions.Session)
	mux.HandleFunc("/api/sessions/{id}/history", sessions.History)
}

func (s *Server) registerHealthCheck(mux *http.ServeMux, path string, checks map[string]healthz.Checker) {
	h := &healthz.Handler{Checks: checks}
	mux.Handle(path, http.StripPrefix(path, h))
	mux.Handle(path+"/", http.StripPrefix(path, h))
}

func (s *Server) readyCheck(_ *http.Request) error {
	if !s.ready.Load() {
		return errors.New("shutting down")
	}
	return nil
}

// Start serves until ctx is cancelled, then stops every session and shuts
// the listener down.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting API server", zap.String("addr", s.opts.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down API server")
		s.ready.Store(false)
		s.manager.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		s.manager.Shutdown()
		return fmt.Errorf("api server: %w", err)
	}
}
