package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/kubelogx/kubelogx/internal/analysis"
	"github.com/kubelogx/kubelogx/internal/api"
	"github.com/kubelogx/kubelogx/internal/config"
	"github.com/kubelogx/kubelogx/internal/directory"
	"github.com/kubelogx/kubelogx/internal/stream"
	"github.com/kubelogx/kubelogx/internal/tail"
)

type serveOptions struct {
	listen      string
	kubeconfig  string
	kubeContext string
	tailLines   int64
	capacity    int
}

func serveCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the log streaming server",
		Long: `Run the HTTP server that relays container logs.

Endpoints:
  GET    /api/namespaces
  GET    /api/pods?namespace=
  GET    /api/logs/stream?namespace=&pod=&container=&tailLines=
  POST   /api/analyze
  GET    /api/sessions
  GET    /api/sessions/{id}/history
  DELETE /api/sessions/{id}
  GET    /healthz, /readyz, /metrics

Examples:
  # Serve using the current kubeconfig context
  kubelogx serve

  # Serve a specific context on another port
  kubelogx serve --context staging --listen :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			opts.apply(cmd, &cfg)

			client, err := getClientFunc(cfg.Kubeconfig, cfg.KubeContext)
			if err != nil {
				return err
			}
			return serve(ctrl.SetupSignalHandler(), cfg, client, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.listen, "listen", "", "Address to listen on (default :8080)")
	f.StringVar(&opts.kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	f.StringVar(&opts.kubeContext, "context", "", "Kubeconfig context to use")
	f.Int64Var(&opts.tailLines, "tail-lines", 0, "Lines of history replayed to new subscribers (default 100)")
	f.IntVar(&opts.capacity, "buffer", 0, "Entries retained per session (default 1000)")

	return cmd
}

func (o *serveOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("listen") {
		cfg.ListenAddr = o.listen
	}
	if f.Changed("kubeconfig") {
		cfg.Kubeconfig = o.kubeconfig
	}
	if f.Changed("context") {
		cfg.KubeContext = o.kubeContext
	}
	if f.Changed("tail-lines") {
		cfg.Stream.TailLines = o.tailLines
	}
	if f.Changed("buffer") {
		cfg.Stream.BufferCapacity = o.capacity
	}
}

// serve wires the server components and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config, client kubernetes.Interface, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("Starting kubelogx",
		zap.String("version", version),
		zap.String("listen", cfg.ListenAddr),
		zap.Int("buffer_capacity", cfg.Stream.BufferCapacity),
		zap.Int64("tail_lines", cfg.Stream.TailLines),
		zap.Int("retry_attempts", cfg.Stream.Retry.MaxAttempts))

	analyzer, err := analysis.NewClient(cfg.AnalysisClientConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to create analysis client: %w", err)
	}
	if !analyzer.Configured() {
		logger.Warn("No analysis API key set, /api/analyze will report AI Not Configured")
	}

	source := tail.NewKubernetesSource(client, logger)
	manager := stream.NewManager(source, cfg.SessionOptions(logger))

	srv := api.NewServer(directory.New(client, logger), manager, analyzer, api.ServerOptions{
		Addr: cfg.ListenAddr,
		Stream: api.StreamOptions{
			WriteTimeout: cfg.Stream.WriteTimeout.Duration,
			Heartbeat:    cfg.Stream.Heartbeat.Duration,
		},
		Logger: logger,
	})

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("kubelogx stopped")
	return nil
}
