package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/config"
	"github.com/kubelogx/kubelogx/internal/types"
	"github.com/kubelogx/kubelogx/internal/viewer"
)

type tailOptions struct {
	namespace  string
	container  string
	tailLines  int64
	summary    bool
	timestamps bool
	noColor    bool
	grep       string
}

func tailCmd(root *rootOptions) *cobra.Command {
	opts := &tailOptions{}
	cmd := &cobra.Command{
		Use:   "tail POD",
		Short: "Follow a container's logs through the server",
		Long: `Follow a container's logs. Lines are coloured by severity and the most
recent entries are kept in a local buffer.

Examples:
  # Follow the first container of a pod
  kubelogx tail -n default web-7d9f

  # Follow one container and summarise the last entries on exit
  kubelogx tail -n default web-7d9f -c app --summary

  # Only show lines mentioning the database
  kubelogx tail -n default web-7d9f --grep database`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			src := types.SourceID{Namespace: opts.namespace, Pod: args[0], Container: opts.container}
			return runTail(ctx, cfg, src, *opts, cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.namespace, "namespace", "n", "default", "Pod namespace")
	f.StringVarP(&opts.container, "container", "c", "", "Container name (default: the pod's first container)")
	f.Int64Var(&opts.tailLines, "tail", -1, "Lines of history to start from; 0 for none (default: server setting)")
	f.BoolVar(&opts.summary, "summary", false, "Summarise the most recent entries when the stream ends")
	f.BoolVar(&opts.timestamps, "timestamps", false, "Prefix lines with their timestamp")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colours")
	f.StringVar(&opts.grep, "grep", "", "Only print lines containing this text (case-insensitive); --summary still sees every line")

	return cmd
}

// runTail follows src until the stream ends or ctx is cancelled. An
// interrupt is a normal exit; a stream that ends in error is returned as
// an error after the optional summary is printed.
func runTail(ctx context.Context, cfg config.Config, src types.SourceID, opts tailOptions, out io.Writer, logger *zap.Logger) error {
	if err := src.Validate(); err != nil {
		return err
	}
	client, err := viewer.NewClient(cfg.Viewer.ServerURL, logger)
	if err != nil {
		return err
	}

	sub, err := client.Subscribe(ctx, src, opts.tailLines)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", src, err)
	}
	defer sub.Close()

	v := viewer.New(viewer.Options{
		Capacity: cfg.Viewer.BufferCapacity,
		Out:      out,
		Renderer: viewer.Renderer{Timestamps: opts.timestamps, Plain: opts.noColor},
		Filter:   opts.grep,
		Logger:   logger,
	})

	term, err := v.Consume(ctx, sub)
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return err
	}
	_ = sub.Close()

	if opts.summary {
		if err := printSummary(context.WithoutCancel(ctx), client, v.Last(cfg.Analysis.Window), out); err != nil {
			return err
		}
	}

	if !interrupted && term.Kind == types.EndedError {
		return fmt.Errorf("stream failed: %s", term.Reason)
	}
	return nil
}

func printSummary(ctx context.Context, client *viewer.Client, entries []types.LogEntry, out io.Writer) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No log entries to analyse.")
		return nil
	}
	result, err := client.Analyze(ctx, entries)
	if err != nil {
		return fmt.Errorf("analyse logs: %w", err)
	}
	fmt.Fprintln(out)
	return outputTable(out, result)
}
