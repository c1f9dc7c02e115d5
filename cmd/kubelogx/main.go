// kubelogx streams Kubernetes container logs to subscribers and views them
// in the terminal.
//
// Usage:
//
//	kubelogx serve --listen :8080
//	kubelogx tail -n default web-7d9f -c app --summary
//	kubelogx namespaces
//	kubelogx pods -n default -o yaml
//	kubelogx analyze -f entries.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/config"
)

var version = "dev"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	server     string
	output     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "kubelogx",
		Short: "Stream and inspect Kubernetes container logs",
		Long: `kubelogx follows container logs through the Kubernetes API, classifies
each line by severity and relays it to subscribers over Server-Sent Events.

Run "kubelogx serve" next to a kubeconfig, then use the other commands
against it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML or JSON config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: json, console")
	pf.StringVar(&opts.server, "server", "", "kubelogx server URL (default http://localhost:8080)")
	pf.StringVarP(&opts.output, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(tailCmd(opts))
	rootCmd.AddCommand(namespacesCmd(opts))
	rootCmd.AddCommand(podsCmd(opts))
	rootCmd.AddCommand(analyzeCmd(opts))

	return rootCmd
}

// load resolves the configuration: defaults, file, environment, then flags.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if flags.Changed("server") {
		cfg.Viewer.ServerURL = o.server
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup loads the configuration and builds the logger.
func (o *rootOptions) setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
