package main

import (
	"github.com/spf13/cobra"

	"github.com/kubelogx/kubelogx/internal/directory"
	"github.com/kubelogx/kubelogx/internal/viewer"
)

func namespacesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "namespaces",
		Aliases: []string{"ns"},
		Short:   "List namespaces known to the server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := root.viewerClient(cmd)
			if err != nil {
				return err
			}
			namespaces, err := client.Namespaces(cmd.Context())
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), namespaces, root.output)
		},
	}
}

func podsCmd(root *rootOptions) *cobra.Command {
	var (
		namespace     string
		allNamespaces bool
	)
	cmd := &cobra.Command{
		Use:   "pods",
		Short: "List pods known to the server",
		Long: `List pods in a namespace.

Examples:
  # Pods in the default namespace
  kubelogx pods -n default

  # Pods everywhere, as YAML
  kubelogx pods -A -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := root.viewerClient(cmd)
			if err != nil {
				return err
			}
			ns := namespace
			if allNamespaces {
				ns = directory.AllNamespaces
			}
			pods, err := client.Pods(cmd.Context(), ns)
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), pods, root.output)
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "Namespace to list")
	cmd.Flags().BoolVarP(&allNamespaces, "all-namespaces", "A", false, "List pods across all namespaces")
	return cmd
}

// viewerClient resolves the configuration and connects to the server it names.
func (o *rootOptions) viewerClient(cmd *cobra.Command) (*viewer.Client, error) {
	cfg, logger, err := o.setup(cmd)
	if err != nil {
		return nil, err
	}
	return viewer.NewClient(cfg.Viewer.ServerURL, logger)
}
