package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kubelogx/kubelogx/internal/types"
)

func analyzeCmd(root *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarise saved log entries with the server's AI analyser",
		Long: `Send log entries to the server for a root-cause summary.

Entries are read as JSON: an array of entries, or an object with a "logs"
or "entries" array such as the body of GET /api/sessions/{id}/history.

Examples:
  # Analyse a session's history
  curl -s localhost:8080/api/sessions/$ID/history | kubelogx analyze

  # Analyse entries from a file, as JSON
  kubelogx analyze -f entries.json -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}
			entries, err := readEntries(in)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no log entries in input")
			}

			client, err := root.viewerClient(cmd)
			if err != nil {
				return err
			}
			result, err := client.Analyze(cmd.Context(), entries)
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), result, root.output)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "File with JSON entries (default stdin)")
	return cmd
}

// readEntries accepts a bare entry array or an object carrying "logs" or
// "entries".
func readEntries(r io.Reader) ([]types.LogEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}

	var list []types.LogEntry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Logs    []types.LogEntry `json:"logs"`
		Entries []types.LogEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse entries: %w", err)
	}
	if len(wrapped.Logs) > 0 {
		return wrapped.Logs, nil
	}
	return wrapped.Entries, nil
}
