package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"sigs.k8s.io/yaml"

	"github.com/kubelogx/kubelogx/internal/analysis"
	"github.com/kubelogx/kubelogx/internal/types"
)

// outputResult writes result to w in the specified format.
func outputResult(w io.Writer, result any, format string) error {
	switch format {
	case "json":
		return outputJSON(w, result)
	case "yaml":
		return outputYAML(w, result)
	case "table", "":
		return outputTable(w, result)
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func outputJSON(w io.Writer, result any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func outputTable(out io.Writer, result any) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case []types.NamespaceInfo:
		return outputNamespacesTable(w, r)
	case []types.PodInfo:
		return outputPodsTable(w, r)
	case analysis.Result:
		return outputAnalysisTable(w, r)
	default:
		// Fall back to JSON for unknown types
		return outputJSON(out, result)
	}
}

func outputNamespacesTable(w *tabwriter.Writer, r []types.NamespaceInfo) error {
	fmt.Fprintln(w, "NAME\tSTATUS")
	for _, ns := range r {
		fmt.Fprintf(w, "%s\t%s\n", ns.Name, ns.Status)
	}
	return nil
}

func outputPodsTable(w *tabwriter.Writer, r []types.PodInfo) error {
	fmt.Fprintln(w, "NAMESPACE\tNAME\tSTATUS\tRESTARTS\tAGE\tCONTAINERS")
	for _, p := range r {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			p.Namespace, p.Name, p.Status, p.Restarts, p.Age, joinOrDash(p.Containers))
	}
	return nil
}

func outputAnalysisTable(w *tabwriter.Writer, r analysis.Result) error {
	fmt.Fprintf(w, "SUMMARY:\t%s\n", r.Summary)
	fmt.Fprintf(w, "ROOT CAUSE:\t%s\n", r.RootCause)
	fmt.Fprintf(w, "SUGGESTED FIX:\t%s\n", r.SuggestedFix)
	if r.KubectlCommand != "" {
		fmt.Fprintf(w, "COMMAND:\t$ %s\n", r.KubectlCommand)
	}
	return nil
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
