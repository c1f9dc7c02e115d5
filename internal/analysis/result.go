package analysis

// Result is a structured analysis of a log window.
type Result struct {
	Summary        string `json:"summary"`
	RootCause      string `json:"rootCause"`
	SuggestedFix   string `json:"suggestedFix"`
	KubectlCommand string `json:"kubectlCommand,omitempty"`
	// Unavailable marks a placeholder result produced without a model answer.
	Unavailable bool `json:"unavailable,omitempty"`
}

// NotConfigured is returned when the server has no API key.
func NotConfigured() Result {
	return Result{
		Summary:      "AI Not Configured",
		RootCause:    "The server was started without an API key.",
		SuggestedFix: "Restart the server with API_KEY or KUBELOGX_API_KEY set.",
		Unavailable:  true,
	}
}

// Unavailable labels a failed or timed-out analysis.
func Unavailable(reason string) Result {
	if reason == "" {
		reason = "Unknown analysis error"
	}
	return Result{
		Summary:      "Analysis Unavailable",
		RootCause:    reason,
		SuggestedFix: "Check server logs.",
		Unavailable:  true,
	}
}
