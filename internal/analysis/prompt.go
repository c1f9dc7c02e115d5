package analysis

import (
	"strings"

	"github.com/kubelogx/kubelogx/internal/types"
	"github.com/kubelogx/kubelogx/internal/util"
)

const promptHeader = `You are a Senior Site Reliability Engineer and Kubernetes expert.
Analyze the following Kubernetes pod logs.

Logs:
` + "```" + `
`

const promptFooter = "```" + `

Provide a structured analysis in JSON format with the following fields:
1. summary: A one-sentence summary of what is happening.
2. rootCause: The likely technical root cause of the errors (if any).
3. suggestedFix: A specific recommendation to fix the issue.
4. kubectlCommand: A kubectl command that might help debug or fix this.
`

// Window returns the last n entries.
func Window(entries []types.LogEntry, n int) []types.LogEntry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// FormatLogs renders entries one per line as "<timestamp> [<LEVEL>] <message>",
// truncated to maxChars.
func FormatLogs(entries []types.LogEntry, maxChars int) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		level := e.Level
		if level == "" {
			level = types.LevelUnknown
		}
		b.WriteString(e.Timestamp)
		b.WriteString(" [")
		b.WriteString(string(level))
		b.WriteString("] ")
		b.WriteString(e.Message)
	}
	if maxChars > 0 {
		return util.Truncate(b.String(), maxChars)
	}
	return b.String()
}

// BuildPrompt wraps the formatted window in analysis instructions.
func BuildPrompt(entries []types.LogEntry, window, maxChars int) string {
	return promptHeader + FormatLogs(Window(entries, window), maxChars) + "\n" + promptFooter
}
