// Package analysis asks a generative model to summarise a window of recent
// log entries.
//
// The client talks to the Gemini generateContent REST endpoint and asks for
// a JSON object with summary, rootCause, suggestedFix and an optional
// kubectlCommand. Callers that cannot get a real answer, because no API key
// is configured or the upstream call failed or timed out, use the labelled
// results from NotConfigured and Unavailable instead of waiting.
package analysis
