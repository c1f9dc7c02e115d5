// Package viewer is the consuming side of a log stream. It reads the SSE
// feed served by the api package, mirrors it into a bounded client-side
// buffer and renders entries with per-level colours.
package viewer
