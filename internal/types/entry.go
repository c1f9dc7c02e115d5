package types

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity assigned to a log line at ingestion.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERROR"
	LevelDebug   Level = "DEBUG"
	LevelUnknown Level = "UNKNOWN" // Wire value that matched no known level
)

// ParseLevel maps a case-insensitive level name to a Level.
// Unrecognised names yield LevelUnknown.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "DEBUG":
		return LevelDebug
	default:
		return LevelUnknown
	}
}

// SourceID identifies a single container log stream in the cluster.
type SourceID struct {
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	// Container may be empty for single-container pods.
	Container string `json:"container,omitempty"`
}

// String renders the source as namespace/pod[/container].
func (s SourceID) String() string {
	if s.Container == "" {
		return s.Namespace + "/" + s.Pod
	}
	return s.Namespace + "/" + s.Pod + "/" + s.Container
}

// Validate reports whether the source has the coordinates required to open a tail.
func (s SourceID) Validate() error {
	if s.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if s.Pod == "" {
		return fmt.Errorf("pod is required")
	}
	return nil
}

// LogEntry is a classified log line. Entries are immutable once created.
type LogEntry struct {
	ID        string `json:"id"`
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"timestamp"` // RFC3339
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	SourceID  string `json:"sourceId"`
}

// Time parses the entry timestamp. The zero time is returned when the
// timestamp is absent or malformed.
func (e LogEntry) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// TerminationKind describes how a stream ended from the subscriber's point of view.
type TerminationKind string

const (
	EndedNormally TerminationKind = "ended-normally"
	EndedError    TerminationKind = "ended-error"
)

// Termination is the single terminal notification a subscriber receives.
type Termination struct {
	Kind   TerminationKind `json:"kind"`
	Reason string          `json:"reason,omitempty"`
}
