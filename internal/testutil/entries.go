package testutil

import (
	"fmt"
	"time"

	"github.com/kubelogx/kubelogx/internal/types"
)

// baseTime anchors generated entries so test output is stable.
var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// MakeEntry builds an entry with a deterministic id and timestamp.
func MakeEntry(seq int, level types.Level, msg string) types.LogEntry {
	return types.LogEntry{
		ID:        fmt.Sprintf("entry-%d", seq),
		Seq:       uint64(seq),
		Timestamp: baseTime.Add(time.Duration(seq) * time.Second).Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		SourceID:  "default/web",
	}
}

// MakeEntries builds n INFO entries numbered from 1.
func MakeEntries(n int) []types.LogEntry {
	out := make([]types.LogEntry, n)
	for i := range out {
		out[i] = MakeEntry(i+1, types.LevelInfo, fmt.Sprintf("line %d", i+1))
	}
	return out
}
