package viewer

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kubelogx/kubelogx/internal/types"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	debugStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Italic(true)
)

// LevelStyle returns the style entries of level l are drawn with.
func LevelStyle(l types.Level) lipgloss.Style {
	switch l {
	case types.LevelError:
		return errorStyle
	case types.LevelWarn:
		return warnStyle
	case types.LevelInfo:
		return infoStyle
	case types.LevelDebug:
		return debugStyle
	default:
		return unknownStyle
	}
}

// Renderer turns entries into terminal lines.
type Renderer struct {
	// Timestamps prefixes each line with the entry time.
	Timestamps bool
	// Plain disables colours.
	Plain bool
}

// Format renders e as "[LEVEL] message", optionally prefixed by its time.
func (r Renderer) Format(e types.LogEntry) string {
	level := fmt.Sprintf("[%-5s]", e.Level)
	msg := e.Message
	if !r.Plain {
		style := LevelStyle(e.Level)
		level = style.Render(level)
		if e.Level == types.LevelError {
			msg = style.Render(msg)
		}
	}

	if !r.Timestamps {
		return level + " " + msg
	}
	ts := e.Timestamp
	if t := e.Time(); !t.IsZero() {
		ts = t.Local().Format(time.TimeOnly)
	}
	if !r.Plain {
		ts = dimStyle.Render(ts)
	}
	return ts + " " + level + " " + msg
}

// Notice renders an out-of-band status line such as a stream ending.
func (r Renderer) Notice(text string) string {
	if r.Plain {
		return "-- " + text
	}
	return noticeStyle.Render("-- " + text)
}
