package tail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kubelogx/kubelogx/internal/types"
)

// Options controls how a tail is opened.
type Options struct {
	// Follow keeps the feed open for new lines.
	Follow bool
	// TailLines starts from the last N lines. Zero requests no history.
	TailLines int64
	// SinceTime resumes from a timestamp. Takes precedence over TailLines.
	SinceTime *time.Time
}

// Line is one raw line read from a source.
type Line struct {
	Text string
	// Time is the source timestamp when available, otherwise the read time.
	Time time.Time
}

// Handle is an open, cancellable feed of lines.
type Handle interface {
	// Lines yields lines in source order and is closed when the feed ends.
	Lines() <-chan Line
	// Err reports why Lines was closed. Only valid after Lines is closed;
	// nil means the feed ended normally.
	Err() error
	// Close stops the feed and releases its resources before returning.
	// Close is idempotent.
	Close() error
}

// Source opens tails.
type Source interface {
	Open(ctx context.Context, src types.SourceID, opts Options) (Handle, error)
}

// ErrorKind classifies tail failures.
type ErrorKind int

const (
	KindConnectionLost ErrorKind = iota
	KindSourceUnavailable
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindSourceUnavailable:
		return "SourceUnavailable"
	case KindConnectionLost:
		return "ConnectionLost"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is a classified tail failure.
type Error struct {
	Kind   ErrorKind
	Source types.SourceID
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Unavailable returns a non-retryable SourceUnavailable error.
func Unavailable(src types.SourceID, err error) error {
	return &Error{Kind: KindSourceUnavailable, Source: src, Err: err}
}

// Lost returns a retryable ConnectionLost error.
func Lost(src types.SourceID, err error) error {
	return &Error{Kind: KindConnectionLost, Source: src, Err: err}
}

// Cancelled returns a caller-initiated cancellation error.
func Cancelled(src types.SourceID) error {
	return &Error{Kind: KindCancelled, Source: src, Err: context.Canceled}
}

// KindOf extracts the ErrorKind of err. Context cancellation maps to
// KindCancelled; any other unclassified error is treated as ConnectionLost.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindConnectionLost
}

// IsRetryable reports whether reopening the source may succeed.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindConnectionLost
}
