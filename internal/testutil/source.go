// Package testutil provides shared test helpers for kubelogx packages:
// a scripted tail source, a recording delivery sink and entry builders.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kubelogx/kubelogx/internal/tail"
	"github.com/kubelogx/kubelogx/internal/types"
)

// Attempt scripts the outcome of one Open call.
type Attempt struct {
	// OpenErr, when set, is returned from Open instead of a handle.
	OpenErr error
	// OpenDelay blocks Open until it elapses or ctx is done.
	OpenDelay time.Duration
	// Lines are buffered on the handle before Open returns.
	Lines []tail.Line
	// Hold keeps the feed open after Lines until Close or Fail.
	Hold bool
	// End is reported by Err once the feed finishes without Hold.
	End error
}

// ScriptedSource replays a list of attempts. When the script runs out the
// last attempt repeats.
type ScriptedSource struct {
	// OnOpen runs at the start of every Open call with the 1-based call number.
	OnOpen func(n int)

	mu       sync.Mutex
	script   []Attempt
	opens    []tail.Options
	handles  []*ScriptedHandle
	openings atomic.Int32
}

// NewScriptedSource returns a source that plays attempts in order.
func NewScriptedSource(attempts ...Attempt) *ScriptedSource {
	return &ScriptedSource{script: attempts}
}

// Open implements tail.Source.
func (s *ScriptedSource) Open(ctx context.Context, src types.SourceID, opts tail.Options) (tail.Handle, error) {
	n := int(s.openings.Add(1))
	if s.OnOpen != nil {
		s.OnOpen(n)
	}

	s.mu.Lock()
	s.opens = append(s.opens, opts)
	var a Attempt
	if len(s.script) > 0 {
		idx := n - 1
		if idx >= len(s.script) {
			idx = len(s.script) - 1
		}
		a = s.script[idx]
	}
	s.mu.Unlock()

	if a.OpenDelay > 0 {
		t := time.NewTimer(a.OpenDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, tail.Cancelled(src)
		}
	}
	if a.OpenErr != nil {
		return nil, a.OpenErr
	}

	h := newScriptedHandle(a)
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h, nil
}

// Opens returns the options of every Open call so far.
func (s *ScriptedSource) Opens() []tail.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tail.Options, len(s.opens))
	copy(out, s.opens)
	return out
}

// Handles returns every handle returned so far.
func (s *ScriptedSource) Handles() []*ScriptedHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ScriptedHandle, len(s.handles))
	copy(out, s.handles)
	return out
}

// ScriptedHandle is a tail.Handle fed from a script.
type ScriptedHandle struct {
	lines     chan tail.Line
	closed    chan struct{}
	closeOnce sync.Once
	endOnce   sync.Once
	closes    atomic.Int32

	mu  sync.Mutex
	err error
}

func newScriptedHandle(a Attempt) *ScriptedHandle {
	h := &ScriptedHandle{
		lines:  make(chan tail.Line, len(a.Lines)),
		closed: make(chan struct{}),
	}
	for _, l := range a.Lines {
		h.lines <- l
	}
	if !a.Hold {
		h.finish(a.End)
	}
	return h
}

// Lines implements tail.Handle.
func (h *ScriptedHandle) Lines() <-chan tail.Line { return h.lines }

// Err implements tail.Handle.
func (h *ScriptedHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close implements tail.Handle.
func (h *ScriptedHandle) Close() error {
	h.closes.Add(1)
	h.closeOnce.Do(func() { close(h.closed) })
	return nil
}

// Push delivers one more line, blocking until it is read or the handle closes.
func (h *ScriptedHandle) Push(text string) bool {
	select {
	case <-h.closed:
		return false
	default:
	}
	select {
	case h.lines <- tail.Line{Text: text}:
		return true
	case <-h.closed:
		return false
	}
}

// Fail ends the feed with err.
func (h *ScriptedHandle) Fail(err error) { h.finish(err) }

// Closes reports how many times Close was called.
func (h *ScriptedHandle) Closes() int { return int(h.closes.Load()) }

// IsClosed reports whether Close has been called.
func (h *ScriptedHandle) IsClosed() bool {
	select {
	case <-h.closed:
		return true
	default:
		return false
	}
}

func (h *ScriptedHandle) finish(err error) {
	h.endOnce.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.lines)
	})
}

// Lines builds untimestamped tail lines from text.
func Lines(texts ...string) []tail.Line {
	out := make([]tail.Line, len(texts))
	for i, t := range texts {
		out[i] = tail.Line{Text: t}
	}
	return out
}
