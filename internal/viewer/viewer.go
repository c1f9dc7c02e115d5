package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/delivery"
	"github.com/kubelogx/kubelogx/internal/ringbuffer"
	"github.com/kubelogx/kubelogx/internal/types"
)

// DefaultCapacity is the number of entries the viewer keeps.
const DefaultCapacity = 500

// ReasonConnectionClosed is reported when the stream stops without a
// terminal frame.
const ReasonConnectionClosed = "connection closed by server"

// FrameReader yields decoded SSE frames.
type FrameReader interface {
	Next() (delivery.Frame, error)
}

// Options configures a Viewer.
type Options struct {
	// Capacity of the client buffer. Default: 500.
	Capacity int
	// Out receives rendered lines. Nil discards them.
	Out io.Writer
	// Renderer formats entries.
	Renderer Renderer
	// Filter prints only entries whose message contains it, ignoring case.
	// Every entry is still buffered.
	Filter string
	// Logger for viewer operations.
	Logger *zap.Logger
}

// Viewer mirrors one stream into a bounded buffer and prints each entry.
type Viewer struct {
	buf    *ringbuffer.Buffer[types.LogEntry]
	out    io.Writer
	render Renderer
	filter string
	logger *zap.Logger

	mu        sync.RWMutex
	sessionID string
	source    string
}

// New creates a Viewer.
func New(opts Options) *Viewer {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Viewer{
		buf:    ringbuffer.New[types.LogEntry](opts.Capacity),
		out:    opts.Out,
		render: opts.Renderer,
		filter: strings.ToLower(opts.Filter),
		logger: opts.Logger.Named("viewer"),
	}
}

// Consume reads frames until the stream terminates and returns how it
// ended. A stream that stops without an end or error frame is reported as
// an error termination. Read failures caused by ctx are returned as
// ctx.Err().
func (v *Viewer) Consume(ctx context.Context, r FrameReader) (types.Termination, error) {
	for {
		f, err := r.Next()
		if err != nil {
			if ctx.Err() != nil {
				return types.Termination{}, ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return types.Termination{Kind: types.EndedError, Reason: ReasonConnectionClosed}, nil
			}
			return types.Termination{}, fmt.Errorf("read stream: %w", err)
		}

		switch f.Event {
		case delivery.EventMessage:
			e, err := delivery.DecodeEntry(f)
			if err != nil {
				v.logger.Warn("Skipping malformed entry", zap.Error(err))
				continue
			}
			v.buf.Append(e)
			if v.Matches(e) {
				fmt.Fprintln(v.out, v.render.Format(e))
			}

		case delivery.EventConnected:
			var p delivery.ConnectedPayload
			if err := json.Unmarshal(f.Data, &p); err != nil {
				v.logger.Warn("Malformed connected event", zap.Error(err))
				continue
			}
			v.mu.Lock()
			v.sessionID, v.source = p.SessionID, p.Source
			v.mu.Unlock()
			v.logger.Debug("Stream connected", zap.String("session", p.SessionID), zap.String("source", p.Source))

		case delivery.EventEnd:
			var p delivery.EndPayload
			_ = json.Unmarshal(f.Data, &p)
			t := types.Termination{Kind: types.EndedNormally, Reason: p.Detail}
			v.notice(t)
			return t, nil

		case delivery.EventError:
			var p delivery.ErrorPayload
			if err := json.Unmarshal(f.Data, &p); err != nil || p.Error == "" {
				p.Error = string(f.Data)
			}
			t := types.Termination{Kind: types.EndedError, Reason: p.Error}
			v.notice(t)
			return t, nil

		default:
			v.logger.Debug("Ignoring unknown event", zap.String("event", f.Event))
		}
	}
}

// Matches reports whether e passes the display filter.
func (v *Viewer) Matches(e types.LogEntry) bool {
	return v.filter == "" || strings.Contains(strings.ToLower(e.Message), v.filter)
}

func (v *Viewer) notice(t types.Termination) {
	text := "stream ended"
	if t.Kind == types.EndedError {
		text = "stream failed"
	}
	if t.Reason != "" {
		text += ": " + t.Reason
	}
	fmt.Fprintln(v.out, v.render.Notice(text))
}

// Entries returns the buffered entries, oldest first.
func (v *Viewer) Entries() []types.LogEntry { return v.buf.Snapshot() }

// Last returns up to n of the newest buffered entries, oldest first.
func (v *Viewer) Last(n int) []types.LogEntry { return v.buf.Tail(n) }

// Received reports how many entries were seen, including evicted ones.
func (v *Viewer) Received() uint64 { return v.buf.Total() }

// SessionID is the server session id announced by the connected event.
func (v *Viewer) SessionID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sessionID
}

// Source is the source announced by the connected event.
func (v *Viewer) Source() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.source
}
