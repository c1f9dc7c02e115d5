package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/classifier"
	"github.com/kubelogx/kubelogx/internal/delivery"
	"github.com/kubelogx/kubelogx/internal/ringbuffer"
	"github.com/kubelogx/kubelogx/internal/tail"
	"github.com/kubelogx/kubelogx/internal/types"
)

// ReasonRetriesExhausted is the ended-error reason after the retry budget is spent.
const ReasonRetriesExhausted = "connection lost, retries exhausted"

var errConnectTimeout = errors.New("timed out waiting for log stream")

// lateOpenGrace bounds how long an abandoned Open is waited on before its
// handle is left to close in the background.
const lateOpenGrace = 500 * time.Millisecond

// Sink is the subscriber side of a session. *delivery.Channel implements it.
type Sink interface {
	Send(types.LogEntry) delivery.Outcome
	Ready() <-chan struct{}
	Done() <-chan struct{}
	End(types.Termination)
}

// announcer is implemented by sinks that accept control events.
type announcer interface {
	SendEvent(event string, payload any) delivery.Outcome
}

// Options configures sessions.
type Options struct {
	// Capacity of the per-session history. Default: 1000.
	Capacity int
	// TailLines requested on the first connect. Zero replays no history.
	TailLines int64
	// ConnectTimeout bounds the Connecting state. Default: 10s.
	ConnectTimeout time.Duration
	// Retry governs reconnects after ConnectionLost.
	Retry RetryPolicy
	// Classifier assigns levels. Default: classifier.Default().
	Classifier *classifier.Classifier
	// Logger for session operations.
	Logger *zap.Logger
	// OnTransition observes every state change, on the driver goroutine.
	OnTransition func(id string, t Transition)
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Capacity:       ringbuffer.DefaultCapacity,
		TailLines:      100,
		ConnectTimeout: 10 * time.Second,
		Retry:          DefaultRetryPolicy(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Capacity <= 0 {
		o.Capacity = d.Capacity
	}
	if o.TailLines < 0 {
		o.TailLines = 0
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.Retry == (RetryPolicy{}) {
		o.Retry = d.Retry
	}
	if o.Classifier == nil {
		o.Classifier = classifier.Default()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Info is a point-in-time view of a session.
type Info struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	State      State     `json:"state"`
	RetryCount int       `json:"retryCount"`
	Delivered  uint64    `json:"delivered"`
	StartedAt  time.Time `json:"startedAt"`
}

// Session streams one source to one sink. A closed session is never reused.
type Session struct {
	id      string
	src     types.SourceID
	source  tail.Source
	sink    Sink
	opts    Options
	history *ringbuffer.Buffer[types.LogEntry]
	retry   *retrier
	logger  *zap.Logger
	now     func() time.Time
	started time.Time

	// Driver-owned.
	cursor *time.Time
	seq    uint64

	mu         sync.RWMutex
	state      State
	retryCount int
	delivered  uint64
	outcome    Outcome

	stop     chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
	endOnce  sync.Once
	done     chan struct{}
}

// NewSession creates an Idle session. Call Run to start it.
func NewSession(src types.SourceID, source tail.Source, sink Sink, opts Options) *Session {
	opts = opts.withDefaults()
	id := uuid.NewString()
	return &Session{
		id:      id,
		src:     src,
		source:  source,
		sink:    sink,
		opts:    opts,
		history: ringbuffer.New[types.LogEntry](opts.Capacity),
		retry:   newRetrier(opts.Retry, time.Now),
		logger:  opts.Logger.Named("session").With(zap.String("session", id), zap.String("source", src.String())),
		now:     time.Now,
		started: time.Now(),
		state:   StateIdle,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Source returns the tailed source.
func (s *Session) Source() types.SourceID { return s.src }

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Info returns a snapshot of the session's counters.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:         s.id,
		Source:     s.src.String(),
		State:      s.state,
		RetryCount: s.retryCount,
		Delivered:  s.delivered,
		StartedAt:  s.started,
	}
}

// Outcome reports how the session finished; empty while it runs.
func (s *Session) Outcome() Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome
}

// History returns an immutable copy of the buffered entries, oldest first.
func (s *Session) History() []types.LogEntry { return s.history.Snapshot() }

// Done is closed when the driver has exited and released the source.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop closes the session and waits for the driver to exit. Stop is
// idempotent. A session that was never run is closed immediately.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.runOnce.Do(func() {
		s.setState(StateClosed)
		s.finish(OutcomeCancelled, nil)
		close(s.done)
	})
	<-s.done
}

// Run drives the session until it closes. Cancelling ctx has the same
// effect as Stop. Run returns once the source handle is released.
func (s *Session) Run(ctx context.Context) {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return
	}
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	sessionsActive.Inc()
	defer sessionsActive.Dec()

	s.logger.Info("Session started")
	if a, ok := s.sink.(announcer); ok {
		payload := delivery.ConnectedPayload{SessionID: s.id, Source: s.src.String()}
		if res := s.deliver(ctx, func() delivery.Outcome { return a.SendEvent(delivery.EventConnected, payload) }); res != resultOK {
			s.close(res, nil)
			return
		}
	}

	s.setState(StateConnecting)
	for {
		if ctx.Err() != nil {
			s.close(resultCancelled, nil)
			return
		}

		h, err := s.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.close(resultCancelled, nil)
				return
			}
			if !s.recover(ctx, StateConnecting, err) {
				return
			}
			continue
		}

		s.setState(StateStreaming)
		res, err := s.pump(ctx, h)
		_ = h.Close()

		switch res {
		case resultSourceEnded, resultCancelled:
			s.close(res, nil)
			return
		case resultDeliveryFailed:
			s.setState(StateErroring)
			s.close(res, nil)
			return
		default:
			if !s.recover(ctx, StateStreaming, err) {
				return
			}
		}
	}
}

type result int

const (
	resultOK result = iota
	resultSourceEnded
	resultSourceFailed
	resultCancelled
	resultDeliveryFailed
)

// recover moves to Erroring and either waits out a backoff and returns to
// Connecting, or closes the session. It reports whether to reconnect.
func (s *Session) recover(ctx context.Context, from State, cause error) bool {
	s.setState(StateErroring)

	if tail.KindOf(cause) == tail.KindSourceUnavailable {
		s.logger.Warn("Source unavailable", zap.Error(cause))
		detail := cause
		if inner := errors.Unwrap(cause); inner != nil {
			detail = inner
		}
		s.close(resultSourceFailed, fmt.Errorf("source unavailable: %w", detail))
		return false
	}

	delay, ok := s.retry.next()
	if !ok {
		s.logger.Warn("Retry budget exhausted", zap.Error(cause), zap.Int("retry", s.retry.count))
		s.close(resultSourceFailed, errors.New(ReasonRetriesExhausted))
		return false
	}

	s.logger.Info("Log stream lost, reconnecting",
		zap.Stringer("from", from),
		zap.Int("retry", s.retry.count),
		zap.Duration("delay", delay),
		zap.Error(cause))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		s.close(resultCancelled, nil)
		return false
	case <-t.C:
	}
	if ctx.Err() != nil {
		s.close(resultCancelled, nil)
		return false
	}

	s.mu.Lock()
	s.retryCount = s.retry.count
	s.mu.Unlock()
	reconnectsTotal.Inc()
	s.setState(StateConnecting)
	return true
}

// open calls the source with a bounded wait. A handle that arrives after
// the wait is abandoned is closed.
func (s *Session) open(ctx context.Context) (tail.Handle, error) {
	opts := tail.Options{Follow: true, TailLines: s.opts.TailLines}
	if s.cursor != nil {
		since := *s.cursor
		opts.SinceTime = &since
		opts.TailLines = 0
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	type opened struct {
		h   tail.Handle
		err error
	}
	ch := make(chan opened, 1)
	go func() {
		h, err := s.source.Open(attemptCtx, s.src, opts)
		ch <- opened{h, err}
	}()

	abandon := func() {
		cancel()
		grace := time.NewTimer(lateOpenGrace)
		defer grace.Stop()
		select {
		case r := <-ch:
			if r.h != nil {
				_ = r.h.Close()
			}
		case <-grace.C:
			go func() {
				if r := <-ch; r.h != nil {
					_ = r.h.Close()
				}
			}()
		}
	}

	t := time.NewTimer(s.opts.ConnectTimeout)
	defer t.Stop()
	select {
	case r := <-ch:
		if r.err != nil {
			cancel()
			return nil, r.err
		}
		if ctx.Err() != nil {
			_ = r.h.Close()
			cancel()
			return nil, tail.Cancelled(s.src)
		}
		return &attemptHandle{Handle: r.h, cancel: cancel}, nil
	case <-t.C:
		abandon()
		return nil, tail.Lost(s.src, errConnectTimeout)
	case <-ctx.Done():
		abandon()
		return nil, tail.Cancelled(s.src)
	}
}

// pump moves lines from h to the sink until the feed ends or the session
// is interrupted.
func (s *Session) pump(ctx context.Context, h tail.Handle) (result, error) {
	resumed := s.cursor
	for {
		select {
		case <-ctx.Done():
			return resultCancelled, nil
		default:
		}

		select {
		case <-ctx.Done():
			return resultCancelled, nil
		case <-s.sink.Done():
			return resultDeliveryFailed, nil
		case line, ok := <-h.Lines():
			if !ok {
				err := h.Err()
				switch {
				case ctx.Err() != nil || (err != nil && tail.KindOf(err) == tail.KindCancelled):
					return resultCancelled, nil
				case err == nil:
					return resultSourceEnded, nil
				default:
					return resultSourceFailed, err
				}
			}
			if ctx.Err() != nil {
				return resultCancelled, nil
			}
			if resumed != nil && !line.Time.IsZero() && !line.Time.After(*resumed) {
				continue
			}

			entry := s.ingest(line)
			if s.history.Len() == s.history.Cap() {
				entriesEvicted.Inc()
			}
			s.history.Append(entry)
			if res := s.deliver(ctx, func() delivery.Outcome { return s.sink.Send(entry) }); res != resultOK {
				return res, nil
			}

			s.mu.Lock()
			s.delivered++
			if s.retry.count > 0 {
				s.retry.reset()
				s.retryCount = 0
			}
			s.mu.Unlock()
			entriesDelivered.Inc()
		}
	}
}

// deliver retries send until the sink accepts, closes or the session is interrupted.
func (s *Session) deliver(ctx context.Context, send func() delivery.Outcome) result {
	for {
		switch send() {
		case delivery.Ok:
			return resultOK
		case delivery.Closed:
			return resultDeliveryFailed
		}
		sendWouldBlock.Inc()
		select {
		case <-ctx.Done():
			return resultCancelled
		case <-s.sink.Done():
			return resultDeliveryFailed
		case <-s.sink.Ready():
		}
	}
}

func (s *Session) ingest(line tail.Line) types.LogEntry {
	s.seq++
	ts := line.Time
	if ts.IsZero() {
		ts = s.now()
	} else {
		t := ts
		s.cursor = &t
	}
	return types.LogEntry{
		ID:        uuid.NewString(),
		Seq:       s.seq,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Level:     s.opts.Classifier.Classify(line.Text),
		Message:   line.Text,
		SourceID:  s.src.String(),
	}
}

// close enters Closed and sends the terminal notification that fits res.
func (s *Session) close(res result, reason error) {
	s.setState(StateClosed)
	switch res {
	case resultSourceFailed:
		s.finish(OutcomeEndedError, &types.Termination{Kind: types.EndedError, Reason: reason.Error()})
	case resultSourceEnded:
		s.finish(OutcomeEndedNormally, &types.Termination{Kind: types.EndedNormally, Reason: "log stream ended"})
	case resultDeliveryFailed:
		s.finish(OutcomeDeliveryFailed, nil)
	default:
		s.finish(OutcomeCancelled, &types.Termination{Kind: types.EndedNormally})
	}
}

func (s *Session) finish(outcome Outcome, term *types.Termination) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.outcome = outcome
		s.mu.Unlock()
		sessionsTotal.WithLabelValues(string(outcome)).Inc()
		if term != nil {
			s.sink.End(*term)
		}
		s.logger.Info("Session closed", zap.String("outcome", string(outcome)))
	})
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from := s.state
	if from == to || from == StateClosed {
		s.mu.Unlock()
		return
	}
	if !CanTransition(from, to) {
		s.mu.Unlock()
		s.logger.DPanic("Illegal state transition", zap.Stringer("from", from), zap.Stringer("to", to))
		return
	}
	s.state = to
	s.mu.Unlock()

	s.logger.Debug("State changed", zap.Stringer("from", from), zap.Stringer("state", to))
	if s.opts.OnTransition != nil {
		s.opts.OnTransition(s.id, Transition{From: from, To: to})
	}
}

// attemptHandle releases the per-attempt context with the handle.
type attemptHandle struct {
	tail.Handle
	cancel context.CancelFunc
}

func (a *attemptHandle) Close() error {
	err := a.Handle.Close()
	a.cancel()
	return err
}
