package testutil

import (
	"sync"

	"github.com/kubelogx/kubelogx/internal/delivery"
	"github.com/kubelogx/kubelogx/internal/types"
)

// RecordingSink captures everything a session delivers.
type RecordingSink struct {
	// BlockFirst makes the first N sends report WouldBlock.
	BlockFirst int
	// FailAfter closes the sink after N accepted entries. Zero disables it.
	FailAfter int

	mu       sync.Mutex
	entries  []types.LogEntry
	events   []string
	ends     []types.Termination
	blocked  int
	ready    chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// NewRecordingSink returns an open sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Send records e.
func (r *RecordingSink) Send(e types.LogEntry) delivery.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isClosed() {
		return delivery.Closed
	}
	if r.blocked < r.BlockFirst {
		r.blocked++
		select {
		case r.ready <- struct{}{}:
		default:
		}
		return delivery.WouldBlock
	}
	r.entries = append(r.entries, e)
	if r.FailAfter > 0 && len(r.entries) >= r.FailAfter {
		r.doneOnce.Do(func() { close(r.done) })
	}
	return delivery.Ok
}

// SendEvent records a control event name.
func (r *RecordingSink) SendEvent(event string, _ any) delivery.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isClosed() {
		return delivery.Closed
	}
	r.events = append(r.events, event)
	return delivery.Ok
}

// Ready implements the sink contract.
func (r *RecordingSink) Ready() <-chan struct{} { return r.ready }

// Done implements the sink contract.
func (r *RecordingSink) Done() <-chan struct{} { return r.done }

// End records every terminal notification, duplicates included.
func (r *RecordingSink) End(t types.Termination) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, t)
}

// Disconnect simulates the subscriber going away.
func (r *RecordingSink) Disconnect() {
	r.doneOnce.Do(func() { close(r.done) })
}

// Entries returns a copy of the delivered entries.
func (r *RecordingSink) Entries() []types.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the delivered messages in order.
func (r *RecordingSink) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Message
	}
	return out
}

// Events returns the control events sent so far.
func (r *RecordingSink) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Ends returns every terminal notification received.
func (r *RecordingSink) Ends() []types.Termination {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Termination, len(r.ends))
	copy(out, r.ends)
	return out
}

func (r *RecordingSink) isClosed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
