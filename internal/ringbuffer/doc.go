// Package ringbuffer provides a fixed-capacity FIFO that evicts its oldest
// element on overflow.
//
// After any sequence of appends, Len() == min(Total(), Cap()) and Snapshot()
// returns exactly the last Cap() appended values in arrival order. Append is
// O(1), never blocks and never fails.
//
// A Buffer is safe for concurrent use. Snapshot returns a copy, so readers
// observe either the state before or after a concurrent Append or Clear and
// never a partial one.
package ringbuffer
