// Package stream drives one subscriber's live view of a container log.
//
// A Session binds a tail.Source to a delivery sink and walks a small state
// machine:
//
//	Idle → Connecting → Streaming ⇄ Erroring → Closed
//
// Every line read while Streaming is classified, appended to the session's
// bounded history and handed to the sink as one step, in arrival order.
// ConnectionLost failures are retried under a RetryPolicy; SourceUnavailable
// and an exhausted retry budget close the session with a single ended-error
// notification. An explicit Stop, or cancellation of the context passed to
// Run, closes the session from any state and takes priority over pending
// lines.
//
// Manager keeps the set of live sessions and is what the HTTP layer talks to.
package stream
