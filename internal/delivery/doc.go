// Package delivery frames classified log entries for a subscriber and writes
// them over a long-lived connection.
//
// # Wire format
//
// The transport is Server-Sent Events. Each LogEntry is one self-delimited
// frame terminated by a blank line, so a reader can resynchronise at the next
// record boundary after a partial read:
//
//	data: {"id":"…","seq":1,"timestamp":"…","level":"ERROR","message":"…","sourceId":"…"}
//
// Control frames name an event:
//
//	event: connected   {"sessionId":"…"}
//	event: end         {"reason":"ended-normally"}
//	event: error       {"error":"…"} (terminal failure, sent before the connection closes)
//
// Lines beginning with ':' are keepalive comments and carry no data.
//
// # Channel
//
// Channel owns a single writer goroutine. Send never blocks: it places a frame
// in the single hand-off slot if it is free and returns WouldBlock otherwise.
// There is no queue inside the channel beyond that slot and the transport's
// own I/O buffer; the
// producer keeps undelivered entries in its bounded history and retries when
// Ready fires. A failed write closes the channel and every later Send reports
// Closed.
package delivery
