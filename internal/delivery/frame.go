package delivery

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kubelogx/kubelogx/internal/types"
)

// Event names used on control frames.
const (
	EventMessage   = "message"
	EventConnected = "connected"
	EventEnd       = "end"
	EventError     = "error"
)

var keepaliveFrame = []byte(": keepalive\n\n")

// Frame is one decoded SSE record.
type Frame struct {
	// Event defaults to "message" when the record has no event field.
	Event string
	Data  []byte
}

// ConnectedPayload is the body of the connected event.
type ConnectedPayload struct {
	SessionID string `json:"sessionId"`
	Source    string `json:"source"`
}

// EndPayload is the body of the end event.
type EndPayload struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// ErrorPayload is the body of the error event.
type ErrorPayload struct {
	Error string `json:"error"`
}

// EncodeEntry frames a LogEntry as a data-only record.
func EncodeEntry(e types.LogEntry) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	buf := make([]byte, 0, len(b)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, b...)
	buf = append(buf, "\n\n"...)
	return buf, nil
}

// EncodeEvent frames payload under a named event.
func EncodeEvent(event string, payload any) ([]byte, error) {
	if event == "" || strings.ContainsAny(event, "\r\n") {
		return nil, fmt.Errorf("invalid event name %q", event)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", event, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(b) + len(event) + 16)
	buf.WriteString("event: ")
	buf.WriteString(event)
	buf.WriteString("\ndata: ")
	buf.Write(b)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// EncodeTermination frames the terminal notification: an error event for
// failures, an end event otherwise.
func EncodeTermination(t types.Termination) ([]byte, error) {
	if t.Kind == types.EndedError {
		return EncodeEvent(EventError, ErrorPayload{Error: t.Reason})
	}
	return EncodeEvent(EventEnd, EndPayload{Reason: string(types.EndedNormally), Detail: t.Reason})
}

// DecodeEntry parses the data of a message frame.
func DecodeEntry(f Frame) (types.LogEntry, error) {
	if f.Event != EventMessage {
		return types.LogEntry{}, fmt.Errorf("frame is a %q event, not an entry", f.Event)
	}
	var e types.LogEntry
	if err := json.Unmarshal(f.Data, &e); err != nil {
		return types.LogEntry{}, fmt.Errorf("decode entry: %w", err)
	}
	if e.Level == "" {
		e.Level = types.LevelUnknown
	} else {
		e.Level = types.ParseLevel(string(e.Level))
	}
	return e, nil
}

// Decoder reads frames from an SSE byte stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next complete frame. Comment-only records are skipped.
// A trailing record cut off by EOF is discarded and io.EOF returned.
func (d *Decoder) Next() (Frame, error) {
	var (
		event   string
		data    [][]byte
		hasData bool
	)
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}
		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			if !hasData {
				event = ""
				continue
			}
			if event == "" {
				event = EventMessage
			}
			return Frame{Event: event, Data: bytes.Join(data, []byte("\n"))}, nil
		}
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}
		switch string(field) {
		case "event":
			event = string(value)
		case "data":
			data = append(data, append([]byte(nil), value...))
			hasData = true
		}
	}
}
