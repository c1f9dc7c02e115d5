package tail

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kubelogx/kubelogx/internal/types"
)

// maxLineBytes bounds a single line; longer lines fail the feed as ConnectionLost.
const maxLineBytes = 1 << 20

// readerHandle turns a byte stream into a Handle.
type readerHandle struct {
	src        types.SourceID
	rc         io.ReadCloser
	cancel     context.CancelFunc
	follow     bool
	timestamps bool
	now        func() time.Time

	lines     chan Line
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
	err       error
}

// NewReaderHandle starts reading newline-delimited text from rc. When
// timestamps is set, a leading RFC3339Nano field is stripped into Line.Time.
// cancel, if non-nil, is called on Close to abort the underlying request.
func NewReaderHandle(src types.SourceID, rc io.ReadCloser, cancel context.CancelFunc, follow, timestamps bool) Handle {
	h := &readerHandle{
		src:        src,
		rc:         rc,
		cancel:     cancel,
		follow:     follow,
		timestamps: timestamps,
		now:        time.Now,
		lines:      make(chan Line),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *readerHandle) Lines() <-chan Line { return h.lines }

func (h *readerHandle) Err() error { return h.err }

func (h *readerHandle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		if h.cancel != nil {
			h.cancel()
		}
		_ = h.rc.Close()
	})
	<-h.exited
	return nil
}

func (h *readerHandle) run() {
	defer close(h.exited)
	defer close(h.lines)

	sc := bufio.NewScanner(h.rc)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := h.parse(strings.TrimRight(sc.Text(), "\r"))
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		select {
		case <-h.done:
			h.err = Cancelled(h.src)
			return
		default:
		}
		select {
		case h.lines <- line:
		case <-h.done:
			h.err = Cancelled(h.src)
			return
		}
	}

	select {
	case <-h.done:
		h.err = Cancelled(h.src)
		return
	default:
	}

	err := sc.Err()
	switch {
	case err == nil && !h.follow:
		h.err = nil
	case err == nil:
		h.err = Lost(h.src, errors.New("log stream ended"))
	case errors.Is(err, context.Canceled):
		h.err = Cancelled(h.src)
	default:
		h.err = Lost(h.src, err)
	}
}

func (h *readerHandle) parse(text string) Line {
	if h.timestamps {
		if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return Line{Text: "", Time: ts}
		}
		if i := strings.IndexByte(text, ' '); i > 0 {
			if ts, err := time.Parse(time.RFC3339Nano, text[:i]); err == nil {
				return Line{Text: text[i+1:], Time: ts}
			}
		}
	}
	return Line{Text: text, Time: h.now()}
}
