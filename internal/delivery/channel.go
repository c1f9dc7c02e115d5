package delivery

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kubelogx/kubelogx/internal/types"
)

// Outcome is the result of a Send.
type Outcome int

const (
	// Ok means the frame was handed to the writer.
	Ok Outcome = iota
	// WouldBlock means the writer is busy; retry after Ready fires.
	WouldBlock
	// Closed means the subscriber is gone or the channel was ended.
	Closed
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "Ok"
	case WouldBlock:
		return "WouldBlock"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ErrChannelClosed is reported by Err after a local Close.
var ErrChannelClosed = errors.New("delivery channel closed")

// ChannelOptions configures a Channel.
type ChannelOptions struct {
	// Flush pushes buffered bytes to the subscriber after every frame.
	Flush func() error
	// SetWriteDeadline, when set, bounds each frame write by WriteTimeout.
	SetWriteDeadline func(time.Time) error
	// WriteTimeout is the per-frame deadline. Default: 10s.
	WriteTimeout time.Duration
	// Heartbeat sends a keepalive comment when idle this long. Zero disables it.
	Heartbeat time.Duration
	// Logger for channel operations.
	Logger *zap.Logger
}

// Channel delivers frames to one subscriber.
type Channel struct {
	w    io.Writer
	opts ChannelOptions

	frames   chan frame
	ready    chan struct{}
	closed   chan struct{}
	finished chan struct{}

	closeOnce sync.Once
	endOnce   sync.Once
	ended     atomic.Bool
	mu        sync.Mutex
	err       error
	logger    *zap.Logger
}

// NewChannel starts a Channel writing to w.
func NewChannel(w io.Writer, opts ChannelOptions) *Channel {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	c := &Channel{
		w:        w,
		opts:     opts,
		frames:   make(chan frame, 1),
		ready:    make(chan struct{}, 1),
		closed:   make(chan struct{}),
		finished: make(chan struct{}),
		logger:   opts.Logger.Named("delivery"),
	}
	go c.run()
	return c
}

// Send frames e and hands it to the writer without blocking.
func (c *Channel) Send(e types.LogEntry) Outcome {
	select {
	case <-c.closed:
		return Closed
	default:
	}
	b, err := EncodeEntry(e)
	if err != nil {
		c.logger.Error("Dropping unencodable entry", zap.String("id", e.ID), zap.Error(err))
		return Ok
	}
	return c.offer(b)
}

// SendEvent hands a control frame to the writer without blocking.
func (c *Channel) SendEvent(event string, payload any) Outcome {
	b, err := EncodeEvent(event, payload)
	if err != nil {
		c.logger.Error("Dropping unencodable event", zap.String("event", event), zap.Error(err))
		return Ok
	}
	return c.offer(b)
}

type frame struct {
	b    []byte
	last bool
}

func (c *Channel) offer(b []byte) Outcome {
	if c.ended.Load() {
		return Closed
	}
	select {
	case <-c.closed:
		return Closed
	default:
	}
	select {
	case c.frames <- frame{b: b}:
		return Ok
	case <-c.closed:
		return Closed
	default:
		return WouldBlock
	}
}

// Ready fires after the writer finishes a frame. A WouldBlock outcome is
// always followed by a Ready signal or by Done.
func (c *Channel) Ready() <-chan struct{} { return c.ready }

// Done is closed once the channel can no longer deliver.
func (c *Channel) Done() <-chan struct{} { return c.closed }

// End writes the terminal notification and closes the channel. Only the
// first call has an effect.
func (c *Channel) End(t types.Termination) {
	c.endOnce.Do(func() {
		c.ended.Store(true)
		b, err := EncodeTermination(t)
		if err != nil {
			c.logger.Error("Encoding termination", zap.Error(err))
			c.Close()
			return
		}
		select {
		case c.frames <- frame{b: b, last: true}:
			<-c.finished
		case <-c.closed:
		}
		c.Close()
	})
}

// Close stops the writer and waits for it to exit. Close is idempotent.
func (c *Channel) Close() {
	c.fail(ErrChannelClosed)
	<-c.finished
}

// Err reports why the channel closed, or nil while it is open.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Channel) fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *Channel) run() {
	defer close(c.finished)

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	if c.opts.Heartbeat > 0 {
		ticker = time.NewTicker(c.opts.Heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.closed:
			return
		case f := <-c.frames:
			if err := c.write(f.b); err != nil {
				c.logger.Debug("Subscriber write failed", zap.Error(err))
				c.fail(err)
				return
			}
			if f.last {
				c.fail(ErrChannelClosed)
				return
			}
			if ticker != nil {
				ticker.Reset(c.opts.Heartbeat)
			}
			select {
			case c.ready <- struct{}{}:
			default:
			}
		case <-tick:
			if err := c.write(keepaliveFrame); err != nil {
				c.fail(err)
				return
			}
		}
	}
}

func (c *Channel) write(b []byte) error {
	if c.opts.SetWriteDeadline != nil {
		if err := c.opts.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			c.logger.Debug("Write deadline unsupported", zap.Error(err))
			c.opts.SetWriteDeadline = nil
		}
	}
	if _, err := c.w.Write(b); err != nil {
		return err
	}
	if c.opts.Flush != nil {
		return c.opts.Flush()
	}
	return nil
}
