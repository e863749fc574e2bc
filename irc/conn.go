package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/text/encoding"
)

const (
	readBufferSize = 4 * 1024
	recvBufferSize = 16
	sendQueueSize  = 16
)

var (
	// ErrConnClosed is returned when sending on a connection whose tasks have finished.
	ErrConnClosed = errors.New("connection closed")

	// ErrPartialLine means the peer closed the stream in the middle of a line.
	ErrPartialLine = errors.New("peer closed the connection mid-line")
)

// ExitReason classifies how a connection ended.
type ExitReason int

const (
	// ExitPeerClosed means the peer closed the stream at a line boundary
	// without the client having asked to quit.
	ExitPeerClosed ExitReason = iota
	// ExitQuit means the peer closed the stream after the client sent QUIT.
	ExitQuit
	// ExitCancelled means the owner cancelled the connection.
	ExitCancelled
	// ExitFailed means a read, write, or encode error ended the connection.
	ExitFailed
)

func (r ExitReason) String() string {
	switch r {
	case ExitPeerClosed:
		return "peer closed"
	case ExitQuit:
		return "quit"
	case ExitCancelled:
		return "cancelled"
	case ExitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a connection.
// Err is only set when Reason is ExitFailed.
type Outcome struct {
	Reason ExitReason
	Err    error
}

// Requested reports whether the connection ended because this side asked it
// to, by sending QUIT or cancelling the context. ExitPeerClosed is an orderly
// close that nobody here requested, so the supervisor reconnects after it.
func (o Outcome) Requested() bool {
	return o.Reason == ExitQuit || o.Reason == ExitCancelled
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Reason, o.Err)
	}
	return o.Reason.String()
}

// A ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger sets the logger used for decode failures and wire tracing.
func WithLogger(l *slog.Logger) ConnOption {
	return func(c *Conn) {
		if l != nil {
			c.log = l
		}
	}
}

// WithEncoding sets the text encoding of the stream. The default is UTF-8.
func WithEncoding(enc encoding.Encoding) ConnOption {
	return func(c *Conn) {
		if enc != nil {
			c.enc = enc
		}
	}
}

// WithBufferSize sets how many received messages are retained for subscribers.
func WithBufferSize(n int) ConnOption {
	return func(c *Conn) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithQueueSize sets the capacity of the outbound queue.
func WithQueueSize(n int) ConnOption {
	return func(c *Conn) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// A Conn owns one established IRC stream.
//
// Start runs two goroutines for the lifetime of the stream: a read loop that
// frames and decodes lines and publishes them to every subscribed Client, and a
// write loop that drains the shared outbound queue one message at a time.
// No other component touches the stream.
type Conn struct {
	server     string
	rwc        io.ReadWriteCloser
	log        *slog.Logger
	enc        encoding.Encoding
	bufferSize int
	queueSize  int

	events *broadcast
	queue  chan *Message

	// quitting is set once a QUIT was written, so that a following EOF counts as ExitQuit.
	quitting atomic.Bool
	// stopping is set before the stream is closed from our side, so that the
	// resulting read error is not mistaken for a transport failure.
	stopping atomic.Bool

	startOnce sync.Once
	done      chan struct{}
	outcome   Outcome
}

// NewConn wraps an established stream. server labels log lines and handles.
// Nothing is read or written until Start is called.
func NewConn(server string, rwc io.ReadWriteCloser, opts ...ConnOption) *Conn {
	c := &Conn{
		server:     server,
		rwc:        rwc,
		log:        nopLogger(),
		bufferSize: recvBufferSize,
		queueSize:  sendQueueSize,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = newBroadcast(c.bufferSize)
	c.queue = make(chan *Message, c.queueSize)
	return c
}

// Server returns the label the connection was created with.
func (c *Conn) Server() string {
	return c.server
}

// Client returns a new handle with its own subscription starting at the next received message.
// Handles created before Start see every message.
func (c *Conn) Client() *Client {
	return &Client{conn: c, sub: c.events.subscribe()}
}

// Start launches the read and write loops. They run until the stream fails,
// the peer closes it, or ctx is cancelled. Calling Start more than once has no effect.
func (c *Conn) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.run(ctx)
	})
}

// Done is closed once both loops have finished and the stream is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Outcome returns how the connection ended. It is only meaningful after Done is closed.
func (c *Conn) Outcome() Outcome {
	<-c.done
	return c.outcome
}

// Wait blocks until the connection has finished or ctx is done.
func (c *Conn) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-c.done:
		return c.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (c *Conn) run(parent context.Context) {
	defer close(c.done)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	readC := make(chan Outcome, 1)
	writeC := make(chan error, 1)
	go func() { readC <- c.readLoop(ctx) }()
	go func() { writeC <- c.writeLoop(ctx) }()

	var (
		read      Outcome
		werr      error
		readDone  bool
		writeDone bool
	)
	select {
	case read = <-readC:
		readDone = true
	case werr = <-writeC:
		writeDone = true
	case <-ctx.Done():
	}

	// whichever loop ends first takes the other down with it.
	// the read loop can only be interrupted by closing the stream.
	c.stopping.Store(true)
	cancel()
	if err := c.rwc.Close(); err != nil {
		c.log.Debug("closing stream", "error", err)
	}
	if !readDone {
		read = <-readC
	}
	if !writeDone {
		werr = <-writeC
	}
	c.events.close()

	switch {
	case read.Reason == ExitFailed:
		c.outcome = read
	case werr != nil:
		c.outcome = Outcome{Reason: ExitFailed, Err: werr}
	case parent.Err() != nil:
		c.outcome = Outcome{Reason: ExitCancelled}
	default:
		c.outcome = read
	}
	c.log.Debug("connection finished", "outcome", c.outcome.String())
}

func (c *Conn) readLoop(ctx context.Context) Outcome {
	lb := newLineBuffer(c.enc)
	p := make([]byte, readBufferSize)
	for {
		n, err := c.rwc.Read(p)
		if n > 0 {
			_, _ = lb.Write(p[:n])
			for _, line := range lb.lines() {
				c.dispatch(ctx, line)
			}
		}
		if err == nil {
			continue
		}
		if c.stopping.Load() {
			return Outcome{Reason: ExitCancelled}
		}
		if !errors.Is(err, io.EOF) {
			return Outcome{Reason: ExitFailed, Err: fmt.Errorf("read: %w", err)}
		}
		if lb.Len() > 0 {
			return Outcome{Reason: ExitFailed, Err: fmt.Errorf("%w: %d bytes unread", ErrPartialLine, lb.Len())}
		}
		if c.quitting.Load() {
			return Outcome{Reason: ExitQuit}
		}
		return Outcome{Reason: ExitPeerClosed}
	}
}

// dispatch decodes one line and publishes it.
// A parse error might be caused by a malformed line from the remote server
// or a bug in our message parser. Both cases are interesting but not
// a reason to drop the connection.
func (c *Conn) dispatch(ctx context.Context, line string) {
	if line == "" {
		return
	}
	c.log.Log(ctx, LevelTrace, "<-", "line", line)
	m, err := Decode(line)
	if err != nil {
		c.log.Warn("dropping malformed line", "error", err)
		return
	}
	c.events.publish(m)
}

func (c *Conn) writeLoop(ctx context.Context) error {
	w := bufio.NewWriter(c.rwc)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-c.queue:
			b, err := m.MarshalText()
			if err != nil {
				return fmt.Errorf("encode %s: %w", m.Command, err)
			}
			if m.Command.Is(CmdQuit) {
				c.quitting.Store(true)
			}
			if _, err := w.Write(b); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			c.log.Log(ctx, LevelTrace, "->", "line", string(b[:len(b)-2]))
		}
	}
}

// send enqueues m for the write loop.
func (c *Conn) send(ctx context.Context, m *Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.queue <- m:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
