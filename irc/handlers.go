package irc

import (
	"context"
	"errors"
)

// A Handler reacts to one received message of any command, numerics included.
// Choosing which handler sees which message is left to the caller; see Router.
//
// m is shared with every other subscriber and must not be modified.
type Handler interface {
	SpeakIRC(context.Context, MessageWriter, *Message)
}

// HandlerFunc lets a plain function serve as a Handler, as http.HandlerFunc does for HTTP.
type HandlerFunc func(context.Context, MessageWriter, *Message)

// SpeakIRC calls f(ctx, w, m).
func (f HandlerFunc) SpeakIRC(ctx context.Context, w MessageWriter, m *Message) {
	f(ctx, w, m)
}

// MessageWriter queues a message for the connection. *Client implements it.
type MessageWriter interface {
	WriteMessage(context.Context, *Message) error
}

// Middleware decorates a Handler.
type Middleware func(Handler) Handler

var noop HandlerFunc = func(context.Context, MessageWriter, *Message) {}

// Wrap applies mw to h so that the first middleware runs first.
func Wrap(h Handler, mw ...Middleware) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// PingMiddleware answers PING with PONG and hides it from next.
func PingMiddleware(next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, w MessageWriter, m *Message) {
		if m.Command != CmdPing {
			next.SpeakIRC(ctx, w, m)
			return
		}
		if err := w.WriteMessage(ctx, m); err != nil {
			logWriteError(w, m, err)
		}
	})
}

// Serve receives messages from c and calls h for each one, in order,
// until the connection's stream is drained or ctx is done.
//
// Messages dropped because the handler fell behind are logged and skipped.
// Serve returns nil once the stream is closed, and ctx.Err() when ctx ends first.
func Serve(ctx context.Context, c *Client, h Handler) error {
	if h == nil {
		h = noop
	}
	for {
		m, err := c.Recv(ctx)
		switch {
		case err == nil:
			h.SpeakIRC(ctx, c, m)
		case errors.Is(err, ErrLagged):
			c.Logger().Warn("handler fell behind", "server", c.Server(), "error", err)
		case errors.Is(err, ErrClosed):
			return nil
		default:
			return err
		}
	}
}

func logWriteError(w MessageWriter, m *Message, err error) {
	if c, ok := w.(*Client); ok {
		c.Logger().Warn("write failed", "server", c.Server(), "command", m.Command.String(), "error", err)
	}
}
