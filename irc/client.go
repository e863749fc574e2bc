package irc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// A Client is a cheap handle onto a running Conn.
//
// Every Client owns an independent subscription to the connection's received
// messages and shares the connection's outbound queue with all other handles.
// Sending is safe from any goroutine; Recv must only be called from one.
// Handles may outlive the connection: after it finishes, Send returns
// ErrConnClosed and Recv drains what is left before returning ErrClosed.
type Client struct {
	conn *Conn
	sub  *Subscription
}

// Clone returns a new handle for the same connection with a fresh subscription.
// The clone receives messages published after it was created.
func (c *Client) Clone() *Client {
	return c.conn.Client()
}

// Server returns the label of the server this handle belongs to.
func (c *Client) Server() string {
	return c.conn.server
}

// Logger returns the connection's logger.
func (c *Client) Logger() *slog.Logger {
	return c.conn.log
}

// Done is closed when the underlying connection has finished.
func (c *Client) Done() <-chan struct{} {
	return c.conn.done
}

// Recv returns the next received message.
// It returns a *LaggedError when messages were dropped because this handle fell behind,
// and ErrClosed once the connection finished and every retained message was received.
func (c *Client) Recv(ctx context.Context) (*Message, error) {
	return c.sub.Recv(ctx)
}

// Send enqueues m on the shared outbound queue.
// It blocks while the queue is full, and fails with ErrConnClosed once the connection has finished.
// Messages that fail Message.Validate are rejected before queueing, so a
// malformed message never reaches the write loop.
func (c *Client) Send(ctx context.Context, m *Message) error {
	return c.conn.send(ctx, m)
}

// WriteMessage implements MessageWriter.
func (c *Client) WriteMessage(ctx context.Context, m *Message) error {
	return c.Send(ctx, m)
}

// Authenticate registers with the server by sending USER followed by NICK.
func (c *Client) Authenticate(ctx context.Context, nick, ident, realname string) error {
	if err := c.Send(ctx, UserCmd(ident, realname)); err != nil {
		return fmt.Errorf("send USER: %w", err)
	}
	if err := c.Send(ctx, Nick(nick)); err != nil {
		return fmt.Errorf("send NICK: %w", err)
	}
	return nil
}

// Join sends one JOIN per channel, in order.
func (c *Client) Join(ctx context.Context, channels []string) error {
	for _, ch := range channels {
		if err := c.Send(ctx, Join(ch)); err != nil {
			return fmt.Errorf("join %s: %w", ch, err)
		}
	}
	return nil
}

// ReplyPong answers a received PING by sending it back, which encodes as PONG
// with the same parameters.
func (c *Client) ReplyPong(ctx context.Context, ping *Message) error {
	if ping == nil || ping.Command != CmdPing {
		return errors.New("reply pong: message is not a PING")
	}
	return c.Send(ctx, ping)
}

// ReplyNickInUse answers ERR_NICKNAMEINUSE by requesting the rejected nickname
// with "_" appended.
//
// Format: "<client> <nick> :Nickname is already in use"
func (c *Client) ReplyNickInUse(ctx context.Context, m *Message) error {
	if m == nil || m.Command != ErrNicknameInUse {
		return errors.New("reply nick in use: message is not ERR_NICKNAMEINUSE")
	}
	rejected := m.Params.Get(1)
	if rejected == "" {
		return fmt.Errorf("reply nick in use: missing nickname in %q", m)
	}
	return c.Send(ctx, Nick(rejected+"_"))
}

// Privmsg sends text to target.
func (c *Client) Privmsg(ctx context.Context, target, text string) error {
	return c.Send(ctx, Privmsg(target, text))
}

// Quit asks the server to close the session.
// A connection whose peer closes after a QUIT ends with ExitQuit.
func (c *Client) Quit(ctx context.Context, reason string) error {
	return c.Send(ctx, Quit(reason))
}
