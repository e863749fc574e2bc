package bot

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/wwared/boton/irc"
)

// State is the progress of the registration handshake on one connection.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateJoining
	StateSteady
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoining:
		return "joining"
	case StateSteady:
		return "steady"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Identity is what the bot registers with.
type Identity struct {
	Nick     string
	Ident    string
	RealName string
	Channels []string
}

// Control drives registration on one connection: it authenticates, answers
// PING, retries a taken nickname once with a suffix, and joins the configured
// channels after the welcome reply. Joins are not retried or confirmed.
type Control struct {
	id     Identity
	logger *slog.Logger
	state  atomic.Int32
}

// NewControl returns a control loop in StateConnecting.
func NewControl(id Identity, logger *slog.Logger) *Control {
	if logger == nil {
		logger = slog.Default()
	}
	return &Control{id: id, logger: logger}
}

// State returns the current handshake state. It is safe to call from any goroutine.
func (c *Control) State() State {
	return State(c.state.Load())
}

func (c *Control) setState(s State) {
	if old := State(c.state.Swap(int32(s))); old != s {
		c.logger.Debug("[control] state", "from", old.String(), "to", s.String())
	}
}

// Run registers on client and handles control messages until client's stream
// ends or ctx is cancelled.
func (c *Control) Run(ctx context.Context, client *irc.Client) error {
	defer c.setState(StateTerminated)

	c.setState(StateAuthenticating)
	if err := client.Authenticate(ctx, c.id.Nick, c.id.Ident, c.id.RealName); err != nil {
		return err
	}

	h := irc.Wrap(irc.HandlerFunc(c.ignore),
		irc.PingMiddleware,
		c.nickInUse(client),
		c.welcome(client),
	)
	return irc.Serve(ctx, client, h)
}

func (c *Control) nickInUse(client *irc.Client) irc.Middleware {
	return func(next irc.Handler) irc.Handler {
		return irc.HandlerFunc(func(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
			if m.Command != irc.ErrNicknameInUse {
				next.SpeakIRC(ctx, w, m)
				return
			}
			c.logger.Info("[control] nickname in use", "nick", m.Params.Get(1))
			c.setState(StateAuthenticating)
			if err := client.ReplyNickInUse(ctx, m); err != nil {
				c.logger.Warn("[control] nickname retry failed", "error", err)
			}
		})
	}
}

func (c *Control) welcome(client *irc.Client) irc.Middleware {
	return func(next irc.Handler) irc.Handler {
		return irc.HandlerFunc(func(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
			if m.Command != irc.RplWelcome {
				next.SpeakIRC(ctx, w, m)
				return
			}
			c.logger.Info("[control] registered", "nick", m.Target)
			c.setState(StateJoining)
			if err := client.Join(ctx, c.id.Channels); err != nil {
				c.logger.Warn("[control] join failed", "error", err)
				return
			}
			c.setState(StateSteady)
		})
	}
}

func (c *Control) ignore(ctx context.Context, _ irc.MessageWriter, m *irc.Message) {
	c.logger.Log(ctx, irc.LevelTrace, "[control] ignoring", "message", m.String())
}
