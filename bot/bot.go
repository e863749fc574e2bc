// Package bot runs one IRC bot per configured server.
//
// A Bot dials its server, starts an irc.Conn, and runs the registration control
// loop and every plugin on their own handles of that connection. When the
// connection ends for any reason other than the bot quitting, the whole group is
// torn down and started again.
package bot

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"

	"github.com/wwared/boton/config"
	"github.com/wwared/boton/irc"
	"github.com/wwared/boton/irc/ircdebug"
	"github.com/wwared/boton/plugin"
)

const (
	dialTimeout = 30 * time.Second

	// quitTimeout bounds how long a stopping bot waits for the server to close the link after QUIT.
	quitTimeout = 3 * time.Second

	// teardownTimeout bounds how long a generation waits for its plugins to return.
	teardownTimeout = 5 * time.Second

	quitMessage = "closing link"
)

// A Bot supervises the connection to one server.
type Bot struct {
	// Server is the validated server section.
	Server *config.Server

	// Registry builds the plugins started on every connection.
	Registry *plugin.Registry

	// PluginConfig returns the settings for a plugin name. It may be nil.
	PluginConfig func(name string) plugin.Config

	// Dial opens the stream to the server. When nil, Server is dialed over TCP, with TLS if configured.
	Dial func(ctx context.Context) (io.ReadWriteCloser, error)

	Logger *slog.Logger
}

// New returns a Bot for s using the plugin table and settings in cfg.
func New(cfg *config.Config, s *config.Server, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("server", s.Label())
	return &Bot{
		Server:   s,
		Registry: plugin.NewRegistry(logger, Plugins(cfg.DataDir, logger)...),
		PluginConfig: func(name string) plugin.Config {
			return cfg.PluginConfig(s, name)
		},
		Logger: logger,
	}
}

// Run connects and reconnects until ctx is cancelled or a connection ends with an outcome this side requested.
// It returns nil in both cases; there is no attempt limit.
func (b *Bot) Run(ctx context.Context) error {
	if b.Logger == nil {
		b.Logger = slog.Default()
	}
	enc, err := irc.LookupEncoding(b.Server.Encoding)
	if err != nil {
		return err
	}

	for {
		out, err := b.runOnce(ctx, enc)
		if ctx.Err() != nil {
			b.Logger.Info("[bot] stopped")
			return nil
		}
		if err == nil && out.Requested() {
			b.Logger.Info("[bot] connection closed", "outcome", out.String())
			return nil
		}
		if err == nil {
			err = errors.New(out.String())
		}
		b.Logger.Warn("[bot] connection lost, restarting", "error", err)

		if d := b.Server.ReconnectDelay.Duration; d > 0 {
			select {
			case <-ctx.Done():
				b.Logger.Info("[bot] stopped")
				return nil
			case <-time.After(d):
			}
		}
	}
}

// runOnce runs one generation: a connection, its control loop and its plugins.
// Every task of the generation has returned when runOnce returns.
func (b *Bot) runOnce(ctx context.Context, enc encoding.Encoding) (irc.Outcome, error) {
	logger := b.Logger.With("generation", uuid.NewString())
	logger.Info("[bot] connecting", "addr", b.Server.Addr(), "tls", b.Server.TLS)

	rwc, err := b.dial(ctx)
	if err != nil {
		return irc.Outcome{}, fmt.Errorf("dial %s: %w", b.Server.Addr(), err)
	}
	if b.Server.DebugWire {
		rwc = ircdebug.WriteTo(os.Stderr, rwc, "-> ", "<- ")
	}

	conn := irc.NewConn(b.Server.Label(), rwc, irc.WithLogger(logger), irc.WithEncoding(enc))
	// subscribe before the stream starts so nothing is missed
	controlClient := conn.Client()
	pluginClient := conn.Client()

	// the connection outlives ctx long enough to send QUIT
	connCtx, stopConn := context.WithCancel(context.Background())
	defer stopConn()
	conn.Start(connCtx)

	groupCtx, stopGroup := context.WithCancel(ctx)
	defer stopGroup()

	control := NewControl(Identity{
		Nick:     b.Server.Nick,
		Ident:    b.Server.Ident,
		RealName: b.Server.RealName,
		Channels: b.Server.Channels,
	}, logger)
	controlDone := make(chan error, 1)
	go func() {
		controlDone <- control.Run(groupCtx, controlClient)
	}()

	group, err := b.Registry.Spawn(groupCtx, b.Server.Label(), b.PluginConfig, pluginClient, b.Server.Plugins)
	if err != nil {
		logger.Error("[bot] plugins not started", "error", err)
	}

	select {
	case <-conn.Done():
	case <-ctx.Done():
		b.quit(conn, controlClient, logger)
	}

	stopGroup()
	group.Cancel()
	stopConn()

	wait, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	select {
	case err := <-controlDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("[bot] control loop ended", "error", err)
		}
	case <-wait.Done():
		logger.Warn("[bot] control loop did not stop")
	}
	if err := group.Wait(wait); err != nil {
		logger.Warn("[bot] plugins did not stop", "error", err)
	}

	out := conn.Outcome()
	logger.Debug("[bot] generation finished", "outcome", out.String(), "state", control.State().String())
	return out, nil
}

// quit sends QUIT and waits for the server to close the link.
func (b *Bot) quit(conn *irc.Conn, c *irc.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
	defer cancel()
	if err := c.Quit(ctx, quitMessage); err != nil {
		logger.Debug("[bot] quit not sent", "error", err)
		return
	}
	if _, err := conn.Wait(ctx); err != nil {
		logger.Debug("[bot] server did not close the link after QUIT")
	}
}

func (b *Bot) dial(ctx context.Context) (io.ReadWriteCloser, error) {
	if b.Dial != nil {
		return b.Dial(ctx)
	}
	d := &net.Dialer{Timeout: dialTimeout}
	if !b.Server.TLS {
		return d.DialContext(ctx, "tcp", b.Server.Addr())
	}
	td := &tls.Dialer{
		NetDialer: d,
		Config: &tls.Config{
			ServerName:         b.Server.Host,
			InsecureSkipVerify: !b.Server.VerifyTLS,
		},
	}
	return td.DialContext(ctx, "tcp", b.Server.Addr())
}
