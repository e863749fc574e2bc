// Package echo thanks users for every message they send. It is mostly useful
// for checking that a connection delivers and sends messages.
package echo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wwared/boton/irc"
	"github.com/wwared/boton/plugin"
)

// Name is the plugin's table and configuration name.
const Name = "echo"

// Kind registers echo, disabled unless a server lists it. It takes no configuration.
func Kind(logger *slog.Logger) plugin.Kind {
	return plugin.Kind{
		Name: Name,
		Build: func(server string, _ plugin.Config) (plugin.Plugin, error) {
			return New(logger.With("plugin", Name)), nil
		},
	}
}

// Plugin answers every user PRIVMSG.
type Plugin struct {
	logger *slog.Logger
	router *irc.Router
}

// New returns an echo plugin that logs reply failures to logger.
func New(logger *slog.Logger) *Plugin {
	p := &Plugin{logger: logger, router: &irc.Router{}}
	p.router.OnText("*", p.reply).MatchFunc(func(m *irc.Message) bool {
		_, isUser := m.User()
		return isUser
	})
	return p
}

// Run serves c until its stream closes or ctx ends.
func (p *Plugin) Run(ctx context.Context, c *irc.Client) error {
	return irc.Serve(ctx, c, p)
}

// SpeakIRC implements irc.Handler.
func (p *Plugin) SpeakIRC(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
	p.router.SpeakIRC(ctx, w, m)
}

func (p *Plugin) reply(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
	u, _ := m.User()
	text, _ := m.Text()
	msg := fmt.Sprintf("Hey %s thanks for saying `%s'! Much appreciated", u.Nick, text)
	if err := w.WriteMessage(ctx, irc.Privmsg(m.ReplyTarget(), msg)); err != nil {
		p.logger.Warn("[echo] reply failed", "target", m.ReplyTarget(), "error", err)
	}
}
