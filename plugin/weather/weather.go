// Package weather answers weather and local time questions in chat, using
// OpenWeatherMap for conditions and GeoNames for time zones.
//
// Commands:
//
//	\w [location|@nick]     current weather for a location, a saved user, or yourself
//	\t [location|@nick]     local time, with the same lookup rules as \w
//	\wset [location]        save your location, or forget it when empty
//	\units [metric|imperial] save your units, or forget them when empty
//
// Locations are free text ("london,uk"), a US zip code ("10001") or an
// OpenWeatherMap city id ("id:2643743").
package weather

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wwared/boton/irc"
	"github.com/wwared/boton/plugin"
)

// Name is the plugin's table and configuration name.
const Name = "weather"

// Configuration keys.
const (
	KeyAPIKey  = "openweathermap-apikey"
	KeyAPIUser = "geonames-apiuser"
	KeyOWMURL  = "openweathermap-url"
	KeyGeoURL  = "geonames-url"
	KeyRate    = "rate" // requests per second to the weather APIs
)

const (
	defaultRate  = 1
	defaultBurst = 3
)

// Kind returns the table entry for the plugin. Preferences are stored under dataDir.
func Kind(dataDir string, logger *slog.Logger) plugin.Kind {
	return plugin.Kind{
		Name:    Name,
		Enabled: true,
		Build: func(server string, cfg plugin.Config) (plugin.Plugin, error) {
			p, err := New(server, dataDir, cfg, logger)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

// Plugin is the weather responder for one server.
type Plugin struct {
	server string
	logger *slog.Logger
	api    *api
	db     *db
	router *irc.Router
}

// New builds the plugin for server. It fails when a required key is missing
// or the saved preferences cannot be read.
func New(server, dataDir string, cfg plugin.Config, logger *slog.Logger) (*Plugin, error) {
	if err := cfg.Require(Name, KeyAPIKey, KeyAPIUser); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("server", server, "plugin", Name)

	limit := rate.Limit(defaultRate)
	if s, ok := cfg.Get(KeyRate); ok {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil || r <= 0 {
			return nil, &plugin.BuildError{Plugin: Name, Err: fmt.Errorf("invalid %s %q", KeyRate, s)}
		}
		limit = rate.Limit(r)
	}

	a := &api{
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, defaultBurst),
		owmURL:  defaultOpenWeatherMapURL,
		apiKey:  cfg[KeyAPIKey],
		geoURL:  defaultGeoNamesURL,
		apiUser: cfg[KeyAPIUser],
	}
	if u, ok := cfg.Get(KeyOWMURL); ok {
		a.owmURL = u
	}
	if u, ok := cfg.Get(KeyGeoURL); ok {
		a.geoURL = u
	}

	path := filepath.Join(dataDir, server+"-weather.yaml")
	d, found, err := openDB(path)
	if err != nil {
		return nil, &plugin.BuildError{Plugin: Name, Err: err}
	}
	if found {
		logger.Info("[weather] preferences loaded", "path", path, "users", d.len())
	} else {
		logger.Warn("[weather] no saved preferences", "path", path)
	}

	p := &Plugin{
		server: server,
		logger: logger,
		api:    a,
		db:     d,
	}
	r := &irc.Router{}
	r.OnCommand(`\w`, p.handleWeather).MatchFunc(fromUser)
	r.OnCommand(`\t`, p.handleTime).MatchFunc(fromUser)
	r.OnCommand(`\wset`, p.handleSet).MatchFunc(fromUser)
	r.OnCommand(`\units`, p.handleUnits).MatchFunc(fromUser)
	p.router = r
	return p, nil
}

// Run implements plugin.Plugin.
func (p *Plugin) Run(ctx context.Context, c *irc.Client) error {
	return irc.Serve(ctx, c, p.router)
}

func fromUser(m *irc.Message) bool {
	_, ok := m.User()
	return ok
}

func (p *Plugin) reply(ctx context.Context, w irc.MessageWriter, m *irc.Message, format string, args ...any) {
	if err := w.WriteMessage(ctx, irc.Privmsg(m.ReplyTarget(), fmt.Sprintf(format, args...))); err != nil {
		p.logger.Warn("[weather] reply failed", "error", err)
	}
}

// lookup resolves the location argument of \w and \t.
// who is the saved user the location belongs to, or "" for a literal location.
func (p *Plugin) lookup(ctx context.Context, w irc.MessageWriter, m *irc.Message, nick, arg string) (location, who string, ok bool) {
	switch {
	case strings.HasPrefix(arg, "@"):
		target := strings.ToLower(strings.TrimPrefix(arg, "@"))
		if c, found := p.db.get(target); found && c.Location != "" {
			return c.Location, target, true
		}
		p.reply(ctx, w, m, "%s: Could not find saved weather location for `%s`", nick, target)
		return "", "", false
	case arg != "":
		return arg, "", true
	default:
		if c, found := p.db.get(nick); found && c.Location != "" {
			return c.Location, nick, true
		}
		p.reply(ctx, w, m, `%s: Could not find your saved weather location; try using \wset first`, nick)
		return "", "", false
	}
}

func (p *Plugin) fetch(ctx context.Context, w irc.MessageWriter, m *irc.Message, nick, location string) (*report, bool) {
	r, err := p.api.current(ctx, parseQuery(location))
	if err != nil {
		p.logger.Debug("[weather] lookup failed", "location", location, "error", err)
		p.reply(ctx, w, m, "%s: Could not find `%s`", nick, location)
		return nil, false
	}
	return r, true
}

func (p *Plugin) handleWeather(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
	nick := strings.ToLower(m.Nick())
	text, _ := m.Text()
	_, arg := irc.SplitCommand(text)

	location, who, ok := p.lookup(ctx, w, m, nick, arg)
	if !ok {
		return
	}
	r, ok := p.fetch(ctx, w, m, nick, location)
	if !ok {
		return
	}
	// units are always the requester's, even when looking up someone else
	var units Units
	if c, found := p.db.get(nick); found {
		units = c.Units
	}
	p.reply(ctx, w, m, "%s", r.format(units, who))
}

func (p *Plugin) handleTime(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
	nick := strings.ToLower(m.Nick())
	text, _ := m.Text()
	_, arg := irc.SplitCommand(text)

	location, who, ok := p.lookup(ctx, w, m, nick, arg)
	if !ok {
		return
	}
	r, ok := p.fetch(ctx, w, m, nick, location)
	if !ok {
		return
	}
	localTime, err := p.api.localTime(ctx, r.Lat, r.Lon)
	if err != nil {
		p.logger.Warn("[weather] time lookup failed", "location", location, "error", err)
		p.reply(ctx, w, m, "%s: Unexpected geonames error", nick)
		return
	}
	place := "in " + r.Name + ", " + r.country()
	if who != "" {
		place = "for " + who
	}
	p.reply(ctx, w, m, "%s: The current time %s is %s", nick, place, localTime)
}

func (p *Plugin) handleSet(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
	nick := strings.ToLower(m.Nick())
	text, _ := m.Text()
	_, location := irc.SplitCommand(text)

	err := p.db.update(nick, func(c *userConfig) {
		c.Location = location
	})
	if err != nil {
		p.logger.Error("[weather] saving preferences", "error", err)
	}
	if location == "" {
		p.reply(ctx, w, m, "%s: Removed you from the weather database", nick)
		return
	}
	p.reply(ctx, w, m, "%s: Updated your weather entry to `%s`", nick, location)
}

func (p *Plugin) handleUnits(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
	nick := strings.ToLower(m.Nick())
	text, _ := m.Text()
	_, arg := irc.SplitCommand(text)

	units := UnitsUnset
	if arg != "" {
		var err error
		if units, err = ParseUnits(arg); err != nil {
			p.reply(ctx, w, m, `%s: Use \units [metric|imperial] to set your preference`, nick)
			return
		}
	}

	err := p.db.update(nick, func(c *userConfig) {
		c.Units = units
	})
	if err != nil {
		p.logger.Error("[weather] saving preferences", "error", err)
	}
	if units == UnitsUnset {
		p.reply(ctx, w, m, `%s: Removed your saved unit preferences. Set it with \units [metric|imperial]`, nick)
		return
	}
	p.reply(ctx, w, m, "%s: Updated your units preference to `%s`", nick, units)
}
