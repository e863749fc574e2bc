// Package plugin defines the extension boundary of the bot and the registry
// that builds and runs extensions for one connection.
package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/wwared/boton/irc"
)

// ErrMissingKey is wrapped by build errors for absent required configuration.
var ErrMissingKey = errors.New("missing required config key")

// A Plugin runs for the lifetime of one connection.
//
// Run owns c for as long as it runs and should return once ctx is cancelled
// or c's stream closes. Returning early ends the plugin for this connection;
// it is not restarted until the next reconnect.
type Plugin interface {
	Run(ctx context.Context, c *irc.Client) error
}

// Func adapts an ordinary function to the Plugin interface.
type Func func(ctx context.Context, c *irc.Client) error

// Run calls f(ctx, c).
func (f Func) Run(ctx context.Context, c *irc.Client) error {
	return f(ctx, c)
}

// Serve returns a Plugin that feeds every received message to h.
func Serve(h irc.Handler) Plugin {
	return Func(func(ctx context.Context, c *irc.Client) error {
		return irc.Serve(ctx, c, h)
	})
}

// Config holds the string settings for one plugin on one server.
// A nil Config means no section was configured at all.
type Config map[string]string

// Get returns the value for key and whether it was set.
func (c Config) Get(key string) (string, bool) {
	v, ok := c[key]
	return v, ok
}

// Require returns a *BuildError wrapping ErrMissingKey for the first key that is absent.
func (c Config) Require(plugin string, keys ...string) error {
	for _, k := range keys {
		if _, ok := c[k]; !ok {
			return &BuildError{Plugin: plugin, Err: fmt.Errorf("%w %q", ErrMissingKey, k)}
		}
	}
	return nil
}

// A BuildError reports a plugin that could not be constructed.
type BuildError struct {
	Plugin string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build plugin %s: %v", e.Plugin, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// A Kind is one entry of the static plugin table.
type Kind struct {
	// Name identifies the plugin in configuration and logs.
	Name string

	// Enabled kinds are built when a server does not list its plugins explicitly.
	Enabled bool

	// Build constructs the plugin for server. It must fail when required keys are absent
	// and must not do network I/O.
	Build func(server string, cfg Config) (Plugin, error)
}
