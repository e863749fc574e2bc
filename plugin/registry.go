package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wwared/boton/irc"
)

// A Registry builds and spawns plugins from a fixed table of kinds.
type Registry struct {
	logger *slog.Logger
	kinds  []Kind
}

// NewRegistry returns a registry over kinds, kept in the given order.
func NewRegistry(logger *slog.Logger, kinds ...Kind) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		kinds:  kinds,
	}
}

// selected returns the kinds to build: every enabled kind, or exactly the
// ones named in only when it is non-nil.
func (r *Registry) selected(only []string) ([]Kind, error) {
	if only == nil {
		var out []Kind
		for _, k := range r.kinds {
			if k.Enabled {
				out = append(out, k)
			}
		}
		return out, nil
	}

	byName := make(map[string]Kind, len(r.kinds))
	for _, k := range r.kinds {
		byName[k.Name] = k
	}
	out := make([]Kind, 0, len(only))
	for _, name := range only {
		k, ok := byName[name]
		if !ok {
			return nil, &BuildError{Plugin: name, Err: errors.New("no such plugin")}
		}
		out = append(out, k)
	}
	return out, nil
}

// Spawn builds every selected plugin for server and starts each one on its own
// clone of client. configs supplies the Config for a plugin name; it may return nil.
//
// Building is all or nothing: the first build error is returned and nothing is started.
func (r *Registry) Spawn(ctx context.Context, server string, configs func(name string) Config, client *irc.Client, only []string) (*Group, error) {
	kinds, err := r.selected(only)
	if err != nil {
		return nil, err
	}

	type built struct {
		name string
		p    Plugin
	}
	plugins := make([]built, 0, len(kinds))
	for _, k := range kinds {
		var cfg Config
		if configs != nil {
			cfg = configs(k.Name)
		}
		p, err := k.Build(server, cfg)
		if err != nil {
			var be *BuildError
			if !errors.As(err, &be) {
				err = &BuildError{Plugin: k.Name, Err: err}
			}
			return nil, err
		}
		plugins = append(plugins, built{name: k.Name, p: p})
	}

	g := &Group{Tasks: make(map[string]*Task, len(plugins))}
	for _, b := range plugins {
		g.Tasks[b.name] = r.start(ctx, server, b.name, b.p, client.Clone())
	}
	return g, nil
}

func (r *Registry) start(ctx context.Context, server, name string, p Plugin, c *irc.Client) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		Name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	logger := r.logger.With("server", server, "plugin", name)
	logger.Debug("[plugin] starting")

	go func() {
		defer close(t.done)
		defer cancel()

		err := p.Run(ctx, c)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			logger.Debug("[plugin] stopped")
		default:
			logger.Error("[plugin] stopped with error", "error", err)
		}
		t.err = err
	}()
	return t
}

// A Task is one running plugin.
type Task struct {
	Name string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Cancel asks the plugin to stop. It does not wait.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the plugin has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns what Run returned. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

// A Group holds the tasks spawned for one connection, keyed by plugin name.
type Group struct {
	Tasks map[string]*Task
}

// Cancel asks every task to stop.
func (g *Group) Cancel() {
	if g == nil {
		return
	}
	for _, t := range g.Tasks {
		t.Cancel()
	}
}

// Wait blocks until every task has returned or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	var wg sync.WaitGroup
	for _, t := range g.Tasks {
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			<-t.Done()
		}(t)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for plugins: %w", ctx.Err())
	}
}
