// Package script runs a Lua file as a chat responder.
//
// The script defines a global function
//
//	function on_privmsg(nick, target, text)
//	  if text == "!ping" then return "pong, " .. nick end
//	end
//
// which is called for every PRIVMSG sent by a user. A non-empty string result is
// sent back to the channel, or to the sender for private messages. The script may
// call log(text) and read the global server. The file is reloaded after it changes
// on disk; a reload that fails keeps the previous version running.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	lua "github.com/yuin/gopher-lua"

	"github.com/wwared/boton/irc"
	"github.com/wwared/boton/plugin"
)

// Name is the plugin's table and configuration name.
const Name = "script"

// KeyScript is the path of the Lua file.
const KeyScript = "script"

const (
	entryPoint  = "on_privmsg"
	callTimeout = 5 * time.Second
)

var errNoEntryPoint = errors.New("script does not define " + entryPoint)

// Kind returns the table entry for the plugin. It is disabled unless listed explicitly.
func Kind(logger *slog.Logger) plugin.Kind {
	return plugin.Kind{
		Name: Name,
		Build: func(server string, cfg plugin.Config) (plugin.Plugin, error) {
			p, err := New(server, cfg, logger)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

// Plugin is a Lua responder for one server.
type Plugin struct {
	server string
	path   string
	logger *slog.Logger

	// set by the watcher, cleared before the next message is handled
	dirty atomic.Bool

	state *lua.LState
}

// New checks that the configured script loads and defines on_privmsg.
func New(server string, cfg plugin.Config, logger *slog.Logger) (*Plugin, error) {
	if err := cfg.Require(Name, KeyScript); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	path, err := filepath.Abs(cfg[KeyScript])
	if err != nil {
		return nil, &plugin.BuildError{Plugin: Name, Err: err}
	}
	p := &Plugin{
		server: server,
		path:   path,
		logger: logger.With("server", server, "plugin", Name),
	}
	L, err := p.load()
	if err != nil {
		return nil, &plugin.BuildError{Plugin: Name, Err: err}
	}
	L.Close()
	return p, nil
}

// newState returns a Lua state with only the libraries a responder needs.
func (p *Plugin) newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("server", lua.LString(p.server))
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		p.logger.Info("[script] " + L.CheckString(1))
		return 0
	}))
	return L
}

// load runs the script in a fresh state.
func (p *Plugin) load() (*lua.LState, error) {
	src, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	L := p.newState()
	if err := L.DoString(string(src)); err != nil {
		L.Close()
		return nil, fmt.Errorf("loading %s: %w", p.path, err)
	}
	if L.GetGlobal(entryPoint).Type() != lua.LTFunction {
		L.Close()
		return nil, errNoEntryPoint
	}
	return L, nil
}

// reload replaces the running state when the file changed since the last message.
func (p *Plugin) reload() {
	if !p.dirty.CompareAndSwap(true, false) {
		return
	}
	L, err := p.load()
	if err != nil {
		p.logger.Error("[script] reload failed, keeping the previous version", "error", err)
		return
	}
	if p.state != nil {
		p.state.Close()
	}
	p.state = L
	p.logger.Info("[script] reloaded", "path", p.path)
}

// Run implements plugin.Plugin.
func (p *Plugin) Run(ctx context.Context, c *irc.Client) error {
	L, err := p.load()
	if err != nil {
		return err
	}
	p.state = L
	defer func() {
		p.state.Close()
		p.state = nil
	}()

	if w, err := p.watch(); err != nil {
		p.logger.Warn("[script] not watching for changes", "error", err)
	} else {
		defer w.Close()
	}

	r := &irc.Router{}
	r.OnText("*", p.handle).MatchFunc(func(m *irc.Message) bool {
		_, ok := m.User()
		return ok
	})
	return irc.Serve(ctx, c, r)
}

// watch marks the script dirty whenever its file is written or replaced.
// The directory is watched, since editors often replace the file instead of writing it.
func (p *Plugin) watch() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) == p.path && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					p.dirty.Store(true)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				p.logger.Warn("[script] watcher error", "error", err)
			}
		}
	}()
	return w, nil
}

func (p *Plugin) handle(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
	p.reload()

	text, _ := m.Text()
	reply, err := p.call(ctx, m.Nick(), m.Target, text)
	if err != nil {
		p.logger.Warn("[script] "+entryPoint+" failed", "error", err)
		return
	}
	if reply == "" {
		return
	}
	if err := w.WriteMessage(ctx, irc.Privmsg(m.ReplyTarget(), reply)); err != nil {
		p.logger.Warn("[script] reply failed", "error", err)
	}
}

// call runs on_privmsg and returns its string result, or "" when it returned anything else.
func (p *Plugin) call(ctx context.Context, nick, target, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	L := p.state
	L.SetContext(ctx)
	defer L.RemoveContext()

	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(entryPoint),
		NRet:    1,
		Protect: true,
	}, lua.LString(nick), lua.LString(target), lua.LString(text))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out after %s: %w", callTimeout, err)
		}
		return "", err
	}
	ret := L.Get(-1)
	L.Pop(1)
	if s, ok := ret.(lua.LString); ok {
		return string(s), nil
	}
	return "", nil
}
