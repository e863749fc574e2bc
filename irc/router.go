package irc

import (
	"context"
	"regexp"
	"strings"
)

// Router is a Handler that dispatches each message to the first route whose
// conditions all hold. Routes are checked in the order they were added.
//
// Middleware attached with Use wraps every message, routed or not.
type Router struct {
	routes      []*route
	middlewares []Middleware
}

// Handle adds a route for messages with command cmd.
func (r *Router) Handle(cmd Command, h Handler) *route {
	rt := &route{h: h}
	rt.when(func(m *Message) bool { return m.Command.Is(cmd) })
	r.routes = append(r.routes, rt)
	return rt
}

// HandleFunc is Handle for a plain function.
func (r *Router) HandleFunc(cmd Command, f HandlerFunc) *route {
	return r.Handle(cmd, f)
}

// SpeakIRC implements Handler.
func (r *Router) SpeakIRC(ctx context.Context, w MessageWriter, m *Message) {
	var h Handler = noop
	for _, rt := range r.routes {
		if rt.matches(m) {
			h = rt.h
			break
		}
	}
	Wrap(h, r.middlewares...).SpeakIRC(ctx, w, m)
}

// Use adds middleware that runs, in order, for every message the router sees.
func (r *Router) Use(middlewares ...Middleware) {
	r.middlewares = append(r.middlewares, middlewares...)
}

// OnConnect routes the welcome reply (001) that ends registration.
func (r *Router) OnConnect(h HandlerFunc) *route {
	return r.Handle(RplWelcome, h)
}

// OnText routes PRIVMSG whose whole text matches the wildcard pattern:
//
//	*   any run of characters, including none
//	?   exactly one character
//	&   one space-delimited word, when it stands alone between spaces
//
// Everything else is literal, so "!w *" matches "!w london" but not "!weather".
func (r *Router) OnText(pattern string, h HandlerFunc) *route {
	re := regexp.MustCompile("^" + wildcardExpr(pattern) + "$")
	return r.HandleFunc(CmdPrivmsg, h).when(func(m *Message) bool {
		text, err := m.Text()
		return err == nil && re.MatchString(text)
	})
}

// OnCommand routes PRIVMSG whose first word is exactly word, as "!w" in "!w london".
// Leading spaces are ignored and the comparison is case-sensitive.
func (r *Router) OnCommand(word string, h HandlerFunc) *route {
	return r.HandleFunc(CmdPrivmsg, h).when(func(m *Message) bool {
		text, _ := m.Text()
		first, _ := SplitCommand(text)
		return first == word
	})
}

var wildcardToken = regexp.MustCompile(`\*|\?|[^*?]+`)

// wildcardExpr translates an OnText pattern to an unanchored regular expression.
func wildcardExpr(pattern string) string {
	expr := wildcardToken.ReplaceAllStringFunc(pattern, func(tok string) string {
		switch tok {
		case "*":
			return ".*"
		case "?":
			return "."
		default:
			return regexp.QuoteMeta(tok)
		}
	})
	words := strings.Split(expr, " ")
	for i, w := range words {
		if w == "&" {
			words[i] = `\S+`
		}
	}
	return strings.Join(words, " ")
}

type route struct {
	h     Handler
	conds []func(*Message) bool
}

func (rt *route) when(f func(*Message) bool) *route {
	rt.conds = append(rt.conds, f)
	return rt
}

func (rt *route) matches(m *Message) bool {
	for _, ok := range rt.conds {
		if !ok(m) {
			return false
		}
	}
	return true
}

// MatchFunc narrows the route to messages for which f returns true.
func (rt *route) MatchFunc(f func(m *Message) bool) *route {
	return rt.when(f)
}

// Use wraps the route's handler with middleware, which only runs when the route is chosen.
func (rt *route) Use(middlewares ...Middleware) *route {
	rt.h = Wrap(rt.h, middlewares...)
	return rt
}
