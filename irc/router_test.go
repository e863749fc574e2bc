package irc_test

import (
	"context"
	"testing"

	"github.com/wwared/boton/irc"
)

var discard = discarder{}

type discarder struct{}

func (d discarder) WriteMessage(context.Context, *irc.Message) error { return nil }

func fromUser(m *irc.Message) *irc.Message {
	m.Source = "WiZ!wiz@example.com"
	return m
}

// routed reports whether a router with a single OnText(pattern) route sends m to it.
func routed(pattern string, m *irc.Message) bool {
	var hit bool
	r := &irc.Router{}
	r.OnText(pattern, func(context.Context, irc.MessageWriter, *irc.Message) { hit = true })
	r.SpeakIRC(context.Background(), discard, m)
	return hit
}

func TestRouter_Handle(t *testing.T) {
	var privmsgs, notices int
	r := &irc.Router{}
	r.HandleFunc(irc.CmdPrivmsg, func(context.Context, irc.MessageWriter, *irc.Message) { privmsgs++ })
	r.HandleFunc(irc.CmdNotice, func(context.Context, irc.MessageWriter, *irc.Message) { notices++ })

	r.SpeakIRC(context.Background(), discard, irc.Privmsg("#foo", "!test does this work"))
	if privmsgs != 1 || notices != 0 {
		t.Errorf("got %d privmsg and %d notice calls; wanted 1 and 0", privmsgs, notices)
	}
}

func TestRouter_OnText(t *testing.T) {
	tt := map[string]struct {
		pattern string
		match   []string
		miss    []string
	}{
		"star alone": {
			pattern: "*",
			match:   []string{"", " ", "a", "*", "!foo"},
		},
		"prefix": {
			pattern: "!*",
			match:   []string{"!", "! ", "!foo", "!foo bar"},
			miss:    []string{"", "foo!", "?foo", "f!oo"},
		},
		"ampersand inside a word is literal": {
			pattern: "!foo&",
			match:   []string{"!foo&"},
			miss:    []string{"", "!foop", "!foo &", "!foo bar"},
		},
		"standalone ampersands are words": {
			pattern: "& foo &",
			match:   []string{"foo foo bar", "well foo kme", "& foo &"},
			miss:    []string{"", "!foo bar", "something foo something more"},
		},
		"star then word": {
			pattern: "!* &",
			match:   []string{"!foo bar", "!command     space", "!foo &"},
			miss:    []string{"", "@you hey", " !f oo"},
		},
		"question mark": {
			pattern: "?foo",
			match:   []string{"!foo", "?foo", ".foo", "*foo"},
			miss:    []string{"", "!!foo", "..foo", "!foo ", "!foo &"},
		},
		"regexp metacharacters are literal": {
			pattern: "a.b+(c)",
			match:   []string{"a.b+(c)"},
			miss:    []string{"axb+(c)", "a.bb(c)"},
		},
	}

	for name, tc := range tt {
		t.Run(name, func(t *testing.T) {
			for _, text := range tc.match {
				if !routed(tc.pattern, irc.Privmsg("#foo", text)) {
					t.Errorf("%q should match %q", tc.pattern, text)
				}
				if routed(tc.pattern, irc.Notice("#foo", text)) {
					t.Errorf("%q matched a NOTICE with text %q", tc.pattern, text)
				}
			}
			for _, text := range tc.miss {
				if routed(tc.pattern, irc.Privmsg("#foo", text)) {
					t.Errorf("%q should not match %q", tc.pattern, text)
				}
			}
		})
	}
}

func TestRouter_OnCommand(t *testing.T) {
	tt := []struct {
		text string
		want bool
	}{
		{`\w`, true},
		{`\w london`, true},
		{`  \w london`, true},
		{`\wset london`, false},
		{`\W london`, false},
		{`say \w`, false},
	}
	for _, tc := range tt {
		called := false
		r := &irc.Router{}
		r.OnCommand(`\w`, func(context.Context, irc.MessageWriter, *irc.Message) {
			called = true
		})
		r.SpeakIRC(context.Background(), discard, fromUser(irc.Privmsg("#c", tc.text)))
		if called != tc.want {
			t.Errorf("text %q: called = %v; wanted %v", tc.text, called, tc.want)
		}
	}
}

func TestRouter_firstMatchWins(t *testing.T) {
	var got []string
	r := &irc.Router{}
	r.OnText("!a*", func(context.Context, irc.MessageWriter, *irc.Message) { got = append(got, "first") })
	r.OnText("*", func(context.Context, irc.MessageWriter, *irc.Message) { got = append(got, "second") })
	r.SpeakIRC(context.Background(), discard, irc.Privmsg("#c", "!abc"))
	if len(got) != 1 || got[0] != "first" {
		t.Errorf("expected only the first route to run; got %v", got)
	}
}

func TestRouter_Use(t *testing.T) {
	var order []string
	mw := func(name string) irc.Middleware {
		return func(next irc.Handler) irc.Handler {
			return irc.HandlerFunc(func(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
				order = append(order, name)
				next.SpeakIRC(ctx, w, m)
			})
		}
	}
	r := &irc.Router{}
	r.Use(mw("a"), mw("b"))
	r.OnText("*", func(context.Context, irc.MessageWriter, *irc.Message) {
		order = append(order, "route")
	}).Use(mw("c"))

	r.SpeakIRC(context.Background(), discard, irc.Privmsg("#c", "x"))
	r.SpeakIRC(context.Background(), discard, irc.Notice("#c", "unrouted"))

	want := []string{"a", "b", "c", "route", "a", "b"}
	if len(order) != len(want) {
		t.Fatalf("got %v; wanted %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v; wanted %v", order, want)
		}
	}
}

func TestRoute_MatchFunc(t *testing.T) {
	called := 0
	r := &irc.Router{}
	r.OnText("*", func(context.Context, irc.MessageWriter, *irc.Message) { called++ }).
		MatchFunc(func(m *irc.Message) bool { return irc.IsChannel(m.Target) }).
		MatchFunc(func(m *irc.Message) bool { return m.Nick() == "WiZ" })
	r.SpeakIRC(context.Background(), discard, fromUser(irc.Privmsg("#foo", "x")))
	r.SpeakIRC(context.Background(), discard, fromUser(irc.Privmsg("boton", "x")))
	r.SpeakIRC(context.Background(), discard, irc.Privmsg("#foo", "no source"))
	if called != 1 {
		t.Errorf("expected every condition to apply; got %d calls", called)
	}
}
