package bot_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wwared/boton/bot"
	"github.com/wwared/boton/irc"
	"github.com/wwared/boton/irc/irctest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nextLine(t *testing.T, s *irctest.Server) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("expected a line from the client: %v", err)
	}
	return l
}

func expectLines(t *testing.T, s *irctest.Server, want ...string) {
	t.Helper()
	for _, w := range want {
		if got := nextLine(t, s); got != w {
			t.Fatalf("got %q; wanted %q", got, w)
		}
	}
}

func waitState(t *testing.T, c *bot.Control, want bot.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state is %s; wanted %s", c.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestControl(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	conn := irc.NewConn("test", server)
	client := conn.Client()

	control := bot.NewControl(bot.Identity{
		Nick:     "boton",
		Ident:    "bot",
		RealName: "Boton the bot",
		Channels: []string{"#a", "#b"},
	}, discardLogger())
	if control.State() != bot.StateConnecting {
		t.Errorf("expected a new control loop to be connecting; got %s", control.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.Start(ctx)
	done := make(chan error, 1)
	go func() { done <- control.Run(ctx, client) }()

	expectLines(t, server, "USER bot 0 * :Boton the bot", "NICK boton")
	waitState(t, control, bot.StateAuthenticating)

	server.WriteString(":irc.example.com 433 * boton :Nickname is already in use")
	expectLines(t, server, "NICK boton_")
	if control.State() != bot.StateAuthenticating {
		t.Errorf("expected to stay authenticating after a nick collision; got %s", control.State())
	}

	server.WriteString("PING :irc.example.com")
	expectLines(t, server, "PONG :irc.example.com")

	// unrelated traffic is ignored
	server.WriteString(":irc.example.com NOTICE * :*** Looking up your hostname")
	server.WriteString(":irc.example.com 001 boton_ :Welcome to the network boton_")
	expectLines(t, server, "JOIN #a", "JOIN #b")
	waitState(t, control, bot.StateSteady)

	server.Hangup()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected the loop to end cleanly when the stream closes; got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("control loop did not stop")
	}
	if control.State() != bot.StateTerminated {
		t.Errorf("got state %s; wanted %s", control.State(), bot.StateTerminated)
	}
}

func TestControl_cancelled(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	conn := irc.NewConn("test", server)
	client := conn.Client()
	conn.Start(context.Background())

	control := bot.NewControl(bot.Identity{Nick: "boton", Ident: "boton", RealName: "boton"}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- control.Run(ctx, client) }()

	expectLines(t, server, "USER boton 0 * :boton", "NICK boton")
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("control loop ignored cancellation")
	}
	if control.State() != bot.StateTerminated {
		t.Errorf("got state %s; wanted %s", control.State(), bot.StateTerminated)
	}
}

func TestState_String(t *testing.T) {
	tt := map[bot.State]string{
		bot.StateConnecting:     "connecting",
		bot.StateAuthenticating: "authenticating",
		bot.StateJoining:        "joining",
		bot.StateSteady:         "steady",
		bot.StateTerminated:     "terminated",
		bot.State(42):           "unknown",
	}
	for s, want := range tt {
		if s.String() != want {
			t.Errorf("got %q; wanted %q", s.String(), want)
		}
	}
}
