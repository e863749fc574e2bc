package irc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/wwared/boton/irc"
)

func TestClient_Authenticate(t *testing.T) {
	_, client, server := startConn(t, context.Background())

	if err := client.Authenticate(context.Background(), "boton", "boton", "Boton the bot"); err != nil {
		t.Fatal(err)
	}
	if got := nextLine(t, server); got != "USER boton 0 * :Boton the bot" {
		t.Errorf("expected USER first; got %q", got)
	}
	if got := nextLine(t, server); got != "NICK boton" {
		t.Errorf("expected NICK second; got %q", got)
	}
}

func TestClient_Join(t *testing.T) {
	_, client, server := startConn(t, context.Background())

	if err := client.Join(context.Background(), []string{"#a", "#b"}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"JOIN #a", "JOIN #b"} {
		if got := nextLine(t, server); got != want {
			t.Errorf("got %q; wanted %q", got, want)
		}
	}
}

func TestClient_ReplyPong(t *testing.T) {
	_, client, server := startConn(t, context.Background())

	server.WriteString("PING :irc.example.com")
	ping := recv(t, client)
	if err := client.ReplyPong(context.Background(), ping); err != nil {
		t.Fatal(err)
	}
	if got := nextLine(t, server); got != "PONG :irc.example.com" {
		t.Errorf("got %q; wanted PONG", got)
	}

	if err := client.ReplyPong(context.Background(), irc.Privmsg("#c", "x")); err == nil {
		t.Errorf("expected an error replying pong to a PRIVMSG")
	}
}

func TestClient_ReplyNickInUse(t *testing.T) {
	_, client, server := startConn(t, context.Background())

	server.WriteString(":irc.example.com 433 * boton :Nickname is already in use")
	m := recv(t, client)
	if m.Command != irc.ErrNicknameInUse {
		t.Fatalf("expected 433; got %s", m.Command)
	}
	if err := client.ReplyNickInUse(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if got := nextLine(t, server); got != "NICK boton_" {
		t.Errorf("got %q; wanted NICK boton_", got)
	}
}

func TestClient_SendReplyOnly(t *testing.T) {
	_, client, _ := startConn(t, context.Background())

	err := client.Send(context.Background(), irc.NewMessage(irc.ErrNicknameInUse, "boton"))
	if !errors.Is(err, irc.ErrReplyOnly) {
		t.Errorf("expected ErrReplyOnly; got %v", err)
	}
	err = client.Send(context.Background(), irc.NewMessage(irc.RplWelcome, "boton"))
	if !errors.Is(err, irc.ErrReplyOnly) {
		t.Errorf("expected ErrReplyOnly; got %v", err)
	}
}

func TestClient_SendEmptyCommand(t *testing.T) {
	conn, client, server := startConn(t, context.Background())
	ctx := context.Background()

	for _, m := range []*irc.Message{
		{Target: "x"},
		irc.NewMessage(irc.Other(""), "#c", "hi"),
	} {
		if err := client.Send(ctx, m); !errors.Is(err, irc.ErrEmptyCommand) {
			t.Errorf("expected ErrEmptyCommand; got %v", err)
		}
	}
	for _, m := range []*irc.Message{
		irc.NewMessage(irc.Other("MODE"), "#c", "", "x"),
		irc.NewMessage(irc.Other("MODE"), "#c", ":o", "x"),
		irc.Privmsg("#c", "one\r\nQUIT :two"),
	} {
		if err := client.Send(ctx, m); !errors.Is(err, irc.ErrBadParam) {
			t.Errorf("%q: expected ErrBadParam; got %v", m.Params, err)
		}
	}

	// the connection is still usable and nothing rejected reached the wire
	if err := client.Privmsg(ctx, "#c", "still here"); err != nil {
		t.Fatal(err)
	}
	if got := nextLine(t, server); got != "PRIVMSG #c :still here" {
		t.Errorf("got %q", got)
	}
	if got := server.Received(); len(got) != 1 {
		t.Errorf("expected only the valid line on the wire; got %q", got)
	}
	select {
	case <-conn.Done():
		t.Errorf("connection ended after a rejected send: %s", conn.Outcome())
	default:
	}
}

func TestServe(t *testing.T) {
	conn, client, server := startConn(t, context.Background())

	r := &irc.Router{}
	r.Use(irc.PingMiddleware)
	r.OnCommand("!hi", func(ctx context.Context, w irc.MessageWriter, m *irc.Message) {
		_ = w.WriteMessage(ctx, irc.Privmsg(m.ReplyTarget(), "hello "+m.Nick()))
	})

	served := make(chan error, 1)
	go func() { served <- irc.Serve(context.Background(), client, r) }()

	server.WriteString("PING :abc")
	server.WriteString(":WiZ!w@h PRIVMSG #c :!hi there")
	if got := nextLine(t, server); got != "PONG :abc" {
		t.Errorf("got %q; wanted PONG", got)
	}
	if got := nextLine(t, server); got != "PRIVMSG #c :hello WiZ" {
		t.Errorf("got %q", got)
	}

	server.Hangup()
	if err := <-served; err != nil {
		t.Errorf("expected Serve to return nil once the stream closed; got %v", err)
	}
	if o := conn.Outcome(); o.Reason != irc.ExitPeerClosed {
		t.Errorf("got %s", o)
	}
}
