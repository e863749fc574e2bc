package ircdebug_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/wwared/boton/irc/ircdebug"
)

type rwc struct {
	io.Reader
	io.Writer
}

func (rwc) Close() error { return nil }

func TestWriteTo(t *testing.T) {
	var mirror, sent bytes.Buffer
	in := strings.NewReader("PING :a\r\n:srv 001 boton :hi\r\n")
	conn := ircdebug.WriteTo(&mirror, rwc{in, &sent}, "-> ", "<- ")

	// a line split across writes is mirrored once, when complete
	_, _ = io.WriteString(conn, "PONG")
	_, _ = io.WriteString(conn, " :a\r\n")
	if _, err := io.ReadAll(conn); err != nil {
		t.Fatal(err)
	}

	want := "-> PONG :a\r\n<- PING :a\r\n<- :srv 001 boton :hi\r\n"
	if mirror.String() != want {
		t.Errorf("got %q; wanted %q", mirror.String(), want)
	}
	if sent.String() != "PONG :a\r\n" {
		t.Errorf("stream got %q", sent.String())
	}
}
