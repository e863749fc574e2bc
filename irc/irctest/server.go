// Package irctest is an in-memory IRC peer for tests.
package irctest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/wwared/boton/irc"
)

// NewServer returns a peer whose client side is the Server itself: hand it to
// irc.NewConn or a dialer as the io.ReadWriteCloser. Close it when done.
func NewServer() *Server {
	s := &Server{
		lines: make(chan string, 256),
	}
	s.sendReader, s.sendWriter = io.Pipe()
	s.recvReader, s.recvWriter = io.Pipe()
	go s.read()
	return s
}

// Server is a scripted peer. Lines written by the client are decoded and
// passed to Handler, when set, and are also available from Next.
type Server struct {
	// Handler is called for each line the client writes.
	// The Server is passed as the MessageWriter, so replies go back to the client.
	Handler irc.Handler

	closeOnce sync.Once
	lines     chan string

	mu       sync.Mutex
	received []string

	recvReader *io.PipeReader // client to server
	recvWriter *io.PipeWriter
	sendReader *io.PipeReader // server to client
	sendWriter *io.PipeWriter
}

// Read returns bytes the server side has written.
func (s *Server) Read(p []byte) (int, error) {
	return s.sendReader.Read(p)
}

// Write delivers client bytes to the server side.
func (s *Server) Write(p []byte) (int, error) {
	return s.recvWriter.Write(p)
}

// Close closes the client's end. Pending and future client reads fail.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		_ = s.sendReader.CloseWithError(io.ErrClosedPipe)
		_ = s.recvWriter.Close()
	})
	return nil
}

// Hangup closes the server's end of the stream, so the client reads io.EOF
// once it has consumed everything written before.
func (s *Server) Hangup() {
	_ = s.sendWriter.Close()
}

// Fail makes pending and future client reads return err.
func (s *Server) Fail(err error) {
	_ = s.sendWriter.CloseWithError(err)
}

// WriteString sends a line to the client, appending CR-LF when missing.
func (s *Server) WriteString(str string) {
	if !strings.HasSuffix(str, "\r\n") {
		str = str + "\r\n"
	}
	s.WriteRaw([]byte(str))
}

// WriteRaw sends b to the client unmodified.
func (s *Server) WriteRaw(b []byte) {
	if _, err := s.sendWriter.Write(b); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		log.Printf("irctest: write: %v", err)
	}
}

// WriteMessage implements irc.MessageWriter, sending m to the client.
// m.Source is written as the line prefix when set.
func (s *Server) WriteMessage(_ context.Context, m *irc.Message) error {
	b, err := m.MarshalText()
	if err != nil {
		return err
	}
	if m.Source != "" {
		b = append([]byte(":"+m.Source+" "), b...)
	}
	s.WriteRaw(b)
	return nil
}

// Next returns the next line written by the client, without CR-LF.
func (s *Server) Next(ctx context.Context) (string, error) {
	select {
	case l, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return l, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Received returns every line written by the client so far.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func (s *Server) read() {
	defer close(s.lines)
	scanner := bufio.NewScanner(s.recvReader)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		s.mu.Lock()
		s.received = append(s.received, line)
		s.mu.Unlock()
		select {
		case s.lines <- line:
		default:
			log.Printf("irctest: no reader, dropped %q", line)
		}
		if s.Handler == nil {
			continue
		}
		m, err := irc.Decode(line)
		if err != nil {
			log.Printf("irctest: %v", err)
			continue
		}
		s.Handler.SpeakIRC(context.Background(), s, m)
	}
}
