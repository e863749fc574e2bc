// Package ircdebug mirrors raw IRC traffic for inspection.
package ircdebug

import (
	"bytes"
	"io"
	"sync"
)

// WriteTo wraps rwc so that every complete line passing through it is also
// written to w, prefixed with outPrefix when sent and inPrefix when received.
// The two directions share a lock, so mirrored lines never mix even though
// reads and writes happen on different goroutines. Mirroring errors are ignored.
func WriteTo(w io.Writer, rwc io.ReadWriteCloser, outPrefix, inPrefix string) io.ReadWriteCloser {
	m := &mirror{w: w}
	return &tee{
		ReadWriteCloser: rwc,
		in:              m.direction(inPrefix),
		out:             m.direction(outPrefix),
	}
}

type tee struct {
	io.ReadWriteCloser
	in, out *direction
}

func (t *tee) Read(p []byte) (int, error) {
	n, err := t.ReadWriteCloser.Read(p)
	t.in.feed(p[:n])
	return n, err
}

func (t *tee) Write(p []byte) (int, error) {
	n, err := t.ReadWriteCloser.Write(p)
	t.out.feed(p[:n])
	return n, err
}

type mirror struct {
	mu sync.Mutex
	w  io.Writer
}

func (m *mirror) direction(prefix string) *direction {
	return &direction{m: m, prefix: []byte(prefix)}
}

// direction holds the unterminated tail of one side of the stream.
type direction struct {
	m      *mirror
	prefix []byte
	tail   []byte
}

func (d *direction) feed(p []byte) {
	if len(p) == 0 {
		return
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	d.tail = append(d.tail, p...)
	for {
		line, rest, ok := bytes.Cut(d.tail, []byte{'\n'})
		if !ok {
			return
		}
		_, _ = d.m.w.Write(append(append(append([]byte(nil), d.prefix...), line...), '\n'))
		d.tail = rest
	}
}
