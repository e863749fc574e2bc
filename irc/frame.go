package irc

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

var crlf = []byte("\r\n")

// LookupEncoding returns the text encoding registered under name
// ("utf-8", "latin1", "windows-1252", ...). An empty name selects UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// lineBuffer accumulates bytes read from the connection and splits
// them into CR-LF delimited lines.
//
// No line length limit is enforced; the buffer grows as needed.
type lineBuffer struct {
	buf []byte
	dec *encoding.Decoder
}

func newLineBuffer(enc encoding.Encoding) *lineBuffer {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &lineBuffer{
		buf: make([]byte, 0, readBufferSize),
		dec: enc.NewDecoder(),
	}
}

// Write appends p to the buffer. It never fails.
func (lb *lineBuffer) Write(p []byte) (int, error) {
	lb.buf = append(lb.buf, p...)
	return len(p), nil
}

// Len returns the number of buffered bytes not yet returned as a line.
func (lb *lineBuffer) Len() int {
	return len(lb.buf)
}

// lines returns every complete line in the buffer, in order and without
// their CR-LF, and discards the consumed bytes. A trailing partial line
// stays buffered for the next call.
func (lb *lineBuffer) lines() []string {
	var (
		out   []string
		start int
	)
	for {
		i := bytes.Index(lb.buf[start:], crlf)
		if i < 0 {
			break
		}
		out = append(out, lb.decode(lb.buf[start:start+i]))
		start += i + len(crlf)
	}
	if start > 0 {
		n := copy(lb.buf, lb.buf[start:])
		lb.buf = lb.buf[:n]
	}
	return out
}

// decode converts raw line bytes to text. Bytes that are invalid in the
// configured encoding are replaced with U+FFFD rather than failing.
func (lb *lineBuffer) decode(raw []byte) string {
	s, err := lb.dec.Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(s)
}
