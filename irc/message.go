package irc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrReplyOnly is returned when encoding or sending a command that only
// servers send, such as RPL_WELCOME or ERR_NICKNAMEINUSE.
// Attempting to send one is a programming error in the caller.
var ErrReplyOnly = errors.New("reply-only command cannot be sent")

// Errors returned by Message.Validate for messages that cannot be written
// without changing their meaning.
var (
	ErrEmptyCommand = errors.New("command is empty")
	ErrBadParam     = errors.New("parameter cannot be encoded")
)

// A ParseError describes a line that could not be decoded into a Message.
type ParseError struct {
	Line   string // the offending line, without CR-LF
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Line, e.Reason)
}

// Message is one IRC line, received or about to be sent. On the wire:
//
//	[:<source> ]<VERB>[ <param>]*[ :<trailing param with spaces>]
//
// The first middle parameter becomes Target and is not repeated in Params.
// A trailing parameter never becomes Target: "PING :abc" decodes to an
// empty Target and Params ["abc"].
//
// A received Message is shared by every subscriber and is read-only.
type Message struct {
	Source  string  // raw prefix without ':'; ignored when encoding
	Command Command // verb or numeric
	Target  string  // recipient nickname or channel, "" when absent
	Params  Params  // parameters after Target; only the last may contain a space
}

// NewMessage builds an outbound message. An empty target is left out.
// Only the last of args may be empty, contain a space or start with ':';
// see Validate.
func NewMessage(cmd Command, target string, args ...string) *Message {
	p := make(Params, len(args))
	copy(p, args)
	return &Message{
		Command: cmd,
		Target:  target,
		Params:  p,
	}
}

// Decode parses a single line (without CR-LF) into a Message.
func Decode(line string) (*Message, error) {
	m := new(Message)
	if err := m.UnmarshalText([]byte(line)); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate reports whether m can be written so that decoding the line
// gives m back. Reply-only commands fail with ErrReplyOnly and an empty verb
// with ErrEmptyCommand. Every parameter except the last one written must be
// non-empty, free of spaces and not start with ':', and no parameter may
// contain CR, LF or NUL; violations wrap ErrBadParam.
func (m *Message) Validate() error {
	if _, err := m.Command.wire(); err != nil {
		return err
	}
	if m.Target != "" && len(m.Params) == 0 {
		// a lone target is written as the trailing parameter when it needs to be
		return checkParam(m.Target, true)
	}
	if m.Target != "" {
		if err := checkParam(m.Target, false); err != nil {
			return err
		}
	}
	for i, p := range m.Params {
		if err := checkParam(p, i == len(m.Params)-1); err != nil {
			return err
		}
	}
	return nil
}

func checkParam(p string, trailing bool) error {
	switch {
	case strings.ContainsAny(p, "\r\n\x00"):
		return fmt.Errorf("%w: %q contains a line break or NUL", ErrBadParam, p)
	case trailing:
		return nil
	case p == "":
		return fmt.Errorf("%w: only the last parameter may be empty", ErrBadParam)
	case strings.IndexByte(p, delimParam) >= 0:
		return fmt.Errorf("%w: only the last parameter may contain a space: %q", ErrBadParam, p)
	case p[0] == startTrailing:
		return fmt.Errorf("%w: only the last parameter may start with ':': %q", ErrBadParam, p)
	}
	return nil
}

// loneTrailing reports whether a target sent without parameters must be
// written in the trailing position.
func loneTrailing(target string) bool {
	return strings.IndexByte(target, delimParam) >= 0 || target[0] == startTrailing
}

// MarshalText implements encoding.TextMarshaler.
// The returned slice is a complete wire line, including the trailing CR-LF.
// Messages that fail Validate are not encoded.
//
// The last parameter is always written as the trailing component. A Target
// without Params is written as trailing only when it contains a space or starts with ':'.
func (m *Message) MarshalText() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	verb, _ := m.Command.wire()

	buf := bytes.NewBuffer(make([]byte, 0, 512))
	buf.WriteString(verb)

	if m.Target != "" {
		buf.WriteByte(delimParam)
		if len(m.Params) == 0 && loneTrailing(m.Target) {
			buf.WriteByte(startTrailing)
		}
		buf.WriteString(m.Target)
	}

	for i, p := range m.Params {
		buf.WriteByte(delimParam)
		if i == len(m.Params)-1 {
			buf.WriteByte(startTrailing)
		}
		buf.WriteString(p)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for one line without
// its CR-LF. Any previous contents of m are discarded. Only syntax is
// checked; how many parameters a command takes is up to the caller.
func (m *Message) UnmarshalText(text []byte) error {
	line := string(text)
	*m = Message{}
	for _, t := range scan(line) {
		switch t.kind {
		case tokError:
			return &ParseError{Line: line, Reason: t.val}
		case tokSource:
			m.Source = t.val
		case tokCommand:
			m.Command = ParseCommand(t.val)
		case tokParam:
			if m.Target == "" && len(m.Params) == 0 {
				m.Target = t.val
				continue
			}
			m.Params = append(m.Params, t.val)
		case tokTrailing:
			m.Params = append(m.Params, t.val)
		}
	}
	return nil
}

// String returns the wire form of m without the CR-LF, or a description of the encoding error.
func (m *Message) String() string {
	b, err := m.MarshalText()
	if err != nil {
		return fmt.Sprintf("%s (unencodable: %v)", m.Command, err)
	}
	return string(bytes.TrimSuffix(b, []byte("\r\n")))
}

// User returns the structured sender of m.
// ok is false unless Source is in the nick!ident@host form.
func (m *Message) User() (u User, ok bool) {
	nick, rest, found := strings.Cut(m.Source, "!")
	if !found {
		return User{}, false
	}
	ident, host, found := strings.Cut(rest, "@")
	if !found {
		return User{}, false
	}
	return User{Nick: nick, Ident: ident, Host: host}, true
}

// User is a source of the form nick!ident@host, as in
// ":NickServ!services@services.host NOTICE boton :...".
type User struct {
	Nick  string
	Ident string
	Host  string
}

func (u User) String() string {
	return u.Nick + "!" + u.Ident + "@" + u.Host
}

// Params are the parameters after the target. Read them with Get.
type Params []string

// Get returns the nth parameter, counting from 1, and "" when there are
// fewer. Missing and empty parameters look the same.
func (p Params) Get(n int) string {
	if n > len(p) || n < 1 {
		return ""
	}
	return p[n-1]
}
