package irc

import "strings"

// The scanner is a state machine in the style of text/template's lexer.
// Each state consumes part of the line and returns the state that follows.
// Every delimiter in the grammar is ASCII, so positions advance over bytes.

const (
	delimParam    = ' '
	startPrefix   = ':'
	startTrailing = ':'
)

type tokenKind uint8

const (
	tokError    tokenKind = iota // val holds the reason
	tokSource                    // prefix without its ':', e.g. "nick!ident@host"
	tokCommand                   // verb or numeric, e.g. "PRIVMSG" or "001"
	tokParam                     // middle parameter
	tokTrailing                  // final ':' parameter, spaces allowed
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
}

type scanState func(*scanner) scanState

type scanner struct {
	line   string
	start  int
	pos    int
	tokens []token
}

// scan tokenizes a whole line. The returned tokens always end in
// tokEOF or tokError.
func scan(line string) []token {
	s := &scanner{line: line, tokens: make([]token, 0, 8)}
	for state := scanBegin; state != nil; {
		state = state(s)
	}
	return s.tokens
}

func (s *scanner) done() bool { return s.pos >= len(s.line) }

func (s *scanner) at(c byte) bool { return !s.done() && s.line[s.pos] == c }

func (s *scanner) push(k tokenKind) {
	s.tokens = append(s.tokens, token{k, s.line[s.start:s.pos]})
	s.start = s.pos
}

func (s *scanner) fail(reason string) scanState {
	s.tokens = append(s.tokens, token{kind: tokError, val: reason})
	return nil
}

func (s *scanner) finish() scanState {
	s.tokens = append(s.tokens, token{kind: tokEOF})
	return nil
}

// word advances to the next space or the end of the line.
func (s *scanner) word() {
	if i := strings.IndexByte(s.line[s.pos:], delimParam); i >= 0 {
		s.pos += i
		return
	}
	s.pos = len(s.line)
}

// skipSpaces drops a run of delimiters. Servers occasionally send more than one.
func (s *scanner) skipSpaces() {
	for s.at(delimParam) {
		s.pos++
	}
	s.start = s.pos
}

func scanBegin(s *scanner) scanState {
	if s.at(startPrefix) {
		s.pos++
		s.start = s.pos
		return scanSource
	}
	return scanCommand
}

// scanSource records the raw prefix. Splitting it into nick, ident and
// host is left to Message.User.
func scanSource(s *scanner) scanState {
	s.word()
	if s.done() {
		return s.fail("unexpected end of input; expected command")
	}
	if s.pos == s.start {
		return s.fail("source is empty")
	}
	s.push(tokSource)
	s.skipSpaces()
	if s.done() {
		return s.fail("unexpected end of input; expected command")
	}
	return scanCommand
}

func scanCommand(s *scanner) scanState {
	s.word()
	if s.pos == s.start {
		return s.fail("command is empty")
	}
	s.push(tokCommand)
	s.skipSpaces()
	return scanParams
}

func scanParams(s *scanner) scanState {
	for !s.done() {
		if s.at(startTrailing) {
			s.start = s.pos + 1
			s.pos = len(s.line)
			s.push(tokTrailing)
			break
		}
		s.word()
		s.push(tokParam)
		s.skipSpaces()
	}
	return s.finish()
}
