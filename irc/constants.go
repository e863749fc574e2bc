package irc

import (
	"fmt"
	"strings"
)

// commandKind enumerates the verbs that get special handling.
type commandKind int

const (
	kindOther commandKind = iota
	kindJoin
	kindNick
	kindNotice
	kindPrivmsg
	kindPing
	kindWelcome
	kindNicknameInUse
)

// Command is an IRC verb or numeric such as PRIVMSG, NOTICE, 001, etc.
//
// Commands form a closed set of recognized verbs plus Other for everything else.
// Command values are comparable with ==.
type Command struct {
	kind  commandKind
	other string
}

// Recognized commands.
var (
	CmdJoin    = Command{kind: kindJoin}    // Join a channel.
	CmdNick    = Command{kind: kindNick}    // Define a nickname.
	CmdNotice  = Command{kind: kindNotice}  // Send a notice message to specific users or channels.
	CmdPrivmsg = Command{kind: kindPrivmsg} // Send private messages between users, as well as to send messages to channels.
	CmdPing    = Command{kind: kindPing}    // Test for the presence of an active client. Encoded as PONG.

	RplWelcome       = Command{kind: kindWelcome}       // 001 "Welcome to the Internet Relay Network <nick>!<user>@<host>"
	ErrNicknameInUse = Command{kind: kindNicknameInUse} // 433 "<nick> :Nickname is already in use"
)

// Verbs without special handling that the bot still sends.
var (
	CmdUser  = Other("USER")  // Specify the username and realname of a new user.
	CmdQuit  = Other("QUIT")  // Terminate the client session.
	CmdPong  = Other("PONG")  // Reply to a PING message.
	CmdPart  = Other("PART")  // Leave a channel.
	CmdError = Other("ERROR") // Report a serious or fatal error to a peer.
)

// inbound maps wire verbs to recognized commands.
var inbound = map[string]Command{
	"JOIN":    CmdJoin,
	"NICK":    CmdNick,
	"NOTICE":  CmdNotice,
	"PRIVMSG": CmdPrivmsg,
	"PING":    CmdPing,
	"001":     RplWelcome,
	"433":     ErrNicknameInUse,
}

// Other returns the passthrough command for verb.
func Other(verb string) Command {
	return Command{other: verb}
}

// ParseCommand maps a verb read from the wire to a Command.
// Recognized verbs match case-insensitively; anything else becomes Other(verb).
func ParseCommand(verb string) Command {
	if c, ok := inbound[strings.ToUpper(verb)]; ok {
		return c
	}
	return Other(verb)
}

// IsOther reports whether c is a passthrough verb.
func (c Command) IsOther() bool {
	return c.kind == kindOther
}

// ReplyOnly reports whether c may only be received, never sent.
func (c Command) ReplyOnly() bool {
	return c.kind == kindWelcome || c.kind == kindNicknameInUse
}

// Is does a case-insensitive compare between two commands, which is
// useful for Other commands built from string constants.
func (c Command) Is(oc Command) bool {
	if c.kind != oc.kind {
		return false
	}
	return strings.EqualFold(c.other, oc.other)
}

// String implements fmt.Stringer. It returns the verb as it appears on received lines.
func (c Command) String() string {
	switch c.kind {
	case kindJoin:
		return "JOIN"
	case kindNick:
		return "NICK"
	case kindNotice:
		return "NOTICE"
	case kindPrivmsg:
		return "PRIVMSG"
	case kindPing:
		return "PING"
	case kindWelcome:
		return "001"
	case kindNicknameInUse:
		return "433"
	default:
		return c.other
	}
}

// wire returns the verb text used when c is written to the connection.
// PING is answered with PONG, so CmdPing encodes as PONG.
func (c Command) wire() (string, error) {
	switch {
	case c.ReplyOnly():
		return "", fmt.Errorf("%w: %s", ErrReplyOnly, c)
	case c.kind == kindPing:
		return CmdPong.String(), nil
	case c.kind == kindOther && c.other == "":
		return "", ErrEmptyCommand
	default:
		return c.String(), nil
	}
}
