package irc

import (
	"fmt"
	"strings"
)

// channelPrefixes are the CHANTYPES assumed for every network.
const channelPrefixes = "#&"

// IsChannel reports whether name is a channel name rather than a nickname.
func IsChannel(name string) bool {
	return name != "" && strings.ContainsRune(channelPrefixes, rune(name[0]))
}

// Text returns the chat text or reason carried by m: the last parameter of
// PRIVMSG, NOTICE, PART, QUIT, ERROR and TOPIC, and the comment of KICK.
// Other commands yield every parameter joined by spaces along with an error,
// so callers that only route PRIVMSG may ignore err.
func (m *Message) Text() (string, error) {
	switch {
	case m.Command == CmdPrivmsg, m.Command == CmdNotice:
		return m.Params.Get(1), nil
	case m.Command.Is(CmdQuit), m.Command.Is(CmdError), m.Command.Is(CmdPart), m.Command.Is(Other("TOPIC")):
		return m.Params.Get(1), nil
	case m.Command.Is(Other("KICK")):
		return m.Params.Get(2), nil
	default:
		return strings.Join(m.Params, " "), fmt.Errorf("text: command %s is not supported", m.Command)
	}
}

// Nick returns the nickname of the sender. When Source is not in the
// nick!ident@host form (a server, or a bare nickname), Source is returned as is.
func (m *Message) Nick() string {
	if u, ok := m.User(); ok {
		return u.Nick
	}
	return m.Source
}

// ReplyTarget returns where a response to m should go: the channel when m
// was sent to one, otherwise the nickname of the sender.
func (m *Message) ReplyTarget() string {
	if IsChannel(m.Target) {
		return m.Target
	}
	return m.Nick()
}

// SplitCommand splits chat text into its first word and the remaining text
// with surrounding spaces removed. "!w  london " gives ("!w", "london").
func SplitCommand(text string) (word, rest string) {
	text = strings.TrimLeft(text, " ")
	word, rest, _ = strings.Cut(text, " ")
	return word, strings.TrimSpace(rest)
}
