package irc

// Privmsg builds a chat message for a channel or nickname.
func Privmsg(target, text string) *Message {
	return NewMessage(CmdPrivmsg, target, text)
}

// Notice is Privmsg for NOTICE, which bots answer with by convention
// when the reply must never trigger another bot.
func Notice(target, text string) *Message {
	return NewMessage(CmdNotice, target, text)
}

// Nick requests the nickname name.
func Nick(name string) *Message {
	return NewMessage(CmdNick, name)
}

// Join enters channel.
func Join(channel string) *Message {
	return NewMessage(CmdJoin, channel)
}

// Quit asks the server to close the link, leaving reason as the parting text.
func Quit(reason string) *Message {
	return NewMessage(CmdQuit, "", reason)
}

// UserCmd registers ident and realname. Mode is sent as "0" and the unused
// parameter as "*" (RFC 2812 section 3.1.3).
func UserCmd(ident, realname string) *Message {
	return NewMessage(CmdUser, "", ident, "0", "*", realname)
}
