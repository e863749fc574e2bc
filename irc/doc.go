/*
Package irc is the connection layer of the bot: the line codec, the
connection actor that owns a stream, and the handler types built on top.

Conn

NewConn takes any established io.ReadWriteCloser, so plain TCP, TLS and
in-memory test streams are handled alike. Start launches a reader, which
splits the stream into CR-LF lines and publishes every decoded Message, and
a writer, which drains the outbound queue. Outcome tells why the Conn ended:
the peer hung up, a QUIT was sent, the context was cancelled, or I/O failed.

	conn := irc.NewConn("libera", nc, irc.WithLogger(logger))
	control := conn.Client()
	conn.Start(ctx)
	<-conn.Done()
	log.Println(conn.Outcome())

Client

Each Client handle reads the published messages at its own pace. A handle
left too far behind gets a *LaggedError and resumes at the oldest message
still held. Writes from every handle go through the same queue, so whole
lines are never interleaved.

Handler

Handler has the shape of http.Handler, and HTTP middleware patterns carry
over directly:

	type Handler interface {
		SpeakIRC(context.Context, MessageWriter, *Message)
	}

Serve delivers a Client's messages to a Handler one by one, in arrival order.

Router

Router picks the first route whose conditions all hold. Middleware can wrap
the whole router or a single route.

	r := &irc.Router{}
	r.Use(irc.PingMiddleware)
	r.OnCommand("!uptime", uptime)
	err := irc.Serve(ctx, client, r)

Replies

There is no formatting helper; packages write their own, usually replying
to m.ReplyTarget():

	func replyf(ctx context.Context, w irc.MessageWriter, m *irc.Message, format string, args ...any) error {
		return w.WriteMessage(ctx, irc.Privmsg(m.ReplyTarget(), fmt.Sprintf(format, args...)))
	}
*/
package irc
