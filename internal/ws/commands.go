package ws

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// command binds a slash token to its handler. needsArg commands reject a
// bare token with the usage line instead of calling the handler.
type command struct {
	needsArg bool
	usage    string
	run      func(ctx context.Context, s *Session, arg string)
}

// commandSet keeps a map[token]command, à-la gin.Engine. One set is built by
// the server and shared by every session.
type commandSet struct {
	handlers map[string]command
}

func newCommandSet() *commandSet {
	cs := &commandSet{handlers: make(map[string]command)}

	cs.register("/list", command{
		run: func(ctx context.Context, s *Session, _ string) { s.listRooms(ctx) },
	})
	cs.register("/join", command{
		needsArg: true,
		usage:    "room name is required",
		run:      func(ctx context.Context, s *Session, arg string) { s.joinRoom(ctx, arg) },
	})
	cs.register("/name", command{
		needsArg: true,
		usage:    "name is required",
		run:      func(_ context.Context, s *Session, arg string) { s.setName(arg) },
	})
	cs.register("/list-clients", command{
		run: func(ctx context.Context, s *Session, _ string) { s.listClients(ctx) },
	})
	cs.register("/whoami", command{
		run: func(_ context.Context, s *Session, _ string) { s.whoAmI() },
	})

	return cs
}

func (cs *commandSet) register(token string, cmd command) {
	if token == "" {
		panic("ws commands: empty token")
	}
	cs.handlers[token] = cmd
}

// dispatch routes one /-prefixed frame. Unknown tokens and missing arguments
// are rendered locally; the registry is never involved.
func (cs *commandSet) dispatch(ctx context.Context, s *Session, raw string) {
	token, arg, hasArg := splitCommand(raw)

	cmd, ok := cs.handlers[token]
	if !ok {
		s.render("!!! unknown command: " + raw)
		return
	}
	if cmd.needsArg && !hasArg {
		s.render("!!! " + cmd.usage)
		return
	}
	cmd.run(ctx, s, arg)
}

// splitCommand splits on the first whitespace rune into a token and the
// remainder. hasArg is false when the frame holds no whitespace at all.
func splitCommand(raw string) (token, arg string, hasArg bool) {
	i := strings.IndexFunc(raw, unicode.IsSpace)
	if i < 0 {
		return raw, "", false
	}
	_, size := utf8.DecodeRuneInString(raw[i:])
	return raw[:i], raw[i+size:], true
}
