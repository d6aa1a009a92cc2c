package ws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatrelay/internal/registry"
)

const (
	anonName  = "anon"
	leaveWait = 5 * time.Second
)

// sessionState transitions one-directionally:
// starting → active → stopping → terminated.
type sessionState int

const (
	stateStarting sessionState = iota
	stateActive
	stateStopping
	stateTerminated
)

// textWriter is the session's output side. *clientConn implements it; tests
// substitute a recorder.
type textWriter interface {
	writeText(line string) error
}

// Session is the per-connection protocol core. It owns the client's display
// name, current room, and registry-assigned id, parses inbound frames into
// commands or broadcasts, and renders registry replies back as text lines.
//
// All methods except DeliverChat are called from the connection's single
// reader goroutine, so session state needs no locking; roomName and clientID
// only ever change together (§ room-transition handshake).
type Session struct {
	reg      registry.Registry
	out      textWriter
	commands *commandSet

	state      sessionState
	clientID   uint64
	roomName   string
	clientName string // "" until /name; rendered as anonName
}

func NewSession(reg registry.Registry, out textWriter, defaultRoom string, commands *commandSet) *Session {
	return &Session{
		reg:      reg,
		out:      out,
		commands: commands,
		state:    stateStarting,
		roomName: defaultRoom,
	}
}

// displayName resolves the placeholder for never-named clients.
func (s *Session) displayName() string {
	if s.clientName == "" {
		return anonName
	}
	return s.clientName
}

// Start joins the default room and activates the session. A failed startup
// join leaves roomName at the default and clientID at zero; the client can
// recover with /join.
func (s *Session) Start(ctx context.Context) {
	s.joinRoom(ctx, s.roomName)
	s.state = stateActive
}

// HandleText processes one inbound frame. A /-prefixed frame is always a
// command, recognized or not; anything else is broadcast as-is.
func (s *Session) HandleText(ctx context.Context, raw string) {
	if s.state != stateActive {
		return
	}

	msg := strings.TrimSpace(raw)
	zap.L().Debug("session.frame",
		zap.String("text", msg),
		zap.String("from", s.displayName()),
	)

	if strings.HasPrefix(msg, "/") {
		s.commands.dispatch(ctx, s, msg)
		return
	}
	s.sendMsg(ctx, msg)
}

// Stop leaves the current room and terminates the session. The leave is
// synchronous: resources must not be released while the registry still
// considers this session addressable. Safe to call more than once.
func (s *Session) Stop(ctx context.Context) {
	if s.state >= stateStopping {
		return
	}
	s.state = stateStopping

	ctx, cancel := context.WithTimeout(ctx, leaveWait)
	defer cancel()
	_ = s.reg.LeaveRoom(ctx, s.roomName, s.clientID)

	s.state = stateTerminated
	zap.L().Info("session closed",
		zap.String("name", s.displayName()),
		zap.Uint64("id", s.clientID),
		zap.String("room", s.roomName),
	)
}

// joinRoom performs the room-transition handshake. On success roomName and
// clientID are adopted together; on failure both keep their prior values and
// nothing is rendered to the client.
func (s *Session) joinRoom(ctx context.Context, roomName string) {
	id, err := s.reg.JoinRoom(ctx, roomName, s.displayName(), s)
	if err != nil {
		zap.L().Debug("session.join_failed", zap.String("room", roomName), zap.Error(err))
		return
	}
	s.clientID = id
	s.roomName = roomName
}

func (s *Session) listRooms(ctx context.Context) {
	rooms, err := s.reg.ListRooms(ctx)
	if err != nil {
		zap.L().Debug("session.list_rooms_failed", zap.Error(err))
		return
	}
	for _, room := range rooms {
		s.render(room)
	}
}

func (s *Session) listClients(ctx context.Context) {
	clients, err := s.reg.ListClients(ctx, s.roomName)
	if err != nil {
		zap.L().Debug("session.list_clients_failed", zap.Error(err))
		return
	}
	for _, client := range clients {
		s.render(client)
	}
}

func (s *Session) setName(name string) {
	s.clientName = name
	s.render("name changed to: " + name)
}

func (s *Session) whoAmI() {
	s.render(fmt.Sprintf("name: %s, client_id: %d in room_name: %s",
		s.displayName(), s.clientID, s.roomName))
}

func (s *Session) sendMsg(ctx context.Context, body string) {
	content := s.displayName() + ": " + body
	s.reg.SendMessage(ctx, s.roomName, s.clientID, content)
}

// DeliverChat implements registry.EventSink. The registry has already
// attributed the sender; the line goes out verbatim.
func (s *Session) DeliverChat(text string) {
	s.render(text)
}

func (s *Session) render(line string) {
	if err := s.out.writeText(line); err != nil {
		zap.L().Debug("session.write_failed", zap.Error(err))
	}
}
