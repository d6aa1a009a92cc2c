package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chatrelay/internal/registry"
)

type joinCall struct {
	room string
	name string
	sink registry.EventSink
}

type sendCall struct {
	room string
	id   uint64
	text string
}

type leaveCall struct {
	room string
	id   uint64
}

// fakeRegistry scripts join ids/errors and records every call.
type fakeRegistry struct {
	ids     []uint64
	joinErr error
	rooms   []string
	clients []string
	listErr error

	joins       []joinCall
	sends       []sendCall
	leaves      []leaveCall
	clientRooms []string
}

func (f *fakeRegistry) JoinRoom(_ context.Context, roomName, displayName string, sink registry.EventSink) (uint64, error) {
	f.joins = append(f.joins, joinCall{room: roomName, name: displayName, sink: sink})
	if f.joinErr != nil {
		return 0, f.joinErr
	}
	id := f.ids[0]
	if len(f.ids) > 1 {
		f.ids = f.ids[1:]
	}
	return id, nil
}

func (f *fakeRegistry) LeaveRoom(_ context.Context, roomName string, id uint64) error {
	f.leaves = append(f.leaves, leaveCall{room: roomName, id: id})
	return nil
}

func (f *fakeRegistry) ListRooms(context.Context) ([]string, error) {
	return f.rooms, f.listErr
}

func (f *fakeRegistry) ListClients(_ context.Context, roomName string) ([]string, error) {
	f.clientRooms = append(f.clientRooms, roomName)
	return f.clients, f.listErr
}

func (f *fakeRegistry) SendMessage(_ context.Context, roomName string, id uint64, text string) {
	f.sends = append(f.sends, sendCall{room: roomName, id: id, text: text})
}

// recorder captures rendered output lines.
type recorder struct {
	lines []string
}

func (r *recorder) writeText(line string) error {
	r.lines = append(r.lines, line)
	return nil
}

func newTestSession(reg *fakeRegistry) (*Session, *recorder) {
	rec := &recorder{}
	sess := NewSession(reg, rec, "Main", newCommandSet())
	sess.Start(context.Background())
	return sess, rec
}

func TestSessionJoinsDefaultRoomOnStart(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}}

	sess, rec := newTestSession(reg)

	req.Len(reg.joins, 1)
	req.Equal("Main", reg.joins[0].room)
	req.Equal("anon", reg.joins[0].name)
	req.Same(sess, reg.joins[0].sink.(*Session))
	req.Equal("Main", sess.roomName)
	req.Equal(uint64(7), sess.clientID)
	req.Empty(rec.lines)
}

func TestDisplayNameScoping(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}}
	sess, rec := newTestSession(reg)
	ctx := context.Background()

	sess.HandleText(ctx, "hi")
	sess.HandleText(ctx, "/name Alice")
	sess.HandleText(ctx, "hello")

	req.Equal([]string{"name changed to: Alice"}, rec.lines)
	req.Equal([]sendCall{
		{room: "Main", id: 7, text: "anon: hi"},
		{room: "Main", id: 7, text: "Alice: hello"},
	}, reg.sends)
}

func TestCommandsAreNeverBroadcast(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}}
	sess, _ := newTestSession(reg)
	ctx := context.Background()

	for _, frame := range []string{"/list", "/whoami", "/name Bob", "/join", "/frobnicate x", "/"} {
		sess.HandleText(ctx, frame)
	}

	req.Empty(reg.sends)
}

func TestAtomicRoomSwitch(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7, 3}}
	sess, _ := newTestSession(reg)
	ctx := context.Background()

	sess.HandleText(ctx, "/join Lounge")

	req.Equal("Lounge", sess.roomName)
	req.Equal(uint64(3), sess.clientID)

	sess.HandleText(ctx, "after the move")
	req.Equal([]sendCall{{room: "Lounge", id: 3, text: "anon: after the move"}}, reg.sends)
}

func TestJoinFailureKeepsPriorState(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}}
	sess, rec := newTestSession(reg)
	ctx := context.Background()

	reg.joinErr = context.DeadlineExceeded
	sess.HandleText(ctx, "/join Lounge")

	// State untouched, nothing rendered: the client keeps talking to the
	// last-good room.
	req.Equal("Main", sess.roomName)
	req.Equal(uint64(7), sess.clientID)
	req.Empty(rec.lines)

	sess.HandleText(ctx, "still here")
	req.Equal([]sendCall{{room: "Main", id: 7, text: "anon: still here"}}, reg.sends)
}

func TestUnknownCommandRendersOneLine(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}}
	sess, rec := newTestSession(reg)

	sess.HandleText(context.Background(), "/frobnicate x")

	req.Equal([]string{"!!! unknown command: /frobnicate x"}, rec.lines)
	req.Len(reg.joins, 1) // startup join only
	req.Empty(reg.sends)
}

func TestUsageErrors(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}}
	sess, rec := newTestSession(reg)
	ctx := context.Background()

	sess.HandleText(ctx, "/join")
	sess.HandleText(ctx, "/name")

	req.Equal([]string{"!!! room name is required", "!!! name is required"}, rec.lines)
	req.Len(reg.joins, 1) // missing argument never reaches the registry
}

func TestWhoAmIUsesLocalStateOnly(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}}
	sess, rec := newTestSession(reg)

	sess.HandleText(context.Background(), "/whoami")

	req.Equal([]string{"name: anon, client_id: 7 in room_name: Main"}, rec.lines)
	req.Len(reg.joins, 1)
}

func TestListRendersEachRoomAsALine(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}, rooms: []string{"Lounge", "Main"}}
	sess, rec := newTestSession(reg)

	sess.HandleText(context.Background(), "/list")

	req.Equal([]string{"Lounge", "Main"}, rec.lines)
}

func TestListClientsTargetsCurrentRoom(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7, 3}, clients: []string{"Alice", "anon"}}
	sess, rec := newTestSession(reg)
	ctx := context.Background()

	sess.HandleText(ctx, "/join Lounge")
	sess.HandleText(ctx, "/list-clients")

	req.Equal([]string{"Alice", "anon"}, rec.lines)
	req.Equal([]string{"Lounge"}, reg.clientRooms)
}

func TestListFailureRendersNothing(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}, listErr: context.DeadlineExceeded}
	sess, rec := newTestSession(reg)
	ctx := context.Background()

	sess.HandleText(ctx, "/list")
	sess.HandleText(ctx, "/list-clients")

	req.Empty(rec.lines)
}

func TestDeliverChatForwardsVerbatim(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7}}
	sess, rec := newTestSession(reg)

	sess.DeliverChat("Alice: already attributed")

	req.Equal([]string{"Alice: already attributed"}, rec.lines)
}

func TestStopLeavesCurrentRoomOnce(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7, 3}}
	sess, _ := newTestSession(reg)
	ctx := context.Background()

	sess.HandleText(ctx, "/join Lounge")
	sess.Stop(ctx)
	sess.Stop(ctx) // idempotent

	req.Equal([]leaveCall{{room: "Lounge", id: 3}}, reg.leaves)

	// Terminated sessions drop further frames.
	sess.HandleText(ctx, "too late")
	req.Empty(reg.sends)
}

// Exercises the full scripted exchange: connect, rename, chat, switch rooms,
// chat again under the new identity.
func TestSessionScenario(t *testing.T) {
	req := require.New(t)
	reg := &fakeRegistry{ids: []uint64{7, 3}}
	sess, rec := newTestSession(reg)
	ctx := context.Background()

	req.Equal(uint64(7), sess.clientID)

	sess.HandleText(ctx, "/name Alice")
	req.Equal([]string{"name changed to: Alice"}, rec.lines)

	sess.HandleText(ctx, "hello")
	req.Equal([]sendCall{{room: "Main", id: 7, text: "Alice: hello"}}, reg.sends)

	sess.HandleText(ctx, "/join Lounge")
	req.Equal("Lounge", sess.roomName)
	req.Equal(uint64(3), sess.clientID)
	req.Equal("Alice", reg.joins[1].name)

	sess.HandleText(ctx, "anyone here?")
	req.Equal(sendCall{room: "Lounge", id: 3, text: "Alice: anyone here?"}, reg.sends[1])
}
