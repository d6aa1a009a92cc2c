package registry

import "context"

// EventSink is the callback address a session hands to the registry when
// joining a room. Chat events for that room are delivered through it,
// already attributed; the receiver forwards the text verbatim.
type EventSink interface {
	DeliverChat(text string)
}

// Registry is the shared routing authority every session talks to. It owns
// room membership and broadcast fan-out; sessions hold no direct references
// to each other.
type Registry interface {
	// JoinRoom registers sink as an occupant of roomName and returns a fresh
	// identifier scoped to that room. A sink that is already an occupant of
	// some room is moved: the prior membership is removed under the same
	// lock, so a mid-session room switch needs no explicit leave.
	JoinRoom(ctx context.Context, roomName, displayName string, sink EventSink) (uint64, error)

	// LeaveRoom removes the occupant. Safe to call for an id that was
	// already removed or never joined.
	LeaveRoom(ctx context.Context, roomName string, id uint64) error

	// ListRooms returns a sorted snapshot of room names.
	ListRooms(ctx context.Context) ([]string, error)

	// ListClients returns a snapshot of the display names the occupants of
	// roomName joined with.
	ListClients(ctx context.Context, roomName string) ([]string, error)

	// SendMessage broadcasts text to every occupant of roomName, the sender
	// included. Fire-and-forget: no delivery acknowledgment.
	SendMessage(ctx context.Context, roomName string, id uint64, text string)
}
