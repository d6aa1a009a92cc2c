package registry

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

type occupant struct {
	name string
	sink EventSink
}

type membership struct {
	room string
	id   uint64
}

// InMemory keeps all rooms and memberships in process memory behind a single
// mutex. List snapshots therefore never observe a half-applied join or leave.
// Delivery I/O happens on a snapshot taken outside the lock.
type InMemory struct {
	mu     sync.Mutex
	nextID uint64
	rooms  map[string]map[uint64]occupant
	bySink map[EventSink]membership
	bridge *RedisBridge
}

func NewInMemory() *InMemory {
	return &InMemory{
		rooms:  make(map[string]map[uint64]occupant),
		bySink: make(map[EventSink]membership),
	}
}

// WithBridge attaches a Redis fan-out bridge so broadcasts reach occupants
// on other relay instances. The bridge delivers remote messages back through
// deliverLocal.
func (r *InMemory) WithBridge(b *RedisBridge) *InMemory {
	b.deliver = r.deliverLocal
	r.bridge = b
	return r
}

func (r *InMemory) JoinRoom(ctx context.Context, roomName, displayName string, sink EventSink) (uint64, error) {
	r.mu.Lock()
	prev, moved := r.bySink[sink]
	if moved {
		r.removeLocked(prev.room, prev.id)
	}
	r.nextID++
	id := r.nextID
	room, ok := r.rooms[roomName]
	if !ok {
		room = make(map[uint64]occupant)
		r.rooms[roomName] = room
	}
	room[id] = occupant{name: displayName, sink: sink}
	r.bySink[sink] = membership{room: roomName, id: id}
	bridge := r.bridge
	r.mu.Unlock()

	if bridge != nil {
		if moved {
			bridge.Unsubscribe(prev.room)
		}
		bridge.Subscribe(roomName)
	}

	zap.L().Debug("registry.join",
		zap.String("room", roomName),
		zap.String("name", displayName),
		zap.Uint64("id", id),
	)
	return id, nil
}

func (r *InMemory) LeaveRoom(ctx context.Context, roomName string, id uint64) error {
	r.mu.Lock()
	removed := r.removeLocked(roomName, id)
	bridge := r.bridge
	r.mu.Unlock()

	if removed {
		if bridge != nil {
			bridge.Unsubscribe(roomName)
		}
		zap.L().Debug("registry.leave", zap.String("room", roomName), zap.Uint64("id", id))
	}
	return nil
}

// removeLocked deletes one membership and prunes the room when it empties.
// Reports whether anything was actually removed.
func (r *InMemory) removeLocked(roomName string, id uint64) bool {
	room, ok := r.rooms[roomName]
	if !ok {
		return false
	}
	occ, ok := room[id]
	if !ok {
		return false
	}
	delete(room, id)
	delete(r.bySink, occ.sink)
	if len(room) == 0 {
		delete(r.rooms, roomName)
	}
	return true
}

func (r *InMemory) ListRooms(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names, nil
}

func (r *InMemory) ListClients(ctx context.Context, roomName string) ([]string, error) {
	r.mu.Lock()
	room := r.rooms[roomName]
	names := make([]string, 0, len(room))
	for _, occ := range room {
		names = append(names, occ.name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names, nil
}

func (r *InMemory) SendMessage(ctx context.Context, roomName string, id uint64, text string) {
	zap.L().Debug("registry.broadcast",
		zap.String("room", roomName),
		zap.Uint64("from", id),
	)
	r.deliverLocal(roomName, text)

	r.mu.Lock()
	bridge := r.bridge
	r.mu.Unlock()
	if bridge != nil {
		bridge.Publish(ctx, roomName, text)
	}
}

// deliverLocal fans text out to every local occupant of roomName. Snapshot
// first, deliver outside the lock.
func (r *InMemory) deliverLocal(roomName, text string) {
	r.mu.Lock()
	room := r.rooms[roomName]
	sinks := make([]EventSink, 0, len(room))
	for _, occ := range room {
		sinks = append(sinks, occ.sink)
	}
	r.mu.Unlock()

	for _, sink := range sinks {
		sink.DeliverChat(text)
	}
}
