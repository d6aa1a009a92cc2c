package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// chatEnvelope is the payload published to "room:<name>:events". The origin
// id lets an instance drop its own publishes on the way back in, since local
// occupants were already served directly.
type chatEnvelope struct {
	Origin string `json:"origin"`
	Text   string `json:"text"`
}

// RedisBridge fans broadcasts out across relay instances. It guarantees
// **exactly one** Redis subscription per "room:<name>:events" channel per
// process ― no matter how many local sessions occupy the same room.
type RedisBridge struct {
	rdb     *redis.Client
	origin  string
	deliver func(roomName, text string)

	mu   sync.Mutex
	subs map[string]*subEntry // roomName ➜ subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func NewRedisBridge(rdb *redis.Client) *RedisBridge {
	return &RedisBridge{
		rdb:    rdb,
		origin: uuid.NewString(),
		subs:   make(map[string]*subEntry),
	}
}

func channelFor(roomName string) string { return "room:" + roomName + ":events" }

// Publish pushes one broadcast onto the room's channel. Fire-and-forget like
// the local fan-out; a failed publish only loses the cross-instance copy.
func (b *RedisBridge) Publish(ctx context.Context, roomName, text string) {
	payload, err := json.Marshal(chatEnvelope{Origin: b.origin, Text: text})
	if err != nil {
		zap.L().Warn("bridge.marshal", zap.Error(err))
		return
	}
	if err := b.rdb.Publish(ctx, channelFor(roomName), payload).Err(); err != nil {
		zap.L().Warn("bridge.publish", zap.String("room", roomName), zap.Error(err))
	}
}

// Subscribe ensures that the process is subscribed to the room's channel;
// subsequent calls for the same room only increment the ref-counter.
func (b *RedisBridge) Subscribe(roomName string) {
	b.mu.Lock()
	if e, ok := b.subs[roomName]; ok {
		e.refCnt++
		b.mu.Unlock()
		return
	}

	// First local occupant → create Redis SUB and fan-in loop.
	ctx, cancel := context.WithCancel(context.Background())
	ps := b.rdb.Subscribe(ctx, channelFor(roomName))

	b.subs[roomName] = &subEntry{refCnt: 1, cancel: cancel}
	b.mu.Unlock()

	go func() {
		defer ps.Close()
		b.fanIn(ctx, roomName, ps.Channel())
	}()
}

// fanIn forwards remote envelopes from the room's channel to the local
// occupants until the subscription is torn down or the connection closes.
func (b *RedisBridge) fanIn(ctx context.Context, roomName string, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok { // Redis connection closed.
				return
			}
			text, remote := b.decode(m.Payload)
			if !remote {
				continue
			}
			b.deliver(roomName, text)
		}
	}
}

// Unsubscribe decrements the ref-counter and tears the Redis SUB down when
// the last local occupant leaves the room.
func (b *RedisBridge) Unsubscribe(roomName string) {
	b.mu.Lock()
	e, ok := b.subs[roomName]
	if !ok {
		b.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		b.mu.Unlock()
		return
	}
	delete(b.subs, roomName)
	b.mu.Unlock()

	// Outside the lock → stop the fan-in goroutine.
	e.cancel()
}

// decode unwraps an envelope and reports whether it came from another
// instance. Malformed payloads are dropped.
func (b *RedisBridge) decode(payload string) (string, bool) {
	var env chatEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		zap.L().Warn("bridge.decode", zap.Error(err))
		return "", false
	}
	if env.Origin == b.origin {
		return "", false
	}
	return env.Text, true
}
