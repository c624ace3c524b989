package services

import (
	"context"
	"time"

	"arcade-system/internal/domain"
	"arcade-system/internal/protocol"
	"arcade-system/pkg/logger"
)

// RelayEnvelope carries one invalidation notice between gateway
// instances. Scope decides local re-delivery on the receiving side.
type RelayEnvelope struct {
	Instance string        `json:"instance"`
	Scope    string        `json:"scope"` // user | room | all
	UserID   int64         `json:"user_id,omitempty"`
	Room     string        `json:"room,omitempty"`
	Notice   domain.Notice `json:"notice"`
}

// Relay forwards notices to sibling instances. Optional; nil disables it.
type Relay interface {
	Publish(ctx context.Context, env RelayEnvelope) error
}

const relayQueueSize = 256

// InvalidationBus pushes cache-invalidation notices through the registry.
// Delivery is best-effort: a user with zero connections simply misses the
// notice and refreshes on reconnect. Notices to the same room keep the
// order they were published in.
type InvalidationBus struct {
	registry   domain.ConnectionRegistry
	relay      Relay
	instanceID string
	relayQueue chan RelayEnvelope
	log        logger.Logger
}

func NewInvalidationBus(registry domain.ConnectionRegistry, log logger.Logger) *InvalidationBus {
	return &InvalidationBus{registry: registry, log: log}
}

// SetRelay enables cross-instance forwarding. A single drain goroutine
// publishes envelopes in the order they were queued, so siblings observe
// the same per-room order as local connections.
func (b *InvalidationBus) SetRelay(relay Relay, instanceID string) {
	b.relay = relay
	b.instanceID = instanceID
	b.relayQueue = make(chan RelayEnvelope, relayQueueSize)
	go b.drainRelay()
}

func (b *InvalidationBus) ToUser(userID int64, notice domain.Notice) {
	b.registry.SendToUser(userID, noticeFrame(notice))
	b.forward(RelayEnvelope{Scope: "user", UserID: userID, Notice: notice})
}

func (b *InvalidationBus) ToRoom(room string, notice domain.Notice) {
	b.registry.SendToRoom(room, noticeFrame(notice))
	b.forward(RelayEnvelope{Scope: "room", Room: room, Notice: notice})
}

func (b *InvalidationBus) ToAll(notice domain.Notice) {
	b.registry.SendToAll(noticeFrame(notice))
	b.forward(RelayEnvelope{Scope: "all", Notice: notice})
}

// ApplyRemote delivers a notice observed from another instance to local
// connections only, without re-forwarding.
func (b *InvalidationBus) ApplyRemote(env RelayEnvelope) {
	if env.Instance == b.instanceID {
		return
	}
	frame := noticeFrame(env.Notice)
	switch env.Scope {
	case "user":
		b.registry.SendToUser(env.UserID, frame)
	case "room":
		b.registry.SendToRoom(env.Room, frame)
	case "all":
		b.registry.SendToAll(frame)
	}
}

// forward must never block or fail command completion: envelopes go
// through the bounded queue and are dropped when it is full, matching
// the slow-consumer policy of local delivery.
func (b *InvalidationBus) forward(env RelayEnvelope) {
	if b.relay == nil {
		return
	}
	env.Instance = b.instanceID
	select {
	case b.relayQueue <- env:
	default:
		b.log.Warn("Relay queue full, dropping notice", "scope", env.Scope)
	}
}

func (b *InvalidationBus) drainRelay() {
	for env := range b.relayQueue {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := b.relay.Publish(ctx, env)
		cancel()
		if err != nil {
			b.log.Warn("Failed to relay notice", "scope", env.Scope, "error", err)
		}
	}
}

func noticeFrame(notice domain.Notice) []byte {
	return protocol.MustEncodeFrame(domain.EventCacheInvalidation, 0, notice)
}
