package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"arcade-system/internal/domain"
	"arcade-system/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRelay captures published envelopes in arrival order.
type recordingRelay struct {
	mu   sync.Mutex
	envs []RelayEnvelope
}

func (r *recordingRelay) Publish(ctx context.Context, env RelayEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *recordingRelay) snapshot() []RelayEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RelayEnvelope(nil), r.envs...)
}

// roomBus extends the registry fake with room fan-out recording.
type roomBus struct {
	fakeRegistry
	rooms map[string][][]byte
}

func (r *roomBus) SendToRoom(room string, frame []byte) {
	if r.rooms == nil {
		r.rooms = make(map[string][][]byte)
	}
	r.rooms[room] = append(r.rooms[room], frame)
}

func TestBusDeliversLocallyWithoutRelay(t *testing.T) {
	registry := &roomBus{fakeRegistry: *newFakeRegistry()}
	bus := NewInvalidationBus(registry, logger.NewNop())

	// No relay configured; local delivery still works.
	bus.ToRoom("channel:1", domain.ChannelNotice(1))
	require.Len(t, registry.rooms["channel:1"], 1)
}

func TestRelayPreservesPublishOrder(t *testing.T) {
	registry := &roomBus{fakeRegistry: *newFakeRegistry()}
	bus := NewInvalidationBus(registry, logger.NewNop())
	relay := &recordingRelay{}
	bus.SetRelay(relay, "gw-1")

	const n = 30
	for i := 0; i < n; i++ {
		bus.ToRoom("channel:1", domain.ChannelMembersNotice(int64(i)))
	}

	require.Eventually(t, func() bool {
		return len(relay.snapshot()) == n
	}, 2*time.Second, 10*time.Millisecond)

	envs := relay.snapshot()
	for i, env := range envs {
		assert.Equal(t, "gw-1", env.Instance)
		assert.Equal(t, "room", env.Scope)
		assert.Equal(t, int64(i), env.Notice.ChannelID, "relay order must match publish order")
	}
}

func TestApplyRemoteSkipsOwnInstance(t *testing.T) {
	registry := &roomBus{fakeRegistry: *newFakeRegistry()}
	bus := NewInvalidationBus(registry, logger.NewNop())
	bus.SetRelay(&recordingRelay{}, "gw-1")

	bus.ApplyRemote(RelayEnvelope{Instance: "gw-1", Scope: "room", Room: "channel:1",
		Notice: domain.ChannelNotice(1)})
	assert.Empty(t, registry.rooms["channel:1"])

	bus.ApplyRemote(RelayEnvelope{Instance: "gw-2", Scope: "room", Room: "channel:1",
		Notice: domain.ChannelNotice(1)})
	assert.Len(t, registry.rooms["channel:1"], 1)
}
