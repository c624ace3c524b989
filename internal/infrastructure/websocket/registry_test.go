package websocket

import (
	"testing"

	"arcade-system/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConn records frames sent to it.
type stubConn struct {
	id     string
	userID int64
	frames [][]byte
	closed bool
}

func (c *stubConn) ID() string     { return c.id }
func (c *stubConn) UserID() int64  { return c.userID }
func (c *stubConn) Close() error   { c.closed = true; return nil }
func (c *stubConn) Send(frame []byte) error {
	c.frames = append(c.frames, frame)
	return nil
}

func newTestRegistry() *Registry {
	return NewRegistry(logger.NewNop())
}

func TestRegisterTracksUserPresence(t *testing.T) {
	r := newTestRegistry()
	conn := &stubConn{id: "conn-1", userID: 10}

	assert.False(t, r.IsUserOnline(10))
	r.Register(conn)
	assert.True(t, r.IsUserOnline(10))
	require.Len(t, r.ConnectionsOf(10), 1)
}

func TestDeregisterRemovesAllMemberships(t *testing.T) {
	r := newTestRegistry()
	conn := &stubConn{id: "conn-1", userID: 10}
	r.Register(conn)
	r.JoinRoom("conn-1", "user:10")
	r.JoinRoom("conn-1", "channel:3")

	r.Deregister("conn-1")

	assert.Empty(t, r.MembersOf("user:10"))
	assert.Empty(t, r.MembersOf("channel:3"))
	assert.False(t, r.IsUserOnline(10))
	assert.Empty(t, r.ConnectionsOf(10))
}

func TestDeregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	r.Register(&stubConn{id: "conn-1", userID: 10})

	r.Deregister("conn-1")
	r.Deregister("conn-1")
	r.Deregister("never-registered")

	assert.False(t, r.IsUserOnline(10))
}

func TestRoomRemovedWhenLastMemberLeaves(t *testing.T) {
	r := newTestRegistry()
	a := &stubConn{id: "conn-a", userID: 1}
	b := &stubConn{id: "conn-b", userID: 2}
	r.Register(a)
	r.Register(b)
	r.JoinRoom("conn-a", "channel:5")
	r.JoinRoom("conn-b", "channel:5")

	r.LeaveRoom("conn-a", "channel:5")
	require.Len(t, r.MembersOf("channel:5"), 1)

	r.LeaveRoom("conn-b", "channel:5")
	assert.Empty(t, r.MembersOf("channel:5"))
	assert.NotContains(t, r.rooms, "channel:5")
}

func TestJoinRoomIgnoresUnknownConnection(t *testing.T) {
	r := newTestRegistry()
	r.JoinRoom("ghost", "channel:1")
	assert.Empty(t, r.MembersOf("channel:1"))
}

func TestSendToRoomReachesOnlyMembers(t *testing.T) {
	r := newTestRegistry()
	member := &stubConn{id: "conn-a", userID: 1}
	outsider := &stubConn{id: "conn-b", userID: 2}
	r.Register(member)
	r.Register(outsider)
	r.JoinRoom("conn-a", "game:g1")

	r.SendToRoom("game:g1", []byte("tick"))

	require.Len(t, member.frames, 1)
	assert.Equal(t, []byte("tick"), member.frames[0])
	assert.Empty(t, outsider.frames)
}

func TestSendToUserFansOutToEveryConnection(t *testing.T) {
	r := newTestRegistry()
	first := &stubConn{id: "conn-a", userID: 7}
	second := &stubConn{id: "conn-b", userID: 7}
	other := &stubConn{id: "conn-c", userID: 8}
	r.Register(first)
	r.Register(second)
	r.Register(other)

	r.SendToUser(7, []byte("hello"))

	assert.Len(t, first.frames, 1)
	assert.Len(t, second.frames, 1)
	assert.Empty(t, other.frames)
}

func TestSendToAll(t *testing.T) {
	r := newTestRegistry()
	a := &stubConn{id: "conn-a", userID: 1}
	b := &stubConn{id: "conn-b", userID: 2}
	r.Register(a)
	r.Register(b)

	r.SendToAll([]byte("bye"))

	assert.Len(t, a.frames, 1)
	assert.Len(t, b.frames, 1)
}

func TestCloseAll(t *testing.T) {
	r := newTestRegistry()
	a := &stubConn{id: "conn-a", userID: 1}
	b := &stubConn{id: "conn-b", userID: 2}
	r.Register(a)
	r.Register(b)

	r.CloseAll()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
