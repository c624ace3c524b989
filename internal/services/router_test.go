package services

import (
	"context"
	"testing"

	"arcade-system/internal/domain"
	"arcade-system/internal/protocol"
	"arcade-system/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn satisfies domain.Connection for dispatch tests.
type fakeConn struct {
	id     string
	userID int64
}

func (c *fakeConn) ID() string              { return c.id }
func (c *fakeConn) UserID() int64           { return c.userID }
func (c *fakeConn) Send(frame []byte) error { return nil }
func (c *fakeConn) Close() error            { return nil }

// fakeRegistry records room operations without real connections.
type fakeRegistry struct {
	joined map[string][]string // connID -> rooms
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{joined: make(map[string][]string)}
}

func (r *fakeRegistry) Register(conn domain.Connection) {}
func (r *fakeRegistry) Deregister(connID string)        {}
func (r *fakeRegistry) JoinRoom(connID, room string) {
	r.joined[connID] = append(r.joined[connID], room)
}
func (r *fakeRegistry) LeaveRoom(connID, room string)              {}
func (r *fakeRegistry) MembersOf(room string) []domain.Connection  { return nil }
func (r *fakeRegistry) ConnectionsOf(id int64) []domain.Connection { return nil }
func (r *fakeRegistry) IsUserOnline(userID int64) bool             { return false }
func (r *fakeRegistry) SendToRoom(room string, frame []byte)       {}
func (r *fakeRegistry) SendToUser(userID int64, frame []byte)      {}
func (r *fakeRegistry) SendToAll(frame []byte)                     {}
func (r *fakeRegistry) CloseAll()                                  {}

// recordingBus captures published notices per destination.
type recordingBus struct {
	toUser map[int64][]domain.Notice
	toRoom map[string][]domain.Notice
	toAll  []domain.Notice
}

func newRecordingBus() *recordingBus {
	return &recordingBus{
		toUser: make(map[int64][]domain.Notice),
		toRoom: make(map[string][]domain.Notice),
	}
}

func (b *recordingBus) ToUser(userID int64, n domain.Notice) {
	b.toUser[userID] = append(b.toUser[userID], n)
}
func (b *recordingBus) ToRoom(room string, n domain.Notice) {
	b.toRoom[room] = append(b.toRoom[room], n)
}
func (b *recordingBus) ToAll(n domain.Notice) {
	b.toAll = append(b.toAll, n)
}

func (b *recordingBus) total() int {
	n := len(b.toAll)
	for _, notices := range b.toUser {
		n += len(notices)
	}
	for _, notices := range b.toRoom {
		n += len(notices)
	}
	return n
}

// stubDomain embeds the interface so only the methods a test exercises
// need an implementation.
type stubDomain struct {
	domain.DomainService

	blockErr    error
	blockCalls  [][2]int64
	searchUsers []domain.UserSummary
}

func (s *stubDomain) BlockUser(ctx context.Context, callerID, targetID int64) error {
	s.blockCalls = append(s.blockCalls, [2]int64{callerID, targetID})
	return s.blockErr
}

func (s *stubDomain) Search(ctx context.Context, callerID int64, query string) ([]domain.UserSummary, error) {
	return s.searchUsers, nil
}

func (s *stubDomain) Channel(ctx context.Context, callerID, channelID int64) (*domain.Channel, error) {
	return &domain.Channel{ID: channelID, Name: "general", OwnerID: callerID}, nil
}

func newTestRouter(svc domain.DomainService) (*Router, *fakeRegistry, *recordingBus) {
	registry := newFakeRegistry()
	bus := newRecordingBus()
	return NewRouter(svc, registry, bus, logger.NewNop()), registry, bus
}

func encodeCommand(t *testing.T, tag domain.CommandTag, ref uint32, payload interface{}) *protocol.Frame {
	t.Helper()
	data, err := protocol.EncodeFrame(string(tag), ref, payload)
	require.NoError(t, err)
	frame, err := protocol.DecodeFrame(data)
	require.NoError(t, err)
	return frame
}

func decodeResult(t *testing.T, data []byte, v interface{}) *protocol.Frame {
	t.Helper()
	frame, err := protocol.DecodeFrame(data)
	require.NoError(t, err)
	require.NoError(t, protocol.DecodePayload(frame, v))
	return frame
}

func TestRouterHandlesEveryCommandTag(t *testing.T) {
	router, _, _ := newTestRouter(&stubDomain{})
	assert.Empty(t, router.MissingHandlers())
}

func TestDispatchUnknownTag(t *testing.T) {
	router, _, _ := newTestRouter(&stubDomain{})
	caller := &fakeConn{id: "conn-1", userID: 1}

	data := router.DispatchFrame(caller, &protocol.Frame{Tag: "NOT_A_COMMAND", Ref: 9})

	var result domain.ErrorResult
	frame := decodeResult(t, data, &result)
	assert.Equal(t, domain.TagValidationError, frame.Tag)
	assert.Equal(t, uint32(9), frame.Ref)
}

func TestDispatchEchoesTagAndRef(t *testing.T) {
	svc := &stubDomain{searchUsers: []domain.UserSummary{{ID: 2, Name: "bob"}}}
	router, _, _ := newTestRouter(svc)
	caller := &fakeConn{id: "conn-1", userID: 1}

	frame := encodeCommand(t, domain.TagSearch, 77, domain.SearchCommand{Query: "bo"})
	data := router.DispatchFrame(caller, frame)

	var result domain.SearchResult
	reply := decodeResult(t, data, &result)
	assert.Equal(t, string(domain.TagSearch), reply.Tag)
	assert.Equal(t, uint32(77), reply.Ref)
	require.Len(t, result.Users, 1)
	assert.Equal(t, "bob", result.Users[0].Name)
}

func TestDispatchValidationFailure(t *testing.T) {
	router, _, bus := newTestRouter(&stubDomain{})
	caller := &fakeConn{id: "conn-1", userID: 1}

	frame := encodeCommand(t, domain.TagSearch, 3, domain.SearchCommand{Query: ""})
	data := router.DispatchFrame(caller, frame)

	var result domain.ErrorResult
	reply := decodeResult(t, data, &result)
	assert.Equal(t, domain.TagValidationError, reply.Tag)
	assert.Equal(t, "query required", result.Message)
	assert.Zero(t, bus.total(), "a failed command must publish no notices")
}

func TestDispatchDomainError(t *testing.T) {
	svc := &stubDomain{blockErr: domain.ErrNotFound}
	router, _, bus := newTestRouter(svc)
	caller := &fakeConn{id: "conn-1", userID: 1}

	frame := encodeCommand(t, domain.TagBlockUser, 4, domain.TargetUserCommand{UserID: 99})
	data := router.DispatchFrame(caller, frame)

	var result domain.ErrorResult
	reply := decodeResult(t, data, &result)
	assert.Equal(t, string(domain.TagError), reply.Tag)
	assert.Equal(t, "not found", result.Message)
	assert.Zero(t, bus.total())
}

func TestBlockUserPublishesRelationshipNotices(t *testing.T) {
	svc := &stubDomain{}
	router, _, bus := newTestRouter(svc)
	caller := &fakeConn{id: "conn-1", userID: 1}

	frame := encodeCommand(t, domain.TagBlockUser, 5, domain.TargetUserCommand{UserID: 2})
	data := router.DispatchFrame(caller, frame)

	var ack domain.AckResult
	decodeResult(t, data, &ack)
	assert.True(t, ack.OK)

	require.Equal(t, [][2]int64{{1, 2}}, svc.blockCalls)
	require.Len(t, bus.toUser[1], 1)
	assert.Equal(t, domain.SelfNotice(), bus.toUser[1][0])
	require.Len(t, bus.toUser[2], 1)
	assert.Equal(t, domain.OtherUserNotice(1), bus.toUser[2][0])
	assert.Equal(t, 2, bus.total(), "no notice beyond the SELF/OTHER_USER pair")
}

func TestBlockUserRejectsSelfTarget(t *testing.T) {
	router, _, bus := newTestRouter(&stubDomain{})
	caller := &fakeConn{id: "conn-1", userID: 1}

	frame := encodeCommand(t, domain.TagBlockUser, 6, domain.TargetUserCommand{UserID: 1})
	data := router.DispatchFrame(caller, frame)

	var result domain.ErrorResult
	reply := decodeResult(t, data, &result)
	assert.Equal(t, domain.TagValidationError, reply.Tag)
	assert.Zero(t, bus.total())
}

func TestGetChannelJoinsRoomAndPublishesNothing(t *testing.T) {
	router, registry, bus := newTestRouter(&stubDomain{})
	caller := &fakeConn{id: "conn-1", userID: 1}

	frame := encodeCommand(t, domain.TagGetChannel, 8, domain.TargetChannelCommand{ChannelID: 5})
	data := router.DispatchFrame(caller, frame)

	var channel domain.Channel
	decodeResult(t, data, &channel)
	assert.Equal(t, int64(5), channel.ID)

	assert.Equal(t, []string{domain.ChannelRoom(5)}, registry.joined["conn-1"])
	assert.Zero(t, bus.total(), "reads must publish no notices")
}

func TestSafeMessageNeverLeaksInternalDetail(t *testing.T) {
	assert.Equal(t, "not authorized", SafeMessage(domain.ErrNotAuthorized))
	assert.Equal(t, "conflict", SafeMessage(domain.ErrConflict))
	assert.Equal(t, "internal error", SafeMessage(assert.AnError))
	assert.Equal(t, "user_id must be positive", SafeMessage(invalid("user_id must be positive")))
}
