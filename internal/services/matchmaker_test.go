package services

import (
	"fmt"
	"testing"
	"time"

	"arcade-system/internal/domain"
	"arcade-system/internal/protocol"
	"arcade-system/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// presenceRegistry tracks who is online and records per-user frames.
type presenceRegistry struct {
	fakeRegistry
	online map[int64]bool
	sent   map[int64][][]byte
}

func newPresenceRegistry(online ...int64) *presenceRegistry {
	r := &presenceRegistry{
		fakeRegistry: *newFakeRegistry(),
		online:       make(map[int64]bool),
		sent:         make(map[int64][][]byte),
	}
	for _, id := range online {
		r.online[id] = true
	}
	return r
}

func (r *presenceRegistry) IsUserOnline(userID int64) bool { return r.online[userID] }
func (r *presenceRegistry) SendToUser(userID int64, frame []byte) {
	r.sent[userID] = append(r.sent[userID], frame)
}

// framesTagged decodes the frames pushed to a user and keeps those with
// the given tag.
func (r *presenceRegistry) framesTagged(t *testing.T, userID int64, tag string) []*protocol.Frame {
	t.Helper()
	var out []*protocol.Frame
	for _, data := range r.sent[userID] {
		frame, err := protocol.DecodeFrame(data)
		require.NoError(t, err)
		if frame.Tag == tag {
			out = append(out, frame)
		}
	}
	return out
}

// stubStarter hands out sequential session ids.
type stubStarter struct {
	sessions [][3]interface{} // mode, playerA, playerB
	err      error
}

func (s *stubStarter) StartSession(mode domain.GameMode, a, b int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sessions = append(s.sessions, [3]interface{}{mode, a, b})
	return fmt.Sprintf("game-%d", len(s.sessions)), nil
}

func newTestMatchmaker(registry domain.ConnectionRegistry, ttl time.Duration) (*Matchmaker, *stubStarter) {
	starter := &stubStarter{}
	return NewMatchmaker(registry, starter, ttl, logger.NewNop()), starter
}

func TestJoinMatchmakingQueuesFirstUser(t *testing.T) {
	m, starter := newTestMatchmaker(newPresenceRegistry(), time.Minute)

	require.NoError(t, m.JoinMatchmaking(1, domain.ModeClassic))

	phase, _ := m.StateOf(1)
	assert.Equal(t, domain.PhaseMatchmakingWait, phase)
	assert.Empty(t, starter.sessions)
}

func TestJoinMatchmakingPairsFIFO(t *testing.T) {
	m, starter := newTestMatchmaker(newPresenceRegistry(), time.Minute)

	require.NoError(t, m.JoinMatchmaking(1, domain.ModeClassic))
	require.NoError(t, m.JoinMatchmaking(2, domain.ModeClassic))

	require.Len(t, starter.sessions, 1)
	assert.Equal(t, [3]interface{}{domain.ModeClassic, int64(1), int64(2)}, starter.sessions[0])

	phaseA, sessionA := m.StateOf(1)
	phaseB, sessionB := m.StateOf(2)
	assert.Equal(t, domain.PhasePlaying, phaseA)
	assert.Equal(t, domain.PhasePlaying, phaseB)
	assert.Equal(t, "game-1", sessionA)
	assert.Equal(t, sessionA, sessionB)
}

func TestJoinMatchmakingSeparatesModes(t *testing.T) {
	m, starter := newTestMatchmaker(newPresenceRegistry(), time.Minute)

	require.NoError(t, m.JoinMatchmaking(1, domain.ModeClassic))
	require.NoError(t, m.JoinMatchmaking(2, domain.ModeBoost))

	assert.Empty(t, starter.sessions)
}

func TestJoinMatchmakingRejectsNonIdle(t *testing.T) {
	m, _ := newTestMatchmaker(newPresenceRegistry(), time.Minute)

	require.NoError(t, m.JoinMatchmaking(1, domain.ModeClassic))
	err := m.JoinMatchmaking(1, domain.ModeClassic)
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = m.JoinMatchmaking(1, domain.GameMode("TURBO"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLeaveMatchmakingReturnsToIdle(t *testing.T) {
	m, starter := newTestMatchmaker(newPresenceRegistry(), time.Minute)

	require.NoError(t, m.JoinMatchmaking(1, domain.ModeClassic))
	require.NoError(t, m.LeaveMatchmaking(1))

	phase, _ := m.StateOf(1)
	assert.Equal(t, domain.PhaseIdle, phase)

	// The queue slot is really gone; a later joiner waits alone.
	require.NoError(t, m.JoinMatchmaking(2, domain.ModeClassic))
	assert.Empty(t, starter.sessions)
}

func TestInviteAcceptStartsSession(t *testing.T) {
	registry := newPresenceRegistry(2)
	m, starter := newTestMatchmaker(registry, time.Minute)

	require.NoError(t, m.SendInvite(1, 2, domain.ModeGift))

	phase, _ := m.StateOf(1)
	assert.Equal(t, domain.PhaseInvitationWait, phase)

	invitations := registry.framesTagged(t, 2, domain.EventNewInvitation)
	require.Len(t, invitations, 1)
	var event domain.NewInvitationEvent
	require.NoError(t, protocol.DecodePayload(invitations[0], &event))
	assert.Equal(t, int64(1), event.InviterID)
	assert.Equal(t, domain.ModeGift, event.GameMode)
	require.NotEmpty(t, event.InviteID)

	require.NoError(t, m.AcceptInvite(2, event.InviteID))
	require.Len(t, starter.sessions, 1)

	phaseA, sessionA := m.StateOf(1)
	phaseB, sessionB := m.StateOf(2)
	assert.Equal(t, domain.PhasePlaying, phaseA)
	assert.Equal(t, domain.PhasePlaying, phaseB)
	assert.Equal(t, sessionA, sessionB)
}

func TestCancelInviteNotifiesInvitee(t *testing.T) {
	registry := newPresenceRegistry(2)
	m, _ := newTestMatchmaker(registry, time.Minute)

	require.NoError(t, m.SendInvite(1, 2, domain.ModeClassic))
	require.NoError(t, m.CancelInvite(1))

	phase, _ := m.StateOf(1)
	assert.Equal(t, domain.PhaseIdle, phase)

	cancels := registry.framesTagged(t, 2, domain.EventCancelInvitation)
	require.Len(t, cancels, 1)
	assert.Empty(t, registry.framesTagged(t, 1, domain.EventCancelInvitation))

	// The invitation is dead; accepting it now fails.
	invitations := registry.framesTagged(t, 2, domain.EventNewInvitation)
	var event domain.NewInvitationEvent
	require.NoError(t, protocol.DecodePayload(invitations[0], &event))
	assert.ErrorIs(t, m.AcceptInvite(2, event.InviteID), domain.ErrValidation)
}

func TestRefuseInviteNotifiesInviter(t *testing.T) {
	registry := newPresenceRegistry(2)
	m, starter := newTestMatchmaker(registry, time.Minute)

	require.NoError(t, m.SendInvite(1, 2, domain.ModeClassic))
	invitations := registry.framesTagged(t, 2, domain.EventNewInvitation)
	var event domain.NewInvitationEvent
	require.NoError(t, protocol.DecodePayload(invitations[0], &event))

	require.NoError(t, m.RefuseInvite(2, event.InviteID))

	phase, _ := m.StateOf(1)
	assert.Equal(t, domain.PhaseIdle, phase)
	assert.Len(t, registry.framesTagged(t, 1, domain.EventCancelInvitation), 1)
	assert.Empty(t, registry.framesTagged(t, 2, domain.EventCancelInvitation))
	assert.Empty(t, starter.sessions)
}

func TestSendInviteRejectsOfflineInvitee(t *testing.T) {
	m, _ := newTestMatchmaker(newPresenceRegistry(), time.Minute)
	assert.ErrorIs(t, m.SendInvite(1, 2, domain.ModeClassic), domain.ErrValidation)
}

func TestSendInviteRejectsSelf(t *testing.T) {
	m, _ := newTestMatchmaker(newPresenceRegistry(1), time.Minute)
	assert.ErrorIs(t, m.SendInvite(1, 1, domain.ModeClassic), domain.ErrValidation)
}

func TestDisconnectClearsWaitingStates(t *testing.T) {
	registry := newPresenceRegistry(2)
	m, starter := newTestMatchmaker(registry, time.Minute)

	require.NoError(t, m.JoinMatchmaking(1, domain.ModeClassic))
	m.HandleDisconnect(1)
	phase, _ := m.StateOf(1)
	assert.Equal(t, domain.PhaseIdle, phase)

	// An inviter disconnecting cancels their outgoing invitation.
	require.NoError(t, m.SendInvite(3, 2, domain.ModeClassic))
	m.HandleDisconnect(3)
	phase, _ = m.StateOf(3)
	assert.Equal(t, domain.PhaseIdle, phase)
	assert.Len(t, registry.framesTagged(t, 2, domain.EventCancelInvitation), 1)

	// An invitee disconnecting kills invitations addressed to them.
	require.NoError(t, m.SendInvite(4, 2, domain.ModeClassic))
	m.HandleDisconnect(2)
	phase, _ = m.StateOf(4)
	assert.Equal(t, domain.PhaseIdle, phase)

	assert.Empty(t, starter.sessions)
}

func TestInviteeDisconnectNotifiesInviter(t *testing.T) {
	registry := newPresenceRegistry(2)
	m, _ := newTestMatchmaker(registry, time.Minute)

	require.NoError(t, m.SendInvite(1, 2, domain.ModeClassic))
	m.HandleDisconnect(2)

	// The inviter's client must learn the invite died; the invitee is
	// gone and gets nothing.
	assert.Len(t, registry.framesTagged(t, 1, domain.EventCancelInvitation), 1)
	assert.Empty(t, registry.framesTagged(t, 2, domain.EventCancelInvitation))

	phase, _ := m.StateOf(1)
	assert.Equal(t, domain.PhaseIdle, phase)
}

func TestDisconnectKeepsPlayingState(t *testing.T) {
	m, _ := newTestMatchmaker(newPresenceRegistry(), time.Minute)

	require.NoError(t, m.JoinMatchmaking(1, domain.ModeClassic))
	require.NoError(t, m.JoinMatchmaking(2, domain.ModeClassic))

	m.HandleDisconnect(1)
	phase, sessionID := m.StateOf(1)
	assert.Equal(t, domain.PhasePlaying, phase)
	assert.Equal(t, "game-1", sessionID)
}

func TestHandleSessionEndReturnsPlayersToIdle(t *testing.T) {
	m, _ := newTestMatchmaker(newPresenceRegistry(), time.Minute)

	require.NoError(t, m.JoinMatchmaking(1, domain.ModeClassic))
	require.NoError(t, m.JoinMatchmaking(2, domain.ModeClassic))

	m.HandleSessionEnd("game-1", [2]int64{1, 2})

	phaseA, _ := m.StateOf(1)
	phaseB, _ := m.StateOf(2)
	assert.Equal(t, domain.PhaseIdle, phaseA)
	assert.Equal(t, domain.PhaseIdle, phaseB)

	// Both can immediately matchmake again.
	require.NoError(t, m.JoinMatchmaking(1, domain.ModeClassic))
	require.NoError(t, m.JoinMatchmaking(2, domain.ModeClassic))
}

func TestExpireInvites(t *testing.T) {
	registry := newPresenceRegistry(2)
	m, _ := newTestMatchmaker(registry, 30*time.Second)

	require.NoError(t, m.SendInvite(1, 2, domain.ModeClassic))

	assert.Zero(t, m.ExpireInvites(time.Now()))
	assert.Equal(t, 1, m.ExpireInvites(time.Now().Add(time.Minute)))

	phase, _ := m.StateOf(1)
	assert.Equal(t, domain.PhaseIdle, phase)
	assert.Len(t, registry.framesTagged(t, 2, domain.EventCancelInvitation), 1)
}
