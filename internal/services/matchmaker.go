package services

import (
	"sync"
	"time"

	"arcade-system/internal/domain"
	"arcade-system/internal/protocol"
	"arcade-system/pkg/logger"
	"arcade-system/pkg/utils"
)

type presence struct {
	phase     domain.PresencePhase
	mode      domain.GameMode
	inviteID  string
	sessionID string
}

type invite struct {
	id        string
	inviterID int64
	inviteeID int64
	mode      domain.GameMode
	createdAt time.Time
}

// Matchmaker owns the per-user presence state machine: Idle,
// MatchmakingWait, InvitationWait, Playing. Every transition happens under
// one lock, so a matched pair enters Playing atomically with session
// creation. Waiting users queue first-in-first-out per mode bucket.
type Matchmaker struct {
	states       map[int64]*presence
	queues       map[domain.GameMode][]int64
	invites      map[string]*invite
	inviteByUser map[int64]string // inviterID -> inviteID
	mutex        sync.Mutex
	registry     domain.ConnectionRegistry
	games        domain.GameStarter
	inviteTTL    time.Duration
	log          logger.Logger
}

func NewMatchmaker(registry domain.ConnectionRegistry, games domain.GameStarter,
	inviteTTL time.Duration, log logger.Logger) *Matchmaker {
	return &Matchmaker{
		states:       make(map[int64]*presence),
		queues:       make(map[domain.GameMode][]int64),
		invites:      make(map[string]*invite),
		inviteByUser: make(map[int64]string),
		registry:     registry,
		games:        games,
		inviteTTL:    inviteTTL,
		log:          log,
	}
}

// StateOf reports the user's phase and, when Playing, the session id.
func (m *Matchmaker) StateOf(userID int64) (domain.PresencePhase, string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	state, exists := m.states[userID]
	if !exists {
		return domain.PhaseIdle, ""
	}
	return state.phase, state.sessionID
}

func (m *Matchmaker) JoinMatchmaking(userID int64, mode domain.GameMode) error {
	if !mode.Valid() {
		return invalid("unknown game mode")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.phaseLocked(userID) != domain.PhaseIdle {
		return invalid("already matchmaking, invited or playing")
	}

	// FIFO per mode bucket: pair with the longest waiter.
	queue := m.queues[mode]
	if len(queue) > 0 {
		opponent := queue[0]
		m.queues[mode] = queue[1:]
		return m.startPlayingLocked(opponent, userID, mode)
	}

	m.queues[mode] = append(queue, userID)
	m.states[userID] = &presence{phase: domain.PhaseMatchmakingWait, mode: mode}
	m.log.Info("User joined matchmaking", "user_id", userID, "mode", mode)
	return nil
}

func (m *Matchmaker) LeaveMatchmaking(userID int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	state, exists := m.states[userID]
	if !exists || state.phase != domain.PhaseMatchmakingWait {
		return invalid("not in matchmaking")
	}

	m.removeFromQueueLocked(userID, state.mode)
	delete(m.states, userID)
	m.log.Info("User left matchmaking", "user_id", userID)
	return nil
}

func (m *Matchmaker) SendInvite(inviterID, inviteeID int64, mode domain.GameMode) error {
	if !mode.Valid() {
		return invalid("unknown game mode")
	}
	if inviteeID <= 0 {
		return invalid("user_id must be positive")
	}
	if inviteeID == inviterID {
		return invalid("cannot invite yourself")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.phaseLocked(inviterID) != domain.PhaseIdle {
		return invalid("already matchmaking, invited or playing")
	}
	if !m.registry.IsUserOnline(inviteeID) {
		return invalid("user is offline")
	}
	if m.phaseLocked(inviteeID) == domain.PhasePlaying {
		return invalid("user is already playing")
	}

	inv := &invite{
		id:        utils.GenerateID("inv"),
		inviterID: inviterID,
		inviteeID: inviteeID,
		mode:      mode,
		createdAt: time.Now(),
	}
	m.invites[inv.id] = inv
	m.inviteByUser[inviterID] = inv.id
	m.states[inviterID] = &presence{phase: domain.PhaseInvitationWait, mode: mode, inviteID: inv.id}

	m.registry.SendToUser(inviteeID, protocol.MustEncodeFrame(domain.EventNewInvitation, 0,
		domain.NewInvitationEvent{InviteID: inv.id, InviterID: inviterID, GameMode: mode}))

	m.log.Info("Invitation sent", "invite_id", inv.id, "inviter_id", inviterID,
		"invitee_id", inviteeID, "mode", mode)
	return nil
}

func (m *Matchmaker) CancelInvite(inviterID int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	inviteID, exists := m.inviteByUser[inviterID]
	if !exists {
		return invalid("no pending invitation")
	}
	m.cancelInviteLocked(m.invites[inviteID], true)
	return nil
}

func (m *Matchmaker) AcceptInvite(inviteeID int64, inviteID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	inv, exists := m.invites[inviteID]
	if !exists || inv.inviteeID != inviteeID {
		return invalid("unknown invitation")
	}
	if m.phaseLocked(inviteeID) != domain.PhaseIdle {
		return invalid("already matchmaking, invited or playing")
	}

	m.dropInviteLocked(inv)
	return m.startPlayingLocked(inv.inviterID, inv.inviteeID, inv.mode)
}

func (m *Matchmaker) RefuseInvite(inviteeID int64, inviteID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	inv, exists := m.invites[inviteID]
	if !exists || inv.inviteeID != inviteeID {
		return invalid("unknown invitation")
	}
	m.cancelInviteLocked(inv, false)
	return nil
}

// HandleDisconnect is called when a user's last connection is gone. A
// Playing user keeps their state; the game loop owns grace and forfeit.
func (m *Matchmaker) HandleDisconnect(userID int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Invitations addressed to this user die with them; the inviter is
	// the counterpart to notify.
	for _, inv := range m.invites {
		if inv.inviteeID == userID {
			m.cancelInviteLocked(inv, false)
		}
	}

	state, exists := m.states[userID]
	if !exists {
		return
	}
	switch state.phase {
	case domain.PhaseMatchmakingWait:
		m.removeFromQueueLocked(userID, state.mode)
		delete(m.states, userID)
	case domain.PhaseInvitationWait:
		if inv, exists := m.invites[state.inviteID]; exists {
			m.cancelInviteLocked(inv, true)
		} else {
			delete(m.states, userID)
		}
	case domain.PhasePlaying:
		// Session survives; see the game loop's forfeit grace.
	default:
		delete(m.states, userID)
	}
}

// HandleSessionEnd returns both players to Idle once the loop reports a
// terminal state.
func (m *Matchmaker) HandleSessionEnd(sessionID string, players [2]int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, userID := range players {
		state, exists := m.states[userID]
		if exists && state.phase == domain.PhasePlaying && state.sessionID == sessionID {
			delete(m.states, userID)
		}
	}
	m.log.Info("Session ended", "session_id", sessionID,
		"player_a", players[0], "player_b", players[1])
}

// ExpireInvites cancels invitations older than the invite TTL, exactly as
// if the inviter had cancelled. Returns the number expired.
func (m *Matchmaker) ExpireInvites(now time.Time) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	expired := 0
	for _, inv := range m.invites {
		if now.Sub(inv.createdAt) >= m.inviteTTL {
			m.cancelInviteLocked(inv, true)
			expired++
		}
	}
	return expired
}

func (m *Matchmaker) phaseLocked(userID int64) domain.PresencePhase {
	if state, exists := m.states[userID]; exists {
		return state.phase
	}
	return domain.PhaseIdle
}

func (m *Matchmaker) removeFromQueueLocked(userID int64, mode domain.GameMode) {
	queue := m.queues[mode]
	for i, id := range queue {
		if id == userID {
			m.queues[mode] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

// cancelInviteLocked tears an invitation down and notifies the
// counterpart: the invitee when the inviter cancelled (or expired or
// disconnected), the inviter when the invitee refused.
func (m *Matchmaker) cancelInviteLocked(inv *invite, notifyInvitee bool) {
	m.dropInviteLocked(inv)

	target := inv.inviterID
	if notifyInvitee {
		target = inv.inviteeID
	}
	m.registry.SendToUser(target, protocol.MustEncodeFrame(domain.EventCancelInvitation, 0,
		domain.CancelInvitationEvent{InviteID: inv.id}))
	m.log.Info("Invitation cancelled", "invite_id", inv.id)
}

// dropInviteLocked removes invite bookkeeping and returns the inviter to
// Idle without notifying anyone.
func (m *Matchmaker) dropInviteLocked(inv *invite) {
	delete(m.invites, inv.id)
	delete(m.inviteByUser, inv.inviterID)
	if state, exists := m.states[inv.inviterID]; exists && state.inviteID == inv.id {
		delete(m.states, inv.inviterID)
	}
}

// startPlayingLocked moves both users into Playing together with session
// creation. Entering Playing is only ever reached from MatchmakingWait or
// InvitationWait paths.
func (m *Matchmaker) startPlayingLocked(playerA, playerB int64, mode domain.GameMode) error {
	sessionID, err := m.games.StartSession(mode, playerA, playerB)
	if err != nil {
		m.log.Error("Failed to start session", "player_a", playerA,
			"player_b", playerB, "mode", mode, "error", err)
		delete(m.states, playerA)
		delete(m.states, playerB)
		return err
	}

	m.states[playerA] = &presence{phase: domain.PhasePlaying, mode: mode, sessionID: sessionID}
	m.states[playerB] = &presence{phase: domain.PhasePlaying, mode: mode, sessionID: sessionID}

	m.log.Info("Session starting", "session_id", sessionID, "mode", mode,
		"player_a", playerA, "player_b", playerB)
	return nil
}
