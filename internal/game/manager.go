package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"arcade-system/internal/domain"
	"arcade-system/internal/protocol"
	"arcade-system/pkg/logger"
	"arcade-system/pkg/utils"
)

// Manager creates and tracks session loops. It implements
// domain.GameStarter for the matchmaker and services.SessionReaper for
// the maintenance sweeper.
type Manager struct {
	loops    map[string]*Loop // sessionID -> loop
	byPlayer map[int64]string // userID -> sessionID while playing
	mutex    sync.RWMutex

	registry domain.ConnectionRegistry
	settings Settings
	onEnd    func(sessionID string, players [2]int64)
	log      logger.Logger
}

func NewManager(registry domain.ConnectionRegistry, settings Settings, log logger.Logger) *Manager {
	return &Manager{
		loops:    make(map[string]*Loop),
		byPlayer: make(map[int64]string),
		registry: registry,
		settings: settings,
		log:      log,
	}
}

// SetOnSessionEnd wires the matchmaker callback after construction.
func (m *Manager) SetOnSessionEnd(fn func(sessionID string, players [2]int64)) {
	m.onEnd = fn
}

// StartSession creates the authoritative session for a matched pair,
// joins both players' connections to the session room, announces the
// start and begins ticking.
func (m *Manager) StartSession(mode domain.GameMode, playerA, playerB int64) (string, error) {
	if playerA == playerB {
		return "", fmt.Errorf("cannot start session with one player")
	}

	id := utils.GenerateID("game")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	session := newSession(id, mode, [2]int64{playerA, playerB}, m.settings, rng)
	loop := newLoop(session, m.settings, m.registry, m.loopEnded, m.log)

	m.mutex.Lock()
	m.loops[id] = loop
	m.byPlayer[playerA] = id
	m.byPlayer[playerB] = id
	m.mutex.Unlock()

	room := domain.GameRoom(id)
	for _, userID := range []int64{playerA, playerB} {
		for _, conn := range m.registry.ConnectionsOf(userID) {
			m.registry.JoinRoom(conn.ID(), room)
		}
		m.registry.SendToUser(userID, protocol.MustEncodeFrame(domain.EventGameStarting, 0,
			domain.GameStartingEvent{GameID: id, Mode: mode}))
	}

	go loop.run()

	m.log.Info("Session created", "session_id", id, "mode", mode,
		"player_a", playerA, "player_b", playerB)
	return id, nil
}

// Input forwards a paddle command. Unknown game ids and non-players are
// ignored.
func (m *Manager) Input(gameID string, userID int64, input PaddleInput) {
	m.mutex.RLock()
	loop, exists := m.loops[gameID]
	m.mutex.RUnlock()
	if !exists {
		return
	}
	if player, ok := playerIndex(loop, userID); ok {
		loop.Input(player, input)
	}
}

// PlayerDisconnected pauses input for that player; the loop keeps running
// through the forfeit grace.
func (m *Manager) PlayerDisconnected(userID int64) {
	if loop, player, ok := m.loopOf(userID); ok {
		loop.Pause(player)
		m.log.Info("Player paused", "session_id", loop.ID(), "user_id", userID)
	}
}

// PlayerReconnected resumes input and reports the session to rejoin.
func (m *Manager) PlayerReconnected(userID int64) (string, bool) {
	loop, player, ok := m.loopOf(userID)
	if !ok {
		return "", false
	}
	loop.Resume(player)
	return loop.ID(), true
}

// ReapFinished drops finished loops that were kept only for late
// snapshot reads.
func (m *Manager) ReapFinished() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	reaped := 0
	for id, loop := range m.loops {
		if loop.Finished() {
			delete(m.loops, id)
			reaped++
		}
	}
	return reaped
}

// StopAll cancels every running loop during shutdown.
func (m *Manager) StopAll() {
	m.mutex.RLock()
	loops := make([]*Loop, 0, len(m.loops))
	for _, loop := range m.loops {
		loops = append(loops, loop)
	}
	m.mutex.RUnlock()

	for _, loop := range loops {
		loop.Cancel()
	}
}

func (m *Manager) loopOf(userID int64) (*Loop, int, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	id, exists := m.byPlayer[userID]
	if !exists {
		return nil, 0, false
	}
	loop, exists := m.loops[id]
	if !exists {
		return nil, 0, false
	}
	player, ok := playerIndex(loop, userID)
	if !ok {
		return nil, 0, false
	}
	return loop, player, true
}

func (m *Manager) loopEnded(loop *Loop) {
	players := loop.Players()

	m.mutex.Lock()
	for _, userID := range players {
		if m.byPlayer[userID] == loop.ID() {
			delete(m.byPlayer, userID)
		}
	}
	m.mutex.Unlock()

	if m.onEnd != nil {
		m.onEnd(loop.ID(), players)
	}
}

func playerIndex(loop *Loop, userID int64) (int, bool) {
	players := loop.Players()
	for i, id := range players {
		if id == userID {
			return i, true
		}
	}
	return 0, false
}
