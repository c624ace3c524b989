package game

import (
	"sync"
	"time"

	"arcade-system/internal/domain"
	"arcade-system/internal/protocol"
	"arcade-system/pkg/logger"
)

// Loop drives one session at a fixed tick interval. It is the single
// writer of its session: the only external inputs are paddle-velocity
// commands, consumed at the start of the next tick, last command wins.
type Loop struct {
	session *Session
	cfg     Settings

	inputs   [2]PaddleInput
	paused   [2]bool
	pausedAt [2]time.Time
	mutex    sync.Mutex

	registry domain.ConnectionRegistry
	onEnd    func(l *Loop)
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	log      logger.Logger
}

func newLoop(session *Session, cfg Settings, registry domain.ConnectionRegistry,
	onEnd func(l *Loop), log logger.Logger) *Loop {
	return &Loop{
		session:  session,
		cfg:      cfg,
		registry: registry,
		onEnd:    onEnd,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
}

func (l *Loop) ID() string {
	return l.session.id
}

func (l *Loop) Players() [2]int64 {
	return l.session.players
}

// Input records the latest paddle command of one player. Input from a
// paused (disconnected) player is ignored until reconnect.
func (l *Loop) Input(player int, input PaddleInput) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.paused[player] {
		return
	}
	l.inputs[player] = input
}

// Pause stops a player's paddle from responding to input. The loop keeps
// running to tolerate brief network drops; the forfeit grace decides when
// a pause becomes a loss.
func (l *Loop) Pause(player int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.paused[player] = true
	l.pausedAt[player] = time.Now()
	l.inputs[player] = InputStill
}

func (l *Loop) Resume(player int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.paused[player] = false
}

func (l *Loop) Finished() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.session.finished
}

// Cancel stops the loop without a result, e.g. on shutdown.
func (l *Loop) Cancel() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

func (l *Loop) run() {
	defer close(l.done)

	interval := time.Second / time.Duration(l.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	room := domain.GameRoom(l.session.id)
	l.registry.SendToRoom(room, protocol.MustEncodeFrame(domain.EventInitialState, 0, l.session.snapshot()))

	for {
		select {
		case <-ticker.C:
			if finished := l.tick(room); finished {
				l.onEnd(l)
				return
			}
		case <-l.stop:
			l.mutex.Lock()
			l.session.finished = true
			l.mutex.Unlock()
			l.log.Info("Session cancelled", "session_id", l.session.id)
			l.onEnd(l)
			return
		}
	}
}

func (l *Loop) tick(room string) bool {
	l.mutex.Lock()

	now := time.Now()
	bothGone := l.paused[0] && l.paused[1]
	for i := 0; i < 2; i++ {
		if l.paused[i] && now.Sub(l.pausedAt[i]) >= l.cfg.ForfeitGrace {
			if bothGone {
				// No grace survivor: cancel without a winner.
				l.session.finished = true
			} else {
				l.session.forfeit(1 - i)
			}
			break
		}
	}

	if !l.session.finished {
		l.session.step(l.inputs)
	}
	snap := l.session.snapshot()
	finished := l.session.finished
	l.mutex.Unlock()

	l.registry.SendToRoom(room, protocol.MustEncodeFrame(domain.EventUpdateCanvas, 0, snap))
	if finished {
		// Final snapshot goes out before teardown.
		l.registry.SendToRoom(room, protocol.MustEncodeFrame(domain.EventStateChanged, 0, snap))
		l.log.Info("Session finished", "session_id", l.session.id,
			"score_a", snap.Score[0], "score_b", snap.Score[1], "winner_id", snap.WinnerID)
	}
	return finished
}
