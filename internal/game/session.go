package game

import (
	"math"
	"math/rand"
	"time"

	"arcade-system/internal/domain"
)

// PaddleInput is the latest requested paddle velocity of one player.
// Last command wins; inputs are never queued.
type PaddleInput int

const (
	InputStill PaddleInput = iota
	InputUp
	InputDown
)

// Settings are the tunables of the simulation. The tick rate is a
// constant of the deployment, not a protocol contract.
type Settings struct {
	TickRate     int
	CourtWidth   float64
	CourtHeight  float64
	PaddleWidth  float64
	PaddleHeight float64
	PaddleSpeed  float64
	BallRadius   float64
	BallSpeed    float64
	// MaxBounceAngle caps the reflection angle off a paddle, in radians.
	MaxBounceAngle float64
	ScoreLimit     int
	TimeLimit      time.Duration
	ForfeitGrace   time.Duration

	// BOOST mode: every paddle hit multiplies ball speed, up to a cap.
	BoostFactor float64
	BoostCap    float64

	// GIFT mode: every Nth paddle hit enlarges the hitting paddle for a
	// while.
	GiftEveryHits int
	GiftDuration  time.Duration
	GiftScale     float64
}

func DefaultSettings() Settings {
	return Settings{
		TickRate:       60,
		CourtWidth:     800,
		CourtHeight:    600,
		PaddleWidth:    10,
		PaddleHeight:   100,
		PaddleSpeed:    6,
		BallRadius:     8,
		BallSpeed:      4,
		MaxBounceAngle: math.Pi / 3,
		ScoreLimit:     11,
		TimeLimit:      5 * time.Minute,
		ForfeitGrace:   10 * time.Second,
		BoostFactor:    1.08,
		BoostCap:       2.5,
		GiftEveryHits:  4,
		GiftDuration:   5 * time.Second,
		GiftScale:      1.5,
	}
}

type ball struct {
	x, y   float64
	vx, vy float64
}

// Session is the authoritative state of one two-player game. It is owned
// exclusively by the loop that created it and is never mutated elsewhere.
type Session struct {
	id      string
	mode    domain.GameMode
	players [2]int64
	cfg     Settings
	rng     *rand.Rand

	tick       uint64
	paddleY    [2]float64
	paddleH    [2]float64
	ball       ball
	score      [2]int
	speedScale float64
	hits       int
	giftUntil  [2]uint64 // tick at which the enlarged paddle reverts
	finished   bool
	winnerID   int64
}

func newSession(id string, mode domain.GameMode, players [2]int64, cfg Settings, rng *rand.Rand) *Session {
	s := &Session{
		id:         id,
		mode:       mode,
		players:    players,
		cfg:        cfg,
		rng:        rng,
		speedScale: 1,
	}
	center := cfg.CourtHeight/2 - cfg.PaddleHeight/2
	s.paddleY = [2]float64{center, center}
	s.paddleH = [2]float64{cfg.PaddleHeight, cfg.PaddleHeight}
	s.resetBall(s.rng.Intn(2))
	return s
}

// resetBall serves from center toward the side that just conceded, at a
// randomized angle within ±45 degrees.
func (s *Session) resetBall(towards int) {
	angle := (s.rng.Float64()*2 - 1) * math.Pi / 4
	speed := s.cfg.BallSpeed * s.speedScale
	dir := 1.0
	if towards == 0 {
		dir = -1.0
	}
	s.ball = ball{
		x:  s.cfg.CourtWidth / 2,
		y:  s.cfg.CourtHeight / 2,
		vx: dir * speed * math.Cos(angle),
		vy: speed * math.Sin(angle),
	}
}

// step advances the simulation one tick with the given effective inputs.
func (s *Session) step(inputs [2]PaddleInput) {
	if s.finished {
		return
	}
	s.tick++

	s.movePaddles(inputs)
	s.moveBall()
	s.expireGifts()
	s.checkScore()
	s.checkTerminal()
}

func (s *Session) movePaddles(inputs [2]PaddleInput) {
	for i := 0; i < 2; i++ {
		switch inputs[i] {
		case InputUp:
			s.paddleY[i] -= s.cfg.PaddleSpeed
		case InputDown:
			s.paddleY[i] += s.cfg.PaddleSpeed
		}
		if s.paddleY[i] < 0 {
			s.paddleY[i] = 0
		}
		if max := s.cfg.CourtHeight - s.paddleH[i]; s.paddleY[i] > max {
			s.paddleY[i] = max
		}
	}
}

func (s *Session) moveBall() {
	s.ball.x += s.ball.vx
	s.ball.y += s.ball.vy

	// Wall reflection: angle of incidence equals angle of reflection.
	if s.ball.y < s.cfg.BallRadius {
		s.ball.y = 2*s.cfg.BallRadius - s.ball.y
		s.ball.vy = -s.ball.vy
	}
	if limit := s.cfg.CourtHeight - s.cfg.BallRadius; s.ball.y > limit {
		s.ball.y = 2*limit - s.ball.y
		s.ball.vy = -s.ball.vy
	}

	leftPlane := s.cfg.PaddleWidth * 2
	rightPlane := s.cfg.CourtWidth - s.cfg.PaddleWidth*2

	if s.ball.vx < 0 && s.ball.x-s.cfg.BallRadius <= leftPlane && s.hitsPaddle(0) {
		s.reflectOffPaddle(0)
		s.ball.x = leftPlane + s.cfg.BallRadius
	}
	if s.ball.vx > 0 && s.ball.x+s.cfg.BallRadius >= rightPlane && s.hitsPaddle(1) {
		s.reflectOffPaddle(1)
		s.ball.x = rightPlane - s.cfg.BallRadius
	}
}

func (s *Session) hitsPaddle(i int) bool {
	return s.ball.y+s.cfg.BallRadius >= s.paddleY[i] &&
		s.ball.y-s.cfg.BallRadius <= s.paddleY[i]+s.paddleH[i]
}

// reflectOffPaddle reflects on the paddle axis; the bounce angle grows
// with the hit offset from the paddle center, capped at MaxBounceAngle.
func (s *Session) reflectOffPaddle(i int) {
	center := s.paddleY[i] + s.paddleH[i]/2
	offset := (s.ball.y - center) / (s.paddleH[i] / 2)
	if offset > 1 {
		offset = 1
	}
	if offset < -1 {
		offset = -1
	}
	angle := offset * s.cfg.MaxBounceAngle

	s.hits++
	if s.mode == domain.ModeBoost {
		s.speedScale *= s.cfg.BoostFactor
		if s.speedScale > s.cfg.BoostCap {
			s.speedScale = s.cfg.BoostCap
		}
	}
	if s.mode == domain.ModeGift && s.cfg.GiftEveryHits > 0 && s.hits%s.cfg.GiftEveryHits == 0 {
		s.grantGift(i)
	}

	speed := s.cfg.BallSpeed * s.speedScale
	dir := 1.0
	if i == 1 {
		dir = -1.0
	}
	s.ball.vx = dir * speed * math.Cos(angle)
	s.ball.vy = speed * math.Sin(angle)

	// Keep the ball inside the court even on an exact edge hit.
	if s.ball.y < s.cfg.BallRadius {
		s.ball.y = s.cfg.BallRadius
	}
	if limit := s.cfg.CourtHeight - s.cfg.BallRadius; s.ball.y > limit {
		s.ball.y = limit
	}
}

func (s *Session) grantGift(i int) {
	s.paddleH[i] = s.cfg.PaddleHeight * s.cfg.GiftScale
	s.giftUntil[i] = s.tick + uint64(s.cfg.GiftDuration.Seconds()*float64(s.cfg.TickRate))
	if max := s.cfg.CourtHeight - s.paddleH[i]; s.paddleY[i] > max {
		s.paddleY[i] = max
	}
}

func (s *Session) expireGifts() {
	for i := 0; i < 2; i++ {
		if s.giftUntil[i] > 0 && s.tick >= s.giftUntil[i] {
			s.giftUntil[i] = 0
			s.paddleH[i] = s.cfg.PaddleHeight
		}
	}
}

// checkScore detects a wall-through behind a paddle and resets the ball
// toward the player that conceded.
func (s *Session) checkScore() {
	if s.ball.x < -s.cfg.BallRadius {
		s.score[1]++
		s.resetBall(0)
	} else if s.ball.x > s.cfg.CourtWidth+s.cfg.BallRadius {
		s.score[0]++
		s.resetBall(1)
	}
}

func (s *Session) checkTerminal() {
	limitTicks := uint64(s.cfg.TimeLimit.Seconds() * float64(s.cfg.TickRate))
	timeUp := limitTicks > 0 && s.tick >= limitTicks
	if s.score[0] >= s.cfg.ScoreLimit || s.score[1] >= s.cfg.ScoreLimit || timeUp {
		s.finish()
	}
}

// finish marks the session terminal; at the score limit or on timeout the
// higher score wins, a timeout tie leaves no winner.
func (s *Session) finish() {
	s.finished = true
	if s.score[0] > s.score[1] {
		s.winnerID = s.players[0]
	} else if s.score[1] > s.score[0] {
		s.winnerID = s.players[1]
	}
}

// forfeit ends the session in favor of the given player index.
func (s *Session) forfeit(winner int) {
	s.finished = true
	s.winnerID = s.players[winner]
}

type Ball struct {
	X  float64 `msgpack:"x"`
	Y  float64 `msgpack:"y"`
	VX float64 `msgpack:"vx"`
	VY float64 `msgpack:"vy"`
}

type Paddle struct {
	Y      float64 `msgpack:"y"`
	Height float64 `msgpack:"height"`
}

// Snapshot is the full authoritative state pushed after every tick. The
// periodic snapshot is also the desync recovery mechanism: it overwrites
// whatever the client predicted.
type Snapshot struct {
	GameID     string          `msgpack:"game_id"`
	Mode       domain.GameMode `msgpack:"mode"`
	Tick       uint64          `msgpack:"tick"`
	State      string          `msgpack:"state"` // running | finished
	PlayerIDs  [2]int64        `msgpack:"player_ids"`
	Paddles    [2]Paddle       `msgpack:"paddles"`
	Ball       Ball            `msgpack:"ball"`
	Score      [2]int          `msgpack:"score"`
	SpeedScale float64         `msgpack:"speed_scale"`
	GiftUntil  [2]uint64       `msgpack:"gift_until"`
	WinnerID   int64           `msgpack:"winner_id,omitempty"`
}

func (s *Session) snapshot() Snapshot {
	state := "running"
	if s.finished {
		state = "finished"
	}
	return Snapshot{
		GameID:    s.id,
		Mode:      s.mode,
		Tick:      s.tick,
		State:     state,
		PlayerIDs: s.players,
		Paddles: [2]Paddle{
			{Y: s.paddleY[0], Height: s.paddleH[0]},
			{Y: s.paddleY[1], Height: s.paddleH[1]},
		},
		Ball:       Ball{X: s.ball.x, Y: s.ball.y, VX: s.ball.vx, VY: s.ball.vy},
		Score:      s.score,
		SpeedScale: s.speedScale,
		GiftUntil:  s.giftUntil,
		WinnerID:   s.winnerID,
	}
}
