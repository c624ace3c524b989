package game

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"arcade-system/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return DefaultSettings()
}

func newTestSession(mode domain.GameMode, cfg Settings) *Session {
	return newSession("game-test", mode, [2]int64{10, 20}, cfg, rand.New(rand.NewSource(1)))
}

func TestNewSessionStartsCentered(t *testing.T) {
	cfg := testSettings()
	s := newTestSession(domain.ModeClassic, cfg)

	center := cfg.CourtHeight/2 - cfg.PaddleHeight/2
	assert.Equal(t, center, s.paddleY[0])
	assert.Equal(t, center, s.paddleY[1])
	assert.Equal(t, cfg.CourtWidth/2, s.ball.x)
	assert.Equal(t, cfg.CourtHeight/2, s.ball.y)

	speed := math.Hypot(s.ball.vx, s.ball.vy)
	assert.InDelta(t, cfg.BallSpeed, speed, 1e-9)
}

func TestPaddleMovementClamped(t *testing.T) {
	cfg := testSettings()
	s := newTestSession(domain.ModeClassic, cfg)

	for i := 0; i < 200; i++ {
		s.step([2]PaddleInput{InputUp, InputDown})
	}
	assert.Equal(t, 0.0, s.paddleY[0])
	assert.Equal(t, cfg.CourtHeight-cfg.PaddleHeight, s.paddleY[1])
}

func TestStillInputHoldsPaddle(t *testing.T) {
	s := newTestSession(domain.ModeClassic, testSettings())
	before := s.paddleY[0]

	s.step([2]PaddleInput{InputStill, InputStill})
	assert.Equal(t, before, s.paddleY[0])
}

func TestPaddleReflectsBall(t *testing.T) {
	cfg := testSettings()
	s := newTestSession(domain.ModeClassic, cfg)

	// Ball heading straight at the center of the left paddle.
	s.ball = ball{x: cfg.PaddleWidth*2 + 5, y: s.paddleY[0] + cfg.PaddleHeight/2, vx: -cfg.BallSpeed * 2, vy: 0}
	s.step([2]PaddleInput{InputStill, InputStill})

	assert.Greater(t, s.ball.vx, 0.0, "ball must bounce back toward the right")
	assert.Equal(t, [2]int{0, 0}, s.score)
	// A center hit reflects flat.
	assert.InDelta(t, 0, s.ball.vy, 1e-9)
}

func TestReflectionAngleGrowsWithOffset(t *testing.T) {
	cfg := testSettings()
	s := newTestSession(domain.ModeClassic, cfg)

	// Hit near the bottom edge of the left paddle.
	s.ball = ball{x: cfg.PaddleWidth*2 + 5, y: s.paddleY[0] + cfg.PaddleHeight - 2, vx: -cfg.BallSpeed * 2, vy: 0}
	s.step([2]PaddleInput{InputStill, InputStill})

	require.Greater(t, s.ball.vx, 0.0)
	assert.Greater(t, s.ball.vy, 0.0, "an off-center hit must deflect")

	angle := math.Atan2(math.Abs(s.ball.vy), math.Abs(s.ball.vx))
	assert.LessOrEqual(t, angle, cfg.MaxBounceAngle+1e-9)
}

func TestWallThroughScoresAndResets(t *testing.T) {
	cfg := testSettings()
	s := newTestSession(domain.ModeClassic, cfg)

	// Ball past the right paddle plane with nothing in the way.
	s.paddleY[1] = 0
	s.ball = ball{x: cfg.CourtWidth + cfg.BallRadius - 1, y: cfg.CourtHeight - 20, vx: cfg.BallSpeed, vy: 0}
	s.step([2]PaddleInput{InputStill, InputStill})

	assert.Equal(t, [2]int{1, 0}, s.score)
	assert.Equal(t, cfg.CourtWidth/2, s.ball.x, "ball resets to center after a point")
	assert.Greater(t, s.ball.vx, 0.0, "serve goes toward the conceding side")
}

func TestBallStaysInCourt(t *testing.T) {
	cfg := testSettings()
	s := newTestSession(domain.ModeBoost, cfg)
	inputs := []PaddleInput{InputStill, InputUp, InputDown}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5000 && !s.finished; i++ {
		s.step([2]PaddleInput{inputs[rng.Intn(3)], inputs[rng.Intn(3)]})
		require.GreaterOrEqual(t, s.ball.y, cfg.BallRadius)
		require.LessOrEqual(t, s.ball.y, cfg.CourtHeight-cfg.BallRadius)
		for p := 0; p < 2; p++ {
			require.GreaterOrEqual(t, s.paddleY[p], 0.0)
			require.LessOrEqual(t, s.paddleY[p], cfg.CourtHeight-s.paddleH[p])
		}
	}
}

func TestBoostModeAcceleratesUpToCap(t *testing.T) {
	cfg := testSettings()
	s := newTestSession(domain.ModeBoost, cfg)

	s.reflectOffPaddle(0)
	assert.InDelta(t, cfg.BoostFactor, s.speedScale, 1e-9)

	for i := 0; i < 100; i++ {
		s.reflectOffPaddle(0)
	}
	assert.Equal(t, cfg.BoostCap, s.speedScale)

	speed := math.Hypot(s.ball.vx, s.ball.vy)
	assert.InDelta(t, cfg.BallSpeed*cfg.BoostCap, speed, 1e-9)
}

func TestClassicModeNeverAccelerates(t *testing.T) {
	s := newTestSession(domain.ModeClassic, testSettings())
	for i := 0; i < 20; i++ {
		s.reflectOffPaddle(0)
	}
	assert.Equal(t, 1.0, s.speedScale)
}

func TestGiftModeEnlargesPaddleTemporarily(t *testing.T) {
	cfg := testSettings()
	cfg.GiftEveryHits = 2
	s := newTestSession(domain.ModeGift, cfg)

	s.reflectOffPaddle(0)
	assert.Equal(t, cfg.PaddleHeight, s.paddleH[0])

	s.reflectOffPaddle(0)
	assert.Equal(t, cfg.PaddleHeight*cfg.GiftScale, s.paddleH[0])
	require.Greater(t, s.giftUntil[0], s.tick)

	s.tick = s.giftUntil[0]
	s.expireGifts()
	assert.Equal(t, cfg.PaddleHeight, s.paddleH[0])
	assert.Zero(t, s.giftUntil[0])
}

func TestScoreLimitEndsSession(t *testing.T) {
	cfg := testSettings()
	s := newTestSession(domain.ModeClassic, cfg)

	s.score[1] = cfg.ScoreLimit
	s.step([2]PaddleInput{InputStill, InputStill})

	assert.True(t, s.finished)
	assert.Equal(t, int64(20), s.winnerID)

	// A finished session no longer advances.
	tick := s.tick
	s.step([2]PaddleInput{InputUp, InputUp})
	assert.Equal(t, tick, s.tick)
}

func TestTimeLimitTieHasNoWinner(t *testing.T) {
	cfg := testSettings()
	cfg.TimeLimit = time.Second
	s := newTestSession(domain.ModeClassic, cfg)

	for i := 0; i < cfg.TickRate; i++ {
		s.step([2]PaddleInput{InputStill, InputStill})
	}

	assert.True(t, s.finished)
	assert.Zero(t, s.winnerID)
}

func TestForfeitAwardsRemainingPlayer(t *testing.T) {
	s := newTestSession(domain.ModeClassic, testSettings())
	s.forfeit(1)

	assert.True(t, s.finished)
	assert.Equal(t, int64(20), s.winnerID)
}

func TestSnapshotReflectsState(t *testing.T) {
	cfg := testSettings()
	s := newTestSession(domain.ModeBoost, cfg)
	s.step([2]PaddleInput{InputStill, InputStill})

	snap := s.snapshot()
	assert.Equal(t, "game-test", snap.GameID)
	assert.Equal(t, domain.ModeBoost, snap.Mode)
	assert.Equal(t, uint64(1), snap.Tick)
	assert.Equal(t, "running", snap.State)
	assert.Equal(t, [2]int64{10, 20}, snap.PlayerIDs)
	assert.Equal(t, s.ball.x, snap.Ball.X)

	s.forfeit(0)
	snap = s.snapshot()
	assert.Equal(t, "finished", snap.State)
	assert.Equal(t, int64(10), snap.WinnerID)
}