package services

import (
	"time"

	"arcade-system/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SessionReaper removes finished game sessions from memory.
type SessionReaper interface {
	ReapFinished() int
}

// Sweeper runs the periodic housekeeping the realtime core needs:
// expiring stale invitations and reaping finished sessions.
type Sweeper struct {
	cron       *cron.Cron
	matchmaker *Matchmaker
	reaper     SessionReaper
	spec       string
	log        logger.Logger
}

func NewSweeper(matchmaker *Matchmaker, reaper SessionReaper, spec string, log logger.Logger) *Sweeper {
	return &Sweeper{
		cron:       cron.New(cron.WithSeconds()),
		matchmaker: matchmaker,
		reaper:     reaper,
		spec:       spec,
		log:        log,
	}
}

func (s *Sweeper) Start() error {
	s.log.Info("Starting maintenance sweeper", "spec", s.spec)

	_, err := s.cron.AddFunc(s.spec, s.sweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() error {
	s.log.Info("Stopping maintenance sweeper")
	s.cron.Stop()
	return nil
}

func (s *Sweeper) sweep() {
	expired := s.matchmaker.ExpireInvites(time.Now())
	reaped := s.reaper.ReapFinished()
	if expired > 0 || reaped > 0 {
		s.log.Debug("Sweep completed", "expired_invites", expired, "reaped_sessions", reaped)
	}
}
