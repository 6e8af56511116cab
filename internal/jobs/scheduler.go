package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"civicportal/internal/config"
)

const (
	jobTimeout = 5 * time.Minute
	actorID    = "scheduler"
)

type SessionReaper interface {
	Reap(ctx context.Context) (int, error)
}

type PopularForwarder interface {
	ForwardPopular(ctx context.Context, threshold int, actorID string) (int, error)
}

type Scheduler struct {
	cron      *cron.Cron
	cfg       config.JobsConfig
	sessions  SessionReaper
	forwarder PopularForwarder
	log       zerolog.Logger
}

func NewScheduler(cfg config.JobsConfig, sessions SessionReaper, forwarder PopularForwarder, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		cfg:       cfg,
		sessions:  sessions,
		forwarder: forwarder,
		log:       log,
	}
}

// Start registers the jobs whose schedule is set and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.cfg.ReapSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.ReapSchedule, s.runJob("reap_sessions", s.ReapSessions)); err != nil {
			return err
		}
	}
	if s.cfg.ForwardSchedule != "" && s.cfg.ForwardThreshold > 0 {
		if _, err := s.cron.AddFunc(s.cfg.ForwardSchedule, s.runJob("forward_popular", s.ForwardPopular)); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits up to timeout for running jobs.
func (s *Scheduler) Stop(timeout time.Duration) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(timeout):
		s.log.Warn().Msg("scheduler jobs still running at shutdown")
	}
}

func (s *Scheduler) ReapSessions(ctx context.Context) (int, error) {
	return s.sessions.Reap(ctx)
}

func (s *Scheduler) ForwardPopular(ctx context.Context) (int, error) {
	return s.forwarder.ForwardPopular(ctx, s.cfg.ForwardThreshold, actorID)
}

func (s *Scheduler) runJob(name string, job func(context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		n, err := job(ctx)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Int("affected", n).Msg("job failed")
			return
		}
		s.log.Info().
			Str("job", name).
			Int("affected", n).
			Dur("took", time.Since(start)).
			Msg("job finished")
	}
}
