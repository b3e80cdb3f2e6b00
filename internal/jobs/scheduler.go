// Package jobs runs the background maintenance schedule. The API already
// settles and finalizes opportunistically on request paths; the scheduler
// guarantees the same pass also happens on idle deployments, so expired
// posts pay out and finished challenges award prizes without traffic.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/timelylabs/timely-backend/internal/services"
)

// Scheduler owns the periodic maintenance job.
type Scheduler struct {
	sched gocron.Scheduler
	maint *services.MaintenanceService
	log   zerolog.Logger
}

// NewScheduler builds a scheduler that runs one maintenance pass every
// interval.
func NewScheduler(maint *services.MaintenanceService, interval time.Duration, log zerolog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	s := &Scheduler{sched: sched, maint: maint, log: log}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.runOnce),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins executing jobs. Non-blocking.
func (s *Scheduler) Start() {
	s.sched.Start()
	s.log.Info().Msg("maintenance scheduler started")
}

// Stop shuts the scheduler down, waiting for a running pass to finish.
func (s *Scheduler) Stop() {
	if err := s.sched.Shutdown(); err != nil {
		s.log.Error().Err(err).Msg("scheduler shutdown")
		return
	}
	s.log.Info().Msg("maintenance scheduler stopped")
}

// runOnce executes a single maintenance pass. Each run gets its own bounded
// context so a wedged pass cannot pile up behind the next tick.
func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := s.maint.Run(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("maintenance pass failed")
		return
	}
	if res.PostsSettled > 0 || res.ChallengesFinalized > 0 {
		s.log.Info().
			Int("posts_settled", res.PostsSettled).
			Int("challenges_finalized", res.ChallengesFinalized).
			Msg("maintenance pass")
	}
}
