// Package sweeper periodically expires login challenges that were never
// completed, so abandoned code entries do not accumulate in memory.
package sweeper

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Pruner drops pending login challenges older than maxAge.
type Pruner interface {
	DropStalePending(maxAge time.Duration) int
}

// Sweeper runs a pruner on a fixed schedule.
type Sweeper struct {
	cron   *cron.Cron
	pruner Pruner
	maxAge time.Duration
	logger zerolog.Logger
}

// New creates a sweeper that prunes challenges older than maxAge.
func New(pruner Pruner, maxAge time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		cron:   cron.New(),
		pruner: pruner,
		maxAge: maxAge,
		logger: logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start schedules the sweep at the given interval and begins running.
func (s *Sweeper) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Dur("interval", interval).
		Dur("max_age", s.maxAge).
		Msg("Challenge sweeper started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Challenge sweeper stopped")
}

func (s *Sweeper) sweep() {
	if dropped := s.pruner.DropStalePending(s.maxAge); dropped > 0 {
		s.logger.Info().
			Int("dropped", dropped).
			Msg("Expired stale login challenges")
	}
}
