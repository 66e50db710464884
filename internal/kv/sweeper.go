package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically deletes expired rows. Reads never depend on it;
// it only reclaims space held by keys nobody reads again.
type Sweeper struct {
	store    *Store
	spec     string
	schedule cron.Schedule
	cron     *cron.Cron

	stopped  chan struct{}
	stopOnce sync.Once
}

// NewSweeper parses a cron spec (5 fields or a descriptor such as "@every 5m").
func NewSweeper(store *Store, spec string) (*Sweeper, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	logger := cronLogger{}
	return &Sweeper{
		store:    store,
		spec:     spec,
		schedule: schedule,
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger))),
		stopped:  make(chan struct{}),
	}, nil
}

// Start runs sweeps on schedule until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		_, _ = s.RunOnce(ctx)
	}))
	s.cron.Start()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()

	log.Debug().Str("schedule", s.spec).Str("table", s.store.Table()).Msg("Started expiry sweeper")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		close(s.stopped)
		log.Debug().Msg("Stopped expiry sweeper")
	})
}

// RunOnce deletes expired rows immediately.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	count, err := s.store.CleanupExpired(ctx)
	if err != nil {
		log.Warn().Err(err).Str("table", s.store.Table()).Msg("Failed to cleanup expired entries")
		return 0, err
	}
	if count > 0 {
		log.Debug().Int64("count", count).Str("table", s.store.Table()).Msg("Cleaned up expired entries")
	}
	return count, nil
}

// cronLogger routes cron's internal logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
