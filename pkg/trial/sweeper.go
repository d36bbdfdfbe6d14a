package trial

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper invokes the expiry sweep on a fixed schedule. The sweep itself
// is idempotent and re-entrant, so overlapping runs from a crashed or
// duplicated scheduler are harmless.
type Sweeper struct {
	service  *Service
	interval time.Duration
	log      *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the default daily schedule.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithSweeperLogger sets the structured logger for sweep runs.
func WithSweeperLogger(log *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSweeper creates a sweeper for the given service. Call Start to begin
// sweeping and Stop to shut it down.
func NewSweeper(service *Service, opts ...SweeperOption) *Sweeper {
	if service == nil {
		panic("trial: service cannot be nil")
	}
	s := &Sweeper{
		service:  service,
		interval: 24 * time.Hour,
		log:      slog.New(slog.DiscardHandler),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the sweep loop until Stop is called or ctx is cancelled. An
// initial sweep runs immediately so a restarted process catches up without
// waiting a full interval.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		s.run(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.run(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts the sweep loop down and waits for it to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	result, err := s.service.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		s.log.ErrorContext(ctx, "trial expiry sweep failed", slog.Any("error", err))
		return
	}
	if result.Failed > 0 {
		s.log.WarnContext(ctx, "trial expiry sweep had per-entry failures",
			slog.Int("found", result.Found),
			slog.Int("failed", result.Failed))
	}
}
