// Package maintenance runs the periodic expiration sweep, the eager
// counterpart to the lazy per-read deactivation in link resolution.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweep deactivates all active links whose expiry has passed and returns
// the number affected. Implemented by the short link service.
type Sweep interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// Sweeper ticks on a fixed interval and runs the sweep. Both the sweep and
// the lazy path apply the same past-expiry rule, so concurrent runs on the
// same row are idempotent; deactivation is eventually consistent.
type Sweeper struct {
	sweep    Sweep
	interval time.Duration
	log      *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	mu      sync.Mutex
}

// NewSweeper builds a sweeper running every interval.
func NewSweeper(sweep Sweep, interval time.Duration, log *zap.Logger) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		sweep:    sweep,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. An immediate first pass clears anything
// that expired while the process was down.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("sweeper already started")
	}

	s.log.Info("starting expiration sweeper", zap.Duration("interval", s.interval))

	go func() {
		defer close(s.done)

		s.run()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.run()
			case <-s.ctx.Done():
				return
			}
		}
	}()

	s.started = true
	return nil
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.cancel()
	<-s.done
	s.started = false
	s.log.Info("expiration sweeper stopped")
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	count, err := s.sweep.DeactivateExpired(ctx)
	if err != nil {
		s.log.Error("expiration sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		s.log.Info("expiration sweep deactivated links", zap.Int64("count", count))
	}
}
