package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/Varun5711/shortlinks/internal/lock"
	"github.com/Varun5711/shortlinks/internal/logger"
)

var ErrQueueFull = errors.New("a sweep is already queued")

const DefaultInterval = 120 * time.Second

type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Locker serializes sweeps across replicas. *lock.DistributedLock
// satisfies it.
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Sweeper deletes expired links on a fixed interval and on demand. It runs
// in its own goroutine and never touches the request path.
type Sweeper struct {
	store    Expirer
	locker   Locker
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
	trigger  chan struct{}
}

// New returns a sweeper. locker may be nil for a single-replica setup. A
// non-positive interval falls back to DefaultInterval.
func New(store Expirer, locker Locker, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		store:    store,
		locker:   locker,
		interval: interval,
		log:      log,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

// Run sweeps once immediately and then on every tick or trigger until ctx
// is cancelled. Sweep failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("Expiry sweeper started, interval %s", s.interval)

	s.sweep(ctx, "startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx, "tick")
		case <-s.trigger:
			s.sweep(ctx, "trigger")
		}
	}
}

// Trigger queues an on-demand sweep without waiting for it. Only one
// sweep can be queued at a time.
func (s *Sweeper) Trigger() error {
	select {
	case s.trigger <- struct{}{}:
		return nil
	default:
		return ErrQueueFull
	}
}

// SweepOnce deletes every link whose expiry is before now. When another
// replica holds the sweep lock it returns 0 without touching the store.
// When the lock backend is unreachable it sweeps anyway: overlapping
// deletes of expired rows are harmless.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	if s.locker != nil {
		err := s.locker.Acquire(ctx)
		switch {
		case errors.Is(err, lock.ErrLockNotAcquired):
			s.log.Debug("Sweep skipped, another replica holds the lock")
			return 0, nil
		case err != nil:
			s.log.Warn("Sweep lock unavailable, sweeping without it: %v", err)
			return s.store.DeleteExpired(context.WithoutCancel(ctx), s.now().UTC())
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, lock.ErrLockNotHeld) {
				s.log.Warn("Failed to release sweep lock: %v", err)
			}
		}()
	}

	return s.store.DeleteExpired(context.WithoutCancel(ctx), s.now().UTC())
}

func (s *Sweeper) sweep(ctx context.Context, reason string) {
	start := time.Now()

	deleted, err := s.SweepOnce(ctx)
	if err != nil {
		s.log.Error("Expiry sweep (%s) failed: %v", reason, err)
		return
	}

	if deleted > 0 {
		s.log.Info("Expiry sweep (%s) removed %d links in %s", reason, deleted, time.Since(start))
	} else {
		s.log.Debug("Expiry sweep (%s) found nothing to remove", reason)
	}
}
