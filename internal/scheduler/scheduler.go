// Package scheduler promotes scheduled posts to published once they are due.
package scheduler

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cms-backend/internal/cache"
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/queue"
)

// DefaultInterval is the delay between ticks when none is configured.
const DefaultInterval = 30 * time.Second

// maxTickTimeout bounds a single tick regardless of the interval.
const maxTickTimeout = 30 * time.Second

// DueStore is the part of the post store the scheduler needs.
type DueStore interface {
	PublishDue(ctx context.Context, now time.Time) ([]model.Post, error)
}

// Scheduler publishes due posts on a fixed interval.  Only one Scheduler
// should run per database; concurrent interactive publishes are settled by
// the store.
type Scheduler struct {
	store    DueStore
	cache    *cache.PostCache
	events   queue.Publisher
	logger   *log.Logger
	interval time.Duration
	now      func() time.Time
}

// New returns a Scheduler ticking every interval.
func New(store DueStore, c *cache.PostCache, events queue.Publisher, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if c == nil {
		c = cache.NewPostCache(nil, 0, logger)
	}
	if events == nil {
		events = queue.NopPublisher{}
	}
	if logger == nil {
		logger = log.New("scheduler")
	}
	return &Scheduler{store: store, cache: c, events: events, logger: logger, interval: interval, now: time.Now}
}

// WithClock replaces the time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Tick publishes every post due at the current time in one batch and
// reports how many were published.  The list cache is invalidated once
// per non-empty batch; a tick that publishes nothing touches neither the
// store nor the cache beyond the lookup.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	timeout := s.interval
	if timeout > maxTickTimeout {
		timeout = maxTickTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	now := s.now()
	published, err := s.store.PublishDue(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(published) == 0 {
		return 0, nil
	}

	s.cache.InvalidateLists(ctx)
	for i := range published {
		p := &published[i]
		if err := s.events.Publish(ctx, queue.NewPostEvent(queue.PostPublished, p, now)); err != nil {
			s.logger.Warnf("publish event for post %d: %v", p.ID, err)
		}
		s.logger.Infof("published scheduled post %d (%s)", p.ID, p.Slug)
	}
	return len(published), nil
}

// Run ticks immediately and then every interval until ctx is done.  Tick
// failures are logged and retried on the next interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Infof("scheduler started, interval %s", s.interval)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Errorf("tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Infof("scheduler stopped")
			return
		case <-t.C:
		}
	}
}
