// Package ratelimit implements the fixed-window counter guarding login-class
// routes.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Repository persists window buckets. IncrementBucket must be a single atomic
// upsert-and-increment: two concurrent first requests for a new key must not
// both observe count=0.
type Repository interface {
	IncrementBucket(ctx context.Context, route, clientIP string, windowStart time.Time) (int64, error)
	PurgeBefore(ctx context.Context, horizon time.Time) (int64, error)
}

// Config carries limiter knobs.
type Config struct {
	Window    time.Duration
	Max       int64
	Retention time.Duration
	// PurgeEvery triggers an amortized purge on every Nth increment.
	PurgeEvery uint64
}

// Service counts requests per (route, client, window).
type Service struct {
	repo   Repository
	cfg    Config
	logger *slog.Logger
	calls  atomic.Uint64
}

// NewService constructs a Service, applying defaults for zero-valued knobs.
func NewService(repo Repository, cfg Config, logger *slog.Logger) *Service {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Max <= 0 {
		cfg.Max = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.PurgeEvery == 0 {
		cfg.PurgeEvery = 100
	}
	return &Service{repo: repo, cfg: cfg, logger: logger}
}

// Window exposes the configured window length.
func (s *Service) Window() time.Duration {
	return s.cfg.Window
}

// Increment bumps the bucket for the window containing now and returns the
// new count. Every PurgeEvery-th call also drops buckets past the retention
// horizon; purge failures are logged, never surfaced.
func (s *Service) Increment(ctx context.Context, route, clientIP string, now time.Time) (int64, error) {
	windowStart := now.UTC().Truncate(s.cfg.Window)
	count, err := s.repo.IncrementBucket(ctx, route, clientIP, windowStart)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: increment %s: %w", route, err)
	}

	if s.calls.Add(1)%s.cfg.PurgeEvery == 0 {
		horizon := now.UTC().Add(-s.cfg.Retention)
		if purged, err := s.repo.PurgeBefore(ctx, horizon); err != nil {
			s.logger.Warn("rate limit purge", slog.Any("error", err))
		} else if purged > 0 {
			s.logger.Debug("rate limit purge", slog.Int64("buckets", purged))
		}
	}

	return count, nil
}

// Allow increments the bucket and reports whether the caller may proceed.
func (s *Service) Allow(ctx context.Context, route, clientIP string, now time.Time) (bool, error) {
	count, err := s.Increment(ctx, route, clientIP, now)
	if err != nil {
		return false, err
	}
	return count <= s.cfg.Max, nil
}

// Purge drops buckets older than the retention horizon. The worker cron calls
// this on schedule, in addition to the amortized inline purge.
func (s *Service) Purge(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.PurgeBefore(ctx, now.UTC().Add(-s.cfg.Retention))
}
