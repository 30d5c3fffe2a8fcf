// Package jobs runs shield's background maintenance on asynq.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/VrushankPatel/shield-sub001/internal/ratelimit"
)

const (
	// QueueDefault is the queue every shield job runs on.
	QueueDefault = "default"
	// TaskRateLimitPurge drops rate-limit buckets older than the retention
	// horizon.
	TaskRateLimitPurge = "ratelimit:purge"
)

// RateLimitPurgePayload marks when the purge was scheduled. The retention
// horizon itself lives in the limiter config.
type RateLimitPurgePayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewRateLimitPurgeTask builds the purge task.
func NewRateLimitPurgeTask() (*asynq.Task, error) {
	data, err := json.Marshal(RateLimitPurgePayload{RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRateLimitPurge, data), nil
}

// RateLimitPurgeJob wraps the limiter service for asynq.
type RateLimitPurgeJob struct {
	limiter *ratelimit.Service
	logger  *slog.Logger
}

// NewRateLimitPurgeJob constructs the job.
func NewRateLimitPurgeJob(limiter *ratelimit.Service, logger *slog.Logger) *RateLimitPurgeJob {
	return &RateLimitPurgeJob{limiter: limiter, logger: logger}
}

// Handle processes one purge task.
func (j *RateLimitPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RateLimitPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	removed, err := j.limiter.Purge(ctx, time.Now())
	if err != nil {
		j.logger.Error("rate limit purge failed", slog.Any("error", err))
		return err
	}
	j.logger.Info("rate limit purge completed", slog.Int64("buckets_removed", removed))
	return nil
}
