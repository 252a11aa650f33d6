package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"
)

// Sweeper marks campaigns whose duration has elapsed
type Sweeper interface {
	SweepEnded(ctx context.Context) (int, error)
}

// ExpiryJob runs one sweep per tick
type ExpiryJob struct {
	sweeper Sweeper
	timeout time.Duration
}

func NewExpiryJob(sweeper Sweeper, timeout time.Duration) *ExpiryJob {
	return &ExpiryJob{sweeper: sweeper, timeout: timeout}
}

// Run implements cron.Job
func (j *ExpiryJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	swept, err := j.sweeper.SweepEnded(ctx)
	if err != nil {
		logger.Errorf("> expiry sweep failed: %v", err)
		return
	}
	if swept > 0 {
		logger.WithFields(logger.Fields{
			"swept":    swept,
			"duration": time.Since(start).String(),
		}).Info("> expired campaigns marked")
	}
}

// NewScheduler registers job under spec. Specs carry a leading seconds
// field, or are descriptors such as "@every 1m". A tick is skipped while
// the previous sweep is still running.
func NewScheduler(spec string, job cron.Job) (*cron.Cron, error) {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cron.PrintfLogger(logger.StandardLogger())),
		cron.WithChain(
			cron.Recover(cron.PrintfLogger(logger.StandardLogger())),
			cron.SkipIfStillRunning(cron.PrintfLogger(logger.StandardLogger())),
		),
	)
	if _, err := c.AddJob(spec, job); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return c, nil
}
