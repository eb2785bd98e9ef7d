package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Task func(ctx context.Context) error

// Every runs the task immediately and then once per interval until the
// context is cancelled. Runs never overlap: a slow pass delays the next
// tick instead of racing it.
func Every(ctx context.Context, interval time.Duration, name string, logger *zap.Logger, task Task) {
	run := func() {
		if err := task(ctx); err != nil {
			logger.Error("scheduled task failed",
				zap.String("task", name),
				zap.Error(err),
			)
		}
	}

	run()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped", zap.String("task", name))
			return
		case <-t.C:
			run()
		}
	}
}
