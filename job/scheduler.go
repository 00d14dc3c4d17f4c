package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mkorobov/tickertrack/core/logger"
)

// Runner is one unit of scheduled work.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler runs a Runner at a fixed interval. The first run happens
// immediately after Start.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{runner: runner, interval: interval}
}

// Start launches the schedule loop. Errors from individual runs are
// logged and do not stop the loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		logger.LogEvent(ctx, logger.Job, slog.LevelInfo, "scheduler_start",
			slog.Duration("interval", s.interval),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	logger.LogEvent(context.Background(), logger.Job, slog.LevelInfo, "scheduler_stop")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.runner.Run(ctx); err != nil && ctx.Err() == nil {
		logger.LogEvent(ctx, logger.Job, slog.LevelError, "run_failed",
			slog.String("err", err.Error()),
		)
	}
}
