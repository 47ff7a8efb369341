package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/basit/shifter/logging"
	"github.com/basit/shifter/metrics"
)

type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Cleanup removes expired files. It is triggered by the scheduler, the
// cleanupexpired command and the admin cleanup endpoint.
type Cleanup struct {
	files   Sweeper
	timeout time.Duration
}

func NewCleanup(files Sweeper) *Cleanup {
	return &Cleanup{files: files, timeout: 30 * time.Minute}
}

// Run sweeps once and returns how many files were removed. Finding nothing
// to remove is not an error.
func (c *Cleanup) Run(ctx context.Context) (int, error) {
	lg := logging.FromContext(ctx)
	start := time.Now()

	n, err := c.files.SweepExpired(ctx)
	metrics.FilesSwept.Add(float64(n))
	if err != nil {
		metrics.CleanupRuns.WithLabelValues("error").Inc()
		lg.Error("cleanup of expired files failed", zap.Int("deleted", n), zap.Error(err))
		return n, err
	}
	metrics.CleanupRuns.WithLabelValues("ok").Inc()
	lg.Info("cleanup of expired files finished",
		zap.Int("deleted", n), zap.Duration("took", time.Since(start)))
	return n, nil
}

// Summary is the message shown to whoever triggered a run.
func Summary(n int) string {
	if n == 0 {
		return "No expired files to be deleted"
	}
	return fmt.Sprintf("Successfully deleted %d expired files", n)
}

// NewScheduler returns a UTC cron scheduler that skips a run while the
// previous one is still going.
func NewScheduler(lg *zap.Logger) *cron.Cron {
	l := cron.PrintfLogger(zap.NewStdLog(lg.Named("cron")))
	return cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// Schedule registers the cleanup on c using a standard cron spec or a
// descriptor such as "@hourly".
func (c *Cleanup) Schedule(ctx context.Context, cr *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := cr.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		_, _ = c.Run(runCtx)
	})
	if err != nil {
		return 0, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return id, nil
}
