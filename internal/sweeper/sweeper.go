package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/orgball2608/moments-playback-service/internal/repositories/moment"
	"github.com/orgball2608/moments-playback-service/pkg/config"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	MomentRepo moment.Repository
	Logger     logger.Logger
	Config     *config.Config
}

// Sweeper enforces the 24h moment lifetime server-side. Expired moments are
// soft-deleted on a short interval so the viewer never sees one, and purged
// for good once the retention window passes.
type Sweeper struct {
	MomentRepo moment.Repository
	Logger     logger.Logger
	Config     *config.Config
}

func New(opts Opts) *Sweeper {
	return &Sweeper{
		MomentRepo: opts.MomentRepo,
		Logger:     opts.Logger,
		Config:     opts.Config,
	}
}

// Schedule starts the sweep jobs and shuts them down when ctx is cancelled.
func (s *Sweeper) Schedule(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	interval := time.Duration(s.Config.Sweeper.IntervalMinutes) * time.Minute
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			taskCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			s.sweepExpired(taskCtx)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(4, 0, 0))),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			taskCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			s.purgeDeleted(taskCtx)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule purge: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		s.Logger.Info("Stopping sweeper scheduler")
		if err := scheduler.Shutdown(); err != nil {
			s.Logger.Error("Failed to shut down sweeper scheduler", "error", err)
		}
	}()

	return nil
}

func (s *Sweeper) sweepExpired(ctx context.Context) {
	n, err := s.MomentRepo.SoftDeleteExpired(ctx, time.Now())
	if err != nil {
		s.Logger.Error("Failed to sweep expired moments", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("Swept expired moments", "count", n)
	}
}

func (s *Sweeper) purgeDeleted(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.Config.Sweeper.PurgeAfterDays)
	n, err := s.MomentRepo.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		s.Logger.Error("Failed to purge deleted moments", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("Purged deleted moments", "count", n)
	}
}

var Module = fx.Provide(New)
