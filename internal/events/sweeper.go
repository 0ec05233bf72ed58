package events

import (
	"context"
	"fmt"
	"time"

	"ms-attendance/internal/attendance"
	"ms-attendance/internal/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

type Reconciler interface {
	Reconcile(ctx context.Context, eventID string) (bool, error)
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Checked    int
	Refreshed  int
	Reconciled int
	Failed     int
}

// Sweeper periodically pushes auto-controlled events through their status
// transitions and repairs drifted attendance counters of ongoing events, so
// events nobody reads still cascade on time.
type Sweeper struct {
	store      attendance.Store
	lifecycle  *Service
	reconciler Reconciler
	logger     *logger.Logger

	scheduler gocron.Scheduler
}

func NewSweeper(store attendance.Store, lifecycle *Service, reconciler Reconciler, l *logger.Logger) *Sweeper {
	return &Sweeper{store: store, lifecycle: lifecycle, reconciler: reconciler, logger: l}
}

// RunOnce performs a single sweep. Per-event failures are logged and counted
// and do not stop the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	candidates, err := s.store.ListEventsForStatusSweep(ctx)
	if err != nil {
		return report, fmt.Errorf("list events for sweep: %w", err)
	}

	now := s.lifecycle.clock.Now()
	for _, e := range candidates {
		report.Checked++
		if !e.NeedsRefresh(now) {
			continue
		}
		if _, err := s.lifecycle.Refresh(ctx, e.ID); err != nil {
			report.Failed++
			s.logger.Error("SWEEPER", fmt.Sprintf("Failed to refresh event %s: %v", e.ID, err))
			continue
		}
		report.Refreshed++
	}

	if s.reconciler != nil {
		ongoing, err := s.store.ListOngoingEventIDs(ctx)
		if err != nil {
			return report, fmt.Errorf("list ongoing events: %w", err)
		}
		for _, id := range ongoing {
			changed, err := s.reconciler.Reconcile(ctx, id)
			if err != nil {
				report.Failed++
				s.logger.Error("SWEEPER", fmt.Sprintf("Failed to reconcile event %s: %v", id, err))
				continue
			}
			if changed {
				report.Reconciled++
			}
		}
	}

	s.logger.Info("SWEEPER", fmt.Sprintf("Sweep checked %d events: %d refreshed, %d reconciled, %d failed",
		report.Checked, report.Refreshed, report.Reconciled, report.Failed))
	return report, nil
}

// Start schedules RunOnce every interval. A sweep that is still running when
// the next one is due causes that tick to be skipped.
func (s *Sweeper) Start(interval time.Duration, clock clockwork.Clock) error {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("SWEEPER", err.Error())
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("event-status-sweep"),
	)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.logger.Info("SWEEPER", fmt.Sprintf("Status sweeper started (every %s)", interval))
	return nil
}

func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
