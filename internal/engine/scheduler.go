package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gridmarket/gridmarket/internal/governance"
	"github.com/gridmarket/gridmarket/internal/store"
)

// PassStatus reports the outcome of a clearing attempt.
type PassStatus string

const (
	PassCompleted       PassStatus = "completed"
	PassSkippedRunning  PassStatus = "skipped_already_running"
	PassSkippedDisabled PassStatus = "skipped_disabled"
	PassSkippedPaused   PassStatus = "skipped_paused"
)

// PassReport is the scheduler's record of one clearing attempt.
type PassReport struct {
	Status    PassStatus
	Result    PassResult
	StartedAt time.Time
}

// Scheduler drives clearing passes: Idle → Running → Idle, with at most one
// pass running at a time. Triggers come from a periodic ticker or the
// external oracle signal via TriggerClearing; a trigger arriving while a
// pass is running is ignored.
type Scheduler struct {
	running  atomic.Bool
	matcher  *Matcher
	settler  *Settler
	params   *store.ParamStore
	pauser   governance.Pauser
	logger   *slog.Logger
	interval time.Duration
}

// NewScheduler creates a Scheduler clearing at the given interval.
func NewScheduler(
	matcher *Matcher,
	settler *Settler,
	params *store.ParamStore,
	pauser governance.Pauser,
	logger *slog.Logger,
	interval time.Duration,
) *Scheduler {
	return &Scheduler{
		matcher:  matcher,
		settler:  settler,
		params:   params,
		pauser:   pauser,
		logger:   logger,
		interval: interval,
	}
}

// Start launches a background goroutine that triggers a clearing pass at
// the configured interval. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.TriggerClearing(ctx)
			}
		}
	}()
}

// TriggerClearing attempts one clearing pass. Safe to call from any
// goroutine; idempotent with respect to a pass already in progress.
func (s *Scheduler) TriggerClearing(ctx context.Context) PassReport {
	report := PassReport{StartedAt: time.Now()}

	if !s.running.CompareAndSwap(false, true) {
		report.Status = PassSkippedRunning
		return report
	}
	defer s.running.Store(false)

	// Gate checks come before any order is inspected.
	if !s.params.Params().ClearingEnabled {
		report.Status = PassSkippedDisabled
		s.logger.Info("clearing pass skipped", slog.String("status", string(report.Status)))
		return report
	}
	if s.pauser.IsEmergencyPaused(ctx) {
		report.Status = PassSkippedPaused
		s.logger.Info("clearing pass skipped", slog.String("status", string(report.Status)))
		return report
	}

	proposals := s.matcher.Propose(report.StartedAt)
	report.Result = s.settler.SettlePass(ctx, proposals)
	report.Status = PassCompleted

	s.logger.Info("clearing pass completed",
		slog.Int("proposed", report.Result.Proposed),
		slog.Int("settled", report.Result.Settled),
		slog.Int("skipped", report.Result.Skipped),
		slog.Duration("duration", time.Since(report.StartedAt)),
	)
	return report
}
