package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gridmarket/gridmarket/internal/domain"
	"github.com/gridmarket/gridmarket/internal/governance"
)

func newTestScheduler(e *testEngine, pauser governance.Pauser) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(e.matcher, e.settler, e.params, pauser, logger, time.Hour)
}

func TestTriggerClearing_Completes(t *testing.T) {
	e := newTestEngine(0)
	now := time.Now()
	e.fund("seller", 100, 0)
	e.fund("buyer", 0, 10_000)
	e.submit("seller", domain.SideSell, 100, 10, now, time.Hour)
	e.submit("buyer", domain.SideBuy, 100, 10, now, time.Hour)

	s := newTestScheduler(e, governance.NewStatic(false))
	report := s.TriggerClearing(context.Background())
	if report.Status != PassCompleted {
		t.Fatalf("expected completed, got %s", report.Status)
	}
	if report.Result.Settled != 1 {
		t.Errorf("expected 1 settled, got %+v", report.Result)
	}
}

func TestTriggerClearing_DisabledSkipsWithoutInspectingOrders(t *testing.T) {
	e := newTestEngine(0)
	now := time.Now()
	e.submit("seller", domain.SideSell, 100, 10, now, time.Hour)
	e.submit("buyer", domain.SideBuy, 100, 10, now, time.Hour)

	disabled := false
	if _, err := e.params.UpdateParams(nil, &disabled); err != nil {
		t.Fatalf("failed to disable clearing: %v", err)
	}

	s := newTestScheduler(e, governance.NewStatic(false))
	report := s.TriggerClearing(context.Background())
	if report.Status != PassSkippedDisabled {
		t.Fatalf("expected skipped_disabled, got %s", report.Status)
	}
	if len(e.trades.List()) != 0 {
		t.Error("expected no trades while disabled")
	}
}

func TestTriggerClearing_EmergencyPauseSkips(t *testing.T) {
	e := newTestEngine(0)
	now := time.Now()
	e.fund("seller", 100, 0)
	e.fund("buyer", 0, 10_000)
	e.submit("seller", domain.SideSell, 100, 10, now, time.Hour)
	e.submit("buyer", domain.SideBuy, 100, 10, now, time.Hour)

	pauser := governance.NewStatic(true)
	s := newTestScheduler(e, pauser)

	report := s.TriggerClearing(context.Background())
	if report.Status != PassSkippedPaused {
		t.Fatalf("expected skipped_paused, got %s", report.Status)
	}

	// Lifting the pause lets the next trigger clear.
	pauser.SetPaused(false)
	report = s.TriggerClearing(context.Background())
	if report.Status != PassCompleted || report.Result.Settled != 1 {
		t.Fatalf("expected completed pass after unpause, got %+v", report)
	}
}

func TestTriggerClearing_AtMostOneRunning(t *testing.T) {
	e := newTestEngine(0)
	s := newTestScheduler(e, governance.NewStatic(false))

	// Hold the book lock so a triggered pass blocks inside Propose, then
	// fire a second trigger.
	e.matcher.Book().Lock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.TriggerClearing(context.Background())
	}()

	// Wait for the first pass to enter Running.
	deadline := time.Now().Add(time.Second)
	for !s.running.Load() {
		if time.Now().After(deadline) {
			e.matcher.Book().Unlock()
			t.Fatal("first pass never started")
		}
		time.Sleep(time.Millisecond)
	}

	report := s.TriggerClearing(context.Background())
	if report.Status != PassSkippedRunning {
		t.Errorf("expected skipped_already_running, got %s", report.Status)
	}

	e.matcher.Book().Unlock()
	wg.Wait()
}

func TestMonotonicCounters(t *testing.T) {
	e := newTestEngine(0)
	now := time.Now()
	e.fund("seller", 1000, 0)
	e.fund("buyer", 0, 100_000)

	s := newTestScheduler(e, governance.NewStatic(false))

	e.submit("seller", domain.SideSell, 100, 10, now, time.Hour)
	e.submit("buyer", domain.SideBuy, 100, 10, now, time.Hour)
	s.TriggerClearing(context.Background())
	first := e.params.Stats()

	// A pass with nothing to clear never decreases the counters.
	s.TriggerClearing(context.Background())
	second := e.params.Stats()

	if second.TotalVolume < first.TotalVolume || second.TotalTrades < first.TotalTrades {
		t.Fatalf("counters decreased: %+v → %+v", first, second)
	}
}
