// Package internal provides integration tests for the monitoring engine.
//
// These tests drive the full pipeline against real SQLite storage:
// simulated input through the collector, per-minute scoring, window
// assembly, and persistence of the completed window.
package internal

import (
	"context"
	"testing"
	"time"

	"monitord/internal/config"
	"monitord/internal/event"
	"monitord/internal/notify"
	"monitord/internal/sched"
	"monitord/internal/session"
	"monitord/internal/store"
)

func TestPipelinePersistsScoredWindow(t *testing.T) {
	st, err := store.Open(config.StorageConfig{Type: "memory", BusyTimeoutMs: 1000})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.SetIdentity(ctx, session.User{ID: "u-int", Name: "Integration"}); err != nil {
		t.Fatalf("seed identity: %v", err)
	}

	start := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	clock := sched.NewFakeClock(start)
	sch := sched.New(clock)
	src := event.NewSimSource()
	ctrl := session.NewController(config.DefaultConfig(), sch, src, st, notify.NewBus(256))

	sess, err := ctrl.Start(ctx, session.ModeClientHours, "proj-int", "integration run")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Ten minutes of steady typing, one window's worth.
	for minute := 0; minute < 10; minute++ {
		at := clock.Now()
		before := ctrl.Counters().KeyHits
		for i := 0; i < 120; i++ {
			src.KeyPress(uint16(65+i%20), at, 70*time.Millisecond)
			at = at.Add(450 * time.Millisecond)
		}
		waitForKeyHits(t, ctrl, before+120)
		clock.Set(clock.Now().Add(time.Minute))
		sch.AdvanceTo(clock.Now())
	}

	// The first window closed at 14:10; give its timer a beat to fire.
	clock.Set(clock.Now().Add(2 * time.Second))
	sch.AdvanceTo(clock.Now())

	if err := ctrl.Stop(ctx); err != nil {
		t.Fatalf("stop session: %v", err)
	}

	active, err := st.GetActiveSession(ctx)
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}
	if active != nil {
		t.Errorf("session still active after stop: %+v", active)
	}

	periods, err := st.ListPeriods(ctx, sess.ID)
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	// Ten full minutes plus the partial period the stop flushed.
	if len(periods) != 11 {
		t.Fatalf("persisted %d periods, want 11", len(periods))
	}
	for i, p := range periods[:10] {
		if p.SessionID != sess.ID {
			t.Errorf("period %d session = %q", i, p.SessionID)
		}
		if p.ActivityScore <= 0 || !p.IsValid {
			t.Errorf("period %d score = %d valid = %v, want scored and valid", i, p.ActivityScore, p.IsValid)
		}
		if p.Breakdown.Keyboard.TotalKeystrokes == 0 {
			t.Errorf("period %d breakdown lost its keystrokes", i)
		}
		if want := time.Minute; p.PeriodEnd.Sub(p.PeriodStart) != want {
			t.Errorf("period %d spans %v, want %v", i, p.PeriodEnd.Sub(p.PeriodStart), want)
		}
	}

	// The stop at 14:10:02 closes out a two-second sliver with no input.
	last := periods[10]
	if got := last.PeriodEnd.Sub(last.PeriodStart); got != 2*time.Second {
		t.Errorf("final period spans %v, want 2s", got)
	}
	if last.ActivityScore != 0 {
		t.Errorf("final period score = %d, want 0 for an idle sliver", last.ActivityScore)
	}
	if !last.PeriodStart.Equal(start.Add(10 * time.Minute)) {
		t.Errorf("final period starts %v, want %v", last.PeriodStart, start.Add(10*time.Minute))
	}
}

func waitForKeyHits(t *testing.T, ctrl *session.Controller, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.Counters().KeyHits >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("event pump did not reach %d key hits", want)
}
