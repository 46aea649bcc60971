package event

import (
	"context"
	"testing"
	"time"
)

func TestSimSourceDeliversInOrder(t *testing.T) {
	s := NewSimSource()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	base := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	s.Emit(Event{Kind: KindKeyDown, Timestamp: base, KeyCode: 65})
	s.Emit(Event{Kind: KindKeyUp, Timestamp: base.Add(80 * time.Millisecond), KeyCode: 65})
	s.Emit(Event{Kind: KindWheel, Timestamp: base.Add(time.Second)})

	want := []Kind{KindKeyDown, KindKeyUp, KindWheel}
	for i, k := range want {
		ev := <-s.Events()
		if ev.Kind != k {
			t.Errorf("event %d kind = %v, want %v", i, ev.Kind, k)
		}
	}
}

func TestSimSourceStopClosesStream(t *testing.T) {
	s := NewSimSource()
	s.Start(context.Background())
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if _, ok := <-s.Events(); ok {
		t.Error("stream still open after Stop")
	}

	// Emits after Stop are dropped, not a panic.
	s.Emit(Event{Kind: KindWheel, Timestamp: time.Now()})

	// Double stop is a no-op.
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestSimSourceIdle(t *testing.T) {
	s := NewSimSource()
	s.SetIdle(42)

	idle, err := s.IdleSeconds()
	if err != nil {
		t.Fatalf("IdleSeconds failed: %v", err)
	}
	if idle != 42 {
		t.Errorf("idle = %d, want 42", idle)
	}
}

func TestKeyPressEmitsPair(t *testing.T) {
	s := NewSimSource()
	s.Start(context.Background())

	base := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	s.KeyPress(72, base, 90*time.Millisecond)

	down := <-s.Events()
	up := <-s.Events()

	if down.Kind != KindKeyDown || up.Kind != KindKeyUp {
		t.Fatalf("got kinds %v/%v, want keydown/keyup", down.Kind, up.Kind)
	}
	if down.KeyCode != 72 || up.KeyCode != 72 {
		t.Errorf("keycodes %d/%d, want 72/72", down.KeyCode, up.KeyCode)
	}
	if got := up.Timestamp.Sub(down.Timestamp); got != 90*time.Millisecond {
		t.Errorf("hold duration = %v, want 90ms", got)
	}
}

func TestNopSource(t *testing.T) {
	s := NewNopSource()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case ev := <-s.Events():
		t.Errorf("unexpected event %v from nop source", ev)
	case <-time.After(10 * time.Millisecond):
	}

	idle, err := s.IdleSeconds()
	if err != nil || idle != 0 {
		t.Errorf("IdleSeconds = %d, %v; want 0, nil", idle, err)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindKeyDown, "keydown"},
		{KindMouseMove, "mousemove"},
		{KindWheel, "wheel"},
		{KindUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
