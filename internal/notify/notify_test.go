package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndReceive(t *testing.T) {
	b := NewBus(4)
	b.Publish(SessionStarted{SessionID: "s1", Mode: "client_hours", Task: "review"})
	b.Publish(TrackingPaused{SessionID: "s1"})

	got := <-b.C()
	assert.Equal(t, "session:started", got.Topic())
	started, ok := got.(SessionStarted)
	require.True(t, ok, "payload = %+v", got)
	assert.Equal(t, "review", started.Task)

	got = <-b.C()
	assert.Equal(t, "tracking:paused", got.Topic())
}

func TestPublishNeverBlocks(t *testing.T) {
	b := NewBus(2)
	for i := 0; i < 10; i++ {
		b.Publish(SessionStopped{SessionID: "s1"})
	}
	assert.Equal(t, 2, len(b.ch), "overflow should be dropped, not queued")
}

func TestTopics(t *testing.T) {
	tests := []struct {
		n    Notification
		want string
	}{
		{SessionStarted{}, "session:started"},
		{SessionStopped{}, "session:stopped"},
		{MidnightStop{}, "session:midnight-stop"},
		{TrackingPaused{}, "tracking:paused"},
		{TrackingResumed{}, "tracking:resumed"},
		{InactivityDetected{}, "inactivity:detected"},
		{WindowComplete{}, "window:complete"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.n.Topic())
	}
}
