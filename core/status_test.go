package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		event   statusEvent
		want    Status
		wantErr bool
	}{
		{"start from disconnected", StatusDisconnected, eventStartSession, StatusConnecting, false},
		{"capture ready", StatusConnecting, eventCaptureReady, StatusListening, false},
		{"capture failed", StatusConnecting, eventCaptureFailed, StatusDisconnected, false},
		{"reply starts speaking", StatusListening, eventReplySpeaking, StatusSpeaking, false},
		{"playback returns to listening", StatusSpeaking, eventPlaybackEnded, StatusListening, false},
		{"end from connecting", StatusConnecting, eventEndSession, StatusDisconnected, false},
		{"end from listening", StatusListening, eventEndSession, StatusDisconnected, false},
		{"end from speaking", StatusSpeaking, eventEndSession, StatusDisconnected, false},
		{"end is a fixpoint", StatusDisconnected, eventEndSession, StatusDisconnected, false},
		{"start while listening rejected", StatusListening, eventStartSession, StatusListening, true},
		{"speaking while speaking rejected", StatusSpeaking, eventReplySpeaking, StatusSpeaking, true},
		{"playback end while listening rejected", StatusListening, eventPlaybackEnded, StatusListening, true},
		{"capture ready while disconnected rejected", StatusDisconnected, eventCaptureReady, StatusDisconnected, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := transition(tc.from, tc.event)
			assert.Equal(t, tc.want, got)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInvalidTransitionKeepsStatus(t *testing.T) {
	for _, status := range []Status{StatusDisconnected, StatusConnecting, StatusListening, StatusSpeaking} {
		for _, event := range []statusEvent{eventStartSession, eventCaptureReady, eventCaptureFailed, eventReplySpeaking, eventPlaybackEnded} {
			got, err := transition(status, event)
			if err != nil {
				assert.Equal(t, status, got, "invalid transition from %s on %s must not move", status, event)
			}
		}
	}
}
