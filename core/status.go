package dialogue

import "fmt"

// Status is the authoritative session state. Only the Session applies
// transitions; every other component reacts to or requests them.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusListening    Status = "listening"
	StatusSpeaking     Status = "speaking"
)

type statusEvent string

const (
	eventStartSession  statusEvent = "start_session"
	eventCaptureReady  statusEvent = "capture_ready"
	eventCaptureFailed statusEvent = "capture_failed"
	eventReplySpeaking statusEvent = "reply_speaking"
	eventPlaybackEnded statusEvent = "playback_ended"
	eventEndSession    statusEvent = "end_session"
)

// transition is the complete transition table. Anything not listed here is
// an invalid transition and the current status is returned unchanged.
func transition(current Status, event statusEvent) (Status, error) {
	if event == eventEndSession {
		return StatusDisconnected, nil
	}

	switch current {
	case StatusDisconnected:
		switch event {
		case eventStartSession:
			return StatusConnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatusConnecting:
		switch event {
		case eventCaptureReady:
			return StatusListening, nil
		case eventCaptureFailed:
			return StatusDisconnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatusListening:
		switch event {
		case eventReplySpeaking:
			return StatusSpeaking, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatusSpeaking:
		switch event {
		case eventPlaybackEnded:
			return StatusListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown status %q", current)
	}
}

func invalidTransition(status Status, event statusEvent) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", status, event)
}
