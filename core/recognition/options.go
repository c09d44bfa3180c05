// Package recognition defines the single-utterance speech-to-text contract
// consumed by the dialogue coordinator.
//
// A recognizer listens for exactly one utterance per Listen call: it emits at
// most one final transcript through the utterance callback, then signals
// end-of-utterance through the end callback. Continuous and interim
// transcription are deliberately out of contract; the coordinator re-arms
// listening itself.
package recognition

import "github.com/speakpair/dialogue-core/core/audio"

type ListenOptions struct {
	// UtteranceCallback receives the final transcript of the utterance.
	// It is called at most once per Listen call, before EndCallback.
	UtteranceCallback func(transcript string)
	// EndCallback signals that the recognizer stopped listening, with or
	// without a transcript having been produced.
	EndCallback func()
	// ErrorCallback receives transport failures. Recognition errors are
	// non-fatal to a session; receivers typically log and re-arm.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
	Language     string
}

type ListenOption func(*ListenOptions)

func WithUtteranceCallback(callback func(transcript string)) ListenOption {
	return func(o *ListenOptions) {
		o.UtteranceCallback = callback
	}
}

func WithEndCallback(callback func()) ListenOption {
	return func(o *ListenOptions) {
		o.EndCallback = callback
	}
}

func WithErrorCallback(callback func(error)) ListenOption {
	return func(o *ListenOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) ListenOption {
	return func(o *ListenOptions) {
		o.EncodingInfo = encodingInfo
	}
}

// WithLanguage sets the recognition language as a BCP-47 tag. Defaults to
// the recognizer's own default (usually en-US) when unset.
func WithLanguage(language string) ListenOption {
	return func(o *ListenOptions) {
		o.Language = language
	}
}
