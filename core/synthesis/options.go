// Package synthesis defines the text-to-speech contract consumed by the
// dialogue coordinator: one synthesis call turns one reply into one playable
// PCM clip.
package synthesis

import "github.com/speakpair/dialogue-core/core/audio"

// Speech is a fully synthesized clip ready for playback.
type Speech struct {
	Audio        []byte
	EncodingInfo audio.EncodingInfo
}

type SynthesizeOptions struct {
	Voice        string
	EncodingInfo audio.EncodingInfo
}

type SynthesizeOption func(*SynthesizeOptions)

func WithVoice(voice string) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		if voice == "" {
			return
		}

		o.Voice = voice
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}
