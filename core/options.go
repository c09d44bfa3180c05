package dialogue

import (
	"context"
	"time"

	"github.com/speakpair/dialogue-core/core/audio"
	"github.com/speakpair/dialogue-core/core/generation"
	"github.com/speakpair/dialogue-core/core/recognition"
	"github.com/speakpair/dialogue-core/core/synthesis"
)

// Generator produces the next model reply from the conversation so far.
type Generator interface {
	Generate(ctx context.Context, req generation.Request, opts ...generation.GenerateOption) (string, error)
}

// Synthesizer turns one reply into one playable clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...synthesis.SynthesizeOption) (*synthesis.Speech, error)
}

// Recognizer listens for a single utterance per Listen call. It is an
// optional capability: a session without one degrades to text-only input
// through [Session.SendUserMessage].
type Recognizer interface {
	Listen(ctx context.Context, opts ...recognition.ListenOption) error
	SendAudio(audio []byte) error
	Stop() error
}

// CaptureDevice yields a live mono PCM stream. Capture failure at session
// start is the one fatal error in the coordinator.
type CaptureDevice interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() audio.EncodingInfo
}

// AudioOutput plays synthesized speech. It is the only component allowed to
// reach the speaker; capture audio never does.
type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	AwaitDrain() error
	ClearBuffer()
}

// Pacing bundles the timing knobs of the turn-taking rhythm. The defaults
// are a UX contract, not a technical necessity; tests shrink them.
type Pacing struct {
	// ThinkingDelayMin/Max bound the randomized pause before a reply is
	// spoken.
	ThinkingDelayMin time.Duration
	ThinkingDelayMax time.Duration
	// RestartDebounce delays re-arming the recognizer after it ends, to
	// avoid rapid start/stop thrashing.
	RestartDebounce time.Duration
	// SpokenFallbackPerChar approximates speech duration per reply
	// character when synthesis fails.
	SpokenFallbackPerChar time.Duration
	// LevelSampleInterval is the visualizer sampling tick.
	LevelSampleInterval time.Duration
}

func defaultPacing() Pacing {
	return Pacing{
		ThinkingDelayMin:      1000 * time.Millisecond,
		ThinkingDelayMax:      2000 * time.Millisecond,
		RestartDebounce:       500 * time.Millisecond,
		SpokenFallbackPerChar: 50 * time.Millisecond,
		LevelSampleInterval:   50 * time.Millisecond,
	}
}

type SessionOption func(*Session)

func WithGenerator(client Generator) SessionOption {
	return func(s *Session) { s.generator = client }
}

func WithSynthesizer(client Synthesizer) SessionOption {
	return func(s *Session) { s.synthesizer = client }
}

func WithRecognizer(client Recognizer) SessionOption {
	return func(s *Session) { s.recognizer.set(client) }
}

func WithCaptureDevice(client CaptureDevice) SessionOption {
	return func(s *Session) { s.capture = client }
}

func WithAudioOutput(client AudioOutput) SessionOption {
	return func(s *Session) { s.pipeline.setOutput(client) }
}

func WithPacing(pacing Pacing) SessionOption {
	return func(s *Session) {
		defaults := defaultPacing()
		if pacing.ThinkingDelayMin <= 0 {
			pacing.ThinkingDelayMin = defaults.ThinkingDelayMin
		}
		if pacing.ThinkingDelayMax < pacing.ThinkingDelayMin {
			pacing.ThinkingDelayMax = pacing.ThinkingDelayMin
		}
		if pacing.RestartDebounce <= 0 {
			pacing.RestartDebounce = defaults.RestartDebounce
		}
		if pacing.SpokenFallbackPerChar <= 0 {
			pacing.SpokenFallbackPerChar = defaults.SpokenFallbackPerChar
		}
		if pacing.LevelSampleInterval <= 0 {
			pacing.LevelSampleInterval = defaults.LevelSampleInterval
		}
		s.pacing = pacing
	}
}

// WithVoice selects the synthesis voice passed through to the synthesizer.
func WithVoice(voice string) SessionOption {
	return func(s *Session) { s.voice = voice }
}

// WithLanguage sets the recognition and reply language as a BCP-47 tag.
func WithLanguage(language string) SessionOption {
	return func(s *Session) { s.language = language }
}

// WithGreeting overrides how the session opens the conversation from the
// topic.
func WithGreeting(greeting func(topic string) string) SessionOption {
	return func(s *Session) {
		if greeting != nil {
			s.greeting = greeting
		}
	}
}

func WithStatusCallback(callback func(status Status)) SessionOption {
	return func(s *Session) {
		if callback != nil {
			s.callbacks.onStatusChange = callback
		}
	}
}

func WithAudioLevelCallback(callback func(level float64)) SessionOption {
	return func(s *Session) {
		if callback != nil {
			s.callbacks.onAudioLevel = callback
		}
	}
}

func WithTranscriptCallback(callback func(text string, isUser bool)) SessionOption {
	return func(s *Session) {
		if callback != nil {
			s.callbacks.onTranscriptUpdate = callback
		}
	}
}

type sessionCallbacks struct {
	onStatusChange     func(status Status)
	onAudioLevel       func(level float64)
	onTranscriptUpdate func(text string, isUser bool)
}

func noopCallbacks() sessionCallbacks {
	return sessionCallbacks{
		onStatusChange:     func(Status) {},
		onAudioLevel:       func(float64) {},
		onTranscriptUpdate: func(string, bool) {},
	}
}

type StartOptions struct {
	// ContextID optionally ties the session to an external exercise or
	// lesson context.
	ContextID string
}

type StartOption func(*StartOptions)

func WithContextID(contextID string) StartOption {
	return func(o *StartOptions) { o.ContextID = contextID }
}
