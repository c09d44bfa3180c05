// Package dialogue coordinates a real-time spoken practice conversation:
// microphone capture, single-utterance recognition, reply generation and
// spoken playback, under strict half-duplex turn-taking. One [Session] owns
// one conversation from StartSession to EndSession.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/speakpair/dialogue-core/core/generation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	errAlreadyStarted = errors.New("session already started")
	errNoSynthesizer  = errors.New("no synthesizer configured")
)

// Session is the coordinator of one practice conversation. Every capability
// is optional except the capture device, whose failure at start is the one
// fatal error; missing capabilities degrade the session instead of breaking
// it.
//
// All exported methods are safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	status Status

	topic     string
	contextID string
	startedAt time.Time

	generator   Generator
	synthesizer Synthesizer
	capture     CaptureDevice
	recognizer  *recognizerManager
	pipeline    *audioPipeline

	history turnHistory

	pacing   Pacing
	voice    string
	language string
	greeting func(topic string) string

	callbacks sessionCallbacks

	ctx          context.Context
	cancel       context.CancelFunc
	replyPending bool
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		status:    StatusDisconnected,
		pacing:    defaultPacing(),
		language:  "en-US",
		greeting:  defaultGreeting,
		callbacks: noopCallbacks(),
	}
	s.recognizer = newRecognizerManager(s.Status)
	s.pipeline = newAudioPipeline(s.Status)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StartSession connects the session for the given practice topic: it brings
// up capture, arms recognition and speaks the opening line. It returns an
// error only when the capture device cannot start; everything else degrades.
func (s *Session) StartSession(ctx context.Context, topic string, opts ...StartOption) error {
	startOpts := &StartOptions{}
	for _, opt := range opts {
		opt(startOpts)
	}

	s.mu.Lock()
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return errAlreadyStarted
	}
	s.status, _ = transition(s.status, eventStartSession)

	s.topic = topic
	s.contextID = startOpts.ContextID
	s.startedAt = time.Now()
	s.replyPending = false
	s.history.clear()

	// The session outlives the StartSession call; its lifetime is bound
	// to EndSession, not the caller's context.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.ctx = sessionCtx
	s.cancel = cancel
	s.mu.Unlock()

	s.callbacks.onStatusChange(StatusConnecting)

	_, span := tracer.Start(ctx, "dialogue.startSession",
		trace.WithAttributes(
			attribute.String("topic", topic),
			attribute.String("context.id", startOpts.ContextID),
		),
	)
	defer span.End()

	if s.capture == nil {
		s.failStart(span, errors.New("no capture device configured"))
		return fmt.Errorf("failed to start session: no capture device configured")
	}

	encoding := s.capture.EncodingInfo()
	s.pipeline.configure(s.callbacks.onAudioLevel, s.pacing.LevelSampleInterval)
	s.recognizer.configure(encoding, s.language, s.pacing.RestartDebounce, s.handleUserUtterance)

	err := s.capture.StartCapture(sessionCtx, func(frame []byte) {
		s.pipeline.tapCapture(frame, encoding)
		s.recognizer.sendAudio(frame)
	})
	if err != nil {
		s.failStart(span, err)
		return fmt.Errorf("failed to start capture: %w", err)
	}

	if !s.applyEvent(eventCaptureReady) {
		// EndSession raced the startup; capture is already up, tear it
		// back down.
		if err := s.capture.StopCapture(); err != nil {
			logger.Warn("failed to stop capture after aborted start", "error", err)
		}
		return nil
	}

	s.pipeline.startVisualizer(sessionCtx, encoding)
	s.recognizer.start(sessionCtx)

	if opening := s.greeting(topic); opening != "" {
		go s.runModelUtterance(sessionCtx, opening)
	}

	return nil
}

func (s *Session) failStart(span trace.Span, err error) {
	span.RecordError(err)

	s.mu.Lock()
	s.status, _ = transition(s.status, eventCaptureFailed)
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.callbacks.onStatusChange(StatusDisconnected)
}

// EndSession tears the session down from any state and is idempotent:
// calling it on an already disconnected session is a no-op. Teardown is
// unconditional; no step depends on the previous one succeeding.
func (s *Session) EndSession() error {
	s.mu.Lock()
	if s.status == StatusDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.status, _ = transition(s.status, eventEndSession)
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.replyPending = false
	s.mu.Unlock()

	s.recognizer.stop()

	if s.capture != nil {
		if err := s.capture.StopCapture(); err != nil {
			logger.Warn("failed to stop capture", "error", err)
		}
	}
	if output := s.pipeline.currentOutput(); output != nil {
		output.ClearBuffer()
	}
	s.pipeline.stopVisualizer()

	s.callbacks.onStatusChange(StatusDisconnected)
	return nil
}

// SendUserMessage feeds a typed user message into the conversation exactly
// as if it had been recognized from speech. It is ignored outside Listening
// or while a reply is already underway.
func (s *Session) SendUserMessage(text string) {
	if text == "" {
		return
	}
	s.handleUserUtterance(text)
}

func (s *Session) handleUserUtterance(text string) {
	s.mu.Lock()
	if s.status != StatusListening || s.replyPending || s.ctx == nil {
		s.mu.Unlock()
		return
	}
	s.replyPending = true
	ctx := s.ctx
	s.mu.Unlock()

	go s.runReplyJob(ctx, text)
}

func (s *Session) clearPendingReply() {
	s.mu.Lock()
	s.replyPending = false
	s.mu.Unlock()
}

// applyEvent attempts a status transition and reports whether it took
// effect. Invalid transitions leave the status untouched.
func (s *Session) applyEvent(event statusEvent) bool {
	s.mu.Lock()
	next, err := transition(s.status, event)
	if err != nil {
		s.mu.Unlock()
		return false
	}
	s.status = next
	s.mu.Unlock()

	s.callbacks.onStatusChange(next)
	return true
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// History returns a copy of the conversation so far, oldest first.
func (s *Session) History() []generation.Turn {
	return s.history.snapshot()
}

// Summary condenses a session for review once it is over. It can be taken
// at any time; Duration keeps growing until the session ends.
type Summary struct {
	Topic     string
	ContextID string
	Turns     []generation.Turn
	StartedAt time.Time
	Duration  time.Duration
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	topic := s.topic
	contextID := s.contextID
	startedAt := s.startedAt
	s.mu.Unlock()

	summary := Summary{
		Topic:     topic,
		ContextID: contextID,
		Turns:     s.history.snapshot(),
		StartedAt: startedAt,
	}
	if !startedAt.IsZero() {
		summary.Duration = time.Since(startedAt)
	}
	return summary
}

func defaultGreeting(topic string) string {
	if topic == "" {
		return "Hi! What would you like to talk about today?"
	}
	return fmt.Sprintf("Hi! Today let's talk about %s. Ready when you are!", topic)
}
