package dialogue

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/speakpair/dialogue-core/core/audio"
	"github.com/speakpair/dialogue-core/core/generation"
	"github.com/speakpair/dialogue-core/core/synthesis"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const fallbackReply = "I'm sorry, I didn't quite catch that. Could you say it again?"

// runReplyJob carries one user utterance through the full reply cycle:
// record it, pause as if thinking, generate a reply, then speak it. The job
// is cancellable at every step boundary; once the session disconnects the
// job exits without committing anything further.
func (s *Session) runReplyJob(ctx context.Context, userText string) {
	ctx, span := tracer.Start(ctx, "dialogue.reply",
		trace.WithAttributes(attribute.Int("transcript.length", len(userText))),
	)
	defer span.End()
	defer s.clearPendingReply()

	s.history.append(generation.RoleUser, userText)
	s.callbacks.onTranscriptUpdate(userText, true)

	waitOrCancel(ctx, s.thinkingDelay())
	if ctx.Err() != nil || s.Status() != StatusListening {
		return
	}

	reply, err := s.generateReply(ctx)
	if err != nil {
		logger.Warn("reply generation failed, using fallback", "error", err)
		reply = fallbackReply
	}
	if ctx.Err() != nil {
		return
	}

	s.speakReply(ctx, reply)
}

// runModelUtterance speaks text that did not come out of generation, such
// as the session greeting. It joins the reply cycle at the speaking step.
func (s *Session) runModelUtterance(ctx context.Context, text string) {
	ctx, span := tracer.Start(ctx, "dialogue.modelUtterance")
	defer span.End()

	s.speakReply(ctx, text)
}

func (s *Session) thinkingDelay() time.Duration {
	min := s.pacing.ThinkingDelayMin
	max := s.pacing.ThinkingDelayMax
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

func (s *Session) generateReply(ctx context.Context) (string, error) {
	if s.generator == nil {
		return fallbackReply, nil
	}

	return s.generator.Generate(ctx,
		generation.Request{
			Topic: s.topic,
			Turns: s.history.snapshot(),
		},
		generation.WithTargetLanguage(s.language),
	)
}

// speakReply commits the reply to the history, flips the session into
// Speaking with recognition suspended, plays the synthesized clip, then
// hands the turn back to the user. Synthesis failure degrades to a timed
// pause sized to the reply so the turn rhythm is preserved.
func (s *Session) speakReply(ctx context.Context, reply string) {
	if reply == "" {
		return
	}
	if !s.applyEvent(eventReplySpeaking) {
		return
	}
	s.recognizer.suspend()

	s.history.append(generation.RoleModel, reply)
	s.callbacks.onTranscriptUpdate(reply, false)

	clip, err := s.synthesizeReply(ctx, reply)
	switch {
	case err != nil:
		logger.Warn("synthesis failed, pausing for reply length", "error", err)
		waitOrCancel(ctx, time.Duration(len(reply))*s.pacing.SpokenFallbackPerChar)
	default:
		s.pipeline.playClip(ctx, clip)
	}

	if ctx.Err() != nil {
		return
	}
	if s.applyEvent(eventPlaybackEnded) {
		s.recognizer.resume()
	}
}

func (s *Session) synthesizeReply(ctx context.Context, reply string) (*synthesis.Speech, error) {
	if s.synthesizer == nil {
		return nil, errNoSynthesizer
	}

	encoding := audio.GetDefaultEncodingInfo()
	if output := s.pipeline.currentOutput(); output != nil {
		encoding = output.EncodingInfo()
	}

	return s.synthesizer.Synthesize(ctx, reply,
		synthesis.WithVoice(s.voice),
		synthesis.WithEncodingInfo(encoding),
	)
}
