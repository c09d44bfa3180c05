package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	dialogue "github.com/speakpair/dialogue-core/core"
	"github.com/speakpair/dialogue-core/core/audio/miniaudio"
	"github.com/speakpair/dialogue-core/core/generation"
	"github.com/speakpair/dialogue-core/core/generation/gemini"
	"github.com/speakpair/dialogue-core/core/generation/groq"
	recdeepgram "github.com/speakpair/dialogue-core/core/recognition/deepgram"
	synthdeepgram "github.com/speakpair/dialogue-core/core/synthesis/deepgram"
)

func runPractice(ctx context.Context, log zerolog.Logger) error {
	audioClient, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}
	defer audioClient.Close()

	synthesizer, err := synthdeepgram.NewClient("")
	if err != nil {
		return fmt.Errorf("failed to initialize synthesizer: %w", err)
	}

	var program *tea.Program
	generator, err := newGenerator(ctx, func(correction string) {
		if program != nil {
			program.Send(correctionMsg(correction))
		}
	})
	if err != nil {
		return err
	}

	var session *dialogue.Session
	model := newPracticeModel(topic)
	model.send = func(text string) {
		if session != nil {
			session.SendUserMessage(text)
		}
	}
	program = tea.NewProgram(model, tea.WithAltScreen())

	session = dialogue.NewSession(
		dialogue.WithCaptureDevice(audioClient),
		dialogue.WithAudioOutput(audioClient),
		dialogue.WithRecognizer(recdeepgram.NewClient()),
		dialogue.WithSynthesizer(synthesizer),
		dialogue.WithGenerator(generator),
		dialogue.WithVoice(voice),
		dialogue.WithLanguage(language),
		dialogue.WithStatusCallback(func(status dialogue.Status) {
			program.Send(statusMsg(status))
		}),
		dialogue.WithAudioLevelCallback(func(level float64) {
			program.Send(levelMsg(level))
		}),
		dialogue.WithTranscriptCallback(func(text string, isUser bool) {
			program.Send(transcriptMsg{text: text, isUser: isUser})
		}),
	)
	defer session.EndSession()

	if err := session.StartSession(ctx, topic); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	log.Info().Str("topic", topic).Msg("session started")

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("practice ui failed: %w", err)
	}

	summary := session.Summary()
	log.Info().
		Str("topic", summary.Topic).
		Int("turns", len(summary.Turns)).
		Dur("duration", summary.Duration).
		Msg("session ended")
	printSummary(summary.Turns)

	return nil
}

func newGenerator(ctx context.Context, onCorrection func(string)) (dialogue.Generator, error) {
	switch provider {
	case "groq":
		return &feedbackGenerator{client: groq.NewClient(), onCorrection: onCorrection}, nil
	case "gemini":
		client, err := gemini.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

// feedbackGenerator asks groq for a structured reply so the transcript can
// show grammar corrections alongside the spoken response.
type feedbackGenerator struct {
	client       *groq.Client
	onCorrection func(correction string)
}

func (g *feedbackGenerator) Generate(ctx context.Context, req generation.Request, opts ...generation.GenerateOption) (string, error) {
	reply, err := g.client.GenerateWithFeedback(ctx, req, opts...)
	if err != nil {
		return "", err
	}
	if reply.Correction != "" && g.onCorrection != nil {
		g.onCorrection(reply.Correction)
	}
	return reply.Reply, nil
}

func printSummary(turns []generation.Turn) {
	if len(turns) == 0 {
		return
	}
	fmt.Println("\nConversation:")
	for _, turn := range turns {
		speaker := "Tutor"
		if turn.Role == generation.RoleUser {
			speaker = "You"
		}
		fmt.Printf("  %s: %s\n", speaker, turn.Text)
	}
}
