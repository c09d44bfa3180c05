package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/speakpair/dialogue-core/core/generation"
	"github.com/speakpair/dialogue-core/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

const defaultSystemPrompt = "You are a friendly conversation partner helping " +
	"a language learner practice speaking. Keep replies short (one or two " +
	"sentences), conversational, and on topic. The practice topic is: %s"

// Client generates tutor replies through the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// NewClient reads GEMINI_API_KEY from the environment through the genai SDK.
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	client := &Client{client: genaiClient, model: defaultModel}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) Generate(ctx context.Context, req generation.Request, opts ...generation.GenerateOption) (string, error) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()

	options := generation.GenerateOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	instructions := options.Instructions
	if instructions == "" {
		instructions = fmt.Sprintf(defaultSystemPrompt, req.Topic)
	}
	if options.TargetLanguage != "" {
		instructions += " Reply in " + options.TargetLanguage + "."
	}

	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.turns", len(req.Turns)),
	)

	contents := toContents(req.Turns)
	response, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
		Temperature:       utils.Ptr[float32](0.8),
	})
	if err != nil {
		err = fmt.Errorf("failed to generate content: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	reply := strings.TrimSpace(response.Text())
	if reply == "" {
		err := fmt.Errorf("response contained no text")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return reply, nil
}

func toContents(turns []generation.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		if turn.Text == "" {
			continue
		}

		role := genai.Role(genai.RoleUser)
		if turn.Role == generation.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return contents
}
