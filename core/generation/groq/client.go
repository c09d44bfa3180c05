package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/speakpair/dialogue-core/core/generation"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	url          = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel = "llama-3.3-70b-versatile"
)

const defaultSystemPrompt = "You are a friendly conversation partner helping " +
	"a language learner practice speaking. Keep replies short (one or two " +
	"sentences), conversational, and on topic. Ask a follow-up question when " +
	"it keeps the conversation going. The practice topic is: %s"

// Client generates tutor replies through Groq's chat-completions API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string

	// basePersona is prepended to every request; fixed at construction so a
	// session keeps a consistent voice across turns.
	basePersona []message
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		baseURL:    url,
		model:      defaultModel,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
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

	messages := []message{}
	if err := copier.Copy(&messages, &c.basePersona); err != nil {
		return "", fmt.Errorf("error copying persona messages: %w", err)
	}
	messages = append(messages, toMessages(instructions, req.Turns)...)

	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.turns", len(req.Turns)),
	)

	content, err := c.complete(ctx, requestBody{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return strings.TrimSpace(content), nil
}

func (c *Client) complete(ctx context.Context, reqBody requestBody) (string, error) {
	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}

	apiKey, ok := os.LookupEnv("GROQ_API_KEY")
	if !ok {
		return "", fmt.Errorf("groq api key not found")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	var responseBody responseBody
	if err := json.Unmarshal(respBodyBytes, &responseBody); err != nil {
		return "", fmt.Errorf("error unmarshalling response: %w", err)
	}
	if len(responseBody.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}

	return responseBody.Choices[0].Message.Content, nil
}

type requestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
