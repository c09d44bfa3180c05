package groq

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/speakpair/dialogue-core/core/generation"
)

func TestGenerateWithFeedbackRequestsSchema(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "test-key")

	var rawBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read request body: %v", err)
		}
		rawBody = body

		content := "```\n{\"reply\":\"Nice! An espresso it is.\",\"correction\":\"Say 'an espresso', not 'a espresso'.\"}\n```"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		})
	}))
	defer server.Close()

	client := NewClient()
	client.baseURL = server.URL

	reply, err := client.GenerateWithFeedback(context.Background(), generation.Request{
		Topic: "ordering coffee",
		Turns: []generation.Turn{
			{Role: generation.RoleUser, Text: "I want a espresso"},
		},
	})
	if err != nil {
		t.Fatalf("structured generation failed: %v", err)
	}

	if reply.Reply != "Nice! An espresso it is." {
		t.Errorf("unexpected reply %q", reply.Reply)
	}
	if !strings.Contains(reply.Correction, "an espresso") {
		t.Errorf("expected a correction, got %q", reply.Correction)
	}

	var request struct {
		Model          string `json:"model"`
		Messages       []struct {
			Role string `json:"role"`
		} `json:"messages"`
		ResponseFormat struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Name   string `json:"name"`
				Strict bool   `json:"strict"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
	if err := json.Unmarshal(rawBody, &request); err != nil {
		t.Fatalf("failed to decode captured request: %v", err)
	}

	if request.Model != defaultModel {
		t.Errorf("unexpected model %q", request.Model)
	}
	if len(request.Messages) == 0 || request.Messages[0].Role != string(messageRoleSystem) {
		t.Error("expected a system message carrying the tutor instructions")
	}
	if request.ResponseFormat.Type != "json_schema" {
		t.Errorf("expected json_schema response format, got %q", request.ResponseFormat.Type)
	}
	if request.ResponseFormat.JSONSchema.Name != "TutorReply" {
		t.Errorf("unexpected schema name %q", request.ResponseFormat.JSONSchema.Name)
	}
	if !request.ResponseFormat.JSONSchema.Strict {
		t.Error("expected strict schema enforcement")
	}
	for _, field := range []string{`"reply"`, `"correction"`} {
		if !strings.Contains(string(rawBody), field) {
			t.Errorf("schema does not expose %s", field)
		}
	}
}

func TestGenerateWithFeedbackRejectsMalformedContent(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "test-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": "not json at all"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient()
	client.baseURL = server.URL

	_, err := client.GenerateWithFeedback(context.Background(), generation.Request{Topic: "small talk"})
	if err == nil {
		t.Fatal("expected an unmarshal error for malformed structured content")
	}
}
