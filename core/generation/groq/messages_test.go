package groq

import (
	"testing"

	"github.com/speakpair/dialogue-core/core/generation"
)

func TestToMessagesMapsRoles(t *testing.T) {
	turns := []generation.Turn{
		{Role: generation.RoleUser, Text: "hola"},
		{Role: generation.RoleModel, Text: "¡hola! ¿cómo estás?"},
		{Role: generation.RoleUser, Text: "muy bien"},
	}

	messages := toMessages("be brief", turns)

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != messageRoleSystem || messages[0].Content != "be brief" {
		t.Errorf("expected system message first, got %+v", messages[0])
	}
	if messages[1].Role != messageRoleUser {
		t.Errorf("expected user role, got %s", messages[1].Role)
	}
	if messages[2].Role != messageRoleAssistant {
		t.Errorf("expected assistant role, got %s", messages[2].Role)
	}
}

func TestToMessagesSkipsEmptyTurns(t *testing.T) {
	turns := []generation.Turn{
		{Role: generation.RoleUser, Text: ""},
		{Role: generation.RoleModel, Text: "still here?"},
	}

	messages := toMessages("", turns)

	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Content != "still here?" {
		t.Errorf("unexpected content %q", messages[0].Content)
	}
}
