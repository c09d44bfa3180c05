package groq

import "github.com/speakpair/dialogue-core/core/generation"

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

func toMessages(instructions string, turns []generation.Turn) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}
	for _, turn := range turns {
		role := messageRoleUser
		if turn.Role == generation.RoleModel {
			role = messageRoleAssistant
		}
		if turn.Text == "" {
			continue
		}
		messages = append(messages, message{
			Role:    role,
			Content: turn.Text,
		})
	}

	return messages
}
