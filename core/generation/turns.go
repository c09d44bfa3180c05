// Package generation defines the conversation data model and the
// text-generation contract consumed by the dialogue coordinator.
package generation

import "time"

// Role describes who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one utterance in a practice conversation. Turns are immutable
// once created and session history is strictly append-only.
type Turn struct {
	ID        string
	Role      Role
	Text      string
	Timestamp time.Time
}

// Request carries everything a generator needs to produce the next model
// reply: the practice topic and the full turn history in chronological
// order, ending with the user turn being answered.
type Request struct {
	Topic string
	Turns []Turn
}
