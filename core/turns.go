package dialogue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/speakpair/dialogue-core/core/generation"
)

// turnHistory is the append-only conversation record. Turns are never
// mutated or removed; the whole history is cleared only when a new session
// starts.
type turnHistory struct {
	mu    sync.RWMutex
	turns []generation.Turn
}

func (h *turnHistory) append(role generation.Role, text string) generation.Turn {
	turn := generation.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}

	h.mu.Lock()
	h.turns = append(h.turns, turn)
	h.mu.Unlock()

	return turn
}

func (h *turnHistory) snapshot() []generation.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	turns := make([]generation.Turn, len(h.turns))
	copy(turns, h.turns)
	return turns
}

func (h *turnHistory) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

func (h *turnHistory) clear() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}
