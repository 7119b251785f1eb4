// Package history keeps a bounded per-user record of conversation turns
// for prompt context.
package history

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Turn is one utterance/response exchange.
type Turn struct {
	Utterance string
	Response  string
	Intent    string
	Timestamp time.Time
}

// Store holds the most recent turns per user, oldest evicted first.
type Store struct {
	mu       sync.RWMutex
	maxTurns int
	turns    map[string][]Turn
}

func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Store{
		maxTurns: maxTurns,
		turns:    make(map[string][]Turn),
	}
}

func (s *Store) Append(userID string, turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.turns[userID], turn)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.turns[userID] = turns
}

// Recent returns up to n most recent turns for the user, oldest first.
func (s *Store) Recent(userID string, n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[userID]
	if n <= 0 || n > len(turns) {
		n = len(turns)
	}
	out := make([]Turn, n)
	copy(out, turns[len(turns)-n:])
	return out
}

func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, userID)
}

// Render formats recent turns for inclusion in a prompt. Empty history
// renders to an empty string.
func (s *Store) Render(userID string, n int) string {
	turns := s.Recent(userID, n)
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "User: %s\n", turn.Utterance)
		if turn.Response != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", turn.Response)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
