package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendEvictsOldest(t *testing.T) {
	store := NewStore(3)
	for i := 0; i < 5; i++ {
		store.Append("alice", Turn{Utterance: fmt.Sprintf("u%d", i), Response: fmt.Sprintf("r%d", i)})
	}

	turns := store.Recent("alice", 0)
	assert.Len(t, turns, 3)
	assert.Equal(t, "u2", turns[0].Utterance)
	assert.Equal(t, "u4", turns[2].Utterance)
}

func TestRecentIsPerUser(t *testing.T) {
	store := NewStore(5)
	store.Append("alice", Turn{Utterance: "hello"})
	store.Append("bob", Turn{Utterance: "hi"})

	assert.Len(t, store.Recent("alice", 0), 1)
	assert.Len(t, store.Recent("bob", 0), 1)
	assert.Empty(t, store.Recent("carol", 0))
}

func TestRenderFormatsTurns(t *testing.T) {
	store := NewStore(5)
	store.Append("alice", Turn{Utterance: "what time is it", Response: "It is noon."})
	store.Append("alice", Turn{Utterance: "thanks"})

	rendered := store.Render("alice", 2)
	assert.Equal(t, "User: what time is it\nAssistant: It is noon.\nUser: thanks", rendered)
}

func TestRenderEmptyHistory(t *testing.T) {
	store := NewStore(5)
	assert.Empty(t, store.Render("nobody", 4))
}

func TestClear(t *testing.T) {
	store := NewStore(5)
	store.Append("alice", Turn{Utterance: "hello"})
	store.Clear("alice")
	assert.Empty(t, store.Recent("alice", 0))
}
