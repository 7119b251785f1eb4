// Package knowledge stores learned facts in a persistent vector
// collection and retrieves the closest ones for prompt context.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/philippgille/chromem-go"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/gateway"
)

// Fact is one stored piece of knowledge.
type Fact struct {
	ID       string
	Content  string
	Source   string
	Score    float32
	StoredAt time.Time
}

// Store wraps a chromem collection, computing embeddings through the
// model gateway.
type Store struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection string
	embedder   gateway.Embedder
}

func NewStore(cfg config.KnowledgeConfig, embedder gateway.Embedder) (*Store, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create knowledge dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(cfg.Path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to init knowledge db: %w", err)
	}
	return &Store{
		db:         db,
		collection: cfg.Collection,
		embedder:   embedder,
	}, nil
}

// Add embeds and stores a fact, returning its id.
func (s *Store) Add(ctx context.Context, content, source string) (string, error) {
	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("failed to embed fact: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Nil embedding func because embeddings are provided explicitly.
	col, err := s.db.GetOrCreateCollection(s.collection, nil, nil)
	if err != nil {
		return "", err
	}

	id := ulid.Make().String()
	now := time.Now()
	err = col.AddDocuments(ctx, []chromem.Document{
		{
			ID:        id,
			Embedding: vector,
			Content:   content,
			Metadata: map[string]string{
				"source":    source,
				"stored_at": now.Format(time.RFC3339),
			},
		},
	}, 1)
	if err != nil {
		return "", err
	}

	slog.Debug("Fact stored", "id", id, "source", source)
	return id, nil
}

// Search returns up to topK facts closest to the query, best first.
// A missing or empty collection yields no results, not an error.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Fact, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	col := s.db.GetCollection(s.collection, nil)
	s.mu.Unlock()
	if col == nil {
		return nil, nil
	}
	if count := col.Count(); count < topK {
		if count == 0 {
			return nil, nil
		}
		topK = count
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	docs, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, err
	}

	facts := make([]Fact, 0, len(docs))
	for _, doc := range docs {
		fact := Fact{
			ID:      doc.ID,
			Content: doc.Content,
			Source:  doc.Metadata["source"],
			Score:   doc.Similarity,
		}
		if ts, err := time.Parse(time.RFC3339, doc.Metadata["stored_at"]); err == nil {
			fact.StoredAt = ts
		}
		facts = append(facts, fact)
	}
	return facts, nil
}
