// Package vector provides similarity search backends: an in-memory cosine
// store and an adapter over langchaingo vector stores such as Qdrant.
package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/smallnest/lexgraph/backend"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// Store is an in-memory vector store. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	embedder   Embedder
	documents  []backend.Document
	embeddings [][]float32
}

var _ backend.SimilarityBackend = (*Store)(nil)

// NewStore creates an empty store embedding with embedder.
func NewStore(embedder Embedder) *Store {
	return &Store{embedder: embedder}
}

// Add embeds and stores docs. Documents without an ID get one.
func (s *Store) Add(ctx context.Context, docs ...backend.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(docs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range docs {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		d.Source = backend.SourceVector
		s.documents = append(s.documents, d)
		s.embeddings = append(s.embeddings, vecs[i])
	}
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Search implements backend.SimilarityBackend. Results are ordered by
// descending cosine similarity; ties keep insertion order.
func (s *Store) Search(ctx context.Context, query string, k int) ([]backend.Document, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	q, err := s.embedder.EmbedDocument(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		index int
		score float64
	}
	scores := make([]scored, len(s.documents))
	for i, emb := range s.embeddings {
		scores[i] = scored{index: i, score: cosineSimilarity32(q, emb)}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})
	if k > len(scores) {
		k = len(scores)
	}

	out := make([]backend.Document, k)
	for i := 0; i < k; i++ {
		d := s.documents[scores[i].index]
		d.Query = query
		d.Score = scores[i].score
		out[i] = d
	}
	return out, nil
}

func cosineSimilarity32(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
