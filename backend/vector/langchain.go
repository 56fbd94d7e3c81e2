package vector

import (
	"context"
	"fmt"
	"maps"
	"net/url"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/qdrant"

	"github.com/smallnest/lexgraph/backend"
)

// LangChainBackend adapts a langchaingo vectorstores.VectorStore to
// backend.SimilarityBackend.
type LangChainBackend struct {
	store     vectorstores.VectorStore
	threshold float32
}

var _ backend.SimilarityBackend = (*LangChainBackend)(nil)

// NewLangChainBackend wraps store. A positive threshold drops results
// scoring below it.
func NewLangChainBackend(store vectorstores.VectorStore, threshold float32) *LangChainBackend {
	return &LangChainBackend{store: store, threshold: threshold}
}

// Search implements backend.SimilarityBackend.
func (l *LangChainBackend) Search(ctx context.Context, query string, k int) ([]backend.Document, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	var opts []vectorstores.Option
	if l.threshold > 0 {
		opts = append(opts, vectorstores.WithScoreThreshold(l.threshold))
	}
	docs, err := l.store.SimilaritySearch(ctx, query, k, opts...)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	return convertSchemaDocuments(query, docs), nil
}

func convertSchemaDocuments(query string, docs []schema.Document) []backend.Document {
	out := make([]backend.Document, len(docs))
	for i, d := range docs {
		meta := make(map[string]any, len(d.Metadata))
		maps.Copy(meta, d.Metadata)

		id := fmt.Sprintf("doc_%d", i)
		if source, ok := d.Metadata["source"]; ok {
			id = fmt.Sprintf("%v", source)
		}
		out[i] = backend.Document{
			ID:       id,
			Source:   backend.SourceVector,
			Query:    query,
			Content:  d.PageContent,
			Metadata: meta,
			Score:    float64(d.Score),
		}
	}
	return out
}

// QdrantOptions configures NewQdrant.
type QdrantOptions struct {
	URL        string
	APIKey     string
	Collection string
	Threshold  float32
}

// NewQdrant connects a langchaingo Qdrant store embedding queries with
// embedder.
func NewQdrant(embedder embeddings.Embedder, opts QdrantOptions) (*LangChainBackend, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid qdrant url %q", opts.URL)
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	qopts := []qdrant.Option{
		qdrant.WithURL(*u),
		qdrant.WithCollectionName(opts.Collection),
		qdrant.WithEmbedder(embedder),
	}
	if opts.APIKey != "" {
		qopts = append(qopts, qdrant.WithAPIKey(opts.APIKey))
	}
	store, err := qdrant.New(qopts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant store: %w", err)
	}
	return NewLangChainBackend(&store, opts.Threshold), nil
}
