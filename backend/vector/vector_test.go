package vector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/smallnest/lexgraph/backend"
)

// axisEmbedder maps known texts onto fixed vectors.
type axisEmbedder map[string][]float32

func (a axisEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	v, ok := a[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return v, nil
}

func (a axisEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := a.EmbedDocument(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()
	emb := axisEmbedder{
		"contracts":      {1, 0, 0},
		"torts":          {0, 1, 0},
		"contract law":   {0.9, 0.1, 0},
		"civil contract": {0.8, 0.2, 0},
	}
	s := NewStore(emb)
	require.NoError(t, s.Add(ctx,
		backend.Document{ID: "a", Content: "torts"},
		backend.Document{ID: "b", Content: "contract law"},
		backend.Document{Content: "civil contract"},
	))
	assert.Equal(t, 3, s.Len())

	docs, err := s.Search(ctx, "contracts", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "civil contract", docs[1].Content)
	assert.NotEmpty(t, docs[1].ID)
	assert.Equal(t, backend.SourceVector, docs[0].Source)
	assert.Equal(t, "contracts", docs[0].Query)
	assert.Greater(t, docs[0].Score, docs[1].Score)

	docs, err = s.Search(ctx, "contracts", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	_, err = s.Search(ctx, "contracts", 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = s.Search(ctx, "unknown", 1)
	assert.Error(t, err)
}

func TestStore_Empty(t *testing.T) {
	s := NewStore(NewMockEmbedder(8))
	docs, err := s.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMockEmbedder(16))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Add(ctx, backend.Document{Content: "article"}))
		}()
		go func() {
			defer wg.Done()
			_, err := s.Search(ctx, "article", 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, s.Len())
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(32)
	a, err := e.EmbedDocument(context.Background(), "habeas corpus")
	require.NoError(t, err)
	b, _ := e.EmbedDocument(context.Background(), "habeas corpus")
	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, cosineSimilarity32(a, b), 1e-6)
}

type fakeLCEmbedder struct{}

func (fakeLCEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (fakeLCEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func TestLangChainEmbedder(t *testing.T) {
	e := NewLangChainEmbedder(fakeLCEmbedder{})
	v, err := e.EmbedDocument(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, v)

	vs, err := e.EmbedDocuments(context.Background(), []string{"a", "ab"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}}, vs)
}

// fakeVectorStore implements vectorstores.VectorStore.
type fakeVectorStore struct {
	docs    []schema.Document
	err     error
	k       int
	options vectorstores.Options
}

func (f *fakeVectorStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	return nil, errors.New("read only")
}

func (f *fakeVectorStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	f.k = numDocuments
	f.options = vectorstores.Options{}
	for _, opt := range options {
		opt(&f.options)
	}
	return f.docs, f.err
}

func TestLangChainBackend_Search(t *testing.T) {
	store := &fakeVectorStore{docs: []schema.Document{
		{PageContent: "Art. 421. Freedom of contract", Metadata: map[string]any{"source": "cc-421"}, Score: 0.92},
		{PageContent: "Art. 422. Good faith", Score: 0.81},
	}}
	b := NewLangChainBackend(store, 0.5)

	docs, err := b.Search(context.Background(), "contract freedom", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, store.k)
	assert.InDelta(t, 0.5, store.options.ScoreThreshold, 1e-6)

	require.Len(t, docs, 2)
	assert.Equal(t, "cc-421", docs[0].ID)
	assert.Equal(t, "doc_1", docs[1].ID)
	assert.Equal(t, backend.SourceVector, docs[0].Source)
	assert.Equal(t, "contract freedom", docs[1].Query)
	assert.InDelta(t, 0.92, docs[0].Score, 1e-6)
	assert.Equal(t, "cc-421", docs[0].Metadata["source"])
}

func TestLangChainBackend_Errors(t *testing.T) {
	down := errors.New("qdrant unavailable")
	b := NewLangChainBackend(&fakeVectorStore{err: down}, 0)

	_, err := b.Search(context.Background(), "q", 10)
	assert.ErrorIs(t, err, down)

	_, err = b.Search(context.Background(), "q", 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestNewQdrant_Validation(t *testing.T) {
	_, err := NewQdrant(nil, QdrantOptions{URL: "localhost", Collection: "laws"})
	assert.Error(t, err)

	_, err = NewQdrant(nil, QdrantOptions{URL: "http://localhost:6333"})
	assert.Error(t, err)
}
