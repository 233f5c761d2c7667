package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// queueEmbedder returns pre-programmed vectors in call order
type queueEmbedder struct {
	vectors [][]float32
	dims    int
	err     error
	calls   int
}

func (q *queueEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	q.calls++
	if q.err != nil {
		return nil, q.err
	}
	if len(q.vectors) == 0 {
		return nil, errors.New("queue exhausted")
	}
	vec := q.vectors[0]
	q.vectors = q.vectors[1:]
	return vec, nil
}

func (q *queueEmbedder) Dimensions() int {
	return q.dims
}

func embeddedItem(id string, vec []float32) *domain.KnowledgeItem {
	return &domain.KnowledgeItem{ID: id, Title: id, Content: id, Embedding: vec}
}

func TestRetriever_SemanticFilterAndOrder(t *testing.T) {
	// Unit vectors against query [1,0]: cosine similarity equals the first
	// component, giving scores 0.9, 0.2 and 0.5.
	kb := []*domain.KnowledgeItem{
		embeddedItem("high", []float32{0.9, 0.43588989}),
		embeddedItem("low", []float32{0.2, 0.97979590}),
		embeddedItem("mid", []float32{0.5, 0.86602540}),
	}
	embedder := &queueEmbedder{vectors: [][]float32{{1, 0}}, dims: 2}

	retriever := NewRetriever(embedder)
	items, err := retriever.Retrieve(context.Background(), "query", kb)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "high", items[0].ID)
	assert.Equal(t, "mid", items[1].ID)
}

func TestRetriever_TopKCap(t *testing.T) {
	var kb []*domain.KnowledgeItem
	for i := 0; i < 8; i++ {
		kb = append(kb, embeddedItem(string(rune('a'+i)), []float32{1, 0}))
	}
	embedder := &queueEmbedder{vectors: [][]float32{{1, 0}}, dims: 2}

	items, err := NewRetriever(embedder).Retrieve(context.Background(), "query", kb)

	require.NoError(t, err)
	assert.Len(t, items, DefaultTopK)
}

func TestRetriever_LazyVectorize(t *testing.T) {
	item := &domain.KnowledgeItem{ID: "bare", Title: "Bare", Content: "no vector yet", Version: 1}
	embedder := &queueEmbedder{vectors: [][]float32{{1, 0}, {1, 0}}, dims: 2}

	items, err := NewRetriever(embedder).Retrieve(context.Background(), "query", []*domain.KnowledgeItem{item})

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []float32{1, 0}, item.Embedding)
	assert.Equal(t, int64(2), item.Version)
	assert.Equal(t, 2, embedder.calls)
}

func TestRetriever_LazyVectorizeDisabledSkipsItem(t *testing.T) {
	kb := []*domain.KnowledgeItem{
		{ID: "bare", Title: "Bare", Content: "no vector"},
		embeddedItem("good", []float32{1, 0}),
	}
	embedder := &queueEmbedder{vectors: [][]float32{{1, 0}}, dims: 2}
	cfg := DefaultRetrieverConfig()
	cfg.LazyVectorize = false

	items, err := NewRetrieverWithConfig(embedder, cfg).Retrieve(context.Background(), "query", kb)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "good", items[0].ID)
	assert.Equal(t, 1, embedder.calls)
}

func TestRetriever_FallsBackToKeyword(t *testing.T) {
	kb := []*domain.KnowledgeItem{
		kbItem("Installation Guide", "How to install"),
		kbItem("User Manual", "How to use"),
	}
	embedder := &queueEmbedder{err: domain.ErrCredentialMissing, dims: 2}

	items, err := NewRetriever(embedder).Retrieve(context.Background(), "installation", kb)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Installation Guide", items[0].Title)
}

func TestRetriever_NilEmbedderIsKeywordOnly(t *testing.T) {
	kb := []*domain.KnowledgeItem{
		kbItem("Installation Guide", "How to install"),
	}

	items, err := NewRetriever(nil).Retrieve(context.Background(), "installation", kb)

	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestRetriever_EmptyQueryOrBase(t *testing.T) {
	embedder := &queueEmbedder{dims: 2}
	retriever := NewRetriever(embedder)

	items, err := retriever.Retrieve(context.Background(), "  ", []*domain.KnowledgeItem{kbItem("A", "b")})
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = retriever.Retrieve(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, embedder.calls)
}

func TestEmbeddingText(t *testing.T) {
	item := &domain.KnowledgeItem{Title: "Guide", Content: "Body", Tags: []string{"a", "b"}}
	assert.Equal(t, "Guide\n\nBody\n\nTags: a, b", EmbeddingText(item))

	bare := &domain.KnowledgeItem{Content: "Body"}
	assert.Equal(t, "Body", EmbeddingText(bare))
}
