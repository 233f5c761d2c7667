package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/telemetry"
)

const (
	// DefaultSimilarityThreshold excludes unrelated matches while still
	// tolerating paraphrased questions.
	DefaultSimilarityThreshold = 0.3
	// DefaultTopK bounds how many items ground a single answer
	DefaultTopK = 5
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// RetrieverConfig holds retrieval tuning knobs
type RetrieverConfig struct {
	SimilarityThreshold float64
	TopK                int

	// LazyVectorize re-embeds items that reach query time without a valid
	// vector. The ingestion worker normally leaves nothing for this to do,
	// but it keeps retrieval self-healing when a job was lost.
	LazyVectorize bool
}

// DefaultRetrieverConfig returns the standard retrieval configuration
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		SimilarityThreshold: DefaultSimilarityThreshold,
		TopK:                DefaultTopK,
		LazyVectorize:       true,
	}
}

// Retriever selects the knowledge items most relevant to a query. Vector
// search is tried first; any embedding failure falls back to lexical scoring
// so retrieval stays useful without the provider.
type Retriever struct {
	embedding EmbeddingClient
	cfg       RetrieverConfig
}

// NewRetriever creates a retriever with default configuration. A nil
// embedding client is valid and means keyword-only retrieval.
func NewRetriever(embedding EmbeddingClient) *Retriever {
	return NewRetrieverWithConfig(embedding, DefaultRetrieverConfig())
}

// NewRetrieverWithConfig creates a retriever with explicit configuration
func NewRetrieverWithConfig(embedding EmbeddingClient, cfg RetrieverConfig) *Retriever {
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Retriever{embedding: embedding, cfg: cfg}
}

// retrievalStrategy is one ranked-retrieval attempt. Strategies are tried in
// order; the first that succeeds wins.
type retrievalStrategy struct {
	name string
	run  func(ctx context.Context, query string, items []*domain.KnowledgeItem) ([]*domain.ScoredItem, error)
}

// Retrieve returns the most relevant knowledge items, best first, at most
// TopK. It never fails: the lexical strategy has no error paths.
func (r *Retriever) Retrieve(ctx context.Context, query string, items []*domain.KnowledgeItem) ([]*domain.KnowledgeItem, error) {
	scored, err := r.RetrieveScored(ctx, query, items)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.KnowledgeItem, len(scored))
	for i, s := range scored {
		result[i] = s.Item
	}
	return result, nil
}

// RetrieveScored is Retrieve with scores attached, for callers that surface
// relevance to operators.
func (r *Retriever) RetrieveScored(ctx context.Context, query string, items []*domain.KnowledgeItem) ([]*domain.ScoredItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "retriever.retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" || len(items) == 0 {
		return []*domain.ScoredItem{}, nil
	}

	strategies := []retrievalStrategy{
		{name: "semantic", run: r.rankSemantic},
		{name: "keyword", run: r.rankKeyword},
	}

	var lastErr error
	for _, strategy := range strategies {
		scored, err := strategy.run(ctx, query, items)
		if err != nil {
			log.Printf("retriever: %s strategy failed, trying next: %v", strategy.name, err)
			lastErr = err
			continue
		}
		return capTopK(scored, r.cfg.TopK), nil
	}

	return nil, fmt.Errorf("all retrieval strategies failed: %w", lastErr)
}

// rankSemantic embeds the query and ranks items by cosine similarity. Any
// embedding failure aborts the whole strategy so the caller falls back to
// lexical ranking.
func (r *Retriever) rankSemantic(ctx context.Context, query string, items []*domain.KnowledgeItem) ([]*domain.ScoredItem, error) {
	if r.embedding == nil {
		return nil, domain.ErrCredentialMissing
	}

	queryVec, err := r.embedding.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	dimensions := r.embedding.Dimensions()

	scored := make([]*domain.ScoredItem, 0, len(items))
	for _, item := range items {
		if !item.HasValidEmbedding(dimensions) {
			if !r.cfg.LazyVectorize {
				continue
			}
			vec, err := r.embedding.GenerateEmbedding(ctx, EmbeddingText(item))
			if err != nil {
				return nil, fmt.Errorf("vectorize item %s: %w", item.ID, err)
			}
			// Last-writer-wins: concurrent retrievals may both re-embed
			// the same item, which wastes a call but stays correct.
			item.Embedding = vec
			item.Version++
		}

		score := CosineSimilarity(queryVec, item.Embedding)
		if score > r.cfg.SimilarityThreshold {
			scored = append(scored, &domain.ScoredItem{Item: item, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored, nil
}

func (r *Retriever) rankKeyword(_ context.Context, query string, items []*domain.KnowledgeItem) ([]*domain.ScoredItem, error) {
	return RankByKeyword(query, items), nil
}

func capTopK(scored []*domain.ScoredItem, topK int) []*domain.ScoredItem {
	if len(scored) > topK {
		return scored[:topK]
	}
	return scored
}

// EmbeddingText builds the canonical text representation of an item for
// vectorization. Used at ingestion time and by lazy re-vectorization, so
// both paths produce comparable vectors.
func EmbeddingText(item *domain.KnowledgeItem) string {
	parts := make([]string, 0, 3)
	if item.Title != "" {
		parts = append(parts, item.Title)
	}
	if item.Content != "" {
		parts = append(parts, item.Content)
	}
	if len(item.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(item.Tags, ", "))
	}
	return strings.Join(parts, "\n\n")
}
