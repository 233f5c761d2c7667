package service

import (
	"context"
	"fmt"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/telemetry"
)

// KnowledgeEmbeddingStore is the store surface the vectorizer needs
type KnowledgeEmbeddingStore interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// VectorizeService embeds knowledge items at ingestion time so retrieval
// rarely needs the lazy query-time path.
type VectorizeService struct {
	embedding EmbeddingClient
	store     KnowledgeEmbeddingStore
}

// NewVectorizeService creates a vectorize service
func NewVectorizeService(embedding EmbeddingClient, store KnowledgeEmbeddingStore) *VectorizeService {
	return &VectorizeService{embedding: embedding, store: store}
}

// VectorizeItem computes and persists the embedding for one knowledge item.
// Persisting bumps the item version, invalidating any cached copy.
func (s *VectorizeService) VectorizeItem(ctx context.Context, knowledgeItemID string) error {
	ctx, span := telemetry.StartSpan(ctx, "vectorize.item", telemetry.SpanAttributes{
		KnowledgeItemID: knowledgeItemID,
		Operation:       "vectorize",
	})
	defer span.End()

	if s.embedding == nil {
		return domain.ErrCredentialMissing
	}

	item, err := s.store.GetByID(ctx, knowledgeItemID)
	if err != nil {
		return fmt.Errorf("load knowledge item: %w", err)
	}

	text := EmbeddingText(item)
	if text == "" {
		return domain.ErrEmptyText
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("generate embedding: %w", err)
	}

	if err := s.store.UpdateEmbedding(ctx, item.ID, embedding); err != nil {
		return fmt.Errorf("persist embedding: %w", err)
	}

	return nil
}
