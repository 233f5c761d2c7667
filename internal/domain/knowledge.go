package domain

import (
	"fmt"
	"time"
)

// KnowledgeItemType represents the media type of a knowledge item
type KnowledgeItemType string

const (
	KnowledgeItemTypeText  KnowledgeItemType = "text"
	KnowledgeItemTypeImage KnowledgeItemType = "image"
	KnowledgeItemTypeVideo KnowledgeItemType = "video"
	KnowledgeItemTypePDF   KnowledgeItemType = "pdf"
	KnowledgeItemTypeDoc   KnowledgeItemType = "doc"
)

// KnowledgeItem represents a unit of groundable knowledge in a project's
// knowledge base. Content is the primary retrieval target; Embedding is
// populated by a vectorization step and may be absent or stale.
type KnowledgeItem struct {
	ID        string
	ProjectID string
	Type      KnowledgeItemType
	Title     string
	Content   string
	Tags      []string
	Embedding []float32
	// Version is bumped on re-vectorization so cached embeddings can be
	// invalidated downstream.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScoredItem pairs a knowledge item with a relevance score for one retrieval
// call. Never persisted.
type ScoredItem struct {
	Item  *KnowledgeItem
	Score float64
}

// NewKnowledgeItem creates a new KnowledgeItem instance
func NewKnowledgeItem(
	id, projectID string,
	itemType KnowledgeItemType,
	title, content string,
	tags []string,
	createdAt time.Time,
) *KnowledgeItem {
	return &KnowledgeItem{
		ID:        id,
		ProjectID: projectID,
		Type:      itemType,
		Title:     title,
		Content:   content,
		Tags:      tags,
		Version:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// HasValidEmbedding reports whether the item carries an embedding of the
// configured dimension. Any other length is treated as "not vectorized".
func (k *KnowledgeItem) HasValidEmbedding(dimensions int) bool {
	return dimensions > 0 && len(k.Embedding) == dimensions
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(k *KnowledgeItem) error {
	if k == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}

	if k.ID == "" {
		return fmt.Errorf("knowledge item ID is required")
	}

	if k.Title == "" {
		return fmt.Errorf("knowledge item Title is required")
	}

	if k.Content == "" {
		return fmt.Errorf("knowledge item Content is required")
	}

	if !isValidKnowledgeItemType(k.Type) {
		return fmt.Errorf("knowledge item Type is invalid: %s", k.Type)
	}

	return nil
}

// isValidKnowledgeItemType checks if a KnowledgeItemType is valid
func isValidKnowledgeItemType(t KnowledgeItemType) bool {
	switch t {
	case KnowledgeItemTypeText, KnowledgeItemTypeImage, KnowledgeItemTypeVideo,
		KnowledgeItemTypePDF, KnowledgeItemTypeDoc:
		return true
	}
	return false
}
