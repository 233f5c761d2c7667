package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/middleware"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// KnowledgeStore is the persistence surface the knowledge endpoints need
type KnowledgeStore interface {
	Create(ctx context.Context, item *domain.KnowledgeItem) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.KnowledgeItem, error)
	Update(ctx context.Context, item *domain.KnowledgeItem) error
	Delete(ctx context.Context, id string) error
}

// VectorizeEnqueuer schedules ingestion-time embedding generation
type VectorizeEnqueuer interface {
	Create(ctx context.Context, job *domain.VectorizeJob) error
}

type KnowledgeHandler struct {
	store KnowledgeStore
	jobs  VectorizeEnqueuer
}

// NewKnowledgeHandler creates a knowledge handler. A nil job store disables
// ingestion-time vectorization; retrieval then vectorizes lazily.
func NewKnowledgeHandler(store KnowledgeStore, jobs VectorizeEnqueuer) *KnowledgeHandler {
	return &KnowledgeHandler{store: store, jobs: jobs}
}

type CreateKnowledgeRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Type    string   `json:"type,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type UpdateKnowledgeRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Type    string   `json:"type,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type KnowledgeResponse struct {
	ID         string   `json:"id"`
	ProjectID  string   `json:"project_id"`
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	Vectorized bool     `json:"vectorized"`
	Version    int64    `json:"version"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

type ListKnowledgeResponse struct {
	Items []*KnowledgeResponse `json:"items"`
	Total int                  `json:"total"`
}

func knowledgeToResponse(item *domain.KnowledgeItem) *KnowledgeResponse {
	return &KnowledgeResponse{
		ID:         item.ID,
		ProjectID:  item.ProjectID,
		Type:       string(item.Type),
		Title:      item.Title,
		Content:    item.Content,
		Tags:       item.Tags,
		Vectorized: len(item.Embedding) > 0,
		Version:    item.Version,
		CreatedAt:  item.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:  item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	itemType := domain.KnowledgeItemType(req.Type)
	if req.Type == "" {
		itemType = domain.KnowledgeItemTypeText
	}

	item := domain.NewKnowledgeItem(
		uuid.NewString(),
		middleware.GetProjectID(r.Context()),
		itemType,
		req.Title,
		req.Content,
		req.Tags,
		time.Now().UTC(),
	)

	if err := domain.ValidateKnowledgeItem(item); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), item); err != nil {
		api.HandleError(w, err)
		return
	}

	h.enqueueVectorize(r.Context(), item.ID)

	api.Success(w, http.StatusCreated, knowledgeToResponse(item))
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListByProject(r.Context(), middleware.GetProjectID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*KnowledgeResponse, len(items))
	for i, item := range items {
		responses[i] = knowledgeToResponse(item)
	}

	api.Success(w, http.StatusOK, ListKnowledgeResponse{Items: responses, Total: len(responses)})
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	item, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeToResponse(item))
}

// Update replaces an item's content. The store clears the stored embedding and
// bumps the version; a fresh vectorize job brings the vector back in line.
func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	item.Title = req.Title
	item.Content = req.Content
	item.Tags = req.Tags
	if req.Type != "" {
		item.Type = domain.KnowledgeItemType(req.Type)
	}
	item.UpdatedAt = time.Now().UTC()

	if err := domain.ValidateKnowledgeItem(item); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Update(r.Context(), item); err != nil {
		api.HandleError(w, err)
		return
	}

	h.enqueueVectorize(r.Context(), item.ID)

	updated, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeToResponse(updated))
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

// enqueueVectorize schedules embedding generation. Failures are logged, not
// surfaced: the item is already saved and retrieval self-heals lazily.
func (h *KnowledgeHandler) enqueueVectorize(ctx context.Context, knowledgeItemID string) {
	if h.jobs == nil {
		return
	}

	job := domain.NewVectorizeJob(
		uuid.NewString(),
		knowledgeItemID,
		domain.VectorizeJobStatusPending,
		0,
		"",
		time.Now().UTC(),
		nil,
	)
	if err := h.jobs.Create(ctx, job); err != nil {
		log.Printf("knowledge: failed to enqueue vectorize job for item %s: %v", knowledgeItemID, err)
	}
}
