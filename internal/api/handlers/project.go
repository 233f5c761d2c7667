package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/middleware"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// ProjectStore reads and writes per-project configuration
type ProjectStore interface {
	Get(ctx context.Context, id string) (*domain.ProjectConfig, error)
	Upsert(ctx context.Context, cfg *domain.ProjectConfig) error
}

type ProjectHandler struct {
	store ProjectStore
}

func NewProjectHandler(store ProjectStore) *ProjectHandler {
	return &ProjectHandler{store: store}
}

type ProjectResponse struct {
	ID                string `json:"id"`
	Provider          string `json:"provider"`
	SystemInstruction string `json:"system_instruction,omitempty"`
	MultimodalEnabled bool   `json:"multimodal_enabled"`
}

type UpdateProjectRequest struct {
	Provider          string `json:"provider,omitempty"`
	SystemInstruction string `json:"system_instruction,omitempty"`
	MultimodalEnabled bool   `json:"multimodal_enabled"`
}

func projectToResponse(cfg *domain.ProjectConfig) *ProjectResponse {
	return &ProjectResponse{
		ID:                cfg.ID,
		Provider:          cfg.Provider,
		SystemInstruction: cfg.SystemInstruction,
		MultimodalEnabled: cfg.MultimodalEnabled,
	}
}

// Get returns the calling project's configuration. A project that was never
// configured reads back as defaults rather than 404: the widget works out of
// the box.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID := middleware.GetProjectID(r.Context())

	cfg, err := h.store.Get(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			api.Success(w, http.StatusOK, projectToResponse(&domain.ProjectConfig{
				ID:       projectID,
				Provider: "zhipu",
			}))
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, projectToResponse(cfg))
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = "zhipu"
	}

	cfg := &domain.ProjectConfig{
		ID:                middleware.GetProjectID(r.Context()),
		Provider:          provider,
		SystemInstruction: req.SystemInstruction,
		MultimodalEnabled: req.MultimodalEnabled,
	}

	if err := h.store.Upsert(r.Context(), cfg); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, projectToResponse(cfg))
}
