package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api"
)

// BatchEmbedder generates one embedding per input text, in input order
type BatchEmbedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

type EmbedHandler struct {
	embedder BatchEmbedder
}

func NewEmbedHandler(embedder BatchEmbedder) *EmbedHandler {
	return &EmbedHandler{embedder: embedder}
}

type EmbedRequest struct {
	Texts []string `json:"texts"`
}

type EmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimensions int         `json:"dimensions"`
}

func (h *EmbedHandler) Embed(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Texts) == 0 {
		api.Error(w, http.StatusBadRequest, "texts is required")
		return
	}
	for _, text := range req.Texts {
		if text == "" {
			api.Error(w, http.StatusBadRequest, "texts must be non-empty")
			return
		}
	}

	embeddings, err := h.embedder.GenerateEmbeddings(r.Context(), req.Texts)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, EmbedResponse{
		Embeddings: embeddings,
		Dimensions: h.embedder.Dimensions(),
	})
}
