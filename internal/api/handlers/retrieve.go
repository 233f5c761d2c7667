package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/middleware"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// ScoredRetriever ranks knowledge items against a query
type ScoredRetriever interface {
	RetrieveScored(ctx context.Context, query string, items []*domain.KnowledgeItem) ([]*domain.ScoredItem, error)
}

// RetrieveHandler exposes the retrieval pipeline directly, for operators
// tuning a knowledge base: it shows which items would ground an answer and
// how strongly, without running a model turn.
type RetrieveHandler struct {
	retriever ScoredRetriever
	knowledge KnowledgeLister
}

func NewRetrieveHandler(retriever ScoredRetriever, knowledge KnowledgeLister) *RetrieveHandler {
	return &RetrieveHandler{retriever: retriever, knowledge: knowledge}
}

type RetrieveRequest struct {
	Query string `json:"query"`
}

type RetrievedItemResponse struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type RetrieveResponse struct {
	Items []RetrievedItemResponse `json:"items"`
}

func (h *RetrieveHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	items, err := h.knowledge.ListByProject(r.Context(), middleware.GetProjectID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	scored, err := h.retriever.RetrieveScored(r.Context(), req.Query, items)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]RetrievedItemResponse, len(scored))
	for i, s := range scored {
		responses[i] = RetrievedItemResponse{
			ID:    s.Item.ID,
			Title: s.Item.Title,
			Score: s.Score,
		}
	}

	api.Success(w, http.StatusOK, RetrieveResponse{Items: responses})
}
