package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/middleware"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/service"
)

// Responder runs one assistant turn and delivers ordered chunks
type Responder interface {
	Respond(ctx context.Context, input service.RespondInput, onChunk service.ChunkHandler)
}

// ProjectLoader resolves per-project configuration
type ProjectLoader interface {
	Get(ctx context.Context, id string) (*domain.ProjectConfig, error)
}

// KnowledgeLister loads a project's knowledge base for retrieval
type KnowledgeLister interface {
	ListByProject(ctx context.Context, projectID string) ([]*domain.KnowledgeItem, error)
}

type ChatHandler struct {
	responder Responder
	projects  ProjectLoader
	knowledge KnowledgeLister
}

func NewChatHandler(responder Responder, projects ProjectLoader, knowledge KnowledgeLister) *ChatHandler {
	return &ChatHandler{responder: responder, projects: projects, knowledge: knowledge}
}

type ChatHistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message  string             `json:"message"`
	ImageURL string             `json:"image_url,omitempty"`
	History  []ChatHistoryEntry `json:"history,omitempty"`
}

// chatChunkFrame is one SSE data frame sent to the widget
type chatChunkFrame struct {
	Text         string `json:"text,omitempty"`
	Done         bool   `json:"done,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Respond streams one assistant turn as server-sent events. Each chunk is a
// `data:` frame with a JSON body; the stream ends with `data: [DONE]`.
func (h *ChatHandler) Respond(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Message == "" && req.ImageURL == "" {
		api.Error(w, http.StatusBadRequest, "message or image_url is required")
		return
	}

	projectID := middleware.GetProjectID(r.Context())

	project := h.loadProject(r.Context(), projectID)
	items := h.loadKnowledge(r.Context(), projectID)

	history := make([]domain.ChatMessage, 0, len(req.History))
	for _, entry := range req.History {
		role := domain.ChatRole(entry.Role)
		if entry.Content == "" {
			continue
		}
		if role != domain.ChatRoleUser && role != domain.ChatRoleAssistant {
			continue
		}
		history = append(history, domain.ChatMessage{
			ID:        uuid.NewString(),
			Role:      role,
			Content:   entry.Content,
			Timestamp: time.Now().UTC(),
		})
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Comment frame confirms the stream is open before the first chunk.
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	input := service.RespondInput{
		Message:       req.Message,
		ImageURL:      req.ImageURL,
		History:       history,
		KnowledgeBase: items,
		Project:       project,
	}

	h.responder.Respond(r.Context(), input, func(chunk domain.StreamChunk) {
		frame := chatChunkFrame{
			Text:         chunk.Text,
			Done:         chunk.Done,
			FinishReason: chunk.FinishReason,
		}
		payload, err := json.Marshal(frame)
		if err != nil {
			return
		}
		w.Write([]byte("data: "))
		w.Write(payload)
		w.Write([]byte("\n\n"))
		if chunk.Done {
			w.Write([]byte("data: [DONE]\n\n"))
		}
		flusher.Flush()
	})
}

// loadProject falls back to an empty per-project config when none is stored;
// a missing project row is a normal single-tenant state, not an error.
func (h *ChatHandler) loadProject(ctx context.Context, projectID string) domain.ProjectConfig {
	if h.projects == nil {
		return domain.ProjectConfig{ID: projectID}
	}
	project, err := h.projects.Get(ctx, projectID)
	if err != nil || project == nil {
		return domain.ProjectConfig{ID: projectID}
	}
	return *project
}

// loadKnowledge treats a store failure as an empty knowledge base so the turn
// still completes; the orchestrator answers with the no-match prompt instead.
func (h *ChatHandler) loadKnowledge(ctx context.Context, projectID string) []*domain.KnowledgeItem {
	if h.knowledge == nil {
		return nil
	}
	items, err := h.knowledge.ListByProject(ctx, projectID)
	if err != nil {
		return nil
	}
	return items
}
