package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/handlers"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/middleware"
)

type RouterConfig struct {
	ChatHandler      *handlers.ChatHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	RetrieveHandler  *handlers.RetrieveHandler
	EmbedHandler     *handlers.EmbedHandler
	ProjectHandler   *handlers.ProjectHandler

	// MediaHandler is nil when no object storage is configured; the media
	// routes are then not mounted.
	MediaHandler *handlers.MediaHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))
	r.Use(middleware.ProjectScope)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/chat", cfg.ChatHandler.Respond)

	r.Route("/knowledge", func(r chi.Router) {
		r.Post("/", cfg.KnowledgeHandler.Create)
		r.Get("/", cfg.KnowledgeHandler.List)
		r.Get("/{id}", cfg.KnowledgeHandler.Get)
		r.Put("/{id}", cfg.KnowledgeHandler.Update)
		r.Delete("/{id}", cfg.KnowledgeHandler.Delete)
	})

	r.Post("/retrieve", cfg.RetrieveHandler.Retrieve)
	r.Post("/embed", cfg.EmbedHandler.Embed)

	r.Route("/project", func(r chi.Router) {
		r.Get("/", cfg.ProjectHandler.Get)
		r.Put("/", cfg.ProjectHandler.Update)
	})

	if cfg.MediaHandler != nil {
		r.Route("/media", func(r chi.Router) {
			r.Post("/upload", cfg.MediaHandler.InitUpload)
			r.Get("/download", cfg.MediaHandler.GetDownloadURL)
		})
	}

	return r
}
