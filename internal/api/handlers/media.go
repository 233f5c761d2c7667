package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/middleware"
)

// MediaStorage presigns uploads and downloads against object storage
type MediaStorage interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// MediaHandler hands out presigned URLs so the widget can upload chat image
// attachments directly to object storage and pass the resulting URL into a
// multimodal turn. The server never proxies the bytes.
type MediaHandler struct {
	storage MediaStorage
}

func NewMediaHandler(storage MediaStorage) *MediaHandler {
	return &MediaHandler{storage: storage}
}

type MediaUploadRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

type MediaUploadResponse struct {
	StorageKey string `json:"storage_key"`
	UploadURL  string `json:"upload_url"`
}

type MediaDownloadResponse struct {
	DownloadURL string `json:"download_url"`
}

func (h *MediaHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	var req MediaUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.MimeType == "" {
		api.Error(w, http.StatusBadRequest, "mime_type is required")
		return
	}
	if !strings.HasPrefix(req.MimeType, "image/") {
		api.Error(w, http.StatusBadRequest, "only image attachments are supported")
		return
	}

	projectID := middleware.GetProjectID(r.Context())
	key := fmt.Sprintf("media/%s/%s/%s", projectID, uuid.NewString(), req.Filename)

	uploadURL, err := h.storage.GenerateUploadURL(r.Context(), key, req.MimeType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, MediaUploadResponse{
		StorageKey: key,
		UploadURL:  uploadURL,
	})
}

func (h *MediaHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		api.Error(w, http.StatusBadRequest, "key is required")
		return
	}

	// Keys are project-scoped; a widget can only mint URLs for its own media.
	projectID := middleware.GetProjectID(r.Context())
	if !strings.HasPrefix(key, "media/"+projectID+"/") {
		api.Error(w, http.StatusNotFound, "media not found")
		return
	}

	downloadURL, err := h.storage.GenerateDownloadURL(r.Context(), key)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, MediaDownloadResponse{DownloadURL: downloadURL})
}
