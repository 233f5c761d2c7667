package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/middleware"
)

type stubMediaStorage struct {
	uploadURL   string
	downloadURL string
	err         error
	lastKey     string
}

func (s *stubMediaStorage) GenerateUploadURL(_ context.Context, key, _ string) (string, error) {
	s.lastKey = key
	return s.uploadURL, s.err
}

func (s *stubMediaStorage) GenerateDownloadURL(_ context.Context, key string) (string, error) {
	s.lastKey = key
	return s.downloadURL, s.err
}

func mediaRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := context.WithValue(req.Context(), middleware.ProjectIDKey, "proj-1")
	return req.WithContext(ctx)
}

func TestMediaHandler_InitUpload(t *testing.T) {
	storage := &stubMediaStorage{uploadURL: "https://storage.example.com/put"}
	handler := NewMediaHandler(storage)

	rec := httptest.NewRecorder()
	handler.InitUpload(rec, mediaRequest(http.MethodPost, "/media/upload", `{"filename":"photo.png","mime_type":"image/png"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[MediaUploadResponse](t, rec)
	assert.Equal(t, "https://storage.example.com/put", resp.UploadURL)
	assert.True(t, strings.HasPrefix(resp.StorageKey, "media/proj-1/"))
	assert.True(t, strings.HasSuffix(resp.StorageKey, "/photo.png"))
}

func TestMediaHandler_InitUploadValidation(t *testing.T) {
	handler := NewMediaHandler(&stubMediaStorage{})

	for name, body := range map[string]string{
		"missing filename": `{"mime_type":"image/png"}`,
		"missing mime":     `{"filename":"a.png"}`,
		"non-image":        `{"filename":"a.pdf","mime_type":"application/pdf"}`,
		"malformed":        `{bad`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.InitUpload(rec, mediaRequest(http.MethodPost, "/media/upload", body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMediaHandler_DownloadURLScopedToProject(t *testing.T) {
	storage := &stubMediaStorage{downloadURL: "https://storage.example.com/get"}
	handler := NewMediaHandler(storage)

	rec := httptest.NewRecorder()
	handler.GetDownloadURL(rec, mediaRequest(http.MethodGet, "/media/download?key=media/proj-1/abc/photo.png", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[MediaDownloadResponse](t, rec)
	assert.Equal(t, "https://storage.example.com/get", resp.DownloadURL)

	// Another project's key must not resolve.
	rec = httptest.NewRecorder()
	handler.GetDownloadURL(rec, mediaRequest(http.MethodGet, "/media/download?key=media/proj-2/abc/photo.png", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMediaHandler_DownloadURLRequiresKey(t *testing.T) {
	handler := NewMediaHandler(&stubMediaStorage{})

	rec := httptest.NewRecorder()
	handler.GetDownloadURL(rec, mediaRequest(http.MethodGet, "/media/download", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
