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
	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/repository"
)

func projectRequest(method, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/project", nil)
	} else {
		req = httptest.NewRequest(method, "/project", strings.NewReader(body))
	}
	ctx := context.WithValue(req.Context(), middleware.ProjectIDKey, "proj-1")
	return req.WithContext(ctx)
}

func TestProjectHandler_GetUnconfiguredReturnsDefaults(t *testing.T) {
	handler := NewProjectHandler(repository.NewMemoryProjectStore())

	rec := httptest.NewRecorder()
	handler.Get(rec, projectRequest(http.MethodGet, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[*ProjectResponse](t, rec)
	assert.Equal(t, "proj-1", resp.ID)
	assert.Equal(t, "zhipu", resp.Provider)
	assert.False(t, resp.MultimodalEnabled)
}

func TestProjectHandler_UpdateThenGet(t *testing.T) {
	store := repository.NewMemoryProjectStore()
	handler := NewProjectHandler(store)

	rec := httptest.NewRecorder()
	handler.Update(rec, projectRequest(http.MethodPut, `{"system_instruction":"Answer in Chinese.","multimodal_enabled":true}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.Get(rec, projectRequest(http.MethodGet, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeData[*ProjectResponse](t, rec)
	assert.Equal(t, "Answer in Chinese.", resp.SystemInstruction)
	assert.True(t, resp.MultimodalEnabled)
	assert.Equal(t, "zhipu", resp.Provider)

	stored, err := store.Get(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "Answer in Chinese.", stored.SystemInstruction)
}

func TestProjectHandler_UpdateMalformedBody(t *testing.T) {
	handler := NewProjectHandler(repository.NewMemoryProjectStore())

	rec := httptest.NewRecorder()
	handler.Update(rec, projectRequest(http.MethodPut, `{broken`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectHandler_DisablingMultimodalPersists(t *testing.T) {
	store := repository.NewMemoryProjectStore()
	require.NoError(t, store.Upsert(context.Background(), &domain.ProjectConfig{
		ID: "proj-1", Provider: "zhipu", MultimodalEnabled: true,
	}))
	handler := NewProjectHandler(store)

	rec := httptest.NewRecorder()
	handler.Update(rec, projectRequest(http.MethodPut, `{"multimodal_enabled":false}`))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := store.Get(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.False(t, stored.MultimodalEnabled)
}
