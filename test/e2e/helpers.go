//go:build e2e

package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/handlers"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/jobs"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/repository"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/server"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/service"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/zhipu"
)

const fakeEmbeddingDims = 8

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	Knowledge    *repository.MemoryKnowledgeStore
	Projects     *repository.MemoryProjectStore
	Jobs         *repository.MemoryVectorizeJobStore
	Provider     *httptest.Server
	ServerURL    string
	ServerCloser func()
	Worker       *jobs.Worker
	HTTPClient   *http.Client
}

// SetupE2EEnv starts a fake GLM provider and a full in-process server wired
// against it, on the in-memory stores.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	provider := newFakeGLMProvider()

	knowledge := repository.NewMemoryKnowledgeStore()
	projects := repository.NewMemoryProjectStore()
	jobStore := repository.NewMemoryVectorizeJobStore()

	glm := zhipu.NewClient(zhipu.Config{
		APIKey:              "test-key",
		BaseURL:             provider.URL,
		EmbeddingDimensions: fakeEmbeddingDims,
	})

	retriever := service.NewRetrieverWithConfig(glm, service.RetrieverConfig{
		SimilarityThreshold: 0.3,
		TopK:                5,
		LazyVectorize:       true,
	})

	orchestrator := service.NewOrchestratorWithConfig(
		retriever,
		&glmStreamerAdapter{client: glm},
		glm,
		service.OrchestratorConfig{CoalesceInterval: 5 * time.Millisecond, RespondTimeout: 30 * time.Second},
	)

	vectorizeSvc := service.NewVectorizeService(glm, knowledge)
	processor := jobs.NewVectorizeWorker(jobStore, vectorizeSvc)
	worker := jobs.NewWorker(processor, 50*time.Millisecond)
	go worker.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:      handlers.NewChatHandler(orchestrator, projects, knowledge),
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledge, jobStore),
		RetrieveHandler:  handlers.NewRetrieveHandler(retriever, knowledge),
		EmbedHandler:     handlers.NewEmbedHandler(glm),
		ProjectHandler:   handlers.NewProjectHandler(projects),
	})

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		Knowledge: knowledge,
		Projects:  projects,
		Jobs:      jobStore,
		Provider:  provider,
		ServerURL: serverURL,
		ServerCloser: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		},
		Worker:     worker,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Worker != nil {
		e.Worker.Stop()
	}
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Provider != nil {
		e.Provider.Close()
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, projectID string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, projectID)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, projectID string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, projectID)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}, projectID string) (*APIResponse, error) {
	return e.doRequest("PUT", path, body, projectID)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, projectID string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, projectID)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, projectID string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if projectID != "" {
		req.Header.Set("X-Project-ID", projectID)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// Chat posts one chat turn and returns the decoded SSE text frames plus
// whether a [DONE] sentinel arrived.
func (e *E2ETestEnv) Chat(projectID string, body interface{}) (string, bool, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", false, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if projectID != "" {
		req.Header.Set("X-Project-ID", projectID)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}

	var text strings.Builder
	doneSeen := false

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			doneSeen = true
			break
		}
		var frame struct {
			Text string `json:"text"`
			Done bool   `json:"done"`
		}
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			return "", false, fmt.Errorf("bad SSE frame %q: %w", payload, err)
		}
		text.WriteString(frame.Text)
	}
	if err := scanner.Err(); err != nil {
		return "", false, err
	}

	return text.String(), doneSeen, nil
}

// glmStreamerAdapter narrows the provider client to the orchestrator's
// streaming interface.
type glmStreamerAdapter struct {
	client *zhipu.Client
}

func (a *glmStreamerAdapter) HasCredential() bool {
	return a.client.HasCredential()
}

func (a *glmStreamerAdapter) StreamCompletion(ctx context.Context, req service.CompletionRequest) (service.ChunkStream, error) {
	return a.client.StreamChatCompletion(ctx, zhipu.ChatStreamRequest{
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		History:      req.History,
	})
}

// newFakeGLMProvider serves the two provider endpoints the pipeline touches:
// /embeddings with deterministic vocabulary-presence vectors, and a streaming
// /chat/completions that echoes whether the prompt carried context.
func newFakeGLMProvider() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type embeddingData struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]embeddingData, len(req.Input))
		for i, text := range req.Input {
			data[i] = embeddingData{Object: "embedding", Embedding: fakeEmbed(text), Index: i}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  "embedding-3",
		})
	})

	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		answer := "Answer without context."
		for _, m := range req.Messages {
			if m.Role == "user" && strings.Contains(m.Content, "[Knowledge Item 1:") {
				answer = "Grounded answer from the knowledge base."
				break
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, word := range strings.SplitAfter(answer, " ") {
			frame := map[string]interface{}{
				"choices": []map[string]interface{}{
					{"delta": map[string]string{"content": word}},
				},
			}
			payload, _ := json.Marshal(frame)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	return httptest.NewServer(mux)
}

// fakeEmbed maps text onto a fixed vocabulary, one dimension per word. Texts
// sharing vocabulary land close in cosine space and unrelated texts score
// zero, which makes retrieval ordering in the tests deterministic.
func fakeEmbed(text string) []float32 {
	vocabulary := [fakeEmbeddingDims]string{
		"install", "warranty", "power", "coverage", "device", "prompts", "app", "plug",
	}

	lower := strings.ToLower(text)
	vec := make([]float32, fakeEmbeddingDims)
	for i, word := range vocabulary {
		if strings.Contains(lower, word) {
			vec[i] = 1
		}
	}
	return vec
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
