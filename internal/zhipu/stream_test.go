package zhipu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

func newStreamTestClient(baseURL string) *Client {
	return NewClient(Config{APIKey: "test-key", BaseURL: baseURL})
}

func newSSEServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			_, _ = w.Write([]byte(frame))
			flusher.Flush()
		}
	}))
}

func collectChunks(t *testing.T, stream *ChatStream) []domain.StreamChunk {
	t.Helper()
	var chunks []domain.StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatal("timed out waiting for stream chunks")
		}
	}
}

func TestStreamChatCompletion_DeltaThenDone(t *testing.T) {
	server := newSSEServer(t, []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n",
		"data: [DONE]\n\n",
	})
	defer server.Close()

	client := newStreamTestClient(server.URL)
	stream, err := client.StreamChatCompletion(context.Background(), ChatStreamRequest{UserPrompt: "hello"})
	require.NoError(t, err)

	chunks := collectChunks(t, stream)

	require.Len(t, chunks, 2)
	assert.Equal(t, domain.StreamChunk{Text: "Hi"}, chunks[0])
	assert.Equal(t, domain.StreamChunk{Done: true, FinishReason: "stop"}, chunks[1])
	assert.NoError(t, stream.Err())
}

func TestStreamChatCompletion_FinishReasonFrame(t *testing.T) {
	server := newSSEServer(t, []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"length\"}]}\n\n",
		"data: [DONE]\n\n",
	})
	defer server.Close()

	client := newStreamTestClient(server.URL)
	stream, err := client.StreamChatCompletion(context.Background(), ChatStreamRequest{UserPrompt: "hello"})
	require.NoError(t, err)

	chunks := collectChunks(t, stream)

	require.Len(t, chunks, 2)
	assert.Equal(t, "partial", chunks[0].Text)
	assert.True(t, chunks[1].Done)
	assert.Equal(t, "length", chunks[1].FinishReason)
	assert.NoError(t, stream.Err())
}

func TestStreamChatCompletion_MalformedFrameSkipped(t *testing.T) {
	server := newSSEServer(t, []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"before\"}}]}\n\n",
		"data: {not valid json\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"after\"}}]}\n\n",
		"data: [DONE]\n\n",
	})
	defer server.Close()

	client := newStreamTestClient(server.URL)
	stream, err := client.StreamChatCompletion(context.Background(), ChatStreamRequest{UserPrompt: "hello"})
	require.NoError(t, err)

	chunks := collectChunks(t, stream)

	require.Len(t, chunks, 3)
	assert.Equal(t, "before", chunks[0].Text)
	assert.Equal(t, "after", chunks[1].Text)
	assert.True(t, chunks[2].Done)
	assert.NoError(t, stream.Err())
}

func TestStreamChatCompletion_MultiByteContent(t *testing.T) {
	server := newSSEServer(t, []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"你好，\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"很高兴为您服务\"}}]}\n\n",
		"data: [DONE]\n\n",
	})
	defer server.Close()

	client := newStreamTestClient(server.URL)
	stream, err := client.StreamChatCompletion(context.Background(), ChatStreamRequest{UserPrompt: "你好"})
	require.NoError(t, err)

	chunks := collectChunks(t, stream)

	require.Len(t, chunks, 3)
	assert.Equal(t, "你好，", chunks[0].Text)
	assert.Equal(t, "很高兴为您服务", chunks[1].Text)
}

func TestStreamChatCompletion_CommentAndEmptyLinesIgnored(t *testing.T) {
	server := newSSEServer(t, []string{
		": connected\n\n",
		"\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n",
		"data: [DONE]\n\n",
	})
	defer server.Close()

	client := newStreamTestClient(server.URL)
	stream, err := client.StreamChatCompletion(context.Background(), ChatStreamRequest{UserPrompt: "hello"})
	require.NoError(t, err)

	chunks := collectChunks(t, stream)
	require.Len(t, chunks, 2)
	assert.Equal(t, "ok", chunks[0].Text)
}

func TestStreamChatCompletion_TruncatedStream(t *testing.T) {
	server := newSSEServer(t, []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"cut off\"}}]}\n\n",
	})
	defer server.Close()

	client := newStreamTestClient(server.URL)
	stream, err := client.StreamChatCompletion(context.Background(), ChatStreamRequest{UserPrompt: "hello"})
	require.NoError(t, err)

	chunks := collectChunks(t, stream)

	require.Len(t, chunks, 1)
	assert.Equal(t, "cut off", chunks[0].Text)
	assert.Error(t, stream.Err())
	assert.Equal(t, domain.ErrCodeProvider, domain.ErrorCode(stream.Err()))
}

func TestStreamChatCompletion_NoCredential(t *testing.T) {
	client := NewClient(Config{})

	stream, err := client.StreamChatCompletion(context.Background(), ChatStreamRequest{UserPrompt: "hello"})

	assert.Nil(t, stream)
	assert.Equal(t, domain.ErrCredentialMissing, err)
}

func TestStreamChatCompletion_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"too many requests"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newStreamTestClient(server.URL)
	stream, err := client.StreamChatCompletion(context.Background(), ChatStreamRequest{UserPrompt: "hello"})

	assert.Nil(t, stream)
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeRateLimited, domain.ErrorCode(err))
}

func TestStreamChatCompletion_Cancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n"))
		flusher.Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := newStreamTestClient(server.URL)
	stream, err := client.StreamChatCompletion(ctx, ChatStreamRequest{UserPrompt: "hello"})
	require.NoError(t, err)

	first := <-stream.Chunks()
	assert.Equal(t, "first", first.Text)

	cancel()

	// After abort the channel closes without further chunks.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-stream.Chunks():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream did not close after cancellation")
		}
	}
}
