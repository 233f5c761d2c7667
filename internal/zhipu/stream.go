package zhipu

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

const (
	chatCompletionsPath = "/chat/completions"
	sseDataPrefix       = "data:"
	sseDoneSentinel     = "[DONE]"

	// DefaultStreamTimeout bounds the full streaming call; on expiry the
	// caller sees a network error and degrades.
	DefaultStreamTimeout = 60 * time.Second
)

// ChatStreamRequest describes one streaming chat completion call
type ChatStreamRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	History      []domain.ChatMessage
	Temperature  float32
	MaxTokens    int
}

// ChatStream is a push-based chunk producer for one assistant turn. The
// producer goroutine writes to Chunks() in wire order and closes it when the
// turn ends; Err() is valid once the channel is closed.
type ChatStream struct {
	ch  chan domain.StreamChunk
	err error
}

// Chunks returns the ordered chunk channel for this turn
func (s *ChatStream) Chunks() <-chan domain.StreamChunk {
	return s.ch
}

// Err returns the terminal error, if any. Only valid after Chunks() closes.
func (s *ChatStream) Err() error {
	return s.err
}

type chatStreamRequestBody struct {
	Model       string              `json:"model"`
	Messages    []chatStreamMessage `json:"messages"`
	Temperature float32             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream"`
}

type chatStreamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatStreamFrame is one SSE data frame from the provider
type chatStreamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamChatCompletion opens a streaming chat completion and returns a
// ChatStream whose channel yields text deltas in the exact order bytes were
// received, ending with a Done chunk. Cancel the context to abort; after
// cancellation no further chunks are delivered.
func (c *Client) StreamChatCompletion(ctx context.Context, req ChatStreamRequest) (*ChatStream, error) {
	if !c.HasCredential() {
		return nil, domain.ErrCredentialMissing
	}

	model := req.Model
	if model == "" {
		model = c.cfg.ChatModel
	}

	messages := make([]chatStreamMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatStreamMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.History {
		if m.Content == "" {
			continue
		}
		messages = append(messages, chatStreamMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, chatStreamMessage{Role: "user", Content: req.UserPrompt})

	body := chatStreamRequestBody{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + chatCompletionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, domain.NewProviderError(resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	stream := &ChatStream{ch: make(chan domain.StreamChunk)}
	go stream.consume(ctx, resp.Body)
	return stream, nil
}

// consume reads the SSE body and pushes chunks until the turn ends
func (s *ChatStream) consume(ctx context.Context, body io.ReadCloser) {
	defer close(s.ch)
	defer body.Close()

	// bufio.Reader keeps partial lines (including byte sequences split
	// mid-codepoint across reads) buffered until the terminating newline
	// arrives, so frames are always parsed from complete byte runs.
	reader := bufio.NewReader(body)

	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			if emitted, terminal := s.handleLine(ctx, line); terminal {
				if !emitted && ctx.Err() == nil {
					s.err = domain.NewDomainError(domain.ErrCodeProvider, "stream ended without done frame")
				}
				return
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return
			}
			if readErr == io.EOF {
				// Stream ended without a finish frame; treat as truncated.
				s.err = domain.NewDomainError(domain.ErrCodeProvider, "stream ended without done frame")
			} else {
				s.err = domain.NewNetworkError(readErr)
			}
			return
		}
	}
}

// handleLine processes one SSE line. Returns (emittedDone, terminal).
func (s *ChatStream) handleLine(ctx context.Context, line string) (bool, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || strings.HasPrefix(line, ":") {
		return false, false
	}
	if !strings.HasPrefix(line, sseDataPrefix) {
		return false, false
	}

	data := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
	if data == sseDoneSentinel {
		return s.push(ctx, domain.StreamChunk{Done: true, FinishReason: "stop"}), true
	}

	var frame chatStreamFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		// A single corrupt frame must not abort an otherwise healthy stream.
		log.Printf("stream: skipping malformed frame: %v", err)
		return false, false
	}

	if len(frame.Choices) == 0 {
		return false, false
	}

	choice := frame.Choices[0]
	if choice.Delta.Content != "" {
		if !s.push(ctx, domain.StreamChunk{Text: choice.Delta.Content}) {
			return false, true
		}
	}
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		return s.push(ctx, domain.StreamChunk{Done: true, FinishReason: *choice.FinishReason}), true
	}

	return false, false
}

// push delivers a chunk unless the context has been cancelled
func (s *ChatStream) push(ctx context.Context, chunk domain.StreamChunk) bool {
	select {
	case s.ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
