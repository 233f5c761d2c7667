package domain

import (
	"fmt"
	"time"
)

// ChatRole identifies the author of a chat message
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatMessage is one entry in a conversation transcript. Messages are
// append-only: insertion order is display order is causal order.
type ChatMessage struct {
	ID        string
	Role      ChatRole
	Content   string
	ImageURL  string // optional data URI or presigned URL for multimodal turns
	Timestamp time.Time
}

// StreamChunk is one incremental unit of an assistant turn. A turn is a
// finite, ordered, non-restartable sequence of chunks; the final chunk always
// carries Done=true.
type StreamChunk struct {
	Text         string
	Done         bool
	FinishReason string
}

// ProjectConfig carries the per-project knobs the orchestrator consults.
// It is consumed read-only by the core.
type ProjectConfig struct {
	ID                string
	Provider          string
	SystemInstruction string
	MultimodalEnabled bool
}

// NewChatMessage creates a new ChatMessage instance
func NewChatMessage(id string, role ChatRole, content, imageURL string, timestamp time.Time) *ChatMessage {
	return &ChatMessage{
		ID:        id,
		Role:      role,
		Content:   content,
		ImageURL:  imageURL,
		Timestamp: timestamp,
	}
}

// ValidateChatMessage validates a ChatMessage instance
func ValidateChatMessage(m *ChatMessage) error {
	if m == nil {
		return fmt.Errorf("chat message cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("chat message ID is required")
	}

	if !isValidChatRole(m.Role) {
		return fmt.Errorf("chat message Role is invalid: %s", m.Role)
	}

	if m.Content == "" && m.ImageURL == "" {
		return fmt.Errorf("chat message must have Content or ImageURL")
	}

	return nil
}

// isValidChatRole checks if a ChatRole is valid
func isValidChatRole(r ChatRole) bool {
	switch r {
	case ChatRoleUser, ChatRoleAssistant, ChatRoleSystem:
		return true
	}
	return false
}
