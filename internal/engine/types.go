package engine

import (
	"context"
	"fmt"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ImagePart is an inline image attached to a user message.
type ImagePart struct {
	MediaType string // e.g. "image/png"
	Data      []byte // raw bytes, providers encode as needed
}

// ChatMessage is the provider-agnostic message we pass around.
type ChatMessage struct {
	Role    MessageRole // Role of the message sender
	Content string      // Message content
	Images  []ImagePart // Optional: images for vision-capable models (user messages only)
}

// Validate checks if the ChatMessage is valid.
func (m ChatMessage) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	if len(m.Images) > 0 && m.Role != RoleUser {
		return fmt.Errorf("images are only allowed on user messages")
	}
	return nil
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// Add accumulates another usage record.
func (u *Usage) Add(o Usage) {
	u.Prompt += o.Prompt
	u.Completion += o.Completion
	u.Total += o.Total
}

// LLMResponse is a normalized result of one chat call.
type LLMResponse struct {
	Assistant    ChatMessage
	Usage        Usage
	FinishReason string // "stop" | "length" | "content_filter"
}

// LLMClient abstracts your chosen SDK (OpenAI, Anthropic, Gemini).
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (LLMResponse, error)
}

// ChatOptions keeps knobs you'll forward to the SDK.
type ChatOptions struct {
	Temperature     float32
	MaxOutputTokens int
	// JSONMode asks the provider to constrain the reply to a single JSON object.
	JSONMode    bool
	RetryConfig *RetryConfig // Optional retry configuration (nil = use defaults)
}

// UserMessage is shorthand for a single plain user turn.
func UserMessage(content string) []ChatMessage {
	return []ChatMessage{{Role: RoleUser, Content: content}}
}
