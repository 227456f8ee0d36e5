// ABOUTME: Model client abstraction used by assistant participants
// ABOUTME: Defines the chat request/response types and the Client interface

package llm

import "context"

// Role represents a message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single turn handed to the model.
type ChatMessage struct {
	Role    Role
	Content string
}

// ChatRequest contains parameters for one model call.
type ChatRequest struct {
	Model     string
	System    string
	Messages  []ChatMessage
	MaxTokens int
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Client is the interface for model interactions. Implementations must be
// safe for concurrent use; the team engine may drive several sessions at once.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
