// Package llm abstracts the chat-completion provider used for preference
// extraction and explanation generation.
package llm

import (
	"context"
	"errors"
)

// ErrNoChoices is returned when the provider answers without any completion.
var ErrNoChoices = errors.New("completion returned no choices")

// Role is the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prompt message.
type Message struct {
	Role    Role
	Content string
}

// Request is a single-turn chat-completion request.
type Request struct {
	// Purpose labels the call in logs and metrics, e.g. "preferences".
	Purpose     string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	// JSONMode asks the provider to emit a single JSON object.
	JSONMode bool
}

// Client sends chat-completion requests and returns the text of the first choice.
type Client interface {
	CreateChatCompletion(ctx context.Context, req Request) (string, error)
}
