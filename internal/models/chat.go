package models

import "strings"

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the recommendation chat transcript.
type ChatMessage struct {
	Role    ChatRole `json:"role" validate:"required,oneof=user assistant"`
	Content string   `json:"content" validate:"max=8000"`
}

// ChatRequest is the body of POST /api/chat. The transcript lives only in the
// request; the server keeps no session.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,max=100,dive"`
}

// LastUserMessage returns the content of the most recent non-blank user turn.
func (r *ChatRequest) LastUserMessage() (string, bool) {
	return LastUserMessage(r.Messages)
}

// LastUserMessage returns the content of the most recent non-blank user turn in messages.
func LastUserMessage(messages []ChatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != RoleUser {
			continue
		}
		if content := strings.TrimSpace(messages[i].Content); content != "" {
			return content, true
		}
	}
	return "", false
}

// ChatResponse is returned by POST /api/chat on every path, success or not.
type ChatResponse struct {
	Explanation     string          `json:"explanation"`
	Recommendations []Novel         `json:"recommendations"`
	Preferences     NovelPreference `json:"preferences"`
}

// NewChatResponse builds a response whose recommendations encode as [] rather than null.
func NewChatResponse(explanation string, novels []Novel, prefs NovelPreference) *ChatResponse {
	if novels == nil {
		novels = []Novel{}
	}
	return &ChatResponse{
		Explanation:     explanation,
		Recommendations: novels,
		Preferences:     prefs,
	}
}
