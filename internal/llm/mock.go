package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// MockClient is a scripted Client for tests and keyless development.
// Each call consumes the next scripted reply; once the script is exhausted the
// default reply for the request is returned.
type MockClient struct {
	mu       sync.Mutex
	replies  []mockReply
	requests []Request
}

type mockReply struct {
	content string
	err     error
}

// NewMockClient creates an unscripted mock.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements Client.
var _ Client = (*MockClient)(nil)

// Respond queues a successful reply.
func (m *MockClient) Respond(content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{content: content})
	return m
}

// Fail queues a failed call.
func (m *MockClient) Fail(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{err: err})
	return m
}

// CreateChatCompletion records req and returns the next scripted reply.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var reply *mockReply
	if len(m.replies) > 0 {
		reply = &m.replies[0]
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if reply != nil {
		return reply.content, reply.err
	}
	return defaultReply(req), nil
}

// Requests returns a copy of every request received so far.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of requests received so far.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// defaultReply echoes the last user message as a genre for JSON requests so the
// development server returns plausible matches without a provider.
func defaultReply(req Request) string {
	if !req.JSONMode {
		return "Here are a few novels that fit what you described. Enjoy your reading!"
	}
	var last string
	for _, m := range req.Messages {
		if m.Role == RoleUser {
			last = m.Content
		}
	}
	out, err := json.Marshal(map[string][]string{
		"genres": {strings.ToLower(strings.TrimSpace(last))},
	})
	if err != nil {
		return "{}"
	}
	return string(out)
}
