package llmservice

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

const MockAnswerPrefix = "[mock] "

// MockLLM answers with its own prompt. Offline runs can see what was
// retrieved, and tests can assert on the context the model received.
type MockLLM struct {
	mu      sync.Mutex
	calls   int
	prompts []string
}

func NewMockLLM() *MockLLM { return &MockLLM{} }

func (m *MockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				prompt.WriteString(tc.Text)
			}
		}
	}

	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt.String())
	m.mu.Unlock()

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: MockAnswerPrefix + prompt.String(), StopReason: "stop"}},
	}, nil
}

func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt, or "" if there was none.
func (m *MockLLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
