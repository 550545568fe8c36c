package llmservice

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"knowledge-scout/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// NewLLM returns the chat model for llmConfig.Provider. Remote clients are
// created on the first call.
func NewLLM(llmConfig *config.LLMConfig) (llms.Model, error) {
	switch llmConfig.Provider {
	case ProviderMock:
		return NewMockLLM(), nil
	case ProviderOpenAI, ProviderOllama:
		return &lazyModel{build: func() (llms.Model, error) { return newRemote(llmConfig) }}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llmConfig.Provider)
	}
}

func newRemote(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Interface("llmConfig", map[string]string{
		"provider": llmConfig.Provider,
		"base_url": llmConfig.BaseURL,
		"model":    llmConfig.Model,
	}).Msg("Creating llm client")

	if llmConfig.Provider == ProviderOllama {
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, err
		}
		return llm, nil
	}

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

type lazyModel struct {
	mu    sync.Mutex
	build func() (llms.Model, error)
	model llms.Model
}

func (l *lazyModel) get() (llms.Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model != nil {
		return l.model, nil
	}
	m, err := l.build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	l.model = m
	return m, nil
}

func (l *lazyModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m, err := l.get()
	if err != nil {
		return nil, err
	}
	return m.GenerateContent(ctx, messages, options...)
}

func (l *lazyModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l, prompt, options...)
}
