package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// NewEmbedder returns the embedder for cfg.Provider. Remote providers are
// constructed on first use, so a missing credential only surfaces when the
// first document is embedded.
func NewEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case ProviderMock:
		return NewMockEmbedder(0), nil
	case ProviderOpenAI:
		return &lazyEmbedder{build: func() (embeddings.Embedder, error) { return NewOpenAIEmbedder(cfg) }}, nil
	case ProviderOllama:
		return &lazyEmbedder{build: func() (embeddings.Embedder, error) { return NewOllamaEmbedder(cfg) }}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewOpenAIEmbedder creates an embedder against an OpenAI compatible API
func NewOpenAIEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating OpenAI embedder")

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	return embeddings.NewEmbedder(llm, embeddings.WithBatchSize(cfg.BatchSize))
}

// NewOllamaEmbedder creates an embedder against a local ollama server
func NewOllamaEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating ollama embedder")

	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	return embeddings.NewEmbedder(llm, embeddings.WithBatchSize(cfg.BatchSize))
}

// GenerateEmbedding embeds every chunk in one batched call. Provider
// failures are returned as upstream errors.
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, models.UpstreamError("embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return nil, models.UpstreamError("embed chunks",
			fmt.Errorf("provider returned %d embeddings for %d chunks", len(vectors), len(chunks)))
	}
	return vectors, nil
}

type lazyEmbedder struct {
	mu       sync.Mutex
	build    func() (embeddings.Embedder, error)
	embedder embeddings.Embedder
}

func (l *lazyEmbedder) get() (embeddings.Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.embedder != nil {
		return l.embedder, nil
	}
	e, err := l.build()
	if err != nil {
		return nil, err
	}
	l.embedder = e
	return e, nil
}

func (l *lazyEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := l.get()
	if err != nil {
		return nil, err
	}
	return e.EmbedDocuments(ctx, texts)
}

func (l *lazyEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e, err := l.get()
	if err != nil {
		return nil, err
	}
	return e.EmbedQuery(ctx, text)
}
