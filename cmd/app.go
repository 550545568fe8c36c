package main

import (
	"context"
	"fmt"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/db"
	"knowledge-scout/internal/embedding"
	"knowledge-scout/internal/llmservice"
	"knowledge-scout/internal/parser"
	"knowledge-scout/internal/rag"
	"knowledge-scout/internal/service"
	"knowledge-scout/internal/session"

	"github.com/rs/zerolog/log"
)

type app struct {
	svc    *service.Service
	ledger *db.Ledger
}

// newApp wires providers, the optional ledger and a fresh session.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	warnMissingKey("llm", cfg.LLM)
	warnMissingKey("embedding", cfg.EmbedLLM)

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	llm, err := llmservice.NewLLM(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	splitter, err := parser.NewSplitter(cfg.RAG)
	if err != nil {
		return nil, err
	}

	a := &app{}
	var opts []service.Option
	if cfg.Database.DSN != "" {
		ledger, err := openLedger(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		a.ledger = ledger
		opts = append(opts, service.WithLedger(ledger))
	}

	builder := rag.NewBuilder(embedder, llm, cfg.RAG, cfg.LLM)
	a.svc = service.New(builder, splitter, session.NewStore(), cfg.RAG, opts...)
	return a, nil
}

func openLedger(ctx context.Context, cfg *config.DatabaseConfig) (*db.Ledger, error) {
	dbClient, err := db.ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	dbInstance := db.NewDB(dbClient, cfg.Debug)
	if err := db.InitDB(ctx, dbInstance); err != nil {
		dbInstance.Close()
		return nil, err
	}
	log.Info().Str("driver", cfg.Driver).Msg("Document ledger enabled")
	return db.NewLedger(dbInstance), nil
}

func (a *app) Close() {
	if a.ledger == nil {
		return
	}
	if err := a.ledger.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}
}

// The key is not required at startup; a remote provider without one fails on first use.
func warnMissingKey(name string, cfg config.LLMConfig) {
	if cfg.Provider == "openai" && cfg.Key == "" {
		log.Warn().Str("component", name).Msg("OPENAI_API_KEY is not set, provider calls will fail")
	}
}
