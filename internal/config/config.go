package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultTopK         = 4
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embedding"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Address        string        `yaml:"address"`
	BodyLimit      string        `yaml:"body_limit"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LLMConfig is shared by the chat model and the embedding model.
// Provider is one of "openai", "ollama" or "mock".
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	BatchSize   int     `yaml:"batch_size"`
}

type RAGConfig struct {
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	Splitter       string `yaml:"splitter"`
	TopK           int    `yaml:"top_k"`
	LenientFormats bool   `yaml:"lenient_formats"`
	SnapshotPath   string `yaml:"snapshot_path"`
	EncryptionKey  string `yaml:"encryption_key"`
}

// DatabaseConfig configures the optional document ledger. An empty DSN disables it.
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
// Environment variables override the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8000",
			BodyLimit:      "32M",
			RequestTimeout: 2 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0,
		},
		EmbedLLM: LLMConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 64,
		},
		RAG: RAGConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			Splitter:     "fixed",
			TopK:         DefaultTopK,
		},
		Database: DatabaseConfig{
			Driver: "pgdriver",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.Key = key
		cfg.EmbedLLM.Key = key
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}
	if addr := os.Getenv("KS_SERVER_ADDRESS"); addr != "" {
		cfg.Server.Address = addr
	}
	if dsn := os.Getenv("KS_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Address == "" {
		cfg.Server.Address = def.Server.Address
	}
	if cfg.Server.BodyLimit == "" {
		cfg.Server.BodyLimit = def.Server.BodyLimit
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = def.Server.RequestTimeout
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = def.LLM.Provider
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = def.EmbedLLM.Provider
	}
	if cfg.EmbedLLM.BatchSize <= 0 {
		cfg.EmbedLLM.BatchSize = def.EmbedLLM.BatchSize
	}
	// same fallback rule as the parser: both or neither
	if cfg.RAG.ChunkSize <= 0 || cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkSize = DefaultChunkSize
		cfg.RAG.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.RAG.Splitter == "" {
		cfg.RAG.Splitter = def.RAG.Splitter
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = DefaultTopK
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = def.Database.Driver
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}
