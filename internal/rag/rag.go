package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"knowledge-scout/internal/chromemdb"
	"knowledge-scout/internal/config"
	"knowledge-scout/internal/embedding"
	"knowledge-scout/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

// Index is the vector index of one document together with the
// question-answering chain bound to it. The two are only ever built,
// replaced and read as a unit.
type Index struct {
	Document  models.Document
	Chunks    []models.Chunk
	CreatedAt time.Time

	store *chromemdb.VectorDBManager
	qa    chains.RetrievalQA
	opts  []chains.ChainCallOption
}

// Builder creates indexes. It holds the provider clients and settings that
// every index shares.
type Builder struct {
	embedder    embeddings.Embedder
	llm         llms.Model
	topK        int
	temperature float64
	prompt      prompts.PromptTemplate
}

func NewBuilder(embedder embeddings.Embedder, llm llms.Model, ragCfg config.RAGConfig, llmCfg config.LLMConfig) *Builder {
	topK := ragCfg.TopK
	if topK <= 0 {
		topK = config.DefaultTopK
	}
	return &Builder{
		embedder:    embedder,
		llm:         llm,
		topK:        topK,
		temperature: llmCfg.Temperature,
		prompt:      prompts.NewPromptTemplate(models.QAPromptTemplate, []string{"context", "question"}),
	}
}

// Build embeds chunks and returns a new index for doc. doc.Data is not kept.
func (b *Builder) Build(ctx context.Context, doc models.Document, chunks []models.Chunk) (*Index, error) {
	vectors, err := embedding.GenerateEmbedding(ctx, b.embedder, chunks)
	if err != nil {
		return nil, err
	}

	store, err := chromemdb.NewVectorDBManager(b.embeddingFunc())
	if err != nil {
		return nil, models.InternalError("create index", err)
	}

	docs := make([]chromemdb.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromemdb.Document{
			ID:      chromemdb.ChunkID(c.Ordinal),
			Content: c.Content,
			Metadata: map[string]string{
				chromemdb.MetaDocumentID: doc.ID,
				chromemdb.MetaFilename:   doc.Filename,
				chromemdb.MetaFormat:     doc.Format,
				chromemdb.MetaOrdinal:    strconv.Itoa(c.Ordinal),
			},
			Embedding: vectors[i],
		}
	}
	if err := store.CreateDocs(ctx, docs); err != nil {
		return nil, models.InternalError("populate index", err)
	}

	doc.Data = nil
	log.Debug().Str("document_id", doc.ID).Int("chunks", len(chunks)).Msg("Built index")
	return b.newIndex(doc, chunks, store), nil
}

// Restore loads an index exported with Index.Export. The snapshot must hold
// at least one chunk, since the document details live in chunk metadata.
func (b *Builder) Restore(ctx context.Context, filePath, encryptionKey string) (*Index, error) {
	store, err := chromemdb.Import(filePath, encryptionKey, b.embeddingFunc())
	if err != nil {
		return nil, err
	}
	stored, err := store.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, errors.New("snapshot holds no chunks")
	}

	meta := stored[0].Metadata
	doc := models.Document{
		ID:       meta[chromemdb.MetaDocumentID],
		Filename: meta[chromemdb.MetaFilename],
		Format:   meta[chromemdb.MetaFormat],
	}
	chunks := make([]models.Chunk, len(stored))
	for i, d := range stored {
		chunks[i] = models.Chunk{Ordinal: chromemdb.Ordinal(d.Metadata), Content: d.Content}
	}
	return b.newIndex(doc, chunks, store), nil
}

func (b *Builder) newIndex(doc models.Document, chunks []models.Chunk, store *chromemdb.VectorDBManager) *Index {
	retriever := &Retriever{store: store, embedder: b.embedder, topK: b.topK}
	qa := chains.NewRetrievalQA(
		chains.NewStuffDocuments(chains.NewLLMChain(b.llm, b.prompt)),
		retriever,
	)
	qa.ReturnSourceDocuments = true

	return &Index{
		Document:  doc,
		Chunks:    chunks,
		CreatedAt: time.Now(),
		store:     store,
		qa:        qa,
		opts:      []chains.ChainCallOption{chains.WithTemperature(b.temperature)},
	}
}

func (b *Builder) embeddingFunc() func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		return b.embedder.EmbedQuery(ctx, text)
	}
}

// Answer runs question through the retrieval chain.
func (ix *Index) Answer(ctx context.Context, question string) (models.Answer, error) {
	out, err := chains.Call(ctx, ix.qa, map[string]any{"query": question}, ix.opts...)
	if err != nil {
		var typed *models.Error
		if errors.As(err, &typed) {
			return models.Answer{}, err
		}
		return models.Answer{}, models.UpstreamError("generate answer", err)
	}

	text, ok := out["text"].(string)
	if !ok {
		return models.Answer{}, models.InternalError("generate answer", fmt.Errorf("unexpected chain output %T", out["text"]))
	}

	answer := models.Answer{Question: question, Text: strings.TrimSpace(text)}
	if docs, ok := out["source_documents"].([]schema.Document); ok {
		for _, d := range docs {
			ordinal, _ := d.Metadata[chromemdb.MetaOrdinal].(int)
			answer.Sources = append(answer.Sources, models.Source{
				Ordinal:    ordinal,
				Content:    d.PageContent,
				Similarity: d.Score,
			})
		}
	}
	return answer, nil
}

// Search returns up to limit chunks containing keyword, case-insensitive.
func (ix *Index) Search(keyword string, limit int) []string {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	matches := []string{}
	if needle == "" {
		return matches
	}
	for _, c := range ix.Chunks {
		if len(matches) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(c.Content), needle) {
			matches = append(matches, c.Content)
		}
	}
	return matches
}

// Export writes the index to filePath so it can be restored after a restart.
func (ix *Index) Export(filePath, encryptionKey string) error {
	return ix.store.Export(filePath, encryptionKey)
}

// Size is the number of indexed chunks.
func (ix *Index) Size() int {
	return ix.store.Count()
}
