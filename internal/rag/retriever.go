package rag

import (
	"context"

	"knowledge-scout/internal/chromemdb"
	"knowledge-scout/internal/models"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
)

// Retriever is a schema.Retriever over one chromem-go collection.
type Retriever struct {
	store    *chromemdb.VectorDBManager
	embedder embeddings.Embedder
	topK     int
}

var _ schema.Retriever = (*Retriever)(nil)

// GetRelevantDocuments embeds the query and returns the topK nearest chunks.
// An empty index returns nothing without calling the embedder.
func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	if r.store.Count() == 0 {
		return nil, nil
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, models.UpstreamError("embed question", err)
	}

	results, err := r.store.Search(ctx, queryEmbedding, r.topK)
	if err != nil {
		return nil, models.InternalError("search index", err)
	}

	docs := make([]schema.Document, 0, len(results))
	for _, res := range results {
		docs = append(docs, schema.Document{
			PageContent: res.Content,
			Metadata: map[string]any{
				chromemdb.MetaOrdinal:    chromemdb.Ordinal(res.Metadata),
				chromemdb.MetaDocumentID: res.Metadata[chromemdb.MetaDocumentID],
			},
			Score: res.Similarity,
		})
	}
	return docs, nil
}
