package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

const (
	// CollectionName is the single collection every index lives in.
	CollectionName = "document"

	MetaDocumentID = "document_id"
	MetaFilename   = "filename"
	MetaFormat     = "format"
	MetaOrdinal    = "ordinal"

	compress = false
)

// Document represents our data structure with content and metadata
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// VectorDBManager owns one in-memory chromem-go database holding a single
// collection. Each upload gets a fresh manager, so indexes are never merged.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewVectorDBManager creates an empty in-memory database and its collection.
// embed is only used when a document or query arrives without an embedding.
func NewVectorDBManager(embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(CollectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &VectorDBManager{db: db, collection: c}, nil
}

// ChunkID is the document ID used for the chunk at ordinal.
func ChunkID(ordinal int) string {
	return fmt.Sprintf("chunk-%06d", ordinal)
}

// CreateDocs adds documents with precomputed embeddings.
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []Document) error {
	if len(documents) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(documents))
	for i, doc := range documents {
		docs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// Search returns up to nResults documents nearest to embedding. nResults is
// capped at the collection size; an empty collection yields no results.
func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, nResults int) ([]chromem.Result, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding must be provided")
	}
	nResults = min(nResults, m.collection.Count())
	if nResults <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, embedding, nResults, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

// Documents returns every stored document ordered by ordinal.
func (m *VectorDBManager) Documents(ctx context.Context) ([]Document, error) {
	count := m.collection.Count()
	docs := make([]Document, 0, count)
	for i := 0; i < count; i++ {
		d, err := m.collection.GetByID(ctx, ChunkID(i))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ChunkID(i), err)
		}
		docs = append(docs, Document{ID: d.ID, Content: d.Content, Metadata: d.Metadata, Embedding: d.Embedding})
	}
	return docs, nil
}

// Export writes the collection to filePath, encrypted when encryptionKey is
// set (chromem-go requires 32 bytes).
func (m *VectorDBManager) Export(filePath, encryptionKey string) error {
	if filePath == "" {
		return errors.New("file path is required")
	}
	if encryptionKey != "" && len(encryptionKey) != 32 {
		return errors.New("encryption key must be 32 bytes long")
	}

	log.Debug().Msgf("Exporting collection %s to %s", CollectionName, filePath)
	if err := m.db.ExportToFile(filePath, compress, encryptionKey, CollectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads a collection written by Export into a new manager.
func Import(filePath, encryptionKey string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	db := chromem.NewDB()
	if err := db.ImportFromFile(filePath, encryptionKey, CollectionName); err != nil {
		return nil, fmt.Errorf("failed to import database: %w", err)
	}
	c := db.GetCollection(CollectionName, embed)
	if c == nil {
		return nil, fmt.Errorf("collection %s not found in %s", CollectionName, filePath)
	}
	return &VectorDBManager{db: db, collection: c}, nil
}

// Ordinal reads the chunk ordinal stored in a document's metadata.
func Ordinal(metadata map[string]string) int {
	n, err := strconv.Atoi(metadata[MetaOrdinal])
	if err != nil {
		return -1
	}
	return n
}
