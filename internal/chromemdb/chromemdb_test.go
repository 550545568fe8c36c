package chromemdb

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func seed(t *testing.T) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager(nil)
	require.NoError(t, err)

	var docs []Document
	for i, content := range []string{"north", "east", "south"} {
		docs = append(docs, Document{
			ID:        ChunkID(i),
			Content:   content,
			Metadata:  map[string]string{MetaOrdinal: strconv.Itoa(i), MetaDocumentID: "doc-1"},
			Embedding: unit(4, i),
		})
	}
	require.NoError(t, m.CreateDocs(context.Background(), docs))
	return m
}

func TestSearchReturnsNearest(t *testing.T) {
	m := seed(t)
	require.Equal(t, 3, m.Count())

	results, err := m.Search(context.Background(), unit(4, 1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "east", results[0].Content)
	assert.Equal(t, 1, Ordinal(results[0].Metadata))
}

func TestSearchCapsAtCollectionSize(t *testing.T) {
	m := seed(t)
	results, err := m.Search(context.Background(), unit(4, 0), 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "north", results[0].Content)
}

func TestSearchEmptyCollection(t *testing.T) {
	m, err := NewVectorDBManager(nil)
	require.NoError(t, err)
	require.NoError(t, m.CreateDocs(context.Background(), nil))

	results, err := m.Search(context.Background(), unit(4, 0), 4)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = m.Search(context.Background(), nil, 4)
	require.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	for name, key := range map[string]string{"plain": "", "encrypted": "0123456789abcdef0123456789abcdef"} {
		t.Run(name, func(t *testing.T) {
			m := seed(t)
			path := filepath.Join(t.TempDir(), "index.gob")
			require.NoError(t, m.Export(path, key))

			restored, err := Import(path, key, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, restored.Count())

			docs, err := restored.Documents(context.Background())
			require.NoError(t, err)
			require.Len(t, docs, 3)
			assert.Equal(t, "north", docs[0].Content)
			assert.Equal(t, "south", docs[2].Content)
			assert.Equal(t, "doc-1", docs[2].Metadata[MetaDocumentID])
		})
	}
}

func TestExportValidation(t *testing.T) {
	m := seed(t)
	require.Error(t, m.Export("", ""))
	require.Error(t, m.Export(filepath.Join(t.TempDir(), "index.gob"), "too-short"))
}

func TestOrdinal(t *testing.T) {
	assert.Equal(t, 7, Ordinal(map[string]string{MetaOrdinal: "7"}))
	assert.Equal(t, -1, Ordinal(map[string]string{}))
	assert.Equal(t, "chunk-000042", ChunkID(42))
}
