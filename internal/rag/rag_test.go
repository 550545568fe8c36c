package rag

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/embedding"
	"knowledge-scout/internal/llmservice"
	"knowledge-scout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

var handbook = []models.Chunk{
	{Ordinal: 0, Content: "Expense reports must be filed within thirty days of travel."},
	{Ordinal: 1, Content: "The Lisbon office opens at eight and closes at six."},
	{Ordinal: 2, Content: "Parking permits are renewed every January at reception."},
}

func newTestBuilder(topK int) (*Builder, *embedding.MockEmbedder, *llmservice.MockLLM) {
	emb := embedding.NewMockEmbedder(0)
	llm := llmservice.NewMockLLM()
	return NewBuilder(emb, llm, config.RAGConfig{TopK: topK}, config.LLMConfig{}), emb, llm
}

func TestBuildAndAnswerRetrievesMatchingChunk(t *testing.T) {
	b, _, llm := newTestBuilder(1)
	ctx := context.Background()

	ix, err := b.Build(ctx, models.Document{ID: "doc-1", Filename: "handbook.txt", Data: []byte("raw")}, handbook)
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Size())
	assert.Nil(t, ix.Document.Data)

	answer, err := ix.Answer(ctx, "When does the Lisbon office open?")
	require.NoError(t, err)

	require.Len(t, answer.Sources, 1)
	assert.Equal(t, 1, answer.Sources[0].Ordinal)
	assert.Equal(t, handbook[1].Content, answer.Sources[0].Content)
	assert.Contains(t, llm.LastPrompt(), handbook[1].Content)
	assert.Contains(t, llm.LastPrompt(), "Question: When does the Lisbon office open?")
	assert.NotContains(t, llm.LastPrompt(), handbook[2].Content)
	assert.Contains(t, answer.Text, "The Lisbon office opens at eight")
}

func TestTopKIsCappedBySize(t *testing.T) {
	b, _, _ := newTestBuilder(10)
	ix, err := b.Build(context.Background(), models.Document{ID: "doc-1"}, handbook)
	require.NoError(t, err)

	answer, err := ix.Answer(context.Background(), "parking permits")
	require.NoError(t, err)
	require.Len(t, answer.Sources, 3)
	assert.Equal(t, 2, answer.Sources[0].Ordinal)
}

func TestEmptyIndexAnswersWithoutEmbedding(t *testing.T) {
	b, emb, llm := newTestBuilder(4)
	ix, err := b.Build(context.Background(), models.Document{ID: "doc-empty"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Size())

	answer, err := ix.Answer(context.Background(), "anything?")
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.EqualValues(t, 0, emb.Calls())
	assert.Equal(t, 1, llm.Calls())
}

type brokenLLM struct{}

func (brokenLLM) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, errors.New("503 service unavailable")
}

func (brokenLLM) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("503 service unavailable")
}

func TestAnswerUpstreamFailure(t *testing.T) {
	b := NewBuilder(embedding.NewMockEmbedder(0), brokenLLM{}, config.RAGConfig{TopK: 2}, config.LLMConfig{})
	ix, err := b.Build(context.Background(), models.Document{ID: "doc-1"}, handbook)
	require.NoError(t, err)

	_, err = ix.Answer(context.Background(), "Lisbon office")
	require.Error(t, err)
	assert.Equal(t, models.KindUpstream, models.KindOf(err))
}

func TestSearchKeyword(t *testing.T) {
	b, _, _ := newTestBuilder(2)
	ix, err := b.Build(context.Background(), models.Document{ID: "doc-1"}, handbook)
	require.NoError(t, err)

	assert.Equal(t, []string{handbook[1].Content}, ix.Search("LISBON", 5))
	assert.Len(t, ix.Search("at", 2), 2)
	assert.Empty(t, ix.Search("helicopter", 5))
	assert.Empty(t, ix.Search("  ", 5))
}

func TestExportRestore(t *testing.T) {
	b, _, llm := newTestBuilder(1)
	ctx := context.Background()
	ix, err := b.Build(ctx, models.Document{ID: "doc-7", Filename: "handbook.txt", Format: "text"}, handbook)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, ix.Export(path, ""))

	restored, err := b.Restore(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, "doc-7", restored.Document.ID)
	assert.Equal(t, "handbook.txt", restored.Document.Filename)
	assert.Equal(t, handbook, restored.Chunks)

	_, err = restored.Answer(ctx, "parking permits renewal")
	require.NoError(t, err)
	assert.Contains(t, llm.LastPrompt(), handbook[2].Content)
}

func TestRestoreMissingSnapshot(t *testing.T) {
	b, _, _ := newTestBuilder(1)
	_, err := b.Restore(context.Background(), filepath.Join(t.TempDir(), "absent.gob"), "")
	require.Error(t, err)
}
