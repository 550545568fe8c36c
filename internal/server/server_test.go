package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/embedding"
	"knowledge-scout/internal/llmservice"
	"knowledge-scout/internal/models"
	"knowledge-scout/internal/parser"
	"knowledge-scout/internal/rag"
	"knowledge-scout/internal/service"
	"knowledge-scout/internal/session"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
)

const handbook = "Expense reports must be filed within thirty days of travel."

func newTestServer(t *testing.T, emb embeddings.Embedder, ragCfg config.RAGConfig) (*Server, *llmservice.MockLLM) {
	t.Helper()
	llm := llmservice.NewMockLLM()
	splitter, err := parser.NewSplitter(ragCfg)
	require.NoError(t, err)
	builder := rag.NewBuilder(emb, llm, ragCfg, config.LLMConfig{})
	svc := service.New(builder, splitter, session.NewStore(), ragCfg)
	return New(svc, config.ServerConfig{BodyLimit: "1M"}), llm
}

func uploadRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, embedding.NewMockEmbedder(0), config.RAGConfig{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, healthResponse{OK: true, HasIndex: false}, decode[healthResponse](t, rec))
}

func TestAskBeforeUpload(t *testing.T) {
	s, llm := newTestServer(t, embedding.NewMockEmbedder(0), config.RAGConfig{})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/ask?question="+url.QueryEscape("anything?"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.NoDocumentsMessage, decode[models.Answer](t, rec).Text)
	assert.Equal(t, 0, llm.Calls())
}

func TestUploadThenAsk(t *testing.T) {
	s, llm := newTestServer(t, embedding.NewMockEmbedder(0), config.RAGConfig{})

	rec := serve(s, uploadRequest(t, "file", "policy.txt", []byte(handbook)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.UploadSuccessMessage, decode[messageResponse](t, rec).Message)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, decode[healthResponse](t, rec).HasIndex)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"When are expense reports due?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	answer := decode[models.Answer](t, rec)
	assert.Equal(t, "When are expense reports due?", answer.Question)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, handbook, answer.Sources[0].Content)
	assert.Contains(t, llm.LastPrompt(), handbook)
}

func TestAskFormValue(t *testing.T) {
	s, _ := newTestServer(t, embedding.NewMockEmbedder(0), config.RAGConfig{})

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("question=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", decode[models.Answer](t, rec).Question)
}

func TestAskMissingQuestion(t *testing.T) {
	s, _ := newTestServer(t, embedding.NewMockEmbedder(0), config.RAGConfig{})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/ask", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode[errorResponse](t, rec).Error.Code)
}

func TestUploadErrors(t *testing.T) {
	cases := []struct {
		name     string
		field    string
		filename string
		data     []byte
		status   int
	}{
		{"missing file", "document", "a.txt", []byte("x"), http.StatusBadRequest},
		{"unsupported format", "file", "data.csv", []byte("a,b"), http.StatusUnsupportedMediaType},
		{"corrupt pdf", "file", "scan.pdf", []byte("garbage"), http.StatusUnprocessableEntity},
		{"invalid utf-8", "file", "notes.txt", []byte{0xff, 0xfe, 0x41}, http.StatusUnprocessableEntity},
		{"empty text", "file", "empty.txt", []byte("   "), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t, embedding.NewMockEmbedder(0), config.RAGConfig{})

			rec := serve(s, uploadRequest(t, tc.field, tc.filename, tc.data))
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			body := decode[errorResponse](t, rec)
			assert.NotEmpty(t, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestUploadUnsupportedLenient(t *testing.T) {
	s, _ := newTestServer(t, embedding.NewMockEmbedder(0), config.RAGConfig{LenientFormats: true})

	rec := serve(s, uploadRequest(t, "file", "data.csv", []byte("a,b")))
	require.Equal(t, http.StatusOK, rec.Code)
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("401 invalid api key")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("401 invalid api key")
}

func TestUploadUpstreamFailure(t *testing.T) {
	s, _ := newTestServer(t, failingEmbedder{}, config.RAGConfig{})

	rec := serve(s, uploadRequest(t, "file", "policy.txt", []byte(handbook)))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_error", decode[errorResponse](t, rec).Error.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.False(t, decode[healthResponse](t, rec).HasIndex)
}

func TestQueryEndpoint(t *testing.T) {
	s, _ := newTestServer(t, embedding.NewMockEmbedder(0), config.RAGConfig{})

	query := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(s, req)
	}

	rec := query(`{"question":"expense"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answers":[]}`, rec.Body.String())

	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "file", "policy.txt", []byte(handbook))).Code)

	rec = query(`{"question":"EXPENSE"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{handbook}, decode[queryResponse](t, rec).Answers)

	rec = query(`{"question":"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	s, _ := newTestServer(t, embedding.NewMockEmbedder(0), config.RAGConfig{})

	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := serve(s, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{models.InputError("upload", models.ErrUnsupportedFormat), http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{models.InputError("upload", models.ErrCorruptDocument), http.StatusUnprocessableEntity, "unprocessable_entity"},
		{models.InputError("ask", models.ErrMissingQuestion), http.StatusBadRequest, "bad_request"},
		{models.UpstreamError("generate answer", errors.New("timeout")), http.StatusBadGateway, "upstream_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		{echo.ErrStatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge, "request_entity_too_large"},
	}
	for _, tc := range cases {
		status, body := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, body.Code, tc.err.Error())
	}

	_, body := classify(models.InternalError("index", errors.New("secret detail")))
	assert.NotContains(t, body.Message, "secret")
}
