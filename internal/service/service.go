package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/helper"
	"knowledge-scout/internal/models"
	"knowledge-scout/internal/parser"
	"knowledge-scout/internal/rag"
	"knowledge-scout/internal/session"

	"github.com/rs/zerolog/log"
)

// Ledger persists uploaded documents and answers keyword searches over them.
// *db.Ledger implements it.
type Ledger interface {
	RecordDocument(ctx context.Context, doc models.Document, chunks []models.Chunk) error
	SearchChunks(ctx context.Context, documentID, keyword string, limit int) ([]string, error)
}

type Option func(*Service)

func WithLedger(l Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

// Service runs the upload and question flows against one session.
type Service struct {
	builder  *rag.Builder
	splitter parser.Splitter
	store    *session.Store
	ledger   Ledger
	cfg      config.RAGConfig

	// serializes snapshot writes
	snapMu sync.Mutex
}

func New(builder *rag.Builder, splitter parser.Splitter, store *session.Store, cfg config.RAGConfig, opts ...Option) *Service {
	s := &Service{
		builder:  builder,
		splitter: splitter,
		store:    store,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest extracts, splits and embeds one uploaded file and makes the result
// the current index. On any error the current index is left as it was.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (*rag.Index, error) {
	op := "upload " + filename
	ticket := s.store.Begin()

	text, err := parser.Extract(ctx, filename, data)
	if err != nil {
		if !s.cfg.LenientFormats || !errors.Is(err, models.ErrUnsupportedFormat) {
			return nil, err
		}
		log.Warn().Str("filename", filename).Msg("Unsupported format, building an empty index")
		text = ""
	}
	if strings.TrimSpace(text) == "" && !s.cfg.LenientFormats {
		return nil, models.InputError(op, models.ErrNoExtractableText)
	}

	chunks, err := s.splitter.Split(text)
	if err != nil {
		return nil, models.InternalError(op, err)
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, models.InternalError(op, err)
	}
	doc := models.Document{
		ID:         id,
		Filename:   filename,
		Format:     parser.DetectFormat(filename).String(),
		Data:       data,
		UploadedAt: time.Now().UTC(),
	}

	ix, err := s.builder.Build(ctx, doc, chunks)
	if err != nil {
		return nil, err
	}

	if s.ledger != nil {
		if err := s.ledger.RecordDocument(ctx, ix.Document, ix.Chunks); err != nil {
			return nil, models.InternalError(op, err)
		}
	}

	if !s.store.Commit(ticket, ix) {
		log.Info().
			Str("document_id", id).
			Bool("discarded", true).
			Bool("ledger_recorded", s.ledger != nil).
			Msg("A newer upload already replaced the index")
		return ix, nil
	}
	log.Info().Str("document_id", id).Str("filename", filename).Int("chunks", len(chunks)).Msg("Document indexed")

	s.snapshot(ticket, ix)
	return ix, nil
}

// snapshot makes the file at SnapshotPath mirror the committed index. An
// empty index or a failed export leaves no file, so a restart never restores
// a document that was replaced.
func (s *Service) snapshot(ticket uint64, ix *rag.Index) {
	path := s.cfg.SnapshotPath
	if path == "" {
		return
	}

	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	// a later commit writes its own snapshot
	if !s.store.IsCurrent(ticket) {
		return
	}

	if ix.Size() == 0 {
		s.removeSnapshot()
		return
	}
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		log.Error().Err(err).Msg("Error creating snapshot folder")
		s.removeSnapshot()
		return
	}

	tmp := path + ".tmp"
	if err := ix.Export(tmp, s.cfg.EncryptionKey); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Error exporting index snapshot")
		_ = os.Remove(tmp)
		s.removeSnapshot()
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Error replacing index snapshot")
		_ = os.Remove(tmp)
		s.removeSnapshot()
	}
}

func (s *Service) removeSnapshot() {
	if err := os.Remove(s.cfg.SnapshotPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Str("path", s.cfg.SnapshotPath).Msg("Error removing stale index snapshot")
	}
}

// Ask answers question from the current index. Before the first successful
// upload it returns NoDocumentsMessage without calling any model.
func (s *Service) Ask(ctx context.Context, question string) (models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return models.Answer{}, models.InputError("ask", models.ErrMissingQuestion)
	}

	ix := s.store.Current()
	if ix == nil {
		return models.Answer{Question: question, Text: models.NoDocumentsMessage}, nil
	}
	return ix.Answer(ctx, question)
}

// Query returns up to KeywordSearchLimit chunks of the current document that
// contain keyword.
func (s *Service) Query(ctx context.Context, keyword string) ([]string, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, models.InputError("query", models.ErrMissingQuestion)
	}

	ix := s.store.Current()
	if ix == nil {
		return []string{}, nil
	}

	if s.ledger == nil {
		return ix.Search(keyword, models.KeywordSearchLimit), nil
	}
	matches, err := s.ledger.SearchChunks(ctx, ix.Document.ID, keyword, models.KeywordSearchLimit)
	if err != nil {
		return nil, models.InternalError("query", err)
	}
	if matches == nil {
		matches = []string{}
	}
	return matches, nil
}

// RestoreSnapshot loads the exported index, if any, as the current one.
func (s *Service) RestoreSnapshot(ctx context.Context) error {
	if s.cfg.SnapshotPath == "" {
		return nil
	}
	if _, err := os.Stat(s.cfg.SnapshotPath); errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", s.cfg.SnapshotPath).Msg("No index snapshot to restore")
		return nil
	}

	ix, err := s.builder.Restore(ctx, s.cfg.SnapshotPath, s.cfg.EncryptionKey)
	if err != nil {
		return err
	}
	s.store.Restore(ix)
	log.Info().Str("document_id", ix.Document.ID).Str("filename", ix.Document.Filename).Msg("Restored index snapshot")
	return nil
}

func (s *Service) HasIndex() bool {
	return s.store.Current() != nil
}

// Current exposes the index for read-only reporting.
func (s *Service) Current() *rag.Index {
	return s.store.Current()
}
