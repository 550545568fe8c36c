package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	DriverPgdriver = "pgdriver"
	DriverPq       = "pq"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string    `bun:"id,pk,type:uuid"`
	Name          string    `bun:"name,notnull"`
	Format        string    `bun:"format,notnull"`
	ChunkCount    int       `bun:"chunk_count,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            int64  `bun:"id,pk,autoincrement"`
	DocumentID    string `bun:"document_id,notnull,type:uuid"`
	Ordinal       int    `bun:"ordinal,notnull"`
	Content       string `bun:"content,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "", DriverPgdriver:
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	case DriverPq:
		return sql.Open("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	_, err := db.NewCreateTable().
		Model((*Chunk)(nil)).
		IfNotExists().
		ForeignKey(`("document_id") REFERENCES "documents" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	return nil
}

// drop ledger tables
func DropDocuments(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewDropTable().Model((*Chunk)(nil)).IfExists().Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// Ledger records every ingested document and its chunks. It is an audit
// trail and a keyword search backend; the vector index never reads from it.
type Ledger struct {
	db *bun.DB
}

func NewLedger(db *bun.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordDocument stores doc and its chunks in one transaction.
func (l *Ledger) RecordDocument(ctx context.Context, doc models.Document, chunks []models.Chunk) error {
	return l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := &Document{
			ID:         doc.ID,
			Name:       doc.Filename,
			Format:     doc.Format,
			ChunkCount: len(chunks),
			CreatedAt:  doc.UploadedAt,
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		rows := make([]Chunk, len(chunks))
		for i, c := range chunks {
			rows[i] = Chunk{DocumentID: doc.ID, Ordinal: c.Ordinal, Content: c.Content}
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		return nil
	})
}

// SearchChunks returns up to limit chunks of documentID containing keyword,
// case-insensitive, in document order.
func (l *Ledger) SearchChunks(ctx context.Context, documentID, keyword string, limit int) ([]string, error) {
	var rows []Chunk
	err := l.db.NewSelect().
		Model(&rows).
		Column("content").
		Where("document_id = ?", documentID).
		Where("content ILIKE ?", likePattern(keyword)).
		OrderExpr("ordinal ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Content
	}
	return out, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches keyword literally anywhere in a value.
func likePattern(keyword string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(keyword)) + "%"
}
