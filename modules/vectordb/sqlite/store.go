// Package sqlite implements knowledge.VectorStore on SQLite. Embeddings are
// stored as little-endian float32 blobs and searched with a brute-force
// cosine scan, which is plenty for a few thousand chunks.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/flemzord/relaybot/internal/knowledge"
	memsqlite "github.com/flemzord/relaybot/modules/memory/sqlite"
)

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "portfolio_knowledge"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config configures the vector store.
type Config struct {
	Path  string
	Table string
}

// Store implements knowledge.VectorStore.
type Store struct {
	db    *sql.DB
	table string
}

var _ knowledge.VectorStore = (*Store)(nil)

// Open opens or creates the vector database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("vectordb: invalid table name %q", cfg.Table)
	}

	db, err := memsqlite.OpenDB(ctx, memsqlite.Config{Path: cfg.Path})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, table: cfg.Table}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          TEXT    PRIMARY KEY,
			document    TEXT    NOT NULL,
			chunk_index INTEGER NOT NULL,
			content     TEXT    NOT NULL,
			metadata    TEXT    NOT NULL DEFAULT '{}',
			embedding   BLOB    NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_document ON %s(document)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("vectordb: migrate: %w", err)
		}
	}
	return nil
}

// Upsert implements knowledge.VectorStore.
func (s *Store) Upsert(ctx context.Context, chunks []knowledge.Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.upsert(ctx, tx, chunks)
	})
}

// ReplaceDocument implements knowledge.VectorStore. The delete and the
// inserts share one transaction, so a failure keeps the old chunks.
func (s *Store) ReplaceDocument(ctx context.Context, document string, chunks []knowledge.Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document = ?`, s.table), document); err != nil {
			return fmt.Errorf("vectordb: delete document: %w", err)
		}
		return s.upsert(ctx, tx, chunks)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectordb: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, chunks []knowledge.Chunk) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, document, chunk_index, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding`, s.table))
	if err != nil {
		return fmt.Errorf("vectordb: prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("vectordb: marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Document, c.Index, c.Content, string(meta),
			knowledge.EncodeVector(c.Embedding)); err != nil {
			return fmt.Errorf("vectordb: upsert %s: %w", c.ID, err)
		}
	}
	return nil
}

// DeleteDocument implements knowledge.VectorStore.
func (s *Store) DeleteDocument(ctx context.Context, document string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document = ?`, s.table), document)
	if err != nil {
		return fmt.Errorf("vectordb: delete document: %w", err)
	}
	return nil
}

// Search implements knowledge.VectorStore.
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]knowledge.Match, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, document, chunk_index, content, metadata, embedding FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("vectordb: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []knowledge.Match
	for rows.Next() {
		var (
			c    knowledge.Chunk
			meta string
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Document, &c.Index, &c.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("vectordb: scan: %w", err)
		}
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
				return nil, fmt.Errorf("vectordb: metadata of %s: %w", c.ID, err)
			}
		}
		emb, err := knowledge.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("vectordb: embedding of %s: %w", c.ID, err)
		}
		matches = append(matches, knowledge.Match{Chunk: c, Score: knowledge.Cosine(vector, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectordb: search rows: %w", err)
	}
	return knowledge.TopK(matches, limit), nil
}

// Count implements knowledge.VectorStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("vectordb: count: %w", err)
	}
	return n, nil
}

// Close implements knowledge.VectorStore.
func (s *Store) Close() error {
	return s.db.Close()
}
