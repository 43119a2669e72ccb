// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package strategy persists internal strategy-document passages and serves
// first-stage similarity search over them. The index is lexical (SQLite
// FTS5 with bm25 scoring normalized to [0,1]); an embedding-backed vector
// database can replace it behind the same retrieval.VectorStore interface.
package strategy

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/decision-engine/internal/retrieval"
)

// Store manages the strategy passage index.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the SQLite index at path, creating parent
// directories and the schema as needed.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening strategy index: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS passages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_document_id ON passages(document_id)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS passages_fts USING fts5(
			text, content='passages', content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS passages_ai AFTER INSERT ON passages BEGIN
			INSERT INTO passages_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS passages_ad AFTER DELETE ON passages BEGIN
			INSERT INTO passages_fts(passages_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
		END`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Add inserts one passage for documentID.
func (s *Store) Add(ctx context.Context, documentID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty passage for document %s", documentID)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO passages (document_id, text) VALUES (?, ?)`, documentID, text)
	if err != nil {
		return fmt.Errorf("inserting passage: %w", err)
	}
	return nil
}

// ReplaceDocument removes every passage of documentID and inserts the given
// ones in a single transaction, so re-imports are idempotent.
func (s *Store) ReplaceDocument(ctx context.Context, documentID string, passages []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM passages WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clearing document %s: %w", documentID, err)
	}
	for _, text := range passages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO passages (document_id, text) VALUES (?, ?)`, documentID, text); err != nil {
			return fmt.Errorf("inserting passage: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of indexed passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return n, nil
}

// SimilaritySearch returns up to k passages matching query, scored in
// [0,1]. An unmatched query returns an empty slice. Implements
// retrieval.VectorStore.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]retrieval.Candidate, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if k <= 0 {
		k = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.text, p.document_id, bm25(passages_fts) AS score
		FROM passages_fts
		JOIN passages p ON p.rowid = passages_fts.rowid
		WHERE passages_fts MATCH ?
		ORDER BY score
		LIMIT ?`, match, k)
	if err != nil {
		return nil, fmt.Errorf("querying strategy index: %w", err)
	}
	defer rows.Close()

	var candidates []retrieval.Candidate
	for rows.Next() {
		var c retrieval.Candidate
		var bm25 float64
		if err := rows.Scan(&c.Text, &c.DocumentID, &bm25); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		c.Score = normalizeBM25(bm25)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// normalizeBM25 maps SQLite's bm25 output (negative, more negative is
// better) onto [0,1).
func normalizeBM25(score float64) float64 {
	if score > 0 {
		score = 0
	}
	magnitude := -score
	return magnitude / (magnitude + 2.0)
}

// ftsQuery sanitizes free text into an FTS5 OR-query of quoted terms, so
// punctuation in ideas cannot break the match syntax.
func ftsQuery(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}
