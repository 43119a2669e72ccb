// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists finalized decisions to SQLite so past
// evaluations can be listed, inspected, and exported.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/decision-engine/pkg/types"
)

// ErrNotFound is returned by Get when no decision has the given run ID.
var ErrNotFound = errors.New("decision not found")

// Store is the decision archive. Safe for concurrent use; SQLite
// serializes writers.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the archive at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	run_id         TEXT PRIMARY KEY,
	schema_version INTEGER NOT NULL,
	verdict        TEXT NOT NULL,
	confidence     REAL NOT NULL,
	rationale      TEXT NOT NULL,
	reports        TEXT NOT NULL,
	citations      TEXT NOT NULL,
	decided_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating archive schema: %w", err)
	}
	return nil
}

// Save stores one finalized decision. Saving the same run ID twice is an
// error; a run finalizes exactly once.
func (s *Store) Save(ctx context.Context, d types.FinalDecision) error {
	reports, err := json.Marshal(d.ContributingReports)
	if err != nil {
		return fmt.Errorf("encoding reports: %w", err)
	}
	citations, err := json.Marshal(d.StrategyCitations)
	if err != nil {
		return fmt.Errorf("encoding citations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (run_id, schema_version, verdict, confidence, rationale, reports, citations, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.SchemaVersion, string(d.Verdict), d.Confidence, d.Rationale,
		string(reports), string(citations), d.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving decision %s: %w", d.RunID, err)
	}
	return nil
}

// Get returns the decision for runID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, runID string) (types.FinalDecision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, schema_version, verdict, confidence, rationale, reports, citations, decided_at
		FROM decisions WHERE run_id = ?`, runID)
	d, err := scanDecision(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return types.FinalDecision{}, fmt.Errorf("decision %s: %w", runID, ErrNotFound)
	}
	return d, err
}

// List returns up to limit decisions, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]types.FinalDecision, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, schema_version, verdict, confidence, rationale, reports, citations, decided_at
		FROM decisions ORDER BY decided_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing decisions: %w", err)
	}
	defer rows.Close()

	var decisions []types.FinalDecision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing decisions: %w", err)
	}
	return decisions, nil
}

func scanDecision(scan func(dest ...any) error) (types.FinalDecision, error) {
	var (
		d                           types.FinalDecision
		verdict, reports, citations string
		decidedAt                   string
	)
	if err := scan(&d.RunID, &d.SchemaVersion, &verdict, &d.Confidence, &d.Rationale,
		&reports, &citations, &decidedAt); err != nil {
		return types.FinalDecision{}, err
	}
	d.Verdict = types.Verdict(verdict)
	if err := json.Unmarshal([]byte(reports), &d.ContributingReports); err != nil {
		return types.FinalDecision{}, fmt.Errorf("decoding reports for %s: %w", d.RunID, err)
	}
	if err := json.Unmarshal([]byte(citations), &d.StrategyCitations); err != nil {
		return types.FinalDecision{}, fmt.Errorf("decoding citations for %s: %w", d.RunID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, decidedAt)
	if err != nil {
		return types.FinalDecision{}, fmt.Errorf("parsing timestamp for %s: %w", d.RunID, err)
	}
	d.Timestamp = ts
	return d, nil
}
