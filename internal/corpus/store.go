package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists the document table in SQLite. A scrape run replaces
// the whole table in one transaction; readers always see either the
// previous snapshot or the new one, never a mix.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	register_id   TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	type          TEXT NOT NULL,
	year          INTEGER NOT NULL,
	department    TEXT NOT NULL DEFAULT '',
	in_force      INTEGER NOT NULL DEFAULT 1,
	repeal_year   INTEGER NOT NULL DEFAULT 0,
	bc_count      INTEGER NOT NULL DEFAULT 0,
	regdata_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_documents_year ON documents(year);
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);

CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	documents    INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT ''
);
`

// Open opens (or creates) the store at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open corpus db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply corpus schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceAll swaps the stored snapshot for docs in a single
// transaction.
func (s *Store) ReplaceAll(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (register_id, title, type, year, department, in_force, repeal_year, bc_count, regdata_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		_, err := stmt.ExecContext(ctx,
			d.ID, d.Title, string(d.Type), d.Year, d.Department,
			boolToInt(d.InForce), d.RepealYear, d.BCCount, d.RegDataCount)
		if err != nil {
			return fmt.Errorf("insert %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// All returns the stored snapshot ordered by register id.
func (s *Store) All(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT register_id, title, type, year, department, in_force, repeal_year, bc_count, regdata_count
		 FROM documents ORDER BY register_id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var typ string
		var inForce int
		if err := rows.Scan(&d.ID, &d.Title, &typ, &d.Year, &d.Department,
			&inForce, &d.RepealYear, &d.BCCount, &d.RegDataCount); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Type = Type(typ)
		d.InForce = inForce != 0
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// RunRecord is one persisted refresh run summary. Unlike the
// in-memory run store, these survive restarts.
type RunRecord struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Documents   int       `json:"documents"`
	Skipped     int       `json:"skipped"`
	Status      string    `json:"status"`
}

// RecordRun appends a refresh run summary to the run history.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, completed_at, documents, skipped, status)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.StartedAt, rec.CompletedAt, rec.Documents, rec.Skipped, rec.Status)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest n run summaries, newest first.
func (s *Store) RecentRuns(ctx context.Context, n int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT started_at, completed_at, documents, skipped, status
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.StartedAt, &rec.CompletedAt,
			&rec.Documents, &rec.Skipped, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
