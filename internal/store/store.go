package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yangwenmai/pdfquiz/internal/model"
)

// Verify at compile time that SQLiteRegistry implements all interfaces.
var (
	_ ArtifactReader = (*SQLiteRegistry)(nil)
	_ ArtifactWriter = (*SQLiteRegistry)(nil)
	_ Registry       = (*SQLiteRegistry)(nil)
)

// SQLiteRegistry stores artifacts in a SQLite database.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLite creates a SQLiteRegistry and initialises the schema.
func NewSQLite(db *sql.DB) (*SQLiteRegistry, error) {
	s := &SQLiteRegistry{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteRegistry) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: artifacts table
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *SQLiteRegistry) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS artifacts (
		id             TEXT PRIMARY KEY,
		filename       TEXT NOT NULL,
		storage_path   TEXT NOT NULL,
		extracted_text TEXT NOT NULL,
		content_length INTEGER NOT NULL,
		summary        TEXT,
		quiz           TEXT,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at, id);
	`)
	return err
}

// Put inserts a new artifact.
func (s *SQLiteRegistry) Put(ctx context.Context, a model.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, filename, storage_path, extracted_text, content_length, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Filename, a.StoragePath, a.ExtractedText, a.ContentLength(),
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Get returns the artifact with its summary and quiz, or model.ErrNotFound.
func (s *SQLiteRegistry) Get(ctx context.Context, id string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, storage_path, extracted_text, summary, quiz, created_at
		FROM artifacts WHERE id = ?`, id)

	var (
		a         model.Artifact
		summary   sql.NullString
		quiz      sql.NullString
		createdAt string
	)
	err := row.Scan(&a.ID, &a.Filename, &a.StoragePath, &a.ExtractedText, &summary, &quiz, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Summary = summary.String
	if quiz.Valid {
		q, err := decodeQuiz(quiz.String)
		if err != nil {
			return nil, err
		}
		a.Quiz = q
	}
	a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &a, nil
}

// List returns status projections in upload order without loading text or quiz payloads.
func (s *SQLiteRegistry) List(ctx context.Context) ([]model.FileInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, content_length, summary IS NOT NULL, quiz IS NOT NULL
		FROM artifacts ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.FileInfo{}
	for rows.Next() {
		var fi model.FileInfo
		if err := rows.Scan(&fi.FileID, &fi.Filename, &fi.ContentLength, &fi.HasSummary, &fi.HasQuiz); err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	return out, rows.Err()
}

// SetSummary stores text only when no summary exists yet.
func (s *SQLiteRegistry) SetSummary(ctx context.Context, id, text string) (string, error) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET summary = ? WHERE id = ? AND summary IS NULL`, text, id); err != nil {
		return "", err
	}

	var current sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM artifacts WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNotFound
	}
	return current.String, err
}

// SetQuiz stores q only when no quiz exists yet.
func (s *SQLiteRegistry) SetQuiz(ctx context.Context, id string, q *model.Quiz) (*model.Quiz, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode quiz: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET quiz = ? WHERE id = ? AND quiz IS NULL`, string(payload), id); err != nil {
		return nil, err
	}

	var current sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT quiz FROM artifacts WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeQuiz(current.String)
}

func decodeQuiz(payload string) (*model.Quiz, error) {
	var q model.Quiz
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		return nil, fmt.Errorf("decode stored quiz: %w", err)
	}
	return &q, nil
}
