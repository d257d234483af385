package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/evaluation"
)

// SQLiteSink 로컬 SQLite 파일 (외부 DB 없이 API/스케줄러 운용)
type SQLiteSink struct {
	db  *sql.DB
	key string
}

// NewSQLiteSink opens path and creates the table if needed
func NewSQLiteSink(path, key string) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{db: db, key: key}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS evaluation_reports (
			report_key   TEXT PRIMARY KEY,
			evaluated_at TEXT NOT NULL,
			entity_count INTEGER NOT NULL,
			document     BLOB NOT NULL,
			updated_at   TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Write(ctx context.Context, report *contracts.EvaluationReport) error {
	data, err := evaluation.MarshalReport(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluation_reports (report_key, evaluated_at, entity_count, document, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(report_key) DO UPDATE SET
			evaluated_at = excluded.evaluated_at,
			entity_count = excluded.entity_count,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		s.key,
		report.EvaluatedAt.UTC().Format(time.RFC3339Nano),
		report.EntityCount,
		data,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert report: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Latest(ctx context.Context) (*contracts.EvaluationReport, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM evaluation_reports WHERE report_key = ?`, s.key,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: query report: %w", err)
	}
	return evaluation.UnmarshalReport(doc)
}

// Raw returns the stored document bytes as written
func (s *SQLiteSink) Raw(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM evaluation_reports WHERE report_key = ?`, s.key,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}
