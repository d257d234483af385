package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/evaluation"
)

// PostgresSink analytics.evaluation_reports 에 최신 문서를 upsert 하고
// analytics.evaluation_report_history 에 실행 이력을 남김
type PostgresSink struct {
	pool *pgxpool.Pool
	key  string
}

const postgresSchema = `
CREATE SCHEMA IF NOT EXISTS analytics;

CREATE TABLE IF NOT EXISTS analytics.evaluation_reports (
	report_key   TEXT PRIMARY KEY,
	evaluated_at TIMESTAMPTZ NOT NULL,
	entity_count INTEGER NOT NULL,
	document     JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analytics.evaluation_report_history (
	id           BIGSERIAL PRIMARY KEY,
	report_key   TEXT NOT NULL,
	evaluated_at TIMESTAMPTZ NOT NULL,
	entity_count INTEGER NOT NULL,
	document     JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluation_report_history_key_time
	ON analytics.evaluation_report_history (report_key, evaluated_at DESC);
`

// NewPostgresSink creates a sink storing documents under key
func NewPostgresSink(pool *pgxpool.Pool, key string) *PostgresSink {
	return &PostgresSink{pool: pool, key: key}
}

// Migrate creates the tables if they do not exist
func (s *PostgresSink) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate evaluation tables: %w", err)
	}
	return nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Write upserts the latest document and appends a history row in one transaction
func (s *PostgresSink) Write(ctx context.Context, report *contracts.EvaluationReport) error {
	data, err := evaluation.MarshalReport(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(`
			INSERT INTO analytics.evaluation_reports (report_key, evaluated_at, entity_count, document, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (report_key) DO UPDATE SET
				evaluated_at = EXCLUDED.evaluated_at,
				entity_count = EXCLUDED.entity_count,
				document = EXCLUDED.document,
				updated_at = now()`,
			s.key, report.EvaluatedAt, report.EntityCount, string(data))
		batch.Queue(`
			INSERT INTO analytics.evaluation_report_history (report_key, evaluated_at, entity_count, document)
			VALUES ($1, $2, $3, $4)`,
			s.key, report.EvaluatedAt, report.EntityCount, string(data))

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("write evaluation report: %w", err)
			}
		}
		return br.Close()
	})
}

func (s *PostgresSink) Latest(ctx context.Context) (*contracts.EvaluationReport, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM analytics.evaluation_reports WHERE report_key = $1`,
		s.key,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query evaluation report: %w", err)
	}
	return evaluation.UnmarshalReport(doc)
}
