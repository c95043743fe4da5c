package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lidoDigest/internal/model"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS digest_runs (
	end_date    TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	start_date  TEXT NOT NULL,
	sol_start   DOUBLE PRECISION NOT NULL,
	sol_end     DOUBLE PRECISION NOT NULL,
	summaries   JSONB NOT NULL,
	thread      TEXT NOT NULL,
	thread_path TEXT NOT NULL,
	charts      JSONB NOT NULL,
	delivered   BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS digest_state (
	name          TEXT PRIMARY KEY,
	last_end_date TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

const stateName = "digest"

// Store provides Postgres persistence for digest runs.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// PutRun upserts a run keyed by its end date and advances the digest state.
func (s *Store) PutRun(ctx context.Context, run model.DigestRun) error {
	summaries, err := json.Marshal(run.Summaries)
	if err != nil {
		return fmt.Errorf("marshal summaries: %w", err)
	}
	charts := run.Charts
	if charts == nil {
		charts = []string{}
	}
	chartsJSON, err := json.Marshal(charts)
	if err != nil {
		return fmt.Errorf("marshal charts: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO digest_runs (
			end_date, run_id, start_date, sol_start, sol_end, summaries, thread, thread_path,
			charts, delivered, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
		ON CONFLICT (end_date)
		DO UPDATE SET
			run_id = EXCLUDED.run_id,
			start_date = EXCLUDED.start_date,
			sol_start = EXCLUDED.sol_start,
			sol_end = EXCLUDED.sol_end,
			summaries = EXCLUDED.summaries,
			thread = EXCLUDED.thread,
			thread_path = EXCLUDED.thread_path,
			charts = EXCLUDED.charts,
			delivered = EXCLUDED.delivered,
			updated_at = now()
	`,
		run.EndDate,
		run.ID,
		run.StartDate,
		run.SolStart,
		run.SolEnd,
		summaries,
		run.Thread,
		run.ThreadPath,
		chartsJSON,
		run.Delivered,
		run.CreatedAt,
	)
	batch.Queue(`
		INSERT INTO digest_state (name, last_end_date, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_end_date = GREATEST(digest_state.last_end_date, EXCLUDED.last_end_date), updated_at = now()
	`, stateName, run.EndDate)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LastEndDate returns the end date of the most recent archived digest.
func (s *Store) LastEndDate(ctx context.Context) (string, bool, error) {
	var endDate string
	row := s.pool.QueryRow(ctx, `SELECT last_end_date FROM digest_state WHERE name=$1`, stateName)
	if err := row.Scan(&endDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return endDate, true, nil
}
