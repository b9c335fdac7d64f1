// Package postgres provides a Postgres-backed result store so dispatch
// and workers can run in separate processes.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feedlake/social-crawler/internal/crawl"
)

const schema = `
CREATE TABLE IF NOT EXISTS work_results (
	task_id       TEXT PRIMARY KEY,
	target        TEXT NOT NULL,
	posts_fetched INT NOT NULL,
	media_fetched INT NOT NULL,
	failed        BOOLEAN NOT NULL,
	error_text    TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL
)`

const upsertSQL = `
INSERT INTO work_results (task_id, target, posts_fetched, media_fetched, failed, error_text, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (task_id) DO UPDATE SET
	target = EXCLUDED.target,
	posts_fetched = EXCLUDED.posts_fetched,
	media_fetched = EXCLUDED.media_fetched,
	failed = EXCLUDED.failed,
	error_text = EXCLUDED.error_text,
	updated_at = EXCLUDED.updated_at`

const selectSQL = `
SELECT task_id, target, posts_fetched, media_fetched, failed, error_text
FROM work_results
WHERE task_id = $1`

// StoreConfig controls the Postgres connection pool backing the store.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryExecCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store persists work results in a Postgres table keyed by task id.
// Put is an upsert, so re-delivered tasks converge on the latest result.
type Store struct {
	pool queryExecCloser
}

// NewStore connects to Postgres using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("results.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(pool queryExecCloser) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the results table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create work_results table: %w", err)
	}
	return nil
}

// Put upserts the result row for the task.
func (s *Store) Put(ctx context.Context, res crawl.WorkResult) error {
	_, err := s.pool.Exec(ctx, upsertSQL,
		res.TaskID,
		string(res.Target),
		res.PostsFetched,
		res.MediaFetched,
		res.Failed,
		res.ErrorText,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert result for task %s: %w", res.TaskID, err)
	}
	return nil
}

// Get returns the stored result or crawl.ErrResultNotFound.
func (s *Store) Get(ctx context.Context, taskID string) (crawl.WorkResult, error) {
	var (
		res    crawl.WorkResult
		target string
	)
	row := s.pool.QueryRow(ctx, selectSQL, taskID)
	err := row.Scan(&res.TaskID, &target, &res.PostsFetched, &res.MediaFetched, &res.Failed, &res.ErrorText)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawl.WorkResult{}, crawl.ErrResultNotFound
	}
	if err != nil {
		return crawl.WorkResult{}, fmt.Errorf("query result for task %s: %w", taskID, err)
	}
	res.Target = crawl.Target(target)
	return res, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
