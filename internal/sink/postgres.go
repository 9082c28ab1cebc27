package sink

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/fetcher/internal/fetcher"
)

const defaultTable = "fetch_results"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool used for result rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
	// CreateTable runs CreateTable once the pool is connected.
	CreateTable bool
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres writes one row per result.
type Postgres struct {
	pool  execCloser
	table string
}

// NewPostgres connects a pool using cfg.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sink.postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p := &Postgres{pool: pool, table: table}
	if cfg.CreateTable {
		if err := p.CreateTable(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return p, nil
}

// NewPostgresWithPool builds a sink over an existing pool.
func NewPostgresWithPool(pool execCloser, table string) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// CreateTable creates the result table if it does not exist.
func (p *Postgres) CreateTable(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	job_id        UUID PRIMARY KEY,
	method        TEXT NOT NULL,
	url           TEXT NOT NULL,
	successful    BOOLEAN NOT NULL,
	status_code   INTEGER,
	reason        TEXT,
	elapsed_ms    BIGINT NOT NULL,
	timed_out     BOOLEAN NOT NULL,
	error         TEXT,
	payload       JSONB,
	body          TEXT,
	response_size INTEGER NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
)`, p.table)
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}
	return nil
}

// Write inserts each result, replacing any earlier row for the same job.
func (p *Postgres) Write(ctx context.Context, results []fetcher.Result) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	method,
	url,
	successful,
	status_code,
	reason,
	elapsed_ms,
	timed_out,
	error,
	payload,
	body,
	response_size,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (job_id) DO UPDATE SET
	successful = EXCLUDED.successful,
	status_code = EXCLUDED.status_code,
	reason = EXCLUDED.reason,
	elapsed_ms = EXCLUDED.elapsed_ms,
	timed_out = EXCLUDED.timed_out,
	error = EXCLUDED.error,
	payload = EXCLUDED.payload,
	body = EXCLUDED.body,
	response_size = EXCLUDED.response_size`, p.table)

	for _, res := range results {
		var payload any
		if len(res.Payload) > 0 {
			payload = []byte(res.Payload)
		}
		// No status code means no response arrived; store NULL.
		var statusCode any
		if res.StatusCode != 0 {
			statusCode = res.StatusCode
		}
		if _, err := p.pool.Exec(ctx, query,
			res.JobID,
			res.Method,
			res.URL,
			res.Successful,
			statusCode,
			res.Reason,
			res.ElapsedMs,
			res.TimedOut,
			res.Error,
			payload,
			res.Body,
			res.ResponseSize,
			res.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert result %s: %w", res.JobID, err)
		}
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
