package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pim-enrich/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(5), int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	session_id         TEXT NOT NULL DEFAULT '',
	product_uuid       TEXT NOT NULL,
	product_identifier TEXT NOT NULL DEFAULT '',
	kind               TEXT NOT NULL,
	prompt_id          TEXT NOT NULL DEFAULT '',
	mode               TEXT NOT NULL DEFAULT '',
	file_name          TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'running',
	proposals          INTEGER NOT NULL DEFAULT 0,
	selected           INTEGER NOT NULL DEFAULT 0,
	updated_attributes JSONB,
	error_kind         TEXT NOT NULL DEFAULT '',
	error_message      TEXT NOT NULL DEFAULT '',
	started_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at        TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_runs_product ON runs(product_uuid, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, r *model.Run) error {
	prepareRun(r)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, session_id, product_uuid, product_identifier, kind, prompt_id, mode, file_name, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.SessionID, r.ProductUUID, r.ProductIdentifier, string(r.Kind), r.PromptID, string(r.Mode),
		r.FileName, string(r.Status), r.StartedAt,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) FinishRun(ctx context.Context, r *model.Run) error {
	attrs, err := marshalAttrs(r.UpdatedAttributes)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal updated attributes")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, proposals = $2, selected = $3, updated_attributes = $4,
		 error_kind = $5, error_message = $6, finished_at = $7 WHERE id = $8`,
		string(r.Status), r.Proposals, r.Selected, attrs,
		string(r.ErrorKind), r.ErrorMessage, r.FinishedAt, r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", r.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", r.ID)
	}
	return nil
}

const postgresSelect = `SELECT id, session_id, product_uuid, product_identifier, kind, prompt_id, mode, file_name,
	status, proposals, selected, updated_attributes, error_kind, error_message, started_at, finished_at FROM runs`

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx, postgresSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := postgresSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ProductUUID != "" {
		query += fmt.Sprintf(` AND product_uuid = $%d`, argIdx)
		args = append(args, filter.ProductUUID)
		argIdx++
	}
	if filter.SessionID != "" {
		query += fmt.Sprintf(` AND session_id = $%d`, argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var (
		r                      model.Run
		kind, mode, status, ek string
		attrs                  []byte
	)
	err := row.Scan(&r.ID, &r.SessionID, &r.ProductUUID, &r.ProductIdentifier, &kind, &r.PromptID, &mode,
		&r.FileName, &status, &r.Proposals, &r.Selected, &attrs, &ek, &r.ErrorMessage, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	r.Kind, r.Mode, r.Status, r.ErrorKind = model.RunKind(kind), model.ExtractionMode(mode), model.RunStatus(status), model.ErrorKind(ek)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &r.UpdatedAttributes); err != nil {
			return nil, eris.Wrap(err, "unmarshal updated attributes")
		}
	}
	return &r, nil
}
