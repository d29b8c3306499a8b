package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pim-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
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
	updated_attributes TEXT,
	error_kind         TEXT NOT NULL DEFAULT '',
	error_message      TEXT NOT NULL DEFAULT '',
	started_at         DATETIME NOT NULL,
	finished_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_product ON runs(product_uuid, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, r *model.Run) error {
	prepareRun(r)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, product_uuid, product_identifier, kind, prompt_id, mode, file_name, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.ProductUUID, r.ProductIdentifier, string(r.Kind), r.PromptID, string(r.Mode),
		r.FileName, string(r.Status), r.StartedAt,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) FinishRun(ctx context.Context, r *model.Run) error {
	attrs, err := marshalAttrs(r.UpdatedAttributes)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal updated attributes")
	}
	var attrsText, finished any
	if attrs != nil {
		attrsText = string(attrs)
	}
	if r.FinishedAt != nil {
		finished = *r.FinishedAt
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, proposals = ?, selected = ?, updated_attributes = ?,
		 error_kind = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(r.Status), r.Proposals, r.Selected, attrsText,
		string(r.ErrorKind), r.ErrorMessage, finished, r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", r.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run not found: %s", r.ID)
	}
	return nil
}

const sqliteSelect = `SELECT id, session_id, product_uuid, product_identifier, kind, prompt_id, mode, file_name,
	status, proposals, selected, updated_attributes, error_kind, error_message, started_at, finished_at FROM runs`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanSQLiteRun(s.db.QueryRowContext(ctx, sqliteSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: run not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := sqliteSelect + ` WHERE 1=1`
	var args []any
	if filter.ProductUUID != "" {
		query += ` AND product_uuid = ?`
		args = append(args, filter.ProductUUID)
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*model.Run, error) {
	var (
		r                      model.Run
		kind, mode, status, ek string
		attrs                  sql.NullString
		finished               sql.NullTime
	)
	err := row.Scan(&r.ID, &r.SessionID, &r.ProductUUID, &r.ProductIdentifier, &kind, &r.PromptID, &mode,
		&r.FileName, &status, &r.Proposals, &r.Selected, &attrs, &ek, &r.ErrorMessage, &r.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	r.Kind, r.Mode, r.Status, r.ErrorKind = model.RunKind(kind), model.ExtractionMode(mode), model.RunStatus(status), model.ErrorKind(ek)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &r.UpdatedAttributes); err != nil {
			return nil, eris.Wrap(err, "unmarshal updated attributes")
		}
	}
	return &r, nil
}

// marshalAttrs encodes codes as a JSON array, or nil for none.
func marshalAttrs(codes []string) ([]byte, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	return json.Marshal(codes)
}
