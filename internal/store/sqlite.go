package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/jep-dashboard/internal/model"
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
CREATE TABLE IF NOT EXISTS load_events (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	signature  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	rows       INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS export_events (
	id            TEXT PRIMARY KEY,
	file_name     TEXT NOT NULL,
	format        TEXT NOT NULL,
	status_filter TEXT NOT NULL,
	year_filter   TEXT NOT NULL,
	owner_filter  TEXT NOT NULL,
	rows          INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_load_events_source ON load_events(source, created_at);
CREATE INDEX IF NOT EXISTS idx_export_events_created_at ON export_events(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// stamp fills in the ID and timestamp when the caller left them empty.
func stamp(id *string, at *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if at.IsZero() {
		*at = time.Now().UTC()
	}
}

func (s *SQLiteStore) RecordLoad(ctx context.Context, ev *model.LoadEvent) error {
	stamp(&ev.ID, &ev.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO load_events (id, source, signature, status, rows, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Source, ev.Signature, string(ev.Status), ev.Rows, ev.Error, ev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert load event")
}

func (s *SQLiteStore) ListLoads(ctx context.Context, filter ListFilter) ([]model.LoadEvent, error) {
	query := `SELECT id, source, signature, status, rows, error, created_at FROM load_events WHERE 1=1`
	var args []any
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list loads")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LoadEvent
	for rows.Next() {
		ev, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list loads iterate")
}

func (s *SQLiteStore) LastLoad(ctx context.Context, source string) (*model.LoadEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, signature, status, rows, error, created_at FROM load_events WHERE source = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		source,
	)
	ev, err := scanLoad(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

func (s *SQLiteStore) RecordExport(ctx context.Context, ev model.ExportEvent) error {
	stamp(&ev.ID, &ev.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_events (id, file_name, format, status_filter, year_filter, owner_filter, rows, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.FileName, ev.Format, ev.Status, ev.Year, ev.Owner, ev.Rows, ev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert export event")
}

func (s *SQLiteStore) ListExports(ctx context.Context, filter ListFilter) ([]model.ExportEvent, error) {
	query := `SELECT id, file_name, format, status_filter, year_filter, owner_filter, rows, created_at FROM export_events ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args := []any{filter.limit()}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list exports")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ExportEvent
	for rows.Next() {
		var ev model.ExportEvent
		if err := rows.Scan(&ev.ID, &ev.FileName, &ev.Format, &ev.Status, &ev.Year, &ev.Owner, &ev.Rows, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan export event")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list exports iterate")
}

func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"load_events", "export_events"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, cutoff.UTC())
		if err != nil {
			return total, eris.Wrapf(err, "sqlite: prune %s", table)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, eris.Wrap(err, "rows affected")
		}
		total += n
	}
	return total, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLoad(row scannable) (*model.LoadEvent, error) {
	var ev model.LoadEvent
	var status string
	if err := row.Scan(&ev.ID, &ev.Source, &ev.Signature, &status, &ev.Rows, &ev.Error, &ev.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan load event")
	}
	ev.Status = model.LoadStatus(status)
	return &ev, nil
}
