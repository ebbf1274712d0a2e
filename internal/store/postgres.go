package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jep-dashboard/internal/db"
	"github.com/sells-group/jep-dashboard/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
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

	maxConns := int32(4)
	minConns := int32(1)
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

// Pool returns the underlying pool so sync can share the connection.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS load_events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	signature  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	rows       INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS export_events (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	file_name     TEXT NOT NULL,
	format        TEXT NOT NULL,
	status_filter TEXT NOT NULL,
	year_filter   TEXT NOT NULL,
	owner_filter  TEXT NOT NULL,
	rows          INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_load_events_source ON load_events(source, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_export_events_created_at ON export_events(created_at DESC);
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

func (s *PostgresStore) RecordLoad(ctx context.Context, ev *model.LoadEvent) error {
	stamp(&ev.ID, &ev.CreatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO load_events (id, source, signature, status, rows, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.Source, ev.Signature, string(ev.Status), ev.Rows, ev.Error, ev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert load event")
}

func (s *PostgresStore) ListLoads(ctx context.Context, filter ListFilter) ([]model.LoadEvent, error) {
	query := `SELECT id, source, signature, status, rows, error, created_at FROM load_events`
	args := []any{}
	if filter.Source != "" {
		query += ` WHERE source = $1`
		args = append(args, filter.Source)
	}
	args = append(args, filter.limit(), filter.Offset)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list loads")
	}
	defer rows.Close()

	var out []model.LoadEvent
	for rows.Next() {
		var ev model.LoadEvent
		var status string
		if err := rows.Scan(&ev.ID, &ev.Source, &ev.Signature, &status, &ev.Rows, &ev.Error, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan load event")
		}
		ev.Status = model.LoadStatus(status)
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list loads iterate")
}

func (s *PostgresStore) LastLoad(ctx context.Context, source string) (*model.LoadEvent, error) {
	var ev model.LoadEvent
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, source, signature, status, rows, error, created_at FROM load_events WHERE source = $1 ORDER BY created_at DESC LIMIT 1`,
		source,
	).Scan(&ev.ID, &ev.Source, &ev.Signature, &status, &ev.Rows, &ev.Error, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last load")
	}
	ev.Status = model.LoadStatus(status)
	return &ev, nil
}

func (s *PostgresStore) RecordExport(ctx context.Context, ev model.ExportEvent) error {
	stamp(&ev.ID, &ev.CreatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO export_events (id, file_name, format, status_filter, year_filter, owner_filter, rows, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.FileName, ev.Format, ev.Status, ev.Year, ev.Owner, ev.Rows, ev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert export event")
}

func (s *PostgresStore) ListExports(ctx context.Context, filter ListFilter) ([]model.ExportEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_name, format, status_filter, year_filter, owner_filter, rows, created_at FROM export_events ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		filter.limit(), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list exports")
	}
	defer rows.Close()

	var out []model.ExportEvent
	for rows.Next() {
		var ev model.ExportEvent
		if err := rows.Scan(&ev.ID, &ev.FileName, &ev.Format, &ev.Status, &ev.Year, &ev.Owner, &ev.Rows, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan export event")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list exports iterate")
}

func (s *PostgresStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"load_events", "export_events"} {
		tag, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE created_at < $1`, cutoff)
		if err != nil {
			return total, eris.Wrapf(err, "postgres: prune %s", table)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
