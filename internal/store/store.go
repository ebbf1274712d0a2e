// Package store persists the load and export history of the dashboard.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jep-dashboard/internal/model"
)

// ListFilter specifies criteria for listing history.
type ListFilter struct {
	Source string `json:"source,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

const defaultLimit = 100

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return defaultLimit
	}
	return f.Limit
}

// Store defines the persistence interface for dashboard history.
type Store interface {
	// Loads
	RecordLoad(ctx context.Context, ev *model.LoadEvent) error
	ListLoads(ctx context.Context, filter ListFilter) ([]model.LoadEvent, error)
	LastLoad(ctx context.Context, source string) (*model.LoadEvent, error)

	// Exports
	RecordExport(ctx context.Context, ev model.ExportEvent) error
	ListExports(ctx context.Context, filter ListFilter) ([]model.ExportEvent, error)

	// Retention
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open connects to the configured backend and runs migrations. DriverNone
// returns a Store that keeps nothing.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case DriverSQLite, "":
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, nil)
	case DriverNone:
		return Discard{}, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// Discard is a Store that records nothing and lists nothing.
type Discard struct{}

func (Discard) RecordLoad(context.Context, *model.LoadEvent) error { return nil }
func (Discard) ListLoads(context.Context, ListFilter) ([]model.LoadEvent, error) {
	return nil, nil
}
func (Discard) LastLoad(context.Context, string) (*model.LoadEvent, error) { return nil, nil }
func (Discard) RecordExport(context.Context, model.ExportEvent) error      { return nil }
func (Discard) ListExports(context.Context, ListFilter) ([]model.ExportEvent, error) {
	return nil, nil
}
func (Discard) PruneBefore(context.Context, time.Time) (int64, error) { return 0, nil }
func (Discard) Migrate(context.Context) error                        { return nil }
func (Discard) Close() error                                          { return nil }
