package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jep-dashboard/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_RecordAndListLoads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := &model.LoadEvent{Source: "/data/a.csv", Status: model.LoadStatusOK, Signature: "s1", Rows: 10, CreatedAt: base}
	require.NoError(t, st.RecordLoad(ctx, first))
	assert.NotEmpty(t, first.ID)

	require.NoError(t, st.RecordLoad(ctx, &model.LoadEvent{
		Source: "/data/a.csv", Status: model.LoadStatusFailed, Error: "boom", CreatedAt: base.Add(time.Hour),
	}))
	require.NoError(t, st.RecordLoad(ctx, &model.LoadEvent{
		Source: "/data/b.csv", Status: model.LoadStatusNotFound, CreatedAt: base.Add(2 * time.Hour),
	}))

	all, err := st.ListLoads(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/data/b.csv", all[0].Source)

	onlyA, err := st.ListLoads(ctx, ListFilter{Source: "/data/a.csv"})
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, model.LoadStatusFailed, onlyA[0].Status)
	assert.Equal(t, "boom", onlyA[0].Error)
	assert.Equal(t, 10, onlyA[1].Rows)
	assert.True(t, onlyA[1].CreatedAt.Equal(base))

	page, err := st.ListLoads(ctx, ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, model.LoadStatusFailed, page[0].Status)
}

func TestSQLite_LastLoad(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ev, err := st.LastLoad(ctx, "/data/a.csv")
	require.NoError(t, err)
	assert.Nil(t, ev)

	base := time.Now().UTC()
	require.NoError(t, st.RecordLoad(ctx, &model.LoadEvent{Source: "/data/a.csv", Status: model.LoadStatusOK, CreatedAt: base}))
	require.NoError(t, st.RecordLoad(ctx, &model.LoadEvent{Source: "/data/a.csv", Status: model.LoadStatusNotFound, CreatedAt: base.Add(time.Second)}))

	ev, err = st.LastLoad(ctx, "/data/a.csv")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, model.LoadStatusNotFound, ev.Status)
}

func TestSQLite_Exports(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordExport(ctx, model.ExportEvent{
		FileName: "jeps_filtrados_20240101_000000.csv", Format: "csv",
		Status: "Closed", Year: "Todos", Owner: "Todos", Rows: 3,
	}))

	got, err := st.ListExports(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Closed", got[0].Status)
	assert.Equal(t, 3, got[0].Rows)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestSQLite_PruneBefore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordLoad(ctx, &model.LoadEvent{Source: "a", Status: model.LoadStatusOK, CreatedAt: old}))
	require.NoError(t, st.RecordLoad(ctx, &model.LoadEvent{Source: "a", Status: model.LoadStatusOK, CreatedAt: recent}))
	require.NoError(t, st.RecordExport(ctx, model.ExportEvent{FileName: "x.csv", Format: "csv", CreatedAt: old}))

	n, err := st.PruneBefore(ctx, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	loads, err := st.ListLoads(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, loads, 1)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	require.NoError(t, st.RecordLoad(ctx, &model.LoadEvent{Source: "a", Status: model.LoadStatusOK}))
	require.NoError(t, st.Close())

	st, err = Open(ctx, DriverNone, "")
	require.NoError(t, err)
	assert.IsType(t, Discard{}, st)
	loads, err := st.ListLoads(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, loads)

	_, err = Open(ctx, "mongo", "")
	require.Error(t, err)
}

type countingStore struct {
	Discard
	loads []*model.LoadEvent
	err   error
}

func (c *countingStore) RecordLoad(_ context.Context, ev *model.LoadEvent) error {
	c.loads = append(c.loads, ev)
	return c.err
}

func TestLoadRecorder_DedupesRepeats(t *testing.T) {
	cs := &countingStore{}
	r := NewLoadRecorder(cs)
	tbl := &model.Table{Signature: "s1", Records: make([]model.Record, 4)}

	r.Observe("a.csv", tbl, nil, 0)
	r.Observe("a.csv", tbl, nil, 0)
	r.Observe("a.csv", nil, errors.New("bad"), 0)
	r.Observe("a.csv", nil, errors.New("bad again"), 0)
	r.Observe("a.csv", tbl, nil, 0)

	require.Len(t, cs.loads, 3)
	assert.Equal(t, model.LoadStatusOK, cs.loads[0].Status)
	assert.Equal(t, 4, cs.loads[0].Rows)
	assert.Equal(t, model.LoadStatusFailed, cs.loads[1].Status)
	assert.Equal(t, "bad", cs.loads[1].Error)
	assert.Equal(t, model.LoadStatusOK, cs.loads[2].Status)
}

func TestLoadRecorder_StoreErrorIsLogged(t *testing.T) {
	cs := &countingStore{err: errors.New("db down")}
	r := NewLoadRecorder(cs)
	r.Observe("a.csv", &model.Table{}, nil, 0)
	assert.Len(t, cs.loads, 1)
}
