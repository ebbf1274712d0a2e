package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jep-dashboard/internal/model"
)

func strPtr(s string) *string { return &s }

func sampleTable() *model.Table {
	created := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.AddDate(0, 0, 5)
	return &model.Table{
		Signature: "abc",
		Records: []model.Record{
			model.NewRecord(model.RawRecord{
				Number: strPtr("400"), Title: strPtr("UTF-8"), Owner: strPtr("Naoto"),
				Created: &created, Updated: &updated,
				Extra: map[string]string{"Component": "core"},
			}),
			model.NewRecord(model.RawRecord{Title: strPtr("no number")}),
			model.NewRecord(model.RawRecord{Number: strPtr("401")}),
		},
	}
}

func TestJEPRows(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, skipped, err := JEPRows(sampleTable(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 2)
	require.Len(t, rows[0], len(JEPColumns))

	assert.Equal(t, "400", rows[0][0])
	assert.Equal(t, "Naoto", rows[0][2])
	assert.Equal(t, "TBD", rows[0][4])
	assert.Equal(t, 5, *rows[0][8].(*int))
	assert.JSONEq(t, `{"Component":"core"}`, rows[0][9].(string))
	assert.Equal(t, "abc", rows[0][10])
	assert.Equal(t, now, rows[0][11])

	assert.Nil(t, rows[1][9])
	assert.Equal(t, "Unknown", rows[1][3])
}

func TestEnsureJEPTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "public"."jeps"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, EnsureJEPTable(context.Background(), mock, "public.jeps"))

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "jeps"`).WillReturnError(errors.New("denied"))
	err = EnsureJEPTable(context.Background(), mock, "jeps")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create table jeps")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncJEPs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_jeps"}, JEPColumns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	res, err := SyncJEPs(context.Background(), mock, "jeps", sampleTable())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Upserted: 2, Skipped: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}
