package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jep-dashboard/internal/model"
)

// JEPColumns are the columns written by SyncJEPs, in row order.
var JEPColumns = []string{
	"number", "title", "owner", "status", "release",
	"created", "updated", "year_created", "duration_days",
	"extra", "source_signature", "synced_at",
}

const jepTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	number           TEXT PRIMARY KEY,
	title            TEXT,
	owner            TEXT NOT NULL,
	status           TEXT NOT NULL,
	release          TEXT NOT NULL,
	created          TIMESTAMPTZ,
	updated          TIMESTAMPTZ,
	year_created     INTEGER,
	duration_days    INTEGER,
	extra            JSONB,
	source_signature TEXT NOT NULL,
	synced_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (status);
`

// EnsureJEPTable creates the target table if it does not exist.
func EnsureJEPTable(ctx context.Context, pool Pool, table string) error {
	id := identifier(table)
	idx := "idx_" + id[len(id)-1] + "_status"
	sql := fmt.Sprintf(jepTableDDL, id.Sanitize(), quoteAndJoin([]string{idx}))
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "db: create table %s", table)
	}
	return nil
}

// JEPRows converts a table to COPY rows. Records without a Number cannot be
// keyed and are counted in skipped instead.
func JEPRows(tbl *model.Table, now time.Time) (rows [][]any, skipped int, err error) {
	rows = make([][]any, 0, tbl.Len())
	for _, rec := range tbl.Records {
		if rec.Number == nil || *rec.Number == "" {
			skipped++
			continue
		}
		var extra any
		if len(rec.Extra) > 0 {
			b, err := json.Marshal(rec.Extra)
			if err != nil {
				return nil, 0, eris.Wrapf(err, "db: marshal extra for %s", *rec.Number)
			}
			extra = string(b)
		}
		rows = append(rows, []any{
			*rec.Number, rec.Title, rec.Owner, rec.Status, rec.Release,
			rec.Created, rec.Updated, rec.YearCreated, rec.DurationDays,
			extra, tbl.Signature, now,
		})
	}
	return rows, skipped, nil
}

// SyncResult reports what SyncJEPs wrote.
type SyncResult struct {
	Upserted int64 `json:"upserted"`
	Skipped  int   `json:"skipped"`
}

// SyncJEPs upserts every keyed record of tbl into table by number.
func SyncJEPs(ctx context.Context, pool Pool, table string, tbl *model.Table) (SyncResult, error) {
	rows, skipped, err := JEPRows(tbl, time.Now().UTC())
	if err != nil {
		return SyncResult{}, err
	}
	if skipped > 0 {
		zap.L().Warn("sync: records without number skipped", zap.Int("skipped", skipped))
	}

	n, err := BulkUpsert(ctx, pool, UpsertConfig{
		Table:        table,
		Columns:      JEPColumns,
		ConflictKeys: []string{"number"},
	}, rows)
	if err != nil {
		return SyncResult{Skipped: skipped}, err
	}
	return SyncResult{Upserted: n, Skipped: skipped}, nil
}
