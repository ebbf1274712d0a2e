package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func timePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestNewRecord_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawRecord
		owner   string
		status  string
		release string
	}{
		{"all nil", RawRecord{}, FallbackUnknown, FallbackUnknown, FallbackRelease},
		{"sentinel", RawRecord{
			Owner:   strPtr(ReviewSentinel),
			Status:  strPtr(ReviewSentinel),
			Release: strPtr(ReviewSentinel),
		}, FallbackUnknown, FallbackUnknown, FallbackRelease},
		{"empty cells", RawRecord{
			Owner: strPtr(""), Status: strPtr(""), Release: strPtr(""),
		}, FallbackUnknown, FallbackUnknown, FallbackRelease},
		{"values kept", RawRecord{
			Owner: strPtr("Mark Reinhold"), Status: strPtr("Closed"), Release: strPtr("17"),
		}, "Mark Reinhold", "Closed", "17"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord(tt.raw)
			assert.Equal(t, tt.owner, rec.Owner)
			assert.Equal(t, tt.status, rec.Status)
			assert.Equal(t, tt.release, rec.Release)
		})
	}
}

func TestNewRecord_DerivedFields(t *testing.T) {
	rec := NewRecord(RawRecord{
		Created: timePtr("2023-01-01 00:00:00"),
		Updated: timePtr("2023-01-11 00:00:00"),
	})
	require.NotNil(t, rec.YearCreated)
	assert.Equal(t, 2023, *rec.YearCreated)
	require.NotNil(t, rec.DurationDays)
	assert.Equal(t, 10, *rec.DurationDays)

	rec = NewRecord(RawRecord{Created: timePtr("2023-02-01 00:00:00")})
	require.NotNil(t, rec.YearCreated)
	assert.Nil(t, rec.DurationDays)

	rec = NewRecord(RawRecord{Updated: timePtr("2023-02-01 00:00:00")})
	assert.Nil(t, rec.YearCreated)
	assert.Nil(t, rec.DurationDays)
}

func TestNewRecord_NegativeDuration(t *testing.T) {
	rec := NewRecord(RawRecord{
		Created: timePtr("2023-01-11 00:00:00"),
		Updated: timePtr("2023-01-01 00:00:00"),
	})
	require.NotNil(t, rec.DurationDays)
	assert.Equal(t, -10, *rec.DurationDays)
}

func TestDaysBetween_PartialDays(t *testing.T) {
	start := *timePtr("2023-01-01 12:00:00")
	assert.Equal(t, 0, DaysBetween(start, start.Add(23*time.Hour)))
	assert.Equal(t, 1, DaysBetween(start, start.Add(25*time.Hour)))
	assert.Equal(t, -1, DaysBetween(start, start.Add(-time.Hour)))
}

func TestRecord_Value(t *testing.T) {
	rec := NewRecord(RawRecord{
		Number:  strPtr("400"),
		Created: timePtr("2021-03-04 05:06:07"),
		Extra:   map[string]string{"Component": "core"},
	})

	v, ok := rec.Value(ColNumber)
	assert.True(t, ok)
	assert.Equal(t, "400", v)

	v, ok = rec.Value(ColCreated)
	assert.True(t, ok)
	assert.Equal(t, "2021-03-04 05:06:07", v)

	v, ok = rec.Value(ColYearCreated)
	assert.True(t, ok)
	assert.Equal(t, "2021", v)

	_, ok = rec.Value(ColTitle)
	assert.False(t, ok)
	_, ok = rec.Value(ColDurationDays)
	assert.False(t, ok)

	v, ok = rec.Value("Component")
	assert.True(t, ok)
	assert.Equal(t, "core", v)
}

func TestTable_DefaultColumns(t *testing.T) {
	tbl := &Table{Columns: []string{"Title", "Owner", "Status", "Release", "Created", "Updated", "Number"}}
	assert.Equal(t, []string{"Number", "Title", "Owner", "Status", "Release", "Created"}, tbl.DefaultColumns())

	tbl = &Table{Columns: []string{"a", "b", "c", "d", "e", "f", "g"}}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, tbl.DefaultColumns())
}

func TestTable_SelectColumns(t *testing.T) {
	tbl := &Table{Columns: []string{"Number", "Title", "Owner"}}
	assert.Equal(t, []string{"Owner", "Number"}, tbl.SelectColumns([]string{"Owner", "Bogus", "Number"}))
	assert.Equal(t, []string{"Number", "Title", "Owner"}, tbl.SelectColumns(nil))
}
