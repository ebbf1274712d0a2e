package model

import (
	"math"
	"strconv"
	"time"
)

// Sentinels and fallbacks used when normalizing categorical fields.
const (
	ReviewSentinel  = "REVISAR"
	FallbackUnknown = "Unknown"
	FallbackRelease = "TBD"

	// MatchAll is the selector value that disables a filter dimension.
	MatchAll = "Todos"
)

// Column names as they appear after header normalization.
const (
	ColNumber       = "Number"
	ColTitle        = "Title"
	ColOwner        = "Owner"
	ColStatus       = "Status"
	ColRelease      = "Release"
	ColCreated      = "Created"
	ColUpdated      = "Updated"
	ColYearCreated  = "Year_Created"
	ColDurationDays = "Duration_Days"
)

// TimestampLayout is the text form used when a timestamp leaves the table.
const TimestampLayout = "2006-01-02 15:04:05"

// DerivedColumns are computed by the loader and never read from the source.
var DerivedColumns = []string{ColYearCreated, ColDurationDays}

// RawRecord is a source row before normalization. Every field is optional:
// nil means the column was absent or the cell was empty or unparseable.
type RawRecord struct {
	Number  *string
	Title   *string
	Owner   *string
	Status  *string
	Release *string
	Created *time.Time
	Updated *time.Time
	Extra   map[string]string
}

// Record is a normalized JEP row. Owner, Status and Release always carry a
// value; the remaining source fields stay optional.
type Record struct {
	Number  *string    `json:"number,omitempty"`
	Title   *string    `json:"title,omitempty"`
	Owner   string     `json:"owner"`
	Status  string     `json:"status"`
	Release string     `json:"release"`
	Created *time.Time `json:"created,omitempty"`
	Updated *time.Time `json:"updated,omitempty"`

	YearCreated  *int `json:"year_created,omitempty"`
	DurationDays *int `json:"duration_days,omitempty"`

	// Extra holds columns the file carried beyond the known set.
	Extra map[string]string `json:"extra,omitempty"`
}

// NewRecord applies the fallback rules and computes derived fields.
func NewRecord(raw RawRecord) Record {
	rec := Record{
		Number:  raw.Number,
		Title:   raw.Title,
		Owner:   categorical(raw.Owner, FallbackUnknown),
		Status:  categorical(raw.Status, FallbackUnknown),
		Release: categorical(raw.Release, FallbackRelease),
		Created: raw.Created,
		Updated: raw.Updated,
		Extra:   raw.Extra,
	}

	if rec.Created != nil {
		y := rec.Created.Year()
		rec.YearCreated = &y
	}
	if rec.Created != nil && rec.Updated != nil {
		d := DaysBetween(*rec.Created, *rec.Updated)
		rec.DurationDays = &d
	}
	return rec
}

func categorical(v *string, fallback string) string {
	if v == nil || *v == "" || *v == ReviewSentinel {
		return fallback
	}
	return *v
}

// DaysBetween returns the whole days from start to end, floored, so a
// negative partial day counts as -1.
func DaysBetween(start, end time.Time) int {
	return int(math.Floor(end.Sub(start).Hours() / 24))
}

// Value returns the text form of the named column and whether it is set.
func (r Record) Value(column string) (string, bool) {
	switch column {
	case ColNumber:
		return deref(r.Number)
	case ColTitle:
		return deref(r.Title)
	case ColOwner:
		return r.Owner, true
	case ColStatus:
		return r.Status, true
	case ColRelease:
		return r.Release, true
	case ColCreated:
		return formatTime(r.Created)
	case ColUpdated:
		return formatTime(r.Updated)
	case ColYearCreated:
		return formatInt(r.YearCreated)
	case ColDurationDays:
		return formatInt(r.DurationDays)
	}
	v, ok := r.Extra[column]
	return v, ok
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

func formatTime(t *time.Time) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.Format(TimestampLayout), true
}

func formatInt(n *int) (string, bool) {
	if n == nil {
		return "", false
	}
	return strconv.Itoa(*n), true
}

// Table is an immutable, ordered set of records loaded from one source.
type Table struct {
	Columns   []string
	Records   []Record
	Source    string
	Signature string
	LoadedAt  time.Time
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// HasColumn reports whether the table exposes the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// WithRecords returns a view over the same source and columns holding recs.
func (t *Table) WithRecords(recs []Record) *Table {
	return &Table{
		Columns:   t.Columns,
		Records:   recs,
		Source:    t.Source,
		Signature: t.Signature,
		LoadedAt:  t.LoadedAt,
	}
}

// DefaultTableColumns are preselected in the detail table when present.
var DefaultTableColumns = []string{ColNumber, ColTitle, ColOwner, ColStatus, ColRelease, ColCreated}

// DefaultColumns returns the preferred detail-table columns available in the
// table, or the first six columns when none of them are.
func (t *Table) DefaultColumns() []string {
	var cols []string
	for _, c := range DefaultTableColumns {
		if t.HasColumn(c) {
			cols = append(cols, c)
		}
	}
	if len(cols) > 0 {
		return cols
	}
	if len(t.Columns) > 6 {
		return append([]string(nil), t.Columns[:6]...)
	}
	return append([]string(nil), t.Columns...)
}

// SelectColumns keeps the requested columns the table knows, in request order.
// An empty request yields DefaultColumns.
func (t *Table) SelectColumns(requested []string) []string {
	if len(requested) == 0 {
		return t.DefaultColumns()
	}
	var cols []string
	for _, c := range requested {
		if t.HasColumn(c) {
			cols = append(cols, c)
		}
	}
	return cols
}
