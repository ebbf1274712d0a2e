// Package filter narrows a JEP table by status, creation year and owner.
package filter

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/jep-dashboard/internal/model"
)

// Selection holds one choice per dimension. model.MatchAll or "" disables a
// dimension.
type Selection struct {
	Status string `json:"status"`
	Year   string `json:"year"`
	Owner  string `json:"owner"`
}

// All is the selection that keeps every record.
var All = Selection{Status: model.MatchAll, Year: model.MatchAll, Owner: model.MatchAll}

func active(v string) bool {
	return v != "" && v != model.MatchAll
}

// IsAll reports whether no dimension is restricted.
func (s Selection) IsAll() bool {
	return !active(s.Status) && !active(s.Year) && !active(s.Owner)
}

// Normalize replaces empty dimensions with model.MatchAll.
func (s Selection) Normalize() Selection {
	if !active(s.Status) {
		s.Status = model.MatchAll
	}
	if !active(s.Year) {
		s.Year = model.MatchAll
	}
	if !active(s.Owner) {
		s.Owner = model.MatchAll
	}
	return s
}

// Match reports whether rec satisfies every active dimension.
func (s Selection) Match(rec model.Record) bool {
	if active(s.Status) && rec.Status != s.Status {
		return false
	}
	if active(s.Owner) && rec.Owner != s.Owner {
		return false
	}
	if active(s.Year) {
		year, err := strconv.Atoi(strings.TrimSpace(s.Year))
		if err != nil || rec.YearCreated == nil || *rec.YearCreated != year {
			return false
		}
	}
	return true
}

// Apply returns the records of tbl matching sel, in source order. The result
// shares records with tbl.
func Apply(tbl *model.Table, sel Selection) *model.Table {
	if sel.IsAll() {
		return tbl.WithRecords(tbl.Records)
	}
	out := make([]model.Record, 0, len(tbl.Records))
	for _, rec := range tbl.Records {
		if sel.Match(rec) {
			out = append(out, rec)
		}
	}
	return tbl.WithRecords(out)
}

// Choices lists the selector values offered for each dimension.
type Choices struct {
	Statuses []string `json:"statuses"`
	Years    []string `json:"years"`
	Owners   []string `json:"owners"`
}

// Options derives selector choices from the full table. Statuses and owners
// keep first-seen order; years are ascending with missing years left out.
// Each list starts with model.MatchAll.
func Options(tbl *model.Table) Choices {
	statuses := []string{model.MatchAll}
	owners := []string{model.MatchAll}
	seenStatus := make(map[string]bool)
	seenOwner := make(map[string]bool)
	seenYear := make(map[int]bool)
	var years []int

	for _, rec := range tbl.Records {
		if !seenStatus[rec.Status] {
			seenStatus[rec.Status] = true
			statuses = append(statuses, rec.Status)
		}
		if !seenOwner[rec.Owner] {
			seenOwner[rec.Owner] = true
			owners = append(owners, rec.Owner)
		}
		if rec.YearCreated != nil && !seenYear[*rec.YearCreated] {
			seenYear[*rec.YearCreated] = true
			years = append(years, *rec.YearCreated)
		}
	}

	sort.Ints(years)
	yearChoices := make([]string, 0, len(years)+1)
	yearChoices = append(yearChoices, model.MatchAll)
	for _, y := range years {
		yearChoices = append(yearChoices, strconv.Itoa(y))
	}

	return Choices{Statuses: statuses, Years: yearChoices, Owners: owners}
}

// ParseSelection reads status, year and owner query parameters.
func ParseSelection(q url.Values) Selection {
	return Selection{
		Status: q.Get("status"),
		Year:   q.Get("year"),
		Owner:  q.Get("owner"),
	}.Normalize()
}

// Query encodes the active dimensions as query parameters.
func (s Selection) Query() url.Values {
	q := url.Values{}
	if active(s.Status) {
		q.Set("status", s.Status)
	}
	if active(s.Year) {
		q.Set("year", s.Year)
	}
	if active(s.Owner) {
		q.Set("owner", s.Owner)
	}
	return q
}
