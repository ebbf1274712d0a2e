// Package aggregate computes the chart series and summary metrics shown for a
// filtered JEP table. Every function returns nil when no record qualifies.
package aggregate

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/sells-group/jep-dashboard/internal/model"
)

// Count is one labeled frequency.
type Count struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// Bin is one histogram bucket covering [Lower, Upper). The last bucket also
// includes Upper.
type Bin struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
	Count int     `json:"count" yaml:"count"`
}

const (
	// ChartOwners is the owner count shown in the owners chart.
	ChartOwners = 10
	// SummaryOwners and SummaryStatuses size the quick-stats lists.
	SummaryOwners   = 5
	SummaryStatuses = 3
	// HistogramBins is the default duration histogram resolution.
	HistogramBins = 30
)

var numericRelease = regexp.MustCompile(`^\d+$`)

// IsNumericRelease reports whether a release label is a plain version number.
func IsNumericRelease(release string) bool {
	return numericRelease.MatchString(release)
}

// countBy tallies key(rec) and orders by count descending, ties kept in
// first-seen order.
func countBy(recs []model.Record, key func(model.Record) (string, bool)) []Count {
	index := make(map[string]int)
	var out []Count
	for _, rec := range recs {
		k, ok := key(rec)
		if !ok {
			continue
		}
		if i, seen := index[k]; seen {
			out[i].Count++
			continue
		}
		index[k] = len(out)
		out = append(out, Count{Label: k, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func top(counts []Count, n int) []Count {
	if n > 0 && len(counts) > n {
		return counts[:n]
	}
	return counts
}

func status(r model.Record) (string, bool) { return r.Status, true }
func owner(r model.Record) (string, bool)  { return r.Owner, true }

// StatusDistribution counts records per status.
func StatusDistribution(tbl *model.Table) []Count {
	return countBy(tbl.Records, status)
}

// TopOwners returns the n owners with the most records.
func TopOwners(tbl *model.Table, n int) []Count {
	return top(countBy(tbl.Records, owner), n)
}

// TopStatuses returns the n most frequent statuses.
func TopStatuses(tbl *model.Table, n int) []Count {
	return top(countBy(tbl.Records, status), n)
}

// YearlyCounts counts records per creation year, ascending. Years with no
// records are omitted rather than zero-filled.
func YearlyCounts(tbl *model.Table) []Count {
	byYear := make(map[int]int)
	for _, rec := range tbl.Records {
		if rec.YearCreated != nil {
			byYear[*rec.YearCreated]++
		}
	}
	if len(byYear) == 0 {
		return nil
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	out := make([]Count, len(years))
	for i, y := range years {
		out[i] = Count{Label: strconv.Itoa(y), Count: byYear[y]}
	}
	return out
}

// ReleaseDistribution counts records per numeric release, ordered by version.
func ReleaseDistribution(tbl *model.Table) []Count {
	counts := countBy(tbl.Records, func(r model.Record) (string, bool) {
		return r.Release, IsNumericRelease(r.Release)
	})
	sort.SliceStable(counts, func(i, j int) bool {
		return releaseLess(counts[i].Label, counts[j].Label)
	})
	return counts
}

// releaseLess orders digit strings numerically; "08" and "8" fall back to
// text order.
func releaseLess(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	return a < b
}

// DurationHistogram buckets positive durations into bins equal-width bins
// spanning the observed range. A single distinct value yields one bin.
func DurationHistogram(tbl *model.Table, bins int) []Bin {
	if bins <= 0 {
		bins = HistogramBins
	}
	var vals []float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, rec := range tbl.Records {
		if rec.DurationDays == nil || *rec.DurationDays <= 0 {
			continue
		}
		v := float64(*rec.DurationDays)
		vals = append(vals, v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(vals) == 0 {
		return nil
	}
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(vals)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi
	for _, v := range vals {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

// Summary is the metrics card for a table.
type Summary struct {
	Total            int      `json:"total" yaml:"total"`
	UniqueOwners     int      `json:"unique_owners" yaml:"unique_owners"`
	ReleasesAffected int      `json:"releases_affected" yaml:"releases_affected"`
	MeanDuration     *float64 `json:"mean_duration_days" yaml:"mean_duration_days"`
}

// Summarize computes the metrics card. The mean covers every record with a
// duration, negative ones included.
func Summarize(tbl *model.Table) Summary {
	owners := make(map[string]struct{})
	releases := make(map[string]struct{})
	var sum float64
	var n int
	for _, rec := range tbl.Records {
		owners[rec.Owner] = struct{}{}
		if IsNumericRelease(rec.Release) {
			releases[rec.Release] = struct{}{}
		}
		if rec.DurationDays != nil {
			sum += float64(*rec.DurationDays)
			n++
		}
	}
	s := Summary{
		Total:            tbl.Len(),
		UniqueOwners:     len(owners),
		ReleasesAffected: len(releases),
	}
	if n > 0 {
		mean := sum / float64(n)
		s.MeanDuration = &mean
	}
	return s
}

// MeanDurationLabel renders the mean as whole days, or "N/A".
func (s Summary) MeanDurationLabel() string {
	if s.MeanDuration == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f días", *s.MeanDuration)
}

// QuickStats are the short ranked lists shown beside the charts.
type QuickStats struct {
	TopOwners   []Count `json:"top_owners" yaml:"top_owners"`
	TopStatuses []Count `json:"top_statuses" yaml:"top_statuses"`
}

// Quick computes the top owners and statuses lists.
func Quick(tbl *model.Table) QuickStats {
	return QuickStats{
		TopOwners:   TopOwners(tbl, SummaryOwners),
		TopStatuses: TopStatuses(tbl, SummaryStatuses),
	}
}

// Lines renders counts as "• <label>: <n> JEPs".
func Lines(counts []Count) []string {
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = fmt.Sprintf("• %s: %d JEPs", c.Label, c.Count)
	}
	return out
}

// Charts bundles every series the dashboard draws.
type Charts struct {
	Status   []Count `json:"status"`
	Owners   []Count `json:"owners"`
	Yearly   []Count `json:"yearly"`
	Releases []Count `json:"releases"`
	Duration []Bin   `json:"duration"`
}

// BuildCharts computes all chart series for tbl.
func BuildCharts(tbl *model.Table) Charts {
	return Charts{
		Status:   StatusDistribution(tbl),
		Owners:   TopOwners(tbl, ChartOwners),
		Yearly:   YearlyCounts(tbl),
		Releases: ReleaseDistribution(tbl),
		Duration: DurationHistogram(tbl, HistogramBins),
	}
}
