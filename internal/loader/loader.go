// Package loader reads the JEP dataset into an immutable model.Table.
package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/jep-dashboard/internal/fetcher"
	"github.com/sells-group/jep-dashboard/internal/model"
)

// Options controls how the source file is parsed.
type Options struct {
	Delimiter rune   // default ';'
	Encoding  string // WHATWG label, default utf-8
	Sheet     string // xlsx sheet name; first sheet when empty
}

// ErrSourceNotFound is wrapped by every not-found LoadError.
var ErrSourceNotFound = errors.New("source file not found")

// ErrorKind classifies load failures.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindLoadFailed ErrorKind = "load_failed"
)

// LoadError is returned for every failed load; no table accompanies it.
type LoadError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return string(e.Kind) + ": " + e.Path + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Message is the text shown to a user in place of charts and tables.
func (e *LoadError) Message() string {
	if e.Kind == KindNotFound {
		return "No se encontró el archivo '" + filepath.Base(e.Path) + "'. Colócalo en el directorio configurado."
	}
	return "Error al cargar los datos: " + e.Err.Error()
}

// AsLoadError extracts a *LoadError from err.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	ok := errors.As(err, &le)
	return le, ok
}

func notFound(path string) error {
	return &LoadError{Kind: KindNotFound, Path: path, Err: ErrSourceNotFound}
}

func failed(path string, err error) error {
	return &LoadError{Kind: KindLoadFailed, Path: path, Err: err}
}

// Load reads and parses the file at path without caching.
func Load(ctx context.Context, path string, opts Options) (*model.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path)
		}
		return nil, failed(path, eris.Wrap(err, "read source"))
	}
	return Parse(ctx, data, path, opts)
}

// Signature is the content identity used by the cache.
func Signature(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Parse builds a table from raw file bytes. source names the file in errors
// and selects the format by extension.
func Parse(ctx context.Context, data []byte, source string, opts Options) (*model.Table, error) {
	rows, err := readRows(ctx, data, source, opts)
	if err != nil {
		return nil, failed(source, err)
	}

	tbl, err := buildTable(rows)
	if err != nil {
		return nil, failed(source, err)
	}
	tbl.Source = source
	tbl.Signature = Signature(data)
	tbl.LoadedAt = time.Now().UTC()
	return tbl, nil
}

func isXLSX(source string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(source), ".xlsx") || bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func readRows(ctx context.Context, data []byte, source string, opts Options) ([][]string, error) {
	if isXLSX(source, data) {
		return fetcher.ReadXLSXBytes(data, fetcher.XLSXOptions{SheetName: opts.Sheet})
	}

	label := opts.Encoding
	if label == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "unsupported encoding %q", label)
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = ';'
	}
	return fetcher.ReadCSV(ctx, enc.NewDecoder().Reader(bytes.NewReader(data)), fetcher.CSVOptions{
		Delimiter:  delim,
		LazyQuotes: true,
	})
}

// NormalizeColumn trims a header and collapses inner whitespace runs to "_".
func NormalizeColumn(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

// normalizeHeader normalizes names and suffixes duplicates as name.1, name.2.
func normalizeHeader(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		name := NormalizeColumn(h)
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func buildTable(rows [][]string) (*model.Table, error) {
	if len(rows) == 0 {
		return nil, eris.New("no columns to parse from file")
	}

	header := normalizeHeader(rows[0])
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	records := make([]model.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) > len(header) {
			for _, extra := range row[len(header):] {
				if extra != "" {
					return nil, eris.Errorf("line %d: expected %d fields, saw %d", n+2, len(header), len(row))
				}
			}
		}
		records = append(records, model.NewRecord(rawRecord(header, index, row)))
	}

	return &model.Table{Columns: tableColumns(header, index), Records: records}, nil
}

func cell(index map[string]int, row []string, column string) (string, bool) {
	i, ok := index[column]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}

func textField(index map[string]int, row []string, column string) *string {
	v, ok := cell(index, row, column)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func timeField(index map[string]int, row []string, column string) *time.Time {
	v, ok := cell(index, row, column)
	if !ok {
		return nil
	}
	return ParseTimestamp(v)
}

// ParseTimestamp parses common date and datetime forms; anything else is nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

var knownColumns = map[string]bool{
	model.ColNumber: true, model.ColTitle: true, model.ColOwner: true,
	model.ColStatus: true, model.ColRelease: true, model.ColCreated: true,
	model.ColUpdated: true, model.ColYearCreated: true, model.ColDurationDays: true,
}

func rawRecord(header []string, index map[string]int, row []string) model.RawRecord {
	raw := model.RawRecord{
		Number:  textField(index, row, model.ColNumber),
		Title:   textField(index, row, model.ColTitle),
		Owner:   textField(index, row, model.ColOwner),
		Status:  textField(index, row, model.ColStatus),
		Release: textField(index, row, model.ColRelease),
		Created: timeField(index, row, model.ColCreated),
		Updated: timeField(index, row, model.ColUpdated),
	}
	for i, h := range header {
		if knownColumns[h] {
			continue
		}
		if raw.Extra == nil {
			raw.Extra = make(map[string]string)
		}
		if i < len(row) {
			raw.Extra[h] = row[i]
		} else {
			raw.Extra[h] = ""
		}
	}
	return raw
}

// tableColumns keeps the file's header order and appends synthesized columns
// in the order the pipeline creates them.
func tableColumns(header []string, index map[string]int) []string {
	cols := append([]string(nil), header...)
	appendMissing := func(names ...string) {
		for _, n := range names {
			if _, ok := index[n]; !ok {
				cols = append(cols, n)
			}
		}
	}
	appendMissing(model.ColCreated, model.ColUpdated)
	appendMissing(model.DerivedColumns...)
	appendMissing(model.ColStatus, model.ColOwner, model.ColRelease)
	return cols
}
