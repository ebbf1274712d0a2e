// Package export writes a filtered JEP table as a delimited file or workbook.
package export

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/jep-dashboard/internal/model"
)

// Format names an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", eris.Errorf("export: unknown format %q", s)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FilePrefix starts every export file name.
const FilePrefix = "jeps_filtrados_"

// FileName returns jeps_filtrados_YYYYMMDD_HHMMSS.<ext> for now.
func FileName(now time.Time, f Format) string {
	return FilePrefix + now.Format("20060102_150405") + "." + string(f)
}

// Rows renders the table as a header row followed by one row per record.
// Missing values are empty strings and timestamps use model.TimestampLayout.
func Rows(tbl *model.Table) [][]string {
	rows := make([][]string, 0, tbl.Len()+1)
	rows = append(rows, append([]string(nil), tbl.Columns...))
	for _, rec := range tbl.Records {
		row := make([]string, len(tbl.Columns))
		for i, col := range tbl.Columns {
			row[i], _ = rec.Value(col)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes the table with the given delimiter.
func WriteCSV(w io.Writer, tbl *model.Table, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := cw.WriteAll(Rows(tbl)); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	return nil
}

// SheetName is the worksheet holding exported records.
const SheetName = "JEPs"

// WriteXLSX writes the table as a single-sheet workbook.
func WriteXLSX(w io.Writer, tbl *model.Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	for _, values := range Rows(tbl) {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// Write dispatches on format.
func Write(w io.Writer, tbl *model.Table, f Format, delimiter rune) error {
	if f == FormatXLSX {
		return WriteXLSX(w, tbl)
	}
	return WriteCSV(w, tbl, delimiter)
}
