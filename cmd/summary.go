package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/jep-dashboard/internal/aggregate"
	"github.com/sells-group/jep-dashboard/internal/filter"
	"github.com/sells-group/jep-dashboard/internal/model"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print metrics and top owners/statuses for a filtered view",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sel := selectionFromFlags(cmd)
		format, _ := cmd.Flags().GetString("format")

		_, filtered, err := loadFiltered(cmd.Context(), cfg, sel)
		if err != nil {
			return err
		}
		return writeSummary(os.Stdout, buildSummaryReport(filtered, sel), format)
	},
}

// summaryReport is the machine-readable summary output.
type summaryReport struct {
	Source            string               `json:"source" yaml:"source"`
	Selection         filter.Selection     `json:"selection" yaml:"selection"`
	Summary           aggregate.Summary    `json:"summary" yaml:"summary"`
	MeanDurationLabel string               `json:"mean_duration_label" yaml:"mean_duration_label"`
	Quick             aggregate.QuickStats `json:"quick" yaml:"quick"`
	Releases          []aggregate.Count    `json:"releases" yaml:"releases"`
	Yearly            []aggregate.Count    `json:"yearly" yaml:"yearly"`
}

func buildSummaryReport(tbl *model.Table, sel filter.Selection) summaryReport {
	sum := aggregate.Summarize(tbl)
	return summaryReport{
		Source:            tbl.Source,
		Selection:         sel,
		Summary:           sum,
		MeanDurationLabel: sum.MeanDurationLabel(),
		Quick:             aggregate.Quick(tbl),
		Releases:          aggregate.ReleaseDistribution(tbl),
		Yearly:            aggregate.YearlyCounts(tbl),
	}
}

func writeSummary(w io.Writer, r summaryReport, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(r), "summary: encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close() //nolint:errcheck
		return eris.Wrap(enc.Encode(r), "summary: encode yaml")
	case "text", "":
		formatSummaryText(w, r)
		return nil
	default:
		return eris.Errorf("summary: unknown format %q (use text, json or yaml)", format)
	}
}

func formatSummaryText(w io.Writer, r summaryReport) {
	fmt.Fprintf(w, "Fuente: %s\n", r.Source)
	fmt.Fprintf(w, "Filtros: estado=%s año=%s autor=%s\n\n", r.Selection.Status, r.Selection.Year, r.Selection.Owner)

	fmt.Fprintf(w, "Total JEPs:          %d\n", r.Summary.Total)
	fmt.Fprintf(w, "Autores Únicos:      %d\n", r.Summary.UniqueOwners)
	fmt.Fprintf(w, "Releases Afectados:  %d\n", r.Summary.ReleasesAffected)
	fmt.Fprintf(w, "Duración Promedio:   %s\n", r.MeanDurationLabel)

	if r.Summary.Total == 0 {
		fmt.Fprintln(w, "\nNo hay datos disponibles para los filtros seleccionados.")
		return
	}

	fmt.Fprintln(w, "\nTop 5 Autores:")
	for _, line := range aggregate.Lines(r.Quick.TopOwners) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, "\nEstados Principales:")
	for _, line := range aggregate.Lines(r.Quick.TopStatuses) {
		fmt.Fprintln(w, line)
	}
}

func init() {
	addSelectionFlags(summaryCmd)
	summaryCmd.Flags().String("format", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(summaryCmd)
}
