package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetimport/internal/config"
	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/core/datasets"
)

// maxIssues bounds the invalid rows listed by inspect.
const maxIssues = 10

func newInspectCmd(root *rootOptions) *cobra.Command {
	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show what an import of FILE would do",
		Long: `Run header detection, classification, mapping and validation on FILE
without writing anything.

Examples:
  importctl inspect payroll.xlsx --sheet March
  importctl inspect bank.csv --schema transaction --map amount="Total Due"
  importctl inspect export.csv --locale de-DE`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd, false)
			if err != nil {
				return err
			}
			a, _, err := analyze(cfg, &flags, args[0])
			if err != nil {
				return err
			}
			printAnalysis(cmd.OutOrStdout(), args[0], a)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// analyze loads the registry and runs the pipeline up to validation.
func analyze(cfg *config.Config, flags *pipelineFlags, path string) (*core.Analysis, *core.Pipeline, error) {
	opts, err := flags.options(cfg)
	if err != nil {
		return nil, nil, err
	}
	reg, err := datasets.LoadFile(cfg.Import.RegistryFile)
	if err != nil {
		return nil, nil, err
	}
	req, err := flags.request(path, opts.MaxFileSize)
	if err != nil {
		return nil, nil, err
	}

	p := core.NewPipeline(reg, opts)
	a, err := p.Analyze(req)
	if err != nil {
		return nil, nil, err
	}
	return a, p, nil
}

func printAnalysis(out io.Writer, name string, a *core.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "file:\t%s\n", name)
	if a.Table.Sheet != "" {
		fmt.Fprintf(w, "sheet:\t%s (of %s)\n", a.Table.Sheet, strings.Join(a.Sheets, ", "))
	}
	det := a.Detection
	fmt.Fprintf(w, "header row:\t%d\n", det.HeaderIndex+1)
	fmt.Fprintf(w, "headers:\t%s\n", strings.Join(det.Headers, " | "))
	rows := fmt.Sprintf("%d", len(det.Rows))
	if det.BlankRows > 0 {
		rows += fmt.Sprintf(" (%d blank dropped)", det.BlankRows)
	}
	if det.Truncated {
		rows += " (truncated at the row cap)"
	}
	fmt.Fprintf(w, "rows:\t%s\n", rows)

	schema := fmt.Sprintf("%s -> store %s", a.Schema.ID, a.Schema.StoreID)
	if a.Classification.Fallback {
		schema += " (no keyword matched, first schema used)"
	}
	fmt.Fprintf(w, "schema:\t%s\n", schema)
	var scores []string
	for _, s := range a.Classification.Scores {
		scores = append(scores, fmt.Sprintf("%s=%d", s.SchemaID, s.Score))
	}
	fmt.Fprintf(w, "scores:\t%s\n", strings.Join(scores, " "))
	w.Flush()

	fmt.Fprintln(out, "\nmapping:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	entries := a.Mapping.Entries()
	for _, f := range a.Schema.Fields() {
		header, ok := entries[f.Key]
		switch {
		case ok:
			header = fmt.Sprintf("%q", header)
		case f.Required:
			header = "MISSING"
		default:
			header = "-"
		}
		req := ""
		if f.Required {
			req = "*"
		}
		fmt.Fprintf(w, "  %s%s\t%s\t%s\n", f.Key, req, f.Type, header)
	}
	w.Flush()

	if len(a.Missing) > 0 {
		fmt.Fprintf(out, "\nmissing required fields: %s (set them with --map key=Header)\n", strings.Join(a.Missing, ", "))
		return
	}

	v := a.Validation
	fmt.Fprintf(out, "\nvalidation: %d valid, %d invalid\n", v.Valid, v.Invalid)
	for _, f := range v.Failures {
		fmt.Fprintf(out, "  %s failed in %d row(s)\n", f.Field, f.Count)
	}

	var issues []core.ValidationOutcome
	for _, o := range v.Outcomes {
		if !o.Valid {
			issues = append(issues, o)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].RowIndex < issues[j].RowIndex })
	for i, o := range issues {
		if i == maxIssues {
			fmt.Fprintf(out, "  ... %d more\n", len(issues)-maxIssues)
			break
		}
		fmt.Fprintf(out, "  row %d: %s\n", o.RowIndex+1, o.Reason())
	}
}
