package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/store"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		flags      pipelineFlags
		errorsPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Import FILE into its record store",
		Long: `Import FILE: detect, classify, map, validate, then commit valid rows in
batches. Rows whose natural key is already stored are skipped, so re-running
a file is safe. Ctrl-C stops before the next batch; committed rows stay.

Examples:
  importctl run payroll.csv
  importctl run bank.csv --schema transaction --map amount=Debit --errors failed.csv
  importctl run vendors.xlsx --sheet Suppliers --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd, !dryRun)
			if err != nil {
				return err
			}
			a, p, err := analyze(cfg, &flags, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				printAnalysis(out, args[0], a)
				if err := a.Ready(); err != nil {
					return err
				}
				fmt.Fprintln(out, "\ndry run: nothing was written")
				return writeErrorReport(out, errorsPath, a.Detection.Headers, validationFailures(a))
			}

			if err := a.Ready(); err != nil {
				return err
			}

			backend, closeStore, err := store.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			im := core.NewImporter(backend, nil, p.Options()).WithLogger(slog.Default())
			progress := func(pr core.Progress) {
				slog.Debug("import progress",
					"run_id", pr.RunID, "phase", pr.Phase,
					"current", pr.Current, "total", pr.Total)
			}

			report, runErr := p.Import(ctx, a, im, "", progress)
			if report == nil {
				return runErr
			}
			printReport(out, args[0], report)

			if err := writeErrorReport(out, errorsPath, report.Headers, report.FailedRows); err != nil {
				return err
			}
			return runErr
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&errorsPath, "errors", "", "write failed rows to this file (.csv or .xlsx)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "validate only, write nothing to the store")
	return cmd
}

func printReport(out io.Writer, name string, r *core.ImportReport) {
	fmt.Fprintf(out, "file:      %s\n", name)
	fmt.Fprintf(out, "schema:    %s -> store %s\n", r.SchemaID, r.StoreID)
	fmt.Fprintf(out, "run id:    %s\n", r.RunID)
	fmt.Fprintf(out, "attempted: %d of %d\n", r.Attempted, r.Total)
	fmt.Fprintf(out, "imported:  %d\n", r.Imported)
	fmt.Fprintf(out, "skipped:   %d\n", r.Skipped)
	fmt.Fprintf(out, "failed:    %d\n", r.Failed)
	if r.Truncated {
		fmt.Fprintln(out, "note:      rows beyond the row cap were ignored")
	}
	if r.Cancelled {
		fmt.Fprintln(out, "note:      cancelled; committed rows were kept")
	}
	fmt.Fprintf(out, "took:      %s\n", r.Duration.Round(1e6))
}

// validationFailures lists invalid rows of an analysis in the report layout.
func validationFailures(a *core.Analysis) []core.FailedRow {
	failed := []core.FailedRow{}
	for i, o := range a.Validation.Outcomes {
		if o.Valid {
			continue
		}
		failed = append(failed, core.FailedRow{
			RowIndex: o.RowIndex,
			Reason:   o.Reason(),
			Values:   append([]string(nil), a.Detection.Rows[i].Cells...),
		})
	}
	return failed
}

// writeErrorReport writes failed rows when a path was given. The extension
// picks the format.
func writeErrorReport(out io.Writer, path string, headers []string, failed []core.FailedRow) error {
	if path == "" {
		return nil
	}

	format := core.FormatDelimited
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		format = core.FormatWorkbook
	}

	data, err := core.ErrorReportBytes(format, headers, failed)
	if err != nil {
		return fmt.Errorf("render error report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write error report: %w", err)
	}
	fmt.Fprintf(out, "failed rows: %d written to %s\n", len(failed), path)
	return nil
}

// exitMessage renders err for the terminal.
func exitMessage(err error) string {
	var incomplete *core.MappingIncompleteError
	if errors.As(err, &incomplete) {
		return fmt.Sprintf("%s\nuse --map key=Header to assign: %s", core.FormatUserError(err), strings.Join(incomplete.Missing, ", "))
	}
	if core.IsUserFacing(err) {
		return fmt.Sprintf("%s\n%v", core.FormatUserError(err), err)
	}
	return err.Error()
}
