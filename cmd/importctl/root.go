package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetimport/internal/config"
	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	envFile  string
	driver   string
	dataDir  string
	registry string
	verbose  bool

	closeLog func() error
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "importctl",
		Short: "Import messy spreadsheets into typed record stores",
		Long: `importctl runs the sheet import pipeline without the HTTP server.

It finds the header row, picks the dataset schema, maps columns to fields,
validates every row and commits the valid ones in batches. Re-running the
same file skips rows that are already stored.

Configuration comes from the environment (and an optional .env file), the
same variables the server reads. Flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog != nil {
				return opts.closeLog()
			}
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load when present")
	cmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "store driver: postgres, json or memory (overrides STORE_DRIVER)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "json store directory (overrides STORE_JSON_DIR)")
	cmd.PersistentFlags().StringVar(&opts.registry, "registry", "", "YAML schema registry (overrides IMPORT_REGISTRY_FILE)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline diagnostics to stderr")

	cmd.AddCommand(newSchemasCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newRunCmd(opts))

	return cmd
}

// load reads configuration and sets up logging. Commands that never touch a
// store fall back to the memory driver so no database is needed.
func (o *rootOptions) load(cmd *cobra.Command, needStore bool) (*config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}

	if o.driver != "" {
		os.Setenv("STORE_DRIVER", o.driver)
	}
	if o.dataDir != "" {
		os.Setenv("STORE_JSON_DIR", o.dataDir)
	}
	if !needStore {
		os.Setenv("STORE_DRIVER", config.DriverMemory)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.registry != "" {
		cfg.Import.RegistryFile = o.registry
	}

	level := cfg.Logging.Level
	if o.verbose {
		level = "debug"
	} else if level == "info" {
		level = "warn"
	}
	logger, closeLog, err := logging.New(cmd.ErrOrStderr(), level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	o.closeLog = closeLog

	return cfg, nil
}

// pipelineFlags are the per-file overrides shared by inspect and run.
type pipelineFlags struct {
	sheet     string
	format    string
	schema    string
	mappings  []string
	locale    string
	exclusive bool
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "workbook sheet to read")
	cmd.Flags().StringVar(&f.format, "format", "", "input format: csv or xlsx (default: from the file name)")
	cmd.Flags().StringVar(&f.schema, "schema", "", "dataset schema id, skipping classification")
	cmd.Flags().StringArrayVarP(&f.mappings, "map", "m", nil, "field mapping override key=Header (repeatable, empty header unmaps)")
	cmd.Flags().StringVar(&f.locale, "locale", "", "parsing locale, e.g. de-DE (overrides IMPORT_LOCALE)")
	cmd.Flags().BoolVar(&f.exclusive, "exclusive", false, "never map one header to several fields")
}

// options applies the flags on top of the configured pipeline options.
func (f *pipelineFlags) options(cfg *config.Config) (core.Options, error) {
	opts := cfg.CoreOptions()
	if f.locale != "" {
		loc, err := core.ParseLocale(f.locale)
		if err != nil {
			return core.Options{}, err
		}
		opts.Locale = loc
	}
	if f.exclusive {
		opts.Exclusivity = core.MappingExclusive
	}
	return opts, nil
}

// request reads the file and builds the pipeline request.
func (f *pipelineFlags) request(path string, maxSize int64) (core.Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return core.Request{}, err
	}
	defer file.Close()

	src, err := core.ReadSource(file, path, maxSize)
	if err != nil {
		return core.Request{}, err
	}
	if src.Format, err = core.ParseFormat(f.format); err != nil {
		return core.Request{}, err
	}
	src.Sheet = f.sheet

	mapping, err := parseMappings(f.mappings)
	if err != nil {
		return core.Request{}, err
	}

	return core.Request{Source: src, SchemaID: f.schema, Mapping: mapping}, nil
}

// parseMappings turns key=Header pairs into an override map.
func parseMappings(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, header, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --map %q: want key=Header", p)
		}
		out[key] = strings.TrimSpace(header)
	}
	return out, nil
}
