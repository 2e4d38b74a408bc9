package core

import (
	"context"
	"fmt"
	"log/slog"
)

// Request describes one pass through the pipeline.
type Request struct {
	Source   Source
	SchemaID string            // Overrides classification when set
	Mapping  map[string]string // Field key -> header overrides; "" unmaps
}

// Analysis is everything computed before the first commit.
type Analysis struct {
	Sheets         []string
	Table          *RawTable
	Detection      *Detection
	Classification *Classification
	Schema         *DatasetSchema
	Mapping        *ColumnMapping
	Missing        []string    // Unmapped required fields
	Validation     *Validation // Nil while the mapping is incomplete
}

// Ready reports whether the analysis can be imported.
func (a *Analysis) Ready() error {
	return a.Mapping.Complete()
}

// Pipeline chains load, detect, classify, map, validate and import with
// explicit configuration.
type Pipeline struct {
	registry *Registry
	opts     Options
	logger   *slog.Logger
}

// NewPipeline creates a pipeline over a schema registry.
func NewPipeline(reg *Registry, opts Options) *Pipeline {
	return &Pipeline{
		registry: reg,
		opts:     opts.withDefaults(),
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger for stage diagnostics.
func (p *Pipeline) WithLogger(l *slog.Logger) *Pipeline {
	p.logger = l
	return p
}

// Registry returns the schema registry.
func (p *Pipeline) Registry() *Registry { return p.registry }

// Options returns the effective options.
func (p *Pipeline) Options() Options { return p.opts }

// Analyze runs every stage up to validation. Fatal input errors are returned;
// an incomplete mapping is not an error here and is reported in Missing.
func (p *Pipeline) Analyze(req Request) (*Analysis, error) {
	sheets, err := SheetNames(req.Source)
	if err != nil {
		return nil, err
	}

	table, err := LoadSheet(req.Source, p.opts)
	if err != nil {
		return nil, err
	}

	det, err := DetectHeader(table, p.opts)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("header detected",
		"sheet", table.Sheet,
		"header_index", det.HeaderIndex,
		"headers", det.Headers,
		"rows", len(det.Rows),
		"blank_rows", det.BlankRows,
		"truncated", det.Truncated)

	cls, err := Classify(det.Headers, p.registry)
	if err != nil {
		return nil, err
	}

	schema := cls.Schema
	if req.SchemaID != "" {
		s, ok := p.registry.Get(req.SchemaID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, req.SchemaID)
		}
		schema = s
	}
	p.logger.Debug("dataset classified",
		"schema", schema.ID,
		"override", req.SchemaID != "",
		"fallback", cls.Fallback)

	mapping := AutoMap(det.Headers, schema, p.opts.Exclusivity)
	if err := mapping.Apply(req.Mapping); err != nil {
		return nil, err
	}

	a := &Analysis{
		Sheets:         sheets,
		Table:          table,
		Detection:      det,
		Classification: cls,
		Schema:         schema,
		Mapping:        mapping,
		Missing:        mapping.Missing(),
	}
	p.logger.Debug("columns mapped", "schema", schema.ID, "mapping", mapping.Entries(), "missing", a.Missing)

	if len(a.Missing) == 0 {
		a.Validation = NewRowValidator(mapping, p.opts.Locale).ValidateAll(det.Rows)
	}
	return a, nil
}

// Import commits an analysis. It refuses to start while required fields are
// unmapped, and revalidates against the current mapping so edits made after
// Analyze take effect.
func (p *Pipeline) Import(ctx context.Context, a *Analysis, im *Importer, runID string, progress ProgressCallback) (*ImportReport, error) {
	if err := a.Ready(); err != nil {
		return nil, err
	}
	a.Missing = nil
	a.Validation = NewRowValidator(a.Mapping, p.opts.Locale).ValidateAll(a.Detection.Rows)

	return im.Run(ctx, ImportInput{
		RunID:     runID,
		Schema:    a.Schema,
		Headers:   a.Detection.Headers,
		Rows:      a.Detection.Rows,
		Outcomes:  a.Validation.Outcomes,
		Truncated: a.Detection.Truncated,
	}, progress)
}

// Run is Analyze followed by Import.
func (p *Pipeline) Run(ctx context.Context, req Request, im *Importer, progress ProgressCallback) (*ImportReport, error) {
	a, err := p.Analyze(req)
	if err != nil {
		return nil, err
	}
	return p.Import(ctx, a, im, "", progress)
}
