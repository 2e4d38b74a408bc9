package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults for run bookkeeping.
const (
	DefaultImportTimeout   = 30 * time.Minute
	DefaultResultRetention = 30 * time.Minute
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Options         Options
	MaxConcurrent   int           // Parallel imports
	MaxWait         time.Duration // Wait for a free import slot
	ImportTimeout   time.Duration // Upper bound for one run
	ResultRetention time.Duration // How long finished runs stay queryable
	Logger          *slog.Logger
}

// Service runs the pipeline for callers that need asynchronous imports:
// progress subscriptions, cancellation, failed-row export and rollback.
type Service struct {
	pipeline  *Pipeline
	importer  *Importer
	store     Store
	locks     *StoreLocks
	limiter   *ImportLimiter
	timeout   time.Duration
	retention time.Duration
	logger    *slog.Logger

	mu   sync.RWMutex
	runs map[string]*activeRun
}

// NewService creates a service over a store and schema registry.
func NewService(store Store, reg *Registry, cfg ServiceConfig) *Service {
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}
	if cfg.ResultRetention <= 0 {
		cfg.ResultRetention = DefaultResultRetention
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	locks := NewStoreLocks()
	return &Service{
		pipeline:  NewPipeline(reg, cfg.Options).WithLogger(cfg.Logger),
		importer:  NewImporter(store, locks, cfg.Options).WithLogger(cfg.Logger),
		store:     store,
		locks:     locks,
		limiter:   NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		timeout:   cfg.ImportTimeout,
		retention: cfg.ResultRetention,
		logger:    cfg.Logger,
		runs:      make(map[string]*activeRun),
	}
}

// Registry returns the schema registry.
func (s *Service) Registry() *Registry { return s.pipeline.Registry() }

// Options returns the effective pipeline options.
func (s *Service) Options() Options { return s.pipeline.Options() }

// Analyze runs the pipeline up to validation without touching the store.
func (s *Service) Analyze(req Request) (*Analysis, error) {
	return s.pipeline.Analyze(req)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every running import finished or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
