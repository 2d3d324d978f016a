package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/natserract/zoho/crmexport/schema/postgres"
	"github.com/natserract/zoho/pkg/config"
	zohocrm "github.com/natserract/zoho/pkg/zoho/crm"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	DefaultPerPage     = 200
	DefaultConcurrency = 4
)

// RecordStore persists exported records. *postgres.ExportStore implements it.
type RecordStore interface {
	CreateExportRun(ctx context.Context, module string) (uuid.UUID, error)
	SaveRecords(ctx context.Context, runID uuid.UUID, module string, records []postgres.Record) error
	CompleteExportRun(ctx context.Context, runID uuid.UUID, status string, recordsExported int, runErr error) error
}

var _ RecordStore = (*postgres.ExportStore)(nil)

// ExportOptions controls which modules are exported and how.
type ExportOptions struct {
	Modules     []string
	Fields      []string
	PerPage     int
	Concurrency int

	// Retry settings for pages that fail in transport. Zero values use
	// the defaults below.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

func (o *ExportOptions) applyDefaults() {
	if o.PerPage <= 0 {
		o.PerPage = DefaultPerPage
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.InitialInterval == 0 {
		o.InitialInterval = 500 * time.Millisecond
	}
	if o.MaxInterval == 0 {
		o.MaxInterval = 10 * time.Second
	}
	if o.MaxElapsed == 0 {
		o.MaxElapsed = 2 * time.Minute
	}
}

// ExportMetrics tracks the overall export operation metrics
type ExportMetrics struct {
	ModulesSucceeded int
	ModulesFailed    int
	RecordsExported  int
	PagesFetched     int
	PageRetries      int
	mu               sync.Mutex
}

// AddModuleSuccess increments the modules succeeded count
func (m *ExportMetrics) AddModuleSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ModulesSucceeded++
}

// AddModuleFailure increments the modules failed count
func (m *ExportMetrics) AddModuleFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ModulesFailed++
}

// AddPage records one fetched page and the records it carried
func (m *ExportMetrics) AddPage(records int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PagesFetched++
	m.RecordsExported += records
}

// AddRetry increments the page retry count
func (m *ExportMetrics) AddRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PageRetries++
}

// Snapshot returns a copy of the counters that is safe to read.
func (m *ExportMetrics) Snapshot() ExportMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ExportMetrics{
		ModulesSucceeded: m.ModulesSucceeded,
		ModulesFailed:    m.ModulesFailed,
		RecordsExported:  m.RecordsExported,
		PagesFetched:     m.PagesFetched,
		PageRetries:      m.PageRetries,
	}
}

// ExportService copies whole CRM modules into a RecordStore.
type ExportService struct {
	cfg    *config.Config
	store  RecordStore
	logger *zap.Logger
}

// NewExportService creates a new export service
func NewExportService(cfg *config.Config, store RecordStore, logger *zap.Logger) *ExportService {
	return &ExportService{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// ExportModules fetches one access token and then exports every module
// concurrently. Each worker gets its own client seeded with that token, so
// no worker fetches a token of its own. A failed module does not stop the
// others; the returned error joins every module failure.
func (s *ExportService) ExportModules(ctx context.Context, opts ExportOptions) (*ExportMetrics, error) {
	opts.applyDefaults()
	metrics := &ExportMetrics{}

	if len(opts.Modules) == 0 {
		return metrics, fmt.Errorf("at least one module is required")
	}

	startTime := time.Now()
	s.logger.Info("Starting export",
		zap.Strings("modules", opts.Modules),
		zap.Int("per_page", opts.PerPage),
		zap.Int("concurrency", opts.Concurrency))

	seed := zohocrm.NewWithLogger(s.cfg, s.logger)
	if !seed.HasToken() {
		if _, err := seed.FetchToken(ctx); err != nil {
			return metrics, fmt.Errorf("failed to fetch access token: %w", err)
		}
	}
	s.logger.Info("Using access token",
		zap.String("token", seed.AbbreviatedAccessToken()),
		zap.String("api_domain", seed.APIDomain()))

	workerCfg := *s.cfg
	workerCfg.AccessToken = seed.AccessToken()
	workerCfg.APIDomain = seed.APIDomain()

	p := pool.New().WithMaxGoroutines(opts.Concurrency).WithErrors()
	for _, module := range opts.Modules {
		module := module
		p.Go(func() error {
			client := zohocrm.NewWithLogger(&workerCfg, s.logger.With(zap.String("module", module)))
			if err := s.ExportModule(ctx, client, module, opts, metrics); err != nil {
				metrics.AddModuleFailure()
				return fmt.Errorf("module %s: %w", module, err)
			}
			metrics.AddModuleSuccess()
			return nil
		})
	}
	err := p.Wait()

	snap := metrics.Snapshot()
	s.logger.Info("Completed export",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("modules_succeeded", snap.ModulesSucceeded),
		zap.Int("modules_failed", snap.ModulesFailed),
		zap.Int("records_exported", snap.RecordsExported),
		zap.Int("pages_fetched", snap.PagesFetched),
		zap.Int("page_retries", snap.PageRetries))

	return metrics, err
}

// ExportModule pages through one module until the API reports no more
// records and stores every page as it arrives. The run is recorded in the
// store with its final status either way.
func (s *ExportService) ExportModule(ctx context.Context, client zohocrm.CRMClient, module string, opts ExportOptions, metrics *ExportMetrics) error {
	opts.applyDefaults()

	runID, err := s.store.CreateExportRun(ctx, module)
	if err != nil {
		return err
	}

	exported, exportErr := s.exportPages(ctx, client, runID, module, opts, metrics)

	status := postgres.RunStatusCompleted
	if exportErr != nil {
		status = postgres.RunStatusFailed
	}
	if err := s.store.CompleteExportRun(ctx, runID, status, exported, exportErr); err != nil {
		s.logger.Error("Failed to complete export run",
			zap.String("run_id", runID.String()),
			zap.String("module", module),
			zap.Error(err))
		if exportErr == nil {
			return err
		}
	}

	if exportErr != nil {
		s.logger.Error("Module export failed",
			zap.String("module", module),
			zap.Int("records_exported", exported),
			zap.Error(exportErr))
		return exportErr
	}

	s.logger.Info("Exported module",
		zap.String("module", module),
		zap.String("run_id", runID.String()),
		zap.Int("records_exported", exported))
	return nil
}

func (s *ExportService) exportPages(ctx context.Context, client zohocrm.CRMClient, runID uuid.UUID, module string, opts ExportOptions, metrics *ExportMetrics) (int, error) {
	params := zohocrm.PageParams{Page: 1, PerPage: opts.PerPage, Fields: opts.Fields}
	exported := 0

	for {
		page, err := s.fetchPage(ctx, client, module, params, opts, metrics)
		if err != nil {
			// Zoho answers 204 with no body for a module without records.
			if params.Page == 1 && errors.Is(err, zohocrm.ErrEmptyResponse) {
				return 0, nil
			}
			return exported, fmt.Errorf("failed to fetch page %d: %w", params.Page, err)
		}

		records := make([]postgres.Record, 0, len(page.Data))
		for _, raw := range page.Data {
			id, err := zohocrm.ID(raw)
			if err != nil {
				return exported, fmt.Errorf("page %d: %w", params.Page, err)
			}
			records = append(records, postgres.Record{ID: id, Payload: raw})
		}

		if err := s.store.SaveRecords(ctx, runID, module, records); err != nil {
			return exported, err
		}
		exported += len(records)
		metrics.AddPage(len(records))

		if !page.Info.MoreRecords {
			return exported, nil
		}
		params.Page++
	}
}

// fetchPage retries only transport failures. Anything the API answered is
// final: retrying an INVALID_TOKEN or a malformed request gives the same
// answer.
func (s *ExportService) fetchPage(ctx context.Context, client zohocrm.CRMClient, module string, params zohocrm.PageParams, opts ExportOptions, metrics *ExportMetrics) (*zohocrm.PageResponse[json.RawMessage], error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = opts.InitialInterval
	expBackoff.MaxInterval = opts.MaxInterval
	expBackoff.Reset()

	attempt := 0
	operation := func() (*zohocrm.PageResponse[json.RawMessage], error) {
		attempt++
		if attempt > 1 {
			metrics.AddRetry()
		}

		page, err := zohocrm.GetPage[json.RawMessage](ctx, client, module, params.Encode())
		if err == nil {
			return page, nil
		}

		var transportErr *zohocrm.TransportError
		if !errors.As(err, &transportErr) {
			return nil, backoff.Permanent(err)
		}

		s.logger.Warn("Page fetch failed, retrying",
			zap.String("module", module),
			zap.Int("page", params.Page),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return nil, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxElapsedTime(opts.MaxElapsed))
}
