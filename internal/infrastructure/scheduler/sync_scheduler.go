package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appsync "github.com/erp/connector/internal/application/sync"
	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/infrastructure/logger"
)

// magentoTimeLayout is the timestamp format accepted by searchCriteria filters
const magentoTimeLayout = "2006-01-02 15:04:05"

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds configuration for the sync scheduler
type Config struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// RunInterval is the wall-clock length of one sync slot
	RunInterval time.Duration
	// SafetyMargin is subtracted from the slot budget so a cycle yields
	// before the next tick fires
	SafetyMargin time.Duration
	// MaxParallel is the maximum number of instances synced concurrently
	MaxParallel int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		RunInterval:  10 * time.Minute,
		SafetyMargin: time.Minute,
		MaxParallel:  3,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RunInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.SafetyMargin < 0 || c.SafetyMargin >= c.RunInterval {
		return ErrInvalidConfig
	}
	if c.MaxParallel <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// CycleReport
// ---------------------------------------------------------------------------

// CycleReport summarizes one sync cycle for a single instance
type CycleReport struct {
	InstanceID   uuid.UUID
	InstanceName string
	StartedAt    time.Time
	CompletedAt  time.Time
	Manual       bool

	RecordsQueued   int
	QueuesProcessed int
	QueuesEscalated int
	LinesDone       int
	LinesFailed     int
	BudgetExceeded  bool
	Errors          []string
}

// importCollections are the pull-side collections, in the order they share
// the slot budget. Stock runs last because it only drains existing queues.
var importCollections = []syncqueue.Collection{
	syncqueue.CollectionOrders,
	syncqueue.CollectionCustomers,
	syncqueue.CollectionProducts,
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler drives the periodic sync slots: each tick it loads the active
// instances and, bounded by MaxParallel, runs one ingest-then-process cycle
// per instance within the slot's time budget. Unfinished ranges and queues
// carry over to the next slot through the persisted cursor and queue states.
type SyncScheduler struct {
	config       Config
	instanceRepo syncqueue.InstanceRepository
	ingestor     *appsync.Ingestor
	runner       *appsync.BatchRunner
	logger       *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  map[uuid.UUID]bool

	// Cycle history for monitoring (in-memory, limited size)
	historyMu  sync.RWMutex
	history    []*CycleReport
	maxHistory int
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(
	config Config,
	instanceRepo syncqueue.InstanceRepository,
	ingestor *appsync.Ingestor,
	runner *appsync.BatchRunner,
	log *zap.Logger,
) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SyncScheduler{
		config:       config,
		instanceRepo: instanceRepo,
		ingestor:     ingestor,
		runner:       runner,
		logger:       log,
		inFlight:     make(map[uuid.UUID]bool),
		history:      make([]*CycleReport, 0, 100),
		maxHistory:   100,
	}, nil
}

// Start starts the scheduler loop
func (s *SyncScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Sync scheduler disabled by configuration")
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("run_interval", s.config.RunInterval),
		zap.Duration("safety_margin", s.config.SafetyMargin),
		zap.Int("max_parallel", s.config.MaxParallel),
	)

	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight cycles
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// runLoop fires one slot per interval
func (s *SyncScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSlot(ctx)
		}
	}
}

// runSlot syncs all active instances, at most MaxParallel at a time
func (s *SyncScheduler) runSlot(ctx context.Context) {
	instances, err := s.instanceRepo.FindActive(ctx)
	if err != nil {
		s.logger.Error("Failed to load active instances for sync slot", zap.Error(err))
		return
	}
	if len(instances) == 0 {
		return
	}

	s.logger.Info("Sync slot started", zap.Int("instances", len(instances)))

	sem := make(chan struct{}, s.config.MaxParallel)
	var wg sync.WaitGroup
	for _, instance := range instances {
		if !s.beginCycle(instance.ID) {
			s.logger.Warn("Skipping instance, previous cycle still running",
				zap.String("instance", instance.Name),
			)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(inst *syncqueue.Instance) {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.endCycle(inst.ID)

			report := s.runCycle(ctx, inst, false)
			s.addToHistory(report)
		}(instance)
	}
	wg.Wait()
}

// RunInstanceNow triggers a cycle for one instance outside the regular slot
// (operator action). It runs synchronously and returns the cycle report.
func (s *SyncScheduler) RunInstanceNow(ctx context.Context, instanceID uuid.UUID) (*CycleReport, error) {
	instance, err := s.instanceRepo.FindByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if !s.beginCycle(instance.ID) {
		return nil, ErrCycleInProgress
	}
	defer s.endCycle(instance.ID)

	report := s.runCycle(ctx, instance, true)
	s.addToHistory(report)
	return report, nil
}

// runCycle runs one full ingest-then-process cycle for an instance. The
// collections share the slot budget; whatever a collection leaves unfinished
// is resumed by the next slot, so a cycle error is recorded, not fatal.
func (s *SyncScheduler) runCycle(ctx context.Context, instance *syncqueue.Instance, manual bool) *CycleReport {
	ctx, cycleLog := logger.WithInstanceID(ctx, s.logger, instance.ID.String())

	start := time.Now()
	report := &CycleReport{
		InstanceID:   instance.ID,
		InstanceName: instance.Name,
		StartedAt:    start,
		Manual:       manual,
	}
	budget := s.config.RunInterval - s.config.SafetyMargin

	for _, collection := range importCollections {
		if !instance.CollectionEnabled(collection) {
			continue
		}
		if s.remaining(start, budget) <= 0 {
			report.BudgetExceeded = true
			break
		}
		s.runImport(ctx, instance, collection, start, budget, manual, report)
	}

	if instance.CollectionEnabled(syncqueue.CollectionStock) && !report.BudgetExceeded {
		runReport, err := s.runner.Run(ctx, instance, syncqueue.CollectionStock, s.remaining(start, budget))
		s.mergeRunReport(report, runReport, err, syncqueue.CollectionStock)
	}

	report.CompletedAt = time.Now()
	cycleLog.Info("Sync cycle finished",
		zap.String("instance", instance.Name),
		zap.Bool("manual", manual),
		zap.Int("records_queued", report.RecordsQueued),
		zap.Int("queues_processed", report.QueuesProcessed),
		zap.Int("lines_done", report.LinesDone),
		zap.Int("lines_failed", report.LinesFailed),
		zap.Int("queues_escalated", report.QueuesEscalated),
		zap.Bool("budget_exceeded", report.BudgetExceeded),
		zap.Int("errors", len(report.Errors)),
	)
	return report
}

// runImport ingests one collection's remote range and drains its queues
func (s *SyncScheduler) runImport(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, start time.Time, budget time.Duration, manual bool, report *CycleReport) {
	ingestReport, err := s.ingestor.Run(ctx, appsync.IngestRequest{
		Instance:   instance,
		Collection: collection,
		Criteria:   s.importCriteria(instance, collection),
		Manual:     manual,
		Budget:     s.remaining(start, budget),
	})
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		s.logger.Error("Ingestion failed",
			zap.String("instance", instance.Name),
			zap.String("collection", collection.String()),
			zap.Error(err),
		)
	}
	if ingestReport != nil {
		report.RecordsQueued += ingestReport.RecordsQueued
		if ingestReport.BudgetExceeded {
			report.BudgetExceeded = true
		}
		if err == nil && !ingestReport.BudgetExceeded {
			s.markRangeCovered(ctx, instance, collection, start)
		}
	}

	remaining := s.remaining(start, budget)
	if remaining <= 0 {
		report.BudgetExceeded = true
		return
	}
	runReport, err := s.runner.Run(ctx, instance, collection, remaining)
	s.mergeRunReport(report, runReport, err, collection)
}

// importCriteria builds the base filters for a collection's remote range.
// Orders are pulled incrementally from the last fully covered range; products
// and customers are scanned full-range, relying on record dedup.
func (s *SyncScheduler) importCriteria(instance *syncqueue.Instance, collection syncqueue.Collection) *remote.SearchCriteria {
	criteria := remote.NewSearchCriteria()
	if collection == syncqueue.CollectionOrders && instance.LastOrderImportAt != nil {
		criteria.Gt("created_at", instance.LastOrderImportAt.UTC().Format(magentoTimeLayout))
	}
	return criteria
}

// markRangeCovered records that the collection's range up to the cycle start
// was fully queued. Only orders carry a watermark; the timestamp is the cycle
// start so records created while the cycle ran are still caught next slot.
func (s *SyncScheduler) markRangeCovered(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, cycleStart time.Time) {
	if collection != syncqueue.CollectionOrders {
		return
	}
	at := cycleStart.UTC()
	instance.LastOrderImportAt = &at
	if err := s.instanceRepo.Save(ctx, instance); err != nil {
		s.logger.Error("Failed to persist order import watermark",
			zap.String("instance", instance.Name),
			zap.Error(err),
		)
	}
}

func (s *SyncScheduler) mergeRunReport(report *CycleReport, runReport *appsync.RunReport, err error, collection syncqueue.Collection) {
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		s.logger.Error("Queue processing failed",
			zap.String("collection", collection.String()),
			zap.Error(err),
		)
	}
	if runReport == nil {
		return
	}
	report.QueuesProcessed += runReport.QueuesProcessed
	report.QueuesEscalated += runReport.QueuesEscalated
	report.LinesDone += runReport.LinesDone
	report.LinesFailed += runReport.LinesFailed
	if runReport.BudgetExceeded {
		report.BudgetExceeded = true
	}
}

func (s *SyncScheduler) remaining(start time.Time, budget time.Duration) time.Duration {
	return budget - time.Since(start)
}

// beginCycle marks an instance cycle as in flight; false if one already is
func (s *SyncScheduler) beginCycle(instanceID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[instanceID] {
		return false
	}
	s.inFlight[instanceID] = true
	return true
}

func (s *SyncScheduler) endCycle(instanceID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, instanceID)
}

// addToHistory adds a completed cycle to history
func (s *SyncScheduler) addToHistory(report *CycleReport) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*CycleReport{report}, s.history...)
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}

// History returns recent cycle reports, newest first
func (s *SyncScheduler) History(limit int) []*CycleReport {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]*CycleReport, limit)
	copy(result, s.history[:limit])
	return result
}
