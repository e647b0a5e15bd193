package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
)

// ---------------------------------------------------------------------------
// Ingestor
// ---------------------------------------------------------------------------

// IngestRequest describes one ingestion run for an (instance, collection) pair.
type IngestRequest struct {
	Instance   *syncqueue.Instance
	Collection syncqueue.Collection
	// Criteria are the base filters without pagination (date range, status)
	Criteria *remote.SearchCriteria
	// Manual runs always scan the full range from page 1 and never move the
	// persisted cursor; scheduled runs resume from it
	Manual bool
	// Budget is the slot's wall-clock budget; zero disables the cutoff
	Budget time.Duration
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	TotalCount     int
	PagesFetched   int
	RecordsQueued  int
	BudgetExceeded bool
}

// Ingestor pulls the remote range page by page and bins the records into
// bounded queues. The pagination cursor advances only after a page is fully
// queued, so a crash mid-page re-fetches that page; queue-line dedup makes
// the re-fetch harmless.
type Ingestor struct {
	gateway      remote.Gateway
	cursorRepo   remote.CursorRepository
	queueManager *QueueManager
	notifier     syncqueue.Notifier
	safetyMargin time.Duration
	logger       *zap.Logger
}

// NewIngestor creates a new Ingestor
func NewIngestor(
	gateway remote.Gateway,
	cursorRepo remote.CursorRepository,
	queueManager *QueueManager,
	notifier syncqueue.Notifier,
	safetyMargin time.Duration,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		gateway:      gateway,
		cursorRepo:   cursorRepo,
		queueManager: queueManager,
		notifier:     notifier,
		safetyMargin: safetyMargin,
		logger:       logger,
	}
}

// Run executes one ingestion slot. An error before any queue is created is a
// configuration-level failure surfaced to the caller; the cursor is never
// moved past a page that was not fully queued.
func (i *Ingestor) Run(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	start := time.Now()
	instance := req.Instance
	report := &IngestReport{}

	pageSize := instance.PageSize()

	// A nil Criteria means an unfiltered range.
	baseCriteria := req.Criteria
	if baseCriteria == nil {
		baseCriteria = remote.NewSearchCriteria()
	}

	total, err := i.gateway.FetchCount(ctx, instance, req.Collection, countCriteria(baseCriteria))
	if err != nil {
		return nil, fmt.Errorf("sizing %s range: %w", req.Collection, err)
	}
	report.TotalCount = total
	totalPages := (total + pageSize - 1) / pageSize

	cursor, err := i.cursorRepo.GetOrCreate(ctx, instance.ID, req.Collection)
	if err != nil {
		return nil, err
	}

	if totalPages == 0 {
		// True empty range: reset so the next slot starts fresh, and tell
		// the operator informationally rather than as an error.
		cursor.Reset()
		if err := i.cursorRepo.Save(ctx, cursor); err != nil {
			return nil, err
		}
		i.notifier.Notify(ctx, instance.ID,
			fmt.Sprintf("No %s found for %s", req.Collection, instance.Name))
		return report, nil
	}

	startPage := cursor.CurrentPage
	if req.Manual || startPage < 1 || startPage > totalPages {
		startPage = 1
	}
	cursor.CurrentPage = startPage

	queue, err := i.queueManager.GetOrCreateOpenQueue(ctx, instance, req.Collection)
	if err != nil {
		return nil, err
	}

	for page := startPage; page <= totalPages; page++ {
		if req.Budget > 0 && time.Since(start) > req.Budget-i.safetyMargin {
			// Cursor stays at the last fully queued page; the next slot
			// resumes the range instead of restarting it.
			report.BudgetExceeded = true
			i.logger.Info("Ingestion budget exhausted mid-range",
				zap.String("collection", req.Collection.String()),
				zap.Int("next_page", cursor.CurrentPage),
				zap.Int("total_pages", totalPages),
			)
			return report, nil
		}

		pageCriteria := *baseCriteria
		pageCriteria.WithPage(page, pageSize)
		fetched, err := i.gateway.FetchPage(ctx, instance, req.Collection, &pageCriteria)
		if err != nil {
			return report, fmt.Errorf("fetching %s page %d: %w", req.Collection, page, err)
		}
		report.PagesFetched++

		for _, record := range fetched.Items {
			if queue.IsFull() {
				queue, err = i.queueManager.GetOrCreateOpenQueue(ctx, instance, req.Collection)
				if err != nil {
					return report, err
				}
			}
			line, err := i.queueManager.AppendRecord(ctx, instance, queue, record)
			if err != nil {
				return report, err
			}
			if line != nil {
				report.RecordsQueued++
			}
		}

		// Durable progress: the page is fully queued, move past it.
		if !req.Manual {
			cursor.Advance()
			if err := i.cursorRepo.Save(ctx, cursor); err != nil {
				return report, err
			}
		}
	}

	// Range exhausted: scheduled runs start the next slot on a fresh range.
	if !req.Manual {
		cursor.Reset()
		if err := i.cursorRepo.Save(ctx, cursor); err != nil {
			return report, err
		}
	}

	i.logger.Info("Ingestion run completed",
		zap.String("instance", instance.Name),
		zap.String("collection", req.Collection.String()),
		zap.Int("total_count", total),
		zap.Int("pages_fetched", report.PagesFetched),
		zap.Int("records_queued", report.RecordsQueued),
	)

	return report, nil
}

// ImportSpecificRecords queues a fixed set of records by natural key,
// bypassing the date-range cursor entirely (operator-triggered import).
func (i *Ingestor) ImportSpecificRecords(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, keyField string, keys []string) (*IngestReport, error) {
	report := &IngestReport{}
	if len(keys) == 0 {
		return report, nil
	}

	criteria := remote.NewSearchCriteria().In(keyField, keys...)
	fetched, err := i.gateway.FetchPage(ctx, instance, collection, criteria)
	if err != nil {
		return nil, fmt.Errorf("fetching %s by %s: %w", collection, keyField, err)
	}
	report.PagesFetched = 1
	report.TotalCount = len(fetched.Items)

	queue, err := i.queueManager.GetOrCreateOpenQueue(ctx, instance, collection)
	if err != nil {
		return nil, err
	}
	for _, record := range fetched.Items {
		if queue.IsFull() {
			queue, err = i.queueManager.GetOrCreateOpenQueue(ctx, instance, collection)
			if err != nil {
				return report, err
			}
		}
		line, err := i.queueManager.AppendRecord(ctx, instance, queue, record)
		if err != nil {
			return report, err
		}
		if line != nil {
			report.RecordsQueued++
		}
	}
	return report, nil
}

// countCriteria clones the base filters with a count-only projection.
func countCriteria(base *remote.SearchCriteria) *remote.SearchCriteria {
	clone := remote.NewSearchCriteria()
	if base != nil {
		clone.FilterGroups = append(clone.FilterGroups, base.FilterGroups...)
	}
	return clone.WithFields("total_count")
}
