package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/syncqueue"
)

// ---------------------------------------------------------------------------
// BatchRunnerConfig
// ---------------------------------------------------------------------------

// BatchRunnerConfig holds configuration for the batch runner
type BatchRunnerConfig struct {
	// SafetyMargin is subtracted from the slot's time budget so the loop
	// yields before the scheduler fires the next slot
	SafetyMargin time.Duration
	// EligibleStates are the line states the runner reprocesses;
	// done lines are always excluded regardless of this set
	EligibleStates []syncqueue.LineState
}

// DefaultBatchRunnerConfig returns default configuration
func DefaultBatchRunnerConfig() BatchRunnerConfig {
	return BatchRunnerConfig{
		SafetyMargin: 60 * time.Second,
		EligibleStates: []syncqueue.LineState{
			syncqueue.LineStateDraft,
			syncqueue.LineStateCancel,
			syncqueue.LineStateFailed,
		},
	}
}

// ---------------------------------------------------------------------------
// BatchRunner
// ---------------------------------------------------------------------------

// RunReport summarizes one runner slot.
type RunReport struct {
	// QueuesProcessed counts queues whose lines were drained this slot
	QueuesProcessed int
	// QueuesEscalated counts queues flagged for manual action this slot
	QueuesEscalated int
	// LinesDone and LinesFailed count per-line outcomes
	LinesDone   int
	LinesFailed int
	// BudgetExceeded is true if the slot stopped on the time budget
	BudgetExceeded bool
}

// BatchRunner drains the eligible lines of not-completed queues through the
// collection's line processor inside one wall-clock-bounded scheduler slot.
// Line failures never abort the batch; queues left over when the budget runs
// out are picked up by the next slot.
type BatchRunner struct {
	config      BatchRunnerConfig
	queueRepo   syncqueue.QueueRepository
	logBookRepo syncqueue.LogBookRepository
	processors  *syncqueue.ProcessorRegistry
	escalation  *EscalationController
	notifier    syncqueue.Notifier
	logger      *zap.Logger
}

// NewBatchRunner creates a new BatchRunner
func NewBatchRunner(
	config BatchRunnerConfig,
	queueRepo syncqueue.QueueRepository,
	logBookRepo syncqueue.LogBookRepository,
	processors *syncqueue.ProcessorRegistry,
	escalation *EscalationController,
	notifier syncqueue.Notifier,
	logger *zap.Logger,
) *BatchRunner {
	if len(config.EligibleStates) == 0 {
		config.EligibleStates = DefaultBatchRunnerConfig().EligibleStates
	}
	return &BatchRunner{
		config:      config,
		queueRepo:   queueRepo,
		logBookRepo: logBookRepo,
		processors:  processors,
		escalation:  escalation,
		notifier:    notifier,
		logger:      logger,
	}
}

// Run is the scheduled entry point: it loads the processable queues for the
// instance and collection (escalated queues excluded) and drains them within
// the time budget.
func (r *BatchRunner) Run(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, budget time.Duration) (*RunReport, error) {
	if _, err := r.processors.Get(collection); err != nil {
		// Records keep accumulating in their queues until a processor for
		// the collection is deployed; only a manual run surfaces the gap.
		r.logger.Debug("No line processor for collection, leaving queues untouched",
			zap.String("collection", collection.String()),
		)
		return &RunReport{}, nil
	}

	queues, err := r.queueRepo.FindProcessable(ctx, instance.ID, collection)
	if err != nil {
		return nil, err
	}
	return r.RunQueues(ctx, instance, queues, false, budget)
}

// RunQueues drains the given queues. Manual runs bypass the escalation
// threshold so an operator can always force a retry.
func (r *BatchRunner) RunQueues(ctx context.Context, instance *syncqueue.Instance, queues []*syncqueue.Queue, manualRun bool, budget time.Duration) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{}

	for _, queue := range queues {
		if queue.State == syncqueue.QueueStateCompleted {
			continue
		}

		if err := r.processQueue(ctx, instance, queue, manualRun, report); err != nil {
			return report, err
		}

		if budget > 0 && time.Since(start) > budget-r.config.SafetyMargin {
			report.BudgetExceeded = true
			r.logger.Info("Slot time budget exhausted, yielding remaining queues to next run",
				zap.Duration("elapsed", time.Since(start)),
				zap.Duration("budget", budget),
			)
			break
		}
	}

	return report, nil
}

// processQueue drains one queue's eligible lines.
func (r *BatchRunner) processQueue(ctx context.Context, instance *syncqueue.Instance, queue *syncqueue.Queue, manualRun bool, report *RunReport) error {
	// Committed before any work so a crash leaves a detectable stuck flag
	// instead of silent data loss.
	if err := r.queueRepo.SetProcessing(ctx, queue.ID, true); err != nil {
		return err
	}
	queue.IsProcessing = true

	if err := r.escalation.RecordAttempt(ctx, queue); err != nil {
		return err
	}
	if r.escalation.ShouldEscalate(queue, instance, manualRun) {
		if err := r.escalation.Escalate(ctx, queue, instance); err != nil {
			return err
		}
		report.QueuesEscalated++
		return r.clearProcessing(ctx, queue)
	}

	processor, err := r.processors.Get(queue.Collection)
	if err != nil {
		return err
	}

	logBook, err := r.logBookRepo.GetOrCreateForQueue(ctx, queue)
	if err != nil {
		return err
	}

	lines := queue.EligibleLines(r.config.EligibleStates...)
	for _, line := range lines {
		before := len(logBook.Lines)

		ok, procErr := processor.Process(ctx, line, instance, logBook)
		switch {
		case procErr != nil:
			// Transport or unexpected fault: record it so the operator sees
			// why the record did not sync, then continue with the next line.
			logBook.Add(procErr.Error(), line.RecordKey, &line.ID)
			line.MarkFailed()
			report.LinesFailed++
		case !ok:
			// Business-rule mismatch: the processor already wrote the reason.
			line.MarkFailed()
			report.LinesFailed++
		default:
			// Processors set LocalEntityID themselves when they create one.
			line.MarkDone(nil)
			report.LinesDone++
		}

		// Per-line checkpoint: a failure in line N must not roll back 1..N-1.
		if err := r.queueRepo.UpdateLine(ctx, line); err != nil {
			return err
		}
		for i := before; i < len(logBook.Lines); i++ {
			if err := r.logBookRepo.AddLine(ctx, &logBook.Lines[i]); err != nil {
				return err
			}
		}
	}

	_, enteredFailed := queue.RecomputeState()
	if err := r.queueRepo.Save(ctx, queue); err != nil {
		return err
	}
	if enteredFailed {
		// One-shot: fires only on the first transition into failed.
		r.notifier.Notify(ctx, instance.ID,
			fmt.Sprintf("Attention %s Queue is failed.\nYou need to process it manually", queue.Name))
	}

	r.notifier.Notify(ctx, instance.ID, fmt.Sprintf("Queue #%s Processed!!", queue.Name))

	// A log book that collected nothing has no diagnostic value.
	if logBook.IsEmpty() {
		if err := r.logBookRepo.DeleteIfEmpty(ctx, logBook.ID); err != nil {
			r.logger.Warn("Failed to delete empty log book",
				zap.String("queue_name", queue.Name),
				zap.Error(err),
			)
		}
	}

	report.QueuesProcessed++
	r.logger.Info("Queue processed",
		zap.String("queue_name", queue.Name),
		zap.String("state", queue.State.String()),
		zap.Int("done", queue.DoneCount()),
		zap.Int("failed", queue.FailedCount()),
		zap.Bool("manual_run", manualRun),
	)

	return r.clearProcessing(ctx, queue)
}

func (r *BatchRunner) clearProcessing(ctx context.Context, queue *syncqueue.Queue) error {
	queue.IsProcessing = false
	return r.queueRepo.SetProcessing(ctx, queue.ID, false)
}
