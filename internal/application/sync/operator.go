package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/syncqueue"
)

// OperatorService exposes the manual controls: force a run regardless of the
// escalation threshold, force-close stuck queues, and review a queue's log.
type OperatorService struct {
	queueRepo    syncqueue.QueueRepository
	logBookRepo  syncqueue.LogBookRepository
	instanceRepo syncqueue.InstanceRepository
	runner       *BatchRunner
	logger       *zap.Logger
}

// NewOperatorService creates a new OperatorService
func NewOperatorService(
	queueRepo syncqueue.QueueRepository,
	logBookRepo syncqueue.LogBookRepository,
	instanceRepo syncqueue.InstanceRepository,
	runner *BatchRunner,
	logger *zap.Logger,
) *OperatorService {
	return &OperatorService{
		queueRepo:    queueRepo,
		logBookRepo:  logBookRepo,
		instanceRepo: instanceRepo,
		runner:       runner,
		logger:       logger,
	}
}

// ProcessNow runs the given queues immediately as a manual run, bypassing the
// escalation threshold. A zero budget disables the time cutoff: the operator
// asked for these queues specifically.
func (s *OperatorService) ProcessNow(ctx context.Context, queueIDs []uuid.UUID, budget time.Duration) (*RunReport, error) {
	total := &RunReport{}
	for _, id := range queueIDs {
		queue, err := s.queueRepo.FindByID(ctx, id)
		if err != nil {
			return total, err
		}
		instance, err := s.instanceRepo.FindByID(ctx, queue.InstanceID)
		if err != nil {
			return total, err
		}
		report, err := s.runner.RunQueues(ctx, instance, []*syncqueue.Queue{queue}, true, budget)
		if err != nil {
			return total, err
		}
		total.QueuesProcessed += report.QueuesProcessed
		total.LinesDone += report.LinesDone
		total.LinesFailed += report.LinesFailed
	}
	return total, nil
}

// ForceClose cancels all draft and failed lines of the given queues, clears
// any stuck processing flag and the manual-action flag, and recomputes the
// aggregate state (which lands on completed once every line is done/cancel).
func (s *OperatorService) ForceClose(ctx context.Context, queueIDs []uuid.UUID) error {
	for _, id := range queueIDs {
		queue, err := s.queueRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		// A stuck flag from a crashed slot must not block the operator.
		if queue.IsProcessing {
			if err := s.queueRepo.SetProcessing(ctx, queue.ID, false); err != nil {
				return err
			}
			queue.IsProcessing = false
		}

		for i := range queue.Lines {
			line := &queue.Lines[i]
			if line.State == syncqueue.LineStateDraft || line.State == syncqueue.LineStateFailed {
				line.Cancel()
				if err := s.queueRepo.UpdateLine(ctx, line); err != nil {
					return err
				}
			}
		}

		queue.RequiresManualAction = false
		queue.RecomputeState()
		if err := s.queueRepo.Save(ctx, queue); err != nil {
			return err
		}

		s.logger.Info("Queue force-closed by operator",
			zap.String("queue_name", queue.Name),
			zap.String("state", queue.State.String()),
		)
	}
	return nil
}

// QueueLog returns the queue's log book, or ErrLogBookNotFound when the
// queue never collected a failure.
func (s *OperatorService) QueueLog(ctx context.Context, queueID uuid.UUID) (*syncqueue.LogBook, error) {
	return s.logBookRepo.FindByQueue(ctx, queueID)
}

// GetQueue loads one queue with its lines
func (s *OperatorService) GetQueue(ctx context.Context, queueID uuid.UUID) (*syncqueue.Queue, error) {
	return s.queueRepo.FindByID(ctx, queueID)
}

// ListQueues returns queue headers for an instance and collection, newest first
func (s *OperatorService) ListQueues(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection, limit, offset int) ([]*syncqueue.Queue, error) {
	return s.queueRepo.List(ctx, instanceID, collection, limit, offset)
}

// Dashboard returns queue-line counts per state for an instance and collection
func (s *OperatorService) Dashboard(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (map[syncqueue.LineState]int64, error) {
	return s.queueRepo.CountByState(ctx, instanceID, collection)
}
