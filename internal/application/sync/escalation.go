package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/connector/internal/domain/syncqueue"
)

// EscalationController counts processing attempts per queue and, once the
// instance's attempt limit is reached, flags the queue for manual
// intervention instead of retrying it forever. Manual runs bypass the check
// entirely so an operator can always force a retry.
type EscalationController struct {
	queueRepo  syncqueue.QueueRepository
	activities syncqueue.ActivityScheduler
	notifier   syncqueue.Notifier
	logger     *zap.Logger
}

// NewEscalationController creates a new EscalationController
func NewEscalationController(
	queueRepo syncqueue.QueueRepository,
	activities syncqueue.ActivityScheduler,
	notifier syncqueue.Notifier,
	logger *zap.Logger,
) *EscalationController {
	return &EscalationController{
		queueRepo:  queueRepo,
		activities: activities,
		notifier:   notifier,
		logger:     logger,
	}
}

// RecordAttempt increments and persists the queue's attempt counter. Called
// each time the runner begins draining a queue's eligible lines.
func (c *EscalationController) RecordAttempt(ctx context.Context, queue *syncqueue.Queue) error {
	queue.RecordAttempt()
	return c.queueRepo.Save(ctx, queue)
}

// ShouldEscalate reports whether the queue has exhausted its automatic runs
func (c *EscalationController) ShouldEscalate(queue *syncqueue.Queue, instance *syncqueue.Instance, manualRun bool) bool {
	return !manualRun && queue.ProcessAttemptCount >= instance.AttemptLimit()
}

// Escalate flags the queue for manual action and schedules a follow-up task
// for the instance's responsible users. Further automatic runs skip the
// queue until an operator clears the flag.
func (c *EscalationController) Escalate(ctx context.Context, queue *syncqueue.Queue, instance *syncqueue.Instance) error {
	queue.RequiresManualAction = true
	if err := c.queueRepo.Save(ctx, queue); err != nil {
		return err
	}

	note := fmt.Sprintf(
		"Attention %s Queue is processed %d times and it failed.\nYou need to process it manually",
		queue.Name, queue.ProcessAttemptCount,
	)
	if err := c.activities.ScheduleFollowUp(ctx, instance, queue.Name, note, instance.ActivityLeadDays); err != nil {
		// The flag is already durable; a lost follow-up task is an
		// operator-visible nuisance, not a correctness problem.
		c.logger.Warn("Failed to schedule follow-up activity",
			zap.String("queue_name", queue.Name),
			zap.Error(err),
		)
	}
	c.notifier.Notify(ctx, instance.ID, note)

	c.logger.Info("Queue escalated for manual action",
		zap.String("queue_name", queue.Name),
		zap.Int("attempts", queue.ProcessAttemptCount),
	)
	return nil
}
