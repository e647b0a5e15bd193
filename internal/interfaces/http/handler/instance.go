package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/erp/connector/internal/application/sync"
	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/infrastructure/scheduler"
	"github.com/erp/connector/internal/interfaces/http/dto"
)

// RecordImporter queues a fixed set of remote records by natural key
type RecordImporter interface {
	ImportSpecificRecords(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, keyField string, keys []string) (*appsync.IngestReport, error)
}

// CycleRunner triggers a full sync cycle for one instance
type CycleRunner interface {
	RunInstanceNow(ctx context.Context, instanceID uuid.UUID) (*scheduler.CycleReport, error)
}

// InstanceHandler handles instance-scoped sync API endpoints
type InstanceHandler struct {
	BaseHandler
	instanceRepo syncqueue.InstanceRepository
	importer     RecordImporter
	runner       CycleRunner
}

// NewInstanceHandler creates a new InstanceHandler
func NewInstanceHandler(instanceRepo syncqueue.InstanceRepository, importer RecordImporter, runner CycleRunner) *InstanceHandler {
	return &InstanceHandler{
		instanceRepo: instanceRepo,
		importer:     importer,
		runner:       runner,
	}
}

// Import queues specific remote records for the instance, bypassing the
// date-range cursor (operator-triggered targeted import)
func (h *InstanceHandler) Import(c *gin.Context) {
	instance, ok := h.loadInstance(c)
	if !ok {
		return
	}

	var req dto.ImportRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	report, err := h.importer.ImportSpecificRecords(c.Request.Context(), instance,
		syncqueue.Collection(req.Collection), req.KeyField, req.Keys)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.IngestReportResponse{
		TotalCount:    report.TotalCount,
		PagesFetched:  report.PagesFetched,
		RecordsQueued: report.RecordsQueued,
	})
}

// Sync runs a full manual sync cycle for the instance
func (h *InstanceHandler) Sync(c *gin.Context) {
	instance, ok := h.loadInstance(c)
	if !ok {
		return
	}

	report, err := h.runner.RunInstanceNow(c.Request.Context(), instance.ID)
	if err != nil {
		if err == scheduler.ErrCycleInProgress {
			h.Error(c, dto.ErrCodeConflict, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{
		"instance_id":      report.InstanceID.String(),
		"records_queued":   report.RecordsQueued,
		"queues_processed": report.QueuesProcessed,
		"lines_done":       report.LinesDone,
		"lines_failed":     report.LinesFailed,
		"budget_exceeded":  report.BudgetExceeded,
		"errors":           report.Errors,
	})
}

func (h *InstanceHandler) loadInstance(c *gin.Context) (*syncqueue.Instance, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid instance ID")
		return nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid instance ID")
		return nil, false
	}

	instance, err := h.instanceRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	if !instance.Active {
		h.HandleError(c, syncqueue.ErrInstanceInactive)
		return nil, false
	}
	return instance, true
}

// RegisterRoutes registers all instance routes
func (h *InstanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	instances := rg.Group("/instances")
	{
		instances.POST("/:id/import", h.Import)
		instances.POST("/:id/sync", h.Sync)
	}
}
