package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/erp/connector/internal/application/sync"
	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/interfaces/http/dto"
)

// QueueService is the operator surface the queue endpoints sit on
type QueueService interface {
	ProcessNow(ctx context.Context, queueIDs []uuid.UUID, budget time.Duration) (*appsync.RunReport, error)
	ForceClose(ctx context.Context, queueIDs []uuid.UUID) error
	QueueLog(ctx context.Context, queueID uuid.UUID) (*syncqueue.LogBook, error)
	GetQueue(ctx context.Context, queueID uuid.UUID) (*syncqueue.Queue, error)
	ListQueues(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection, limit, offset int) ([]*syncqueue.Queue, error)
	Dashboard(ctx context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (map[syncqueue.LineState]int64, error)
}

// QueueHandler handles queue-related API endpoints
type QueueHandler struct {
	BaseHandler
	service QueueService
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(service QueueService) *QueueHandler {
	return &QueueHandler{service: service}
}

// List returns the queues of one instance and collection, newest first
func (h *QueueHandler) List(c *gin.Context) {
	var req dto.ListQueuesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	instanceID, err := uuid.Parse(req.InstanceID)
	if err != nil {
		h.BadRequest(c, "Invalid instance ID")
		return
	}

	queues, err := h.service.ListQueues(c.Request.Context(), instanceID,
		syncqueue.Collection(req.Collection), req.Limit, req.Offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]dto.QueueResponse, 0, len(queues))
	for _, q := range queues {
		responses = append(responses, dto.NewQueueResponse(q, false))
	}
	h.SuccessWithMeta(c, responses, req.Limit, req.Offset, len(responses))
}

// Get returns one queue with its lines
func (h *QueueHandler) Get(c *gin.Context) {
	queueID, ok := h.queueID(c)
	if !ok {
		return
	}

	queue, err := h.service.GetQueue(c.Request.Context(), queueID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewQueueResponse(queue, true))
}

// Log returns the queue's log book
func (h *QueueHandler) Log(c *gin.Context) {
	queueID, ok := h.queueID(c)
	if !ok {
		return
	}

	book, err := h.service.QueueLog(c.Request.Context(), queueID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewLogBookResponse(book))
}

// Process runs one queue immediately as a manual run
func (h *QueueHandler) Process(c *gin.Context) {
	queueID, ok := h.queueID(c)
	if !ok {
		return
	}

	// Manual runs are not time-boxed: the operator asked for this queue
	report, err := h.service.ProcessNow(c.Request.Context(), []uuid.UUID{queueID}, 0)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.RunReportResponse{
		QueuesProcessed: report.QueuesProcessed,
		QueuesEscalated: report.QueuesEscalated,
		LinesDone:       report.LinesDone,
		LinesFailed:     report.LinesFailed,
		BudgetExceeded:  report.BudgetExceeded,
	})
}

// Close force-closes the given queues, skipping their unprocessed lines
func (h *QueueHandler) Close(c *gin.Context) {
	var req dto.CloseQueuesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	queueIDs := make([]uuid.UUID, 0, len(req.QueueIDs))
	for _, raw := range req.QueueIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid queue ID: "+raw)
			return
		}
		queueIDs = append(queueIDs, id)
	}

	if err := h.service.ForceClose(c.Request.Context(), queueIDs); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Dashboard returns per-state line counts for one instance and collection
func (h *QueueHandler) Dashboard(c *gin.Context) {
	var req dto.DashboardRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	instanceID, err := uuid.Parse(req.InstanceID)
	if err != nil {
		h.BadRequest(c, "Invalid instance ID")
		return
	}

	counts, err := h.service.Dashboard(c.Request.Context(), instanceID, syncqueue.Collection(req.Collection))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.DashboardResponse{
		InstanceID: req.InstanceID,
		Collection: req.Collection,
		Counts:     make(map[string]int64, len(counts)),
	}
	for state, count := range counts {
		resp.Counts[string(state)] = count
	}
	h.Success(c, resp)
}

func (h *QueueHandler) queueID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid queue ID")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid queue ID")
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes registers all queue routes
func (h *QueueHandler) RegisterRoutes(rg *gin.RouterGroup) {
	queues := rg.Group("/queues")
	{
		queues.GET("", h.List)
		queues.GET("/:id", h.Get)
		queues.GET("/:id/log", h.Log)
		queues.POST("/:id/process", h.Process)
		queues.POST("/close", h.Close)
	}
	rg.GET("/dashboard", h.Dashboard)
}
