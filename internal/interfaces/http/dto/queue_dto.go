package dto

import (
	"time"

	"github.com/erp/connector/internal/domain/syncqueue"
)

// QueueResponse represents a sync queue in API responses
type QueueResponse struct {
	ID                   string              `json:"id"`
	InstanceID           string              `json:"instance_id"`
	Collection           string              `json:"collection"`
	Name                 string              `json:"name"`
	State                string              `json:"state"`
	ProcessAttemptCount  int                 `json:"process_attempt_count"`
	RequiresManualAction bool                `json:"requires_manual_action"`
	IsProcessing         bool                `json:"is_processing"`
	LineCount            int                 `json:"line_count"`
	Lines                []QueueLineResponse `json:"lines,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// QueueLineResponse represents one buffered record in API responses
type QueueLineResponse struct {
	ID            string     `json:"id"`
	RecordKey     string     `json:"record_key"`
	State         string     `json:"state"`
	LocalEntityID *string    `json:"local_entity_id,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// LogBookResponse represents a queue's log book in API responses
type LogBookResponse struct {
	ID        string            `json:"id"`
	QueueID   string            `json:"queue_id"`
	Lines     []LogLineResponse `json:"lines"`
	CreatedAt time.Time         `json:"created_at"`
}

// LogLineResponse represents one log book entry
type LogLineResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	RecordKey string    `json:"record_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RunReportResponse summarizes a manual processing run
type RunReportResponse struct {
	QueuesProcessed int  `json:"queues_processed"`
	QueuesEscalated int  `json:"queues_escalated"`
	LinesDone       int  `json:"lines_done"`
	LinesFailed     int  `json:"lines_failed"`
	BudgetExceeded  bool `json:"budget_exceeded"`
}

// IngestReportResponse summarizes a manual import run
type IngestReportResponse struct {
	TotalCount    int `json:"total_count"`
	PagesFetched  int `json:"pages_fetched"`
	RecordsQueued int `json:"records_queued"`
}

// ListQueuesRequest represents queue list query parameters
type ListQueuesRequest struct {
	ListRequest
	InstanceID string `form:"instance_id" binding:"required,uuid"`
	Collection string `form:"collection" binding:"required,oneof=ORDERS PRODUCTS CUSTOMERS STOCK"`
}

// CloseQueuesRequest represents a force-close request
type CloseQueuesRequest struct {
	QueueIDs []string `json:"queue_ids" binding:"required,min=1,dive,uuid"`
}

// ImportRecordsRequest represents a targeted import request
type ImportRecordsRequest struct {
	Collection string   `json:"collection" binding:"required,oneof=ORDERS PRODUCTS CUSTOMERS"`
	KeyField   string   `json:"key_field" binding:"required,min=1,max=64"`
	Keys       []string `json:"keys" binding:"required,min=1,max=500,dive,min=1"`
}

// DashboardRequest represents dashboard query parameters
type DashboardRequest struct {
	InstanceID string `form:"instance_id" binding:"required,uuid"`
	Collection string `form:"collection" binding:"required,oneof=ORDERS PRODUCTS CUSTOMERS STOCK"`
}

// DashboardResponse represents per-state line counts for one collection
type DashboardResponse struct {
	InstanceID string           `json:"instance_id"`
	Collection string           `json:"collection"`
	Counts     map[string]int64 `json:"counts"`
}

// NewQueueResponse maps a domain queue to its API representation
func NewQueueResponse(q *syncqueue.Queue, includeLines bool) QueueResponse {
	resp := QueueResponse{
		ID:                   q.ID.String(),
		InstanceID:           q.InstanceID.String(),
		Collection:           q.Collection.String(),
		Name:                 q.Name,
		State:                string(q.State),
		ProcessAttemptCount:  q.ProcessAttemptCount,
		RequiresManualAction: q.RequiresManualAction,
		IsProcessing:         q.IsProcessing,
		LineCount:            len(q.Lines),
		CreatedAt:            q.CreatedAt,
		UpdatedAt:            q.UpdatedAt,
	}
	if includeLines {
		resp.Lines = make([]QueueLineResponse, 0, len(q.Lines))
		for i := range q.Lines {
			resp.Lines = append(resp.Lines, NewQueueLineResponse(&q.Lines[i]))
		}
	}
	return resp
}

// NewQueueLineResponse maps a domain queue line to its API representation
func NewQueueLineResponse(l *syncqueue.QueueLine) QueueLineResponse {
	resp := QueueLineResponse{
		ID:          l.ID.String(),
		RecordKey:   l.RecordKey,
		State:       string(l.State),
		ProcessedAt: l.ProcessedAt,
		CreatedAt:   l.CreatedAt,
	}
	if l.LocalEntityID != nil {
		id := l.LocalEntityID.String()
		resp.LocalEntityID = &id
	}
	return resp
}

// NewLogBookResponse maps a domain log book to its API representation
func NewLogBookResponse(b *syncqueue.LogBook) LogBookResponse {
	resp := LogBookResponse{
		ID:        b.ID.String(),
		QueueID:   b.QueueID.String(),
		Lines:     make([]LogLineResponse, 0, len(b.Lines)),
		CreatedAt: b.CreatedAt,
	}
	for _, line := range b.Lines {
		resp.Lines = append(resp.Lines, LogLineResponse{
			ID:        line.ID.String(),
			Message:   line.Message,
			RecordKey: line.RecordKey,
			CreatedAt: line.CreatedAt,
		})
	}
	return resp
}
