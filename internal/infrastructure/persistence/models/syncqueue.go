package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/erp/connector/internal/domain/syncqueue"
)

// InstanceModel is the persistence model for the Instance domain entity.
type InstanceModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name               string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	BaseURL            string    `gorm:"type:varchar(512);not null"`
	AccessToken        string    `gorm:"type:varchar(512);not null"`
	VerifySSL          bool      `gorm:"not null;default:true"`
	Active             bool      `gorm:"not null;default:true;index"`
	ImportOrders       bool      `gorm:"not null;default:true"`
	ImportProducts     bool      `gorm:"not null;default:true"`
	ImportCustomers    bool      `gorm:"not null;default:true"`
	ExportStock        bool      `gorm:"not null;default:false"`
	ImportPageSize     int       `gorm:"not null;default:200"`
	MaxProcessAttempts int       `gorm:"not null;default:3"`
	ActivityLeadDays   int       `gorm:"not null;default:2"`
	ResponsibleUsers   string    `gorm:"type:jsonb;column:responsible_users"`
	LastOrderImportAt  *time.Time
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InstanceModel) TableName() string {
	return "instances"
}

// ToDomain converts the persistence model to a domain Instance entity.
func (m *InstanceModel) ToDomain() *syncqueue.Instance {
	instance := &syncqueue.Instance{
		ID:                 m.ID,
		Name:               m.Name,
		BaseURL:            m.BaseURL,
		AccessToken:        m.AccessToken,
		VerifySSL:          m.VerifySSL,
		Active:             m.Active,
		ImportOrders:       m.ImportOrders,
		ImportProducts:     m.ImportProducts,
		ImportCustomers:    m.ImportCustomers,
		ExportStock:        m.ExportStock,
		ImportPageSize:     m.ImportPageSize,
		MaxProcessAttempts: m.MaxProcessAttempts,
		ActivityLeadDays:   m.ActivityLeadDays,
		ResponsibleUserIDs: make([]uuid.UUID, 0),
		LastOrderImportAt:  m.LastOrderImportAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.ResponsibleUsers != "" {
		var ids []uuid.UUID
		if err := json.Unmarshal([]byte(m.ResponsibleUsers), &ids); err == nil {
			instance.ResponsibleUserIDs = ids
		}
	}
	return instance
}

// FromDomain populates the persistence model from a domain Instance entity.
func (m *InstanceModel) FromDomain(i *syncqueue.Instance) {
	m.ID = i.ID
	m.Name = i.Name
	m.BaseURL = i.BaseURL
	m.AccessToken = i.AccessToken
	m.VerifySSL = i.VerifySSL
	m.Active = i.Active
	m.ImportOrders = i.ImportOrders
	m.ImportProducts = i.ImportProducts
	m.ImportCustomers = i.ImportCustomers
	m.ExportStock = i.ExportStock
	m.ImportPageSize = i.ImportPageSize
	m.MaxProcessAttempts = i.MaxProcessAttempts
	m.ActivityLeadDays = i.ActivityLeadDays
	m.LastOrderImportAt = i.LastOrderImportAt
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt

	if len(i.ResponsibleUserIDs) > 0 {
		if jsonBytes, err := json.Marshal(i.ResponsibleUserIDs); err == nil {
			m.ResponsibleUsers = string(jsonBytes)
		}
	} else {
		m.ResponsibleUsers = "[]"
	}
}

// QueueModel is the persistence model for the Queue domain entity.
type QueueModel struct {
	ID                   uuid.UUID            `gorm:"type:uuid;primaryKey"`
	InstanceID           uuid.UUID            `gorm:"type:uuid;not null;index:idx_queue_instance_collection,priority:1;uniqueIndex:idx_queue_instance_name,priority:1"`
	Collection           syncqueue.Collection `gorm:"type:varchar(20);not null;index:idx_queue_instance_collection,priority:2;uniqueIndex:idx_queue_instance_name,priority:2"`
	Name                 string               `gorm:"type:varchar(32);not null;uniqueIndex:idx_queue_instance_name,priority:3"`
	State                syncqueue.QueueState `gorm:"type:varchar(32);not null;default:'DRAFT';index"`
	ProcessAttemptCount  int                  `gorm:"not null;default:0"`
	RequiresManualAction bool                 `gorm:"not null;default:false"`
	IsProcessing         bool                 `gorm:"not null;default:false"`
	LogBookID            *uuid.UUID           `gorm:"type:uuid"`
	Lines                []QueueLineModel     `gorm:"foreignKey:QueueID"`
	CreatedAt            time.Time            `gorm:"not null;index"`
	UpdatedAt            time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (QueueModel) TableName() string {
	return "sync_queues"
}

// ToDomain converts the persistence model to a domain Queue entity.
func (m *QueueModel) ToDomain() *syncqueue.Queue {
	queue := &syncqueue.Queue{
		ID:                   m.ID,
		InstanceID:           m.InstanceID,
		Collection:           m.Collection,
		Name:                 m.Name,
		State:                m.State,
		ProcessAttemptCount:  m.ProcessAttemptCount,
		RequiresManualAction: m.RequiresManualAction,
		IsProcessing:         m.IsProcessing,
		LogBookID:            m.LogBookID,
		Lines:                make([]syncqueue.QueueLine, len(m.Lines)),
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
	for i := range m.Lines {
		queue.Lines[i] = *m.Lines[i].ToDomain()
	}
	return queue
}

// FromDomain populates the persistence model from a domain Queue entity.
// Lines are persisted separately; only the header is mapped.
func (m *QueueModel) FromDomain(q *syncqueue.Queue) {
	m.ID = q.ID
	m.InstanceID = q.InstanceID
	m.Collection = q.Collection
	m.Name = q.Name
	m.State = q.State
	m.ProcessAttemptCount = q.ProcessAttemptCount
	m.RequiresManualAction = q.RequiresManualAction
	m.IsProcessing = q.IsProcessing
	m.LogBookID = q.LogBookID
	m.CreatedAt = q.CreatedAt
	m.UpdatedAt = q.UpdatedAt
}

// QueueLineModel is the persistence model for the QueueLine domain entity.
type QueueLineModel struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	QueueID       uuid.UUID           `gorm:"type:uuid;not null;index"`
	InstanceID    uuid.UUID           `gorm:"type:uuid;not null;index:idx_queue_line_instance_key,priority:1"`
	RecordKey     string              `gorm:"type:varchar(128);index:idx_queue_line_instance_key,priority:2"`
	State         syncqueue.LineState `gorm:"type:varchar(16);not null;default:'DRAFT';index"`
	RawPayload    []byte              `gorm:"type:jsonb"`
	ProcessedAt   *time.Time
	LocalEntityID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (QueueLineModel) TableName() string {
	return "sync_queue_lines"
}

// ToDomain converts the persistence model to a domain QueueLine entity.
func (m *QueueLineModel) ToDomain() *syncqueue.QueueLine {
	return &syncqueue.QueueLine{
		ID:            m.ID,
		QueueID:       m.QueueID,
		InstanceID:    m.InstanceID,
		RecordKey:     m.RecordKey,
		State:         m.State,
		RawPayload:    m.RawPayload,
		ProcessedAt:   m.ProcessedAt,
		LocalEntityID: m.LocalEntityID,
		CreatedAt:     m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain QueueLine entity.
func (m *QueueLineModel) FromDomain(l *syncqueue.QueueLine) {
	m.ID = l.ID
	m.QueueID = l.QueueID
	m.InstanceID = l.InstanceID
	m.RecordKey = l.RecordKey
	m.State = l.State
	m.RawPayload = l.RawPayload
	m.ProcessedAt = l.ProcessedAt
	m.LocalEntityID = l.LocalEntityID
	m.CreatedAt = l.CreatedAt
}

// LogBookModel is the persistence model for the LogBook domain entity.
type LogBookModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	QueueID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex"`
	InstanceID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Lines      []LogLineModel `gorm:"foreignKey:LogBookID"`
	CreatedAt  time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LogBookModel) TableName() string {
	return "log_books"
}

// ToDomain converts the persistence model to a domain LogBook entity.
func (m *LogBookModel) ToDomain() *syncqueue.LogBook {
	book := &syncqueue.LogBook{
		ID:         m.ID,
		QueueID:    m.QueueID,
		InstanceID: m.InstanceID,
		Lines:      make([]syncqueue.LogLine, len(m.Lines)),
		CreatedAt:  m.CreatedAt,
	}
	for i := range m.Lines {
		book.Lines[i] = *m.Lines[i].ToDomain()
	}
	return book
}

// FromDomain populates the persistence model from a domain LogBook entity.
func (m *LogBookModel) FromDomain(b *syncqueue.LogBook) {
	m.ID = b.ID
	m.QueueID = b.QueueID
	m.InstanceID = b.InstanceID
	m.CreatedAt = b.CreatedAt
}

// LogLineModel is the persistence model for the LogLine domain entity.
type LogLineModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	LogBookID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Message     string     `gorm:"type:text;not null"`
	RecordKey   string     `gorm:"type:varchar(128)"`
	QueueLineID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LogLineModel) TableName() string {
	return "log_lines"
}

// ToDomain converts the persistence model to a domain LogLine entity.
func (m *LogLineModel) ToDomain() *syncqueue.LogLine {
	return &syncqueue.LogLine{
		ID:          m.ID,
		LogBookID:   m.LogBookID,
		Message:     m.Message,
		RecordKey:   m.RecordKey,
		QueueLineID: m.QueueLineID,
		CreatedAt:   m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain LogLine entity.
func (m *LogLineModel) FromDomain(l *syncqueue.LogLine) {
	m.ID = l.ID
	m.LogBookID = l.LogBookID
	m.Message = l.Message
	m.RecordKey = l.RecordKey
	m.QueueLineID = l.QueueLineID
	m.CreatedAt = l.CreatedAt
}

// QueueSequenceModel backs the per-collection sequential queue names.
type QueueSequenceModel struct {
	InstanceID uuid.UUID            `gorm:"type:uuid;primaryKey"`
	Collection syncqueue.Collection `gorm:"type:varchar(20);primaryKey"`
	NextValue  int64                `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (QueueSequenceModel) TableName() string {
	return "queue_sequences"
}
