package syncqueue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxProcessAttempts is the number of automatic runs a queue gets
// before it is escalated to a human.
const DefaultMaxProcessAttempts = 3

// DefaultImportPageSize is the remote page size used when fetching records.
const DefaultImportPageSize = 200

// Instance is one connected remote storefront account. It scopes queues and
// pagination cursors and carries the per-account sync policy. The engine does
// not own its lifecycle; it is configured by the operator.
type Instance struct {
	// ID is the unique identifier of the instance
	ID uuid.UUID
	// Name is the operator-facing account name
	Name string
	// BaseURL is the remote REST endpoint root
	BaseURL string
	// AccessToken is the bearer token for the remote API
	AccessToken string
	// VerifySSL controls TLS certificate verification on remote calls
	VerifySSL bool
	// Active indicates whether any sync runs for this instance
	Active bool
	// ImportOrders enables the orders collection
	ImportOrders bool
	// ImportProducts enables the products collection
	ImportProducts bool
	// ImportCustomers enables the customers collection
	ImportCustomers bool
	// ExportStock enables the stock push collection
	ExportStock bool
	// ImportPageSize is the remote page size (default 200)
	ImportPageSize int
	// MaxProcessAttempts is the escalation threshold (default 3)
	MaxProcessAttempts int
	// ActivityLeadDays is the lead time given to follow-up activities
	ActivityLeadDays int
	// ResponsibleUserIDs are notified when a queue needs manual attention
	ResponsibleUserIDs []uuid.UUID
	// LastOrderImportAt is the lower bound of the next order import range
	LastOrderImportAt *time.Time
	// CreatedAt is when the instance was configured
	CreatedAt time.Time
	// UpdatedAt is when the instance was last updated
	UpdatedAt time.Time
}

// CollectionEnabled returns true if the given collection is enabled
func (i *Instance) CollectionEnabled(c Collection) bool {
	switch c {
	case CollectionOrders:
		return i.ImportOrders
	case CollectionProducts:
		return i.ImportProducts
	case CollectionCustomers:
		return i.ImportCustomers
	case CollectionStock:
		return i.ExportStock
	default:
		return false
	}
}

// PageSize returns the configured remote page size, falling back to the default
func (i *Instance) PageSize() int {
	if i.ImportPageSize > 0 {
		return i.ImportPageSize
	}
	return DefaultImportPageSize
}

// AttemptLimit returns the configured escalation threshold, falling back to the default
func (i *Instance) AttemptLimit() int {
	if i.MaxProcessAttempts > 0 {
		return i.MaxProcessAttempts
	}
	return DefaultMaxProcessAttempts
}
