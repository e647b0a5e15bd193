package remote

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/erp/connector/internal/domain/syncqueue"
)

// ---------------------------------------------------------------------------
// Gateway Errors
// ---------------------------------------------------------------------------

var (
	// ErrGatewayUnavailable indicates a network-level failure (DNS, timeout, socket)
	ErrGatewayUnavailable = errors.New("remote: storefront temporarily unavailable")
	// ErrGatewayAuthFailed indicates the credentials were rejected
	ErrGatewayAuthFailed = errors.New("remote: storefront authentication failed")
	// ErrGatewayRequestFailed indicates a non-2xx response other than auth
	ErrGatewayRequestFailed = errors.New("remote: storefront request failed")
	// ErrGatewayInvalidResponse indicates an unparseable response body
	ErrGatewayInvalidResponse = errors.New("remote: invalid storefront response")
)

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// Record is one remote record as returned by a paginated fetch. The payload
// is kept opaque; Key is the record's natural key when the collection has one.
type Record struct {
	// Key is the record's natural key (order increment ID, SKU, ...); may be empty
	Key string
	// Payload is the raw record body
	Payload json.RawMessage
}

// Page is one page of a paginated search response.
type Page struct {
	// Items are the records on this page
	Items []Record
	// TotalCount is the total number of records matching the criteria
	TotalCount int
}

// StockItem is one stock level pushed to the remote storefront.
type StockItem struct {
	// SKU identifies the product on the remote system
	SKU string
	// SourceCode is the remote inventory source the quantity applies to
	SourceCode string
	// Quantity is the salable quantity
	Quantity decimal.Decimal
	// InStock marks the item as in or out of stock
	InStock bool
}

// ---------------------------------------------------------------------------
// Gateway Port
// ---------------------------------------------------------------------------

// Gateway is the port to the remote storefront's paginated search API.
// Implementations live in the infrastructure layer; the engine only needs
// count-only sizing, page fetches and the stock push.
type Gateway interface {
	// FetchCount sizes the range matching the criteria without transferring
	// records (count-only projection; pagination parameters are ignored)
	FetchCount(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, criteria *SearchCriteria) (int, error)

	// FetchPage fetches one page of records matching the criteria
	FetchPage(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, criteria *SearchCriteria) (*Page, error)

	// UpdateStock pushes stock levels to the remote storefront
	UpdateStock(ctx context.Context, instance *syncqueue.Instance, items []StockItem) error
}
