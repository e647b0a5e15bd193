package magento

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// searchResponse is the envelope every Magento search endpoint returns.
// Items stay raw: the engine queues record bodies opaquely and processors
// decode them later.
type searchResponse struct {
	Items      []json.RawMessage `json:"items"`
	TotalCount int               `json:"total_count"`
}

// sourceItemsRequest is the body of the bulk source-items save call.
type sourceItemsRequest struct {
	SourceItems []sourceItem `json:"sourceItems"`
}

// sourceItem is one stock level in the bulk save payload. Status is 1 for
// in stock and 0 for out of stock, per the MSI API.
type sourceItem struct {
	SKU        string          `json:"sku"`
	SourceCode string          `json:"source_code"`
	Quantity   decimal.Decimal `json:"quantity"`
	Status     int             `json:"status"`
}
