package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
)

// stockPayload is the line payload for the stock collection. Stock lines are
// produced locally (not fetched), so the engine owns this shape.
type stockPayload struct {
	SKU        string          `json:"sku"`
	SourceCode string          `json:"source_code"`
	Quantity   decimal.Decimal `json:"qty"`
	InStock    bool            `json:"in_stock"`
}

// StockExportProcessor is the line processor for the stock collection: it
// pushes one product's stock level to the remote storefront. Pushing the same
// quantity twice is a no-op on the remote side, which is what makes the line
// safe to reprocess after a crash.
type StockExportProcessor struct {
	gateway remote.Gateway
}

// NewStockExportProcessor creates a new StockExportProcessor
func NewStockExportProcessor(gateway remote.Gateway) *StockExportProcessor {
	return &StockExportProcessor{gateway: gateway}
}

// Collection returns the record collection this processor handles
func (p *StockExportProcessor) Collection() syncqueue.Collection {
	return syncqueue.CollectionStock
}

// Process pushes one stock line. A malformed payload or a missing SKU is a
// business-rule mismatch (logged and retried later in case the mapping gets
// fixed); gateway faults propagate so the runner fails the line and moves on.
func (p *StockExportProcessor) Process(ctx context.Context, line *syncqueue.QueueLine, instance *syncqueue.Instance, logBook *syncqueue.LogBook) (bool, error) {
	var payload stockPayload
	if err := json.Unmarshal(line.RawPayload, &payload); err != nil {
		logBook.Add(fmt.Sprintf("Stock line has malformed payload: %v", err), line.RecordKey, &line.ID)
		return false, nil
	}
	if payload.SKU == "" {
		logBook.Add("Stock line has no SKU; map the product before exporting stock", line.RecordKey, &line.ID)
		return false, nil
	}
	if payload.Quantity.IsNegative() {
		logBook.Add(fmt.Sprintf("Stock line for %s has negative quantity %s", payload.SKU, payload.Quantity), line.RecordKey, &line.ID)
		return false, nil
	}

	item := remote.StockItem{
		SKU:        payload.SKU,
		SourceCode: payload.SourceCode,
		Quantity:   payload.Quantity,
		InStock:    payload.InStock,
	}
	if err := p.gateway.UpdateStock(ctx, instance, []remote.StockItem{item}); err != nil {
		return false, err
	}
	return true, nil
}

// Ensure StockExportProcessor implements LineProcessor
var _ syncqueue.LineProcessor = (*StockExportProcessor)(nil)
