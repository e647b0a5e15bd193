package magento

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
)

// maxResponseSize is the maximum allowed response size from the storefront API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// defaultTimeout bounds a single REST round trip
const defaultTimeout = 30 * time.Second

// Gateway implements remote.Gateway against the Magento 2 REST API
type Gateway struct {
	httpClient *http.Client
	// insecureClient skips certificate verification for instances that run
	// on self-signed staging certificates
	insecureClient *http.Client
}

// NewGateway creates a gateway with the given round-trip timeout. A zero
// timeout falls back to the default.
func NewGateway(timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{
		httpClient: &http.Client{Timeout: timeout},
		insecureClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Search Operations
// ---------------------------------------------------------------------------

// FetchCount sizes the range matching the criteria with a count-only
// projection, so no record bodies cross the wire
func (g *Gateway) FetchCount(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, criteria *remote.SearchCriteria) (int, error) {
	endpoint, err := searchEndpoint(collection)
	if err != nil {
		return 0, err
	}

	counting := *criteria
	counting.Fields = []string{"total_count"}
	counting.PageSize = 0
	counting.CurrentPage = 0

	body, err := g.doGet(ctx, instance, endpoint, counting.Encode())
	if err != nil {
		return 0, err
	}

	var resp struct {
		TotalCount *int `json:"total_count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: failed to parse response: %v", remote.ErrGatewayInvalidResponse, err)
	}
	if resp.TotalCount == nil {
		return 0, fmt.Errorf("%w: missing total_count", remote.ErrGatewayInvalidResponse)
	}
	return *resp.TotalCount, nil
}

// FetchPage fetches one page of records matching the criteria
func (g *Gateway) FetchPage(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, criteria *remote.SearchCriteria) (*remote.Page, error) {
	endpoint, err := searchEndpoint(collection)
	if err != nil {
		return nil, err
	}

	body, err := g.doGet(ctx, instance, endpoint, criteria.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", remote.ErrGatewayInvalidResponse, err)
	}

	page := &remote.Page{
		Items:      make([]remote.Record, 0, len(resp.Items)),
		TotalCount: resp.TotalCount,
	}
	for _, item := range resp.Items {
		page.Items = append(page.Items, remote.Record{
			Key:     recordKey(collection, item),
			Payload: item,
		})
	}
	return page, nil
}

// ---------------------------------------------------------------------------
// Stock Export
// ---------------------------------------------------------------------------

// UpdateStock pushes stock levels through the bulk source-items endpoint
func (g *Gateway) UpdateStock(ctx context.Context, instance *syncqueue.Instance, items []remote.StockItem) error {
	if len(items) == 0 {
		return nil
	}

	payload := sourceItemsRequest{SourceItems: make([]sourceItem, 0, len(items))}
	for _, item := range items {
		status := 0
		if item.InStock {
			status = 1
		}
		payload.SourceItems = append(payload.SourceItems, sourceItem{
			SKU:        item.SKU,
			SourceCode: item.SourceCode,
			Quantity:   item.Quantity,
			Status:     status,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("magento: failed to encode stock payload: %w", err)
	}

	_, err = g.doRequest(ctx, instance, http.MethodPost, "/V1/inventory/source-items", "", bytes.NewReader(body))
	return err
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doGet performs a GET request against a search endpoint
func (g *Gateway) doGet(ctx context.Context, instance *syncqueue.Instance, endpoint, query string) ([]byte, error) {
	return g.doRequest(ctx, instance, http.MethodGet, endpoint, query, nil)
}

// doRequest performs one authenticated REST round trip
func (g *Gateway) doRequest(ctx context.Context, instance *syncqueue.Instance, method, endpoint, query string, body io.Reader) ([]byte, error) {
	requestURL := restURL(instance.BaseURL, endpoint)
	if query != "" {
		requestURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("magento: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+instance.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := g.httpClient
	if !instance.VerifySSL {
		client = g.insecureClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("magento: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d, check the instance access token", remote.ErrGatewayAuthFailed, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d: %s", remote.ErrGatewayUnavailable, resp.StatusCode, errorMessage(respBody))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d: %s", remote.ErrGatewayRequestFailed, resp.StatusCode, errorMessage(respBody))
	}

	return respBody, nil
}

// restURL joins the instance base URL with a REST endpoint, tolerating base
// URLs that already carry the /rest prefix or a trailing slash
func restURL(baseURL, endpoint string) string {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/rest") {
		base += "/rest"
	}
	return base + endpoint
}

// searchEndpoint maps a collection to its REST search endpoint
func searchEndpoint(collection syncqueue.Collection) (string, error) {
	switch collection {
	case syncqueue.CollectionOrders:
		return "/V1/orders", nil
	case syncqueue.CollectionProducts:
		return "/V1/products", nil
	case syncqueue.CollectionCustomers:
		return "/V1/customers/search", nil
	default:
		return "", fmt.Errorf("%w: no search endpoint for collection %s", remote.ErrGatewayRequestFailed, collection)
	}
}

// recordKey extracts the collection's natural key from a raw record
func recordKey(collection syncqueue.Collection, item json.RawMessage) string {
	var keys struct {
		IncrementID string `json:"increment_id"`
		SKU         string `json:"sku"`
		Email       string `json:"email"`
	}
	if err := json.Unmarshal(item, &keys); err != nil {
		return ""
	}
	switch collection {
	case syncqueue.CollectionOrders:
		return keys.IncrementID
	case syncqueue.CollectionProducts:
		return keys.SKU
	case syncqueue.CollectionCustomers:
		return keys.Email
	default:
		return ""
	}
}

// errorMessage digs the remote error message out of a failure body
func errorMessage(body []byte) string {
	var failure struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &failure); err == nil && failure.Message != "" {
		return failure.Message
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}

// Ensure Gateway implements remote.Gateway
var _ remote.Gateway = (*Gateway)(nil)
