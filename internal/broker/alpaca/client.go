// Package alpaca implements domain.Brokerage against the Alpaca trading API.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// DefaultPaperURL is the Alpaca paper-trading API root.
const DefaultPaperURL = "https://paper-api.alpaca.markets"

// Client is the REST client for the Alpaca trading API.
type Client struct {
	baseURL    string
	keyID      string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a new Alpaca REST client.
//
// baseURL is the API root, e.g. "https://paper-api.alpaca.markets". An empty
// baseURL selects the paper-trading endpoint.
func NewClient(baseURL, keyID, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultPaperURL
	}
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitMarketSell places a day market sell order.
func (c *Client) SubmitMarketSell(ctx context.Context, symbol string, qty float64) (domain.BrokerOrder, error) {
	return c.submitOrder(ctx, symbol, qty, "sell")
}

// SubmitMarketBuy places a day market buy order.
func (c *Client) SubmitMarketBuy(ctx context.Context, symbol string, qty float64) (domain.BrokerOrder, error) {
	return c.submitOrder(ctx, symbol, qty, "buy")
}

func (c *Client) submitOrder(ctx context.Context, symbol string, qty float64, side string) (domain.BrokerOrder, error) {
	req := orderRequest{
		Symbol:      symbol,
		Qty:         formatQty(qty),
		Side:        side,
		Type:        "market",
		TimeInForce: "day",
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v2/orders", req)
	if err != nil {
		return domain.BrokerOrder{}, fmt.Errorf("alpaca: submit %s %s: %w", side, symbol, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.BrokerOrder{}, fmt.Errorf("alpaca: decode order: %w", err)
	}

	return resp.toDomain(), nil
}

// GetOrderStatus fetches the current state of an order by its broker
// reference.
func (c *Client) GetOrderStatus(ctx context.Context, ref string) (domain.BrokerOrder, error) {
	path := fmt.Sprintf("/v2/orders/%s", url.PathEscape(ref))

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.BrokerOrder{}, fmt.Errorf("alpaca: get order %s: %w", ref, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.BrokerOrder{}, fmt.Errorf("alpaca: decode order: %w", err)
	}

	return resp.toDomain(), nil
}

// CancelOrder cancels an order. Best-effort: Alpaca returns 422 if the order
// is already in a terminal state, which the caller treats as non-fatal.
func (c *Client) CancelOrder(ctx context.Context, ref string) error {
	path := fmt.Sprintf("/v2/orders/%s", url.PathEscape(ref))

	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("alpaca: cancel order %s: %w", ref, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, authenticates, sends, and reads an HTTP request against
// the Alpaca API.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("order not found: %s: %w", apiErr.Message, domain.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("unauthorized: %s", apiErr.Message)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("rejected: %s: %w", apiErr.Message, domain.ErrBrokerRejected)
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited: %s", apiErr.Message)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, apiErr.Message)
	}
}

// Compile-time interface check.
var _ domain.Brokerage = (*Client)(nil)
