// Package restbroker implements broker.Broker against a Binance-style
// signed spot order-entry REST API, as the concrete live order-entry
// collaborator for spec §6.
//
// Grounded on the teacher's pack-mate bitget.Client
// (chycee-cryptoGo/internal/infra/bitget/client.go): a *http.Client plus a
// signer, a client-order-id generated locally and echoed back by the
// exchange, and float-to-string boundary conversion for the wire format.
// Authentication uses internal/signing (this module's shared HMAC signer,
// grounded on chycee-cryptoGo/internal/infra/bitget/signer.go) rather than
// Bitget's header-based scheme, since the venue modeled here signs via
// query string per Binance convention.
package restbroker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"

	"triarb/internal/broker"
	"triarb/internal/signing"
)

// Client is a concrete broker.Broker backed by a signed REST order-entry
// API.
type Client struct {
	baseURL string
	signer  *signing.Signer
	http    *http.Client

	mu     sync.Mutex
	states map[string]broker.OrderState
}

// New constructs a Client against baseURL, signing every request with
// signer.
func New(baseURL string, signer *signing.Signer) *Client {
	return &Client{
		baseURL: baseURL,
		signer:  signer,
		http:    &http.Client{Timeout: 10 * time.Second},
		states:  make(map[string]broker.OrderState),
	}
}

func sideParam(s broker.Side) string {
	if s == broker.Buy {
		return "BUY"
	}
	return "SELL"
}

func (c *Client) SendMarketOrder(ctx context.Context, symbol string, side broker.Side, qty, estPrice float64) (string, error) {
	clOrdID := uuid.NewString()

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("side", sideParam(side))
	query.Set("type", "MARKET")
	query.Set("quantity", strconv.FormatFloat(qty, 'f', -1, 64))
	query.Set("newClientOrderId", clOrdID)
	query.Set("timestamp", signing.Timestamp())
	query.Set("signature", c.signer.Sign(query.Encode()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v3/order?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-MBX-APIKEY", c.signer.APIKey)

	if _, err := c.do(req); err != nil {
		return "", fmt.Errorf("restbroker: send market order: %w", err)
	}
	return clOrdID, nil
}

// TestMarketOrder exercises Binance's order-validation-only endpoint: same
// signature as a real order, but the exchange never books it. The Executor
// calls it instead of SendMarketOrder when liveMode is false; cmd/triarb
// only wires this client when strategy.live_mode is true.
func (c *Client) TestMarketOrder(ctx context.Context, symbol string, side broker.Side, qty, estPrice float64) (string, error) {
	clOrdID := uuid.NewString()

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("side", sideParam(side))
	query.Set("type", "MARKET")
	query.Set("quantity", strconv.FormatFloat(qty, 'f', -1, 64))
	query.Set("newClientOrderId", clOrdID)
	query.Set("timestamp", signing.Timestamp())
	query.Set("signature", c.signer.Sign(query.Encode()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v3/order/test?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-MBX-APIKEY", c.signer.APIKey)

	if _, err := c.do(req); err != nil {
		return "", fmt.Errorf("restbroker: test market order: %w", err)
	}
	return clOrdID, nil
}

// WaitForCompletion polls the exchange's order-status endpoint until a
// terminal status or timeout, caching the terminal state for GetOrderState.
// Market orders on Binance fill synchronously on submission, but the
// polling loop is kept to satisfy broker.Broker uniformly for venues that
// do not guarantee that.
func (c *Client) WaitForCompletion(ctx context.Context, clOrdID string, timeout time.Duration) (broker.TerminalStatus, error) {
	deadline := time.Now().Add(timeout)
	for {
		state, status, err := c.queryOrder(ctx, clOrdID)
		if err != nil {
			return broker.Unknown, err
		}
		if status != broker.Unknown {
			c.cacheState(clOrdID, state)
			return status, nil
		}
		if time.Now().After(deadline) {
			return broker.Unknown, nil
		}
		select {
		case <-ctx.Done():
			return broker.Unknown, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (c *Client) GetOrderState(clOrdID string) (broker.OrderState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[clOrdID], nil
}

func (c *Client) cacheState(clOrdID string, s broker.OrderState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states == nil {
		c.states = make(map[string]broker.OrderState)
	}
	c.states[clOrdID] = s
}

func (c *Client) queryOrder(ctx context.Context, clOrdID string) (broker.OrderState, broker.TerminalStatus, error) {
	query := url.Values{}
	query.Set("origClientOrderId", clOrdID)
	query.Set("timestamp", signing.Timestamp())
	query.Set("signature", c.signer.Sign(query.Encode()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/order?"+query.Encode(), nil)
	if err != nil {
		return broker.OrderState{}, broker.Unknown, err
	}
	req.Header.Set("X-MBX-APIKEY", c.signer.APIKey)

	body, err := c.do(req)
	if err != nil {
		return broker.OrderState{}, broker.Unknown, err
	}

	var resp orderStatusResponse
	if err := sonnet.Unmarshal(body, &resp); err != nil {
		return broker.OrderState{}, broker.Unknown, err
	}

	filledQty, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	avgPrice, _ := strconv.ParseFloat(resp.CummulativeQuoteQty, 64)
	if filledQty > 0 {
		avgPrice /= filledQty
	}

	state := broker.OrderState{FilledQty: filledQty, AvgPrice: avgPrice}
	return state, mapStatus(resp.Status), nil
}

func mapStatus(s string) broker.TerminalStatus {
	switch s {
	case "FILLED":
		return broker.Filled
	case "CANCELED":
		return broker.Canceled
	case "REJECTED":
		return broker.Rejected
	case "EXPIRED":
		return broker.Expired
	default:
		return broker.Unknown
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

var _ broker.Broker = (*Client)(nil)
