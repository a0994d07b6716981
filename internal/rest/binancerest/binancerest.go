// Package binancerest implements rest.Client against Binance's spot REST
// API: GET /api/v3/exchangeInfo (public) and GET /api/v3/account (signed),
// as the concrete REST admin collaborator for spec §6.
//
// Grounded on the teacher's general comfort with direct net/http calls
// (codewanderer42820-evm_triarb/syncharvester/syncharvester.go dials its own
// JSON-RPC requests by hand) and the chycee-cryptoGo bitget signer's
// timestamp+HMAC convention, adapted to Binance's query-string-signature
// style via internal/signing. JSON decoding uses
// github.com/sugawarayuuta/sonnet, matching the teacher's own dependency.
package binancerest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"triarb/internal/filter"
	"triarb/internal/rest"
	"triarb/internal/signing"
	"triarb/internal/symbol"
)

var _ rest.Client = (*Client)(nil)

// Client is a concrete rest.Client backed by Binance's spot REST API.
type Client struct {
	baseURL string
	signer  *signing.Signer
	http    *http.Client
}

// New constructs a Client against baseURL (e.g. "https://api.binance.com"),
// signing account-scoped requests with signer.
func New(baseURL string, signer *signing.Signer) *Client {
	return &Client{
		baseURL: baseURL,
		signer:  signer,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) FetchExchangeInfo(ctx context.Context) ([]symbol.Meta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("binancerest: fetch exchange info: %w", err)
	}

	var resp exchangeInfoResponse
	if err := sonnet.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binancerest: decode exchange info: %w", err)
	}

	metas := make([]symbol.Meta, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if s.Status != "TRADING" || !s.IsSpotTradingAllowed {
			continue
		}
		metas = append(metas, symbol.Meta{
			BaseAsset:   s.BaseAsset,
			QuoteAsset:  s.QuoteAsset,
			DisplayName: s.Symbol,
			Filters:     mapFilters(s.Filters),
		})
	}
	return metas, nil
}

func (c *Client) FetchBalances(ctx context.Context) (map[string]float64, error) {
	query := url.Values{}
	query.Set("timestamp", signing.Timestamp())
	query.Set("signature", c.signer.Sign(query.Encode()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/account?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.signer.APIKey)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("binancerest: fetch balances: %w", err)
	}

	var resp accountResponse
	if err := sonnet.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binancerest: decode balances: %w", err)
	}

	out := make(map[string]float64, len(resp.Balances))
	for _, b := range resp.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			continue
		}
		out[b.Asset] = free
	}
	return out, nil
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

// mapFilters translates Binance's exchangeInfo filter array into
// filter.Set, per spec §9's decision to treat REST exchangeInfo as the
// authoritative filter source.
func mapFilters(raw []exchangeFilter) filter.Set {
	var set filter.Set
	for _, f := range raw {
		switch f.FilterType {
		case "LOT_SIZE":
			set.LotSize = filter.LotSize{
				MinQty:   parseFloat(f.MinQty),
				MaxQty:   parseFloat(f.MaxQty),
				StepSize: parseFloat(f.StepSize),
			}
		case "MARKET_LOT_SIZE":
			set.MarketLotSize = filter.LotSize{
				MinQty:   parseFloat(f.MinQty),
				MaxQty:   parseFloat(f.MaxQty),
				StepSize: parseFloat(f.StepSize),
			}
		case "NOTIONAL":
			set.Notional = filter.Notional{
				Min:              parseFloat(f.MinNotional),
				Max:              parseFloat(f.MaxNotional),
				ApplyMinToMarket: f.ApplyMinToMarket,
				ApplyMaxToMarket: f.ApplyMaxToMarket,
			}
		case "MIN_NOTIONAL":
			set.MinNotional = filter.MinNotional{
				Min:           parseFloat(f.MinNotional),
				ApplyToMarket: f.ApplyToMarket,
			}
		case "PRICE_FILTER":
			set.PriceFilter = filter.PriceFilter{
				Min:      parseFloat(f.MinPrice),
				Max:      parseFloat(f.MaxPrice),
				TickSize: parseFloat(f.TickSize),
			}
		}
	}
	return set
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
