package binancerest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triarb/internal/signing"
)

func TestFetchExchangeInfo_FiltersToSpotTradingAndMapsFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"symbols": [
				{
					"symbol": "BTCUSDT", "status": "TRADING", "baseAsset": "BTC", "quoteAsset": "USDT",
					"isSpotTradingAllowed": true,
					"filters": [
						{"filterType": "LOT_SIZE", "minQty": "0.00001", "maxQty": "9000", "stepSize": "0.00001"},
						{"filterType": "NOTIONAL", "minNotional": "10", "applyMinToMarket": true}
					]
				},
				{
					"symbol": "DELISTED", "status": "BREAK", "baseAsset": "X", "quoteAsset": "USDT",
					"isSpotTradingAllowed": true, "filters": []
				}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, signing.New("key", "secret"))
	metas, err := c.FetchExchangeInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 1)

	assert.Equal(t, "BTCUSDT", metas[0].DisplayName)
	assert.Equal(t, "BTC", metas[0].BaseAsset)
	assert.Equal(t, 0.00001, metas[0].Filters.LotSize.StepSize)
	assert.Equal(t, 10.0, metas[0].Filters.Notional.Min)
	assert.True(t, metas[0].Filters.Notional.ApplyMinToMarket)
}

func TestFetchBalances_ParsesFreeAmounts(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-MBX-APIKEY")
		w.Write([]byte(`{"balances": [{"asset": "USDT", "free": "1234.5", "locked": "0"}, {"asset": "BTC", "free": "0.5", "locked": "0"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, signing.New("mykey", "secret"))
	balances, err := c.FetchBalances(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "mykey", gotAuth)
	assert.Equal(t, 1234.5, balances["USDT"])
	assert.Equal(t, 0.5, balances["BTC"])
}

func TestFetchExchangeInfo_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL, signing.New("key", "secret"))
	_, err := c.FetchExchangeInfo(context.Background())
	assert.Error(t, err)
}
