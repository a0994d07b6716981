package restbroker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triarb/internal/broker"
	"triarb/internal/signing"
)

func TestSendMarketOrder_ReturnsGeneratedClientOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mykey", r.Header.Get("X-MBX-APIKEY"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, signing.New("mykey", "secret"))
	id, err := c.SendMarketOrder(context.Background(), "BTCUSDT", broker.Buy, 0.002, 50000)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestWaitForCompletion_ReportsFilledFromOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "FILLED", "executedQty": "0.002", "cummulativeQuoteQty": "100.0"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, signing.New("mykey", "secret"))
	status, err := c.WaitForCompletion(context.Background(), "some-id", time.Second)
	require.NoError(t, err)
	assert.Equal(t, broker.Filled, status)

	state, err := c.GetOrderState("some-id")
	require.NoError(t, err)
	assert.Equal(t, 0.002, state.FilledQty)
	assert.Equal(t, 50000.0, state.AvgPrice) // 100.0 / 0.002
}

func TestWaitForCompletion_TimesOutOnPersistentNonTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "NEW", "executedQty": "0", "cummulativeQuoteQty": "0"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, signing.New("mykey", "secret"))
	status, err := c.WaitForCompletion(context.Background(), "some-id", 300*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, broker.Unknown, status)
}
