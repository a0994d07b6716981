// Package binancefeed implements feed.Feed against Binance's combined
// depth-stream WebSocket, as a concrete reference quote-feed collaborator
// for spec §6.
//
// Grounded on the teacher's pack-mate binance.Client
// (Song-Mao-bittap-watch/internal/exchange/binance/client.go and
// parser.go): gorilla/websocket dialer with a ping loop and read-deadline
// refresh, exponential backoff reconnect, and JSON depth-update decoding.
// Decoding here uses github.com/sugawarayuuta/sonnet (the teacher's own
// fast-JSON dependency, exercised the same way
// codewanderer42820-evm_triarb/syncharvester/syncharvester.go uses it)
// instead of encoding/json.
package binancefeed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"triarb/internal/backoff"
	"triarb/internal/feed"
)

// Config configures one Binance depth-stream connection. cmd/triarb fills
// URL from connection.md_endpoint; connection.md_port is not read, so any
// port must be part of the URL.
type Config struct {
	URL            string
	PingIntervalMs int
	ReadTimeoutMs  int
}

// Client is a concrete feed.Feed backed by a Binance WebSocket connection.
type Client struct {
	cfg      Config
	sink     feed.Sink
	resolver feed.Resolver
	log      *zap.Logger
	backoff  *backoff.Backoff

	connMu sync.Mutex
	conn   *websocket.Conn

	mu        sync.Mutex
	expected  map[string]bool
	delivered map[string]bool
	cond      *sync.Cond

	closed chan struct{}
	once   sync.Once
}

// New constructs a Binance feed writing decoded updates into sink, resolving
// canonical names via resolver.
func New(cfg Config, sink feed.Sink, resolver feed.Resolver, log *zap.Logger) *Client {
	c := &Client{
		cfg:       cfg,
		sink:      sink,
		resolver:  resolver,
		log:       log.Named("binancefeed"),
		backoff:   backoff.NewDefault(),
		expected:  make(map[string]bool),
		delivered: make(map[string]bool),
		closed:    make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Client) Subscribe(ctx context.Context, symbols []string) error {
	c.mu.Lock()
	for _, s := range symbols {
		c.expected[s] = true
	}
	c.mu.Unlock()

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return nil // subscription is replayed once Run connects
	}
	return c.sendSubscribe(conn, symbols, "SUBSCRIBE")
}

func (c *Client) Unsubscribe(ctx context.Context, symbols []string) error {
	c.mu.Lock()
	for _, s := range symbols {
		delete(c.expected, s)
		delete(c.delivered, s)
	}
	c.mu.Unlock()

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}
	return c.sendSubscribe(conn, symbols, "UNSUBSCRIBE")
}

func (c *Client) sendSubscribe(conn *websocket.Conn, symbols []string, method string) error {
	params := make([]string, len(symbols))
	for i, s := range symbols {
		params[i] = fmt.Sprintf("%s@depth5@100ms", strings.ToLower(s))
	}
	req := subscribeRequest{Method: method, Params: params, ID: 1}
	data, err := sonnet.Marshal(req)
	if err != nil {
		return fmt.Errorf("binancefeed: marshal subscribe: %w", err)
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) WaitForSnapshots(timeout time.Duration) (received, expected int) {
	deadline := time.Now().Add(timeout)
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		received, expected = c.countLocked()
		if received >= expected || timeout <= 0 {
			return
		}
		remaining := deadline.Sub(time.Now())
		if remaining <= 0 {
			return
		}
		timer := time.AfterFunc(remaining, c.cond.Broadcast)
		c.cond.Wait()
		timer.Stop()
	}
}

func (c *Client) countLocked() (received, expected int) {
	expected = len(c.expected)
	for s := range c.expected {
		if c.delivered[s] {
			received++
		}
	}
	return
}

// Run dials, subscribes to the previously-registered symbol set, and drives
// the read loop with reconnect-on-error, until ctx is canceled.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			c.log.Warn("dial failed", zap.Error(err))
			c.sleepBackoff(ctx)
			continue
		}
		c.backoff.Reset()

		c.mu.Lock()
		symbols := make([]string, 0, len(c.expected))
		for s := range c.expected {
			symbols = append(symbols, s)
		}
		c.mu.Unlock()
		if len(symbols) > 0 {
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if err := c.sendSubscribe(conn, symbols, "SUBSCRIBE"); err != nil {
				c.log.Warn("resubscribe failed", zap.Error(err))
			}
		}

		go c.pingLoop(ctx)
		c.readLoop(ctx)
	}
}

func (c *Client) connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("User-Agent", "triarb/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return err
	}

	readTimeout := c.readTimeout()
	if readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	readTimeout := c.readTimeout()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.log.Warn("read failed, reconnecting", zap.Error(err))
			c.closeConn()
			return
		}
		if readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		}

		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg depthUpdate
	if err := sonnet.Unmarshal(data, &msg); err != nil {
		return // malformed frames fail to decode; ignore
	}
	// Control frames such as the subscribe ack decode with an empty EventType.
	if msg.EventType != "depthUpdate" {
		return
	}
	canon := strings.ToUpper(msg.Symbol)
	if canon == "" {
		return
	}

	var bid, ask float64
	if len(msg.Bids) > 0 && len(msg.Bids[0]) >= 2 {
		bid = parseFloat(msg.Bids[0][0])
	}
	if len(msg.Asks) > 0 && len(msg.Asks[0]) >= 2 {
		ask = parseFloat(msg.Asks[0][0])
	}

	id := c.resolver.GetID(canon)
	c.sink.Update(id, bid, ask)

	c.mu.Lock()
	c.delivered[canon] = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

func (c *Client) pingLoop(ctx context.Context) {
	intervalMs := c.cfg.PingIntervalMs
	if intervalMs <= 0 {
		intervalMs = 15000
	}
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				continue
			}
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			c.connMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) sleepBackoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.backoff.Next()):
	}
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.once.Do(func() { close(c.closed) })
	c.closeConn()
	return nil
}

func (c *Client) readTimeout() time.Duration {
	if c.cfg.ReadTimeoutMs > 0 {
		return time.Duration(c.cfg.ReadTimeoutMs) * time.Millisecond
	}
	return 30 * time.Second
}

// parseFloat parses a Binance-style decimal string, returning 0 on failure
// rather than propagating an error: a malformed single field should not
// drop the whole depth update.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

var _ feed.Feed = (*Client)(nil)
