package binancefeed

// subscribeRequest is Binance's WebSocket SUBSCRIBE/UNSUBSCRIBE control
// frame shape.
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// depthUpdate is the subset of Binance's depthUpdate push message this
// feed needs: best bid/ask, taken from the first level of each side.
// EventTime gives the numeric "E" key an exact match, so it is not matched
// case-insensitively onto the string "e" field.
type depthUpdate struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}
