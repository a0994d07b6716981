package binancerest

type exchangeInfoResponse struct {
	Symbols []exchangeSymbol `json:"symbols"`
}

type exchangeSymbol struct {
	Symbol               string           `json:"symbol"`
	Status               string           `json:"status"`
	BaseAsset            string           `json:"baseAsset"`
	QuoteAsset           string           `json:"quoteAsset"`
	IsSpotTradingAllowed bool             `json:"isSpotTradingAllowed"`
	Filters              []exchangeFilter `json:"filters"`
}

type exchangeFilter struct {
	FilterType        string `json:"filterType"`
	MinQty            string `json:"minQty"`
	MaxQty            string `json:"maxQty"`
	StepSize          string `json:"stepSize"`
	MinNotional       string `json:"minNotional"`
	MaxNotional       string `json:"maxNotional"`
	ApplyMinToMarket  bool   `json:"applyMinToMarket"`
	ApplyMaxToMarket  bool   `json:"applyMaxToMarket"`
	ApplyToMarket     bool   `json:"applyToMarket"`
	MinPrice          string `json:"minPrice"`
	MaxPrice          string `json:"maxPrice"`
	TickSize          string `json:"tickSize"`
}

type accountResponse struct {
	Balances []accountBalance `json:"balances"`
}

type accountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}
