package models

// CoinSummary is the canonical coin record returned to callers. It is
// rebuilt on every read and never persisted.
type CoinSummary struct {
	ID            string   `json:"id" validate:"required"`
	Symbol        string   `json:"symbol" validate:"required"`
	Icon          string   `json:"icon" validate:"required,url"`
	Price         float64  `json:"price" validate:"gte=0"`
	PriceChange1d *float64 `json:"priceChange1d"`
	MarketCap     float64  `json:"marketCap" validate:"gte=0"`
	Volume24h     float64  `json:"volume24h" validate:"gte=0"`
	TokenAddress  *string  `json:"tokenAddress"`
	ExplorerLink  *string  `json:"explorerLink" validate:"omitempty,url"`
}

type DataPoint struct {
	Timestamp float64 `json:"timestamp"`
	Value     float64 `json:"value"`
}

type HistoricalSeries struct {
	Prices       []DataPoint `json:"prices"`
	MarketCaps   []DataPoint `json:"marketCaps"`
	TotalVolumes []DataPoint `json:"totalVolumes"`
}
