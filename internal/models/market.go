package models

import "time"

// MarketData is the per-symbol snapshot served by /all_market_prices
type MarketData struct {
	Price         float64 `json:"price"`
	PercentChange float64 `json:"percent_change"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	StochK        float64 `json:"stoch_k"`
	Volume        float64 `json:"volume"`
	ORSCRSignal   string  `json:"orscr_signal"`
}

// MarketSnapshot is the dashboard's view of all prices
type MarketSnapshot struct {
	Prices    map[string]MarketData `json:"prices"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Loading   bool                  `json:"loading"`
	// Mock is set when Prices is the fallback data set rather than live data
	Mock  bool   `json:"mock"`
	Error string `json:"error,omitempty"`
}

// MockMarketPrices is shown when the backend cannot be reached
func MockMarketPrices() map[string]MarketData {
	return map[string]MarketData{
		"EURUSD": {Price: 1.0850, PercentChange: 0.12, RSI: 55.2, MACD: 0.0004, StochK: 61.3, Volume: 125000, ORSCRSignal: "NEUTRAL"},
		"GBPUSD": {Price: 1.2710, PercentChange: -0.08, RSI: 47.9, MACD: -0.0002, StochK: 42.1, Volume: 98000, ORSCRSignal: "NEUTRAL"},
		"USDJPY": {Price: 151.20, PercentChange: 0.25, RSI: 63.4, MACD: 0.11, StochK: 72.8, Volume: 143000, ORSCRSignal: "BUY"},
		"XAUUSD": {Price: 2335.40, PercentChange: 0.41, RSI: 58.7, MACD: 1.9, StochK: 66.0, Volume: 54000, ORSCRSignal: "BUY"},
		"BTCUSD": {Price: 64250.00, PercentChange: -1.10, RSI: 41.5, MACD: -120.5, StochK: 30.2, Volume: 21000, ORSCRSignal: "SELL"},
	}
}
