package market

import (
	"context"
	"time"
)

// Quote is the latest price snapshot for a symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Volume        int64     `json:"volume"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChangePct returns the move from the previous close in percent.
func (q Quote) ChangePct() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	return (q.Price - q.PreviousClose) / q.PreviousClose * 100
}

// Disclosure is one company announcement.
type Disclosure struct {
	Title   string    `json:"title"`
	Company string    `json:"company"`
	Date    time.Time `json:"date"`
	Content string    `json:"content"`
}

// Candle is a daily OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Financials holds the balance sheet and income statement figures the
// financial analyst needs.
type Financials struct {
	Symbol             string  `json:"symbol"`
	Period             string  `json:"period"`
	CurrentAssets      float64 `json:"current_assets"`
	CurrentLiabilities float64 `json:"current_liabilities"`
	TotalAssets        float64 `json:"total_assets"`
	TotalLiabilities   float64 `json:"total_liabilities"`
	Equity             float64 `json:"equity"`
	Revenue            float64 `json:"revenue"`
	GrossProfit        float64 `json:"gross_profit"`
	NetIncome          float64 `json:"net_income"`
}

// DataSource is the market data contract consumed by the analyst agents.
// Implementations return errors instead of fabricating data.
type DataSource interface {
	GetPrice(ctx context.Context, symbol string) (Quote, error)
	GetDisclosures(ctx context.Context, limit int) ([]Disclosure, error)
	GetExchangeRates(ctx context.Context) (map[string]float64, error)
	GetPriceHistory(ctx context.Context, symbol string, days int) ([]Candle, error)
	GetFinancials(ctx context.Context, symbol string) (Financials, error)
}

// Closes extracts closing prices in chronological order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
