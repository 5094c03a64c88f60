package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"quorum/internal/domain/market"
	"quorum/pkg/errors"
)

// StaticSource is a deterministic in-memory DataSource. Fixtures can be set
// explicitly; anything not set is derived from a hash of the symbol so the
// same symbol always yields the same data.
type StaticSource struct {
	mu          sync.RWMutex
	quotes      map[string]market.Quote
	history     map[string][]market.Candle
	financials  map[string]market.Financials
	disclosures []market.Disclosure
	rates       map[string]float64
	failures    map[string]error
	anchor      time.Time
}

// NewStaticSource creates a static source whose generated history ends at anchor.
func NewStaticSource(anchor time.Time) *StaticSource {
	return &StaticSource{
		quotes:      make(map[string]market.Quote),
		history:     make(map[string][]market.Candle),
		financials:  make(map[string]market.Financials),
		disclosures: defaultDisclosures(anchor),
		rates:       map[string]float64{"USD/TRY": 32.5, "EUR/TRY": 35.2, "EUR/USD": 1.083},
		failures:    make(map[string]error),
		anchor:      anchor,
	}
}

// SetQuote pins the quote for a symbol
func (s *StaticSource) SetQuote(q market.Quote) *StaticSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[normalize(q.Symbol)] = q
	return s
}

// SetHistory pins the price history for a symbol
func (s *StaticSource) SetHistory(symbol string, candles []market.Candle) *StaticSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[normalize(symbol)] = candles
	return s
}

// SetFinancials pins the statements for a symbol
func (s *StaticSource) SetFinancials(f market.Financials) *StaticSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.financials[normalize(f.Symbol)] = f
	return s
}

// SetDisclosures replaces the disclosure feed
func (s *StaticSource) SetDisclosures(d []market.Disclosure) *StaticSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disclosures = d
	return s
}

// FailOn makes the named method ("price", "disclosures", "rates", "history",
// "financials") return err.
func (s *StaticSource) FailOn(method string, err error) *StaticSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
	return s
}

func (s *StaticSource) failure(method string) error {
	if err, ok := s.failures[method]; ok {
		return err
	}
	return nil
}

func (s *StaticSource) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure("price"); err != nil {
		return market.Quote{}, err
	}
	sym := normalize(symbol)
	if sym == "" {
		return market.Quote{}, errors.ErrInvalidSymbol
	}
	if q, ok := s.quotes[sym]; ok {
		return q, nil
	}

	candles := s.historyLocked(sym, 2)
	last, prev := candles[len(candles)-1], candles[len(candles)-2]
	return market.Quote{
		Symbol:        sym,
		Price:         last.Close,
		PreviousClose: prev.Close,
		Volume:        last.Volume,
		Currency:      "TRY",
		Timestamp:     last.Time,
	}, nil
}

func (s *StaticSource) GetDisclosures(ctx context.Context, limit int) ([]market.Disclosure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure("disclosures"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(s.disclosures) {
		limit = len(s.disclosures)
	}
	out := make([]market.Disclosure, limit)
	copy(out, s.disclosures[:limit])
	return out, nil
}

func (s *StaticSource) GetExchangeRates(ctx context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure("rates"); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(s.rates))
	for k, v := range s.rates {
		out[k] = v
	}
	return out, nil
}

func (s *StaticSource) GetPriceHistory(ctx context.Context, symbol string, days int) ([]market.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure("history"); err != nil {
		return nil, err
	}
	sym := normalize(symbol)
	if sym == "" {
		return nil, errors.ErrInvalidSymbol
	}
	return s.historyLocked(sym, days), nil
}

func (s *StaticSource) GetFinancials(ctx context.Context, symbol string) (market.Financials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure("financials"); err != nil {
		return market.Financials{}, err
	}
	sym := normalize(symbol)
	if sym == "" {
		return market.Financials{}, errors.ErrInvalidSymbol
	}
	if f, ok := s.financials[sym]; ok {
		return f, nil
	}

	h := seed(sym)
	assets := 10_000 + float64(h%90_000)
	liabilities := assets * (0.3 + float64(h%40)/100)
	currentAssets := assets * 0.4
	revenue := assets * (0.5 + float64(h%50)/100)
	return market.Financials{
		Symbol:             sym,
		Period:             s.anchor.Format("2006") + "Q4",
		CurrentAssets:      currentAssets,
		CurrentLiabilities: currentAssets / (0.8 + float64(h%15)/10),
		TotalAssets:        assets,
		TotalLiabilities:   liabilities,
		Equity:             assets - liabilities,
		Revenue:            revenue,
		GrossProfit:        revenue * (0.2 + float64(h%20)/100),
		NetIncome:          revenue * (float64(h%25)/100 - 0.05),
	}, nil
}

// historyLocked returns the pinned history or a generated one of the given length.
func (s *StaticSource) historyLocked(sym string, days int) []market.Candle {
	if days < 2 {
		days = 2
	}
	if pinned, ok := s.history[sym]; ok && len(pinned) >= 2 {
		if len(pinned) > days {
			return append([]market.Candle(nil), pinned[len(pinned)-days:]...)
		}
		return append([]market.Candle(nil), pinned...)
	}
	return generateHistory(sym, days, s.anchor)
}

// generateHistory builds a smooth trend plus cycle series seeded by the symbol.
// Day offsets are relative to end, so every window agrees on shared days.
func generateHistory(sym string, days int, end time.Time) []market.Candle {
	h := seed(sym)
	base := 20 + float64(h%180)
	drift := (float64(h%7) - 3) / 1000
	period := 10 + float64(h%20)
	amplitude := base * 0.04

	out := make([]market.Candle, days)
	for i := 0; i < days; i++ {
		offset := i - days + 1
		t := float64(offset)
		closePx := base*math.Pow(1+drift, t) + amplitude*math.Sin(2*math.Pi*t/period)
		openPx := closePx * (1 - 0.004*math.Cos(t))
		out[i] = market.Candle{
			Time:   end.AddDate(0, 0, offset),
			Open:   round4(openPx),
			High:   round4(math.Max(openPx, closePx) * 1.006),
			Low:    round4(math.Min(openPx, closePx) * 0.994),
			Close:  round4(closePx),
			Volume: int64(100_000 + (h+uint32(offset+1_000_000)*7919)%900_000),
		}
	}
	return out
}

func defaultDisclosures(anchor time.Time) []market.Disclosure {
	return []market.Disclosure{
		{Title: "Record quarterly profit and dividend increase", Company: "THYAO", Date: anchor.AddDate(0, 0, -1),
			Content: "Net profit grew strongly, revenue growth beat expectations and the board approved a dividend increase."},
		{Title: "New capacity investment", Company: "ASELS", Date: anchor.AddDate(0, 0, -2),
			Content: "The company signed a new export agreement and announced a capacity expansion investment."},
		{Title: "Regulatory fine", Company: "GARAN", Date: anchor.AddDate(0, 0, -3),
			Content: "The regulator imposed a fine; management expects a loss provision and a decline in quarterly earnings."},
		{Title: "General assembly notice", Company: "KCHOL", Date: anchor.AddDate(0, 0, -4),
			Content: "Ordinary general assembly meeting agenda announced; the board statement is published."},
		{Title: "Debt restructuring", Company: "PETKM", Date: anchor.AddDate(0, 0, -5),
			Content: "Rising debt and weak demand led to a loss; the company started restructuring talks."},
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func seed(sym string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sym))
	return h.Sum32()
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
