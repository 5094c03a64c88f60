package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"quorum/internal/domain/market"
	"quorum/pkg/errors"
)

// YahooQuotes fetches prices and daily bars from Yahoo Finance.
// The finance-go client is not context aware, so cancellation is only
// checked before each call.
type YahooQuotes struct {
	suffix string
	now    func() time.Time
}

// NewYahooQuotes creates a Yahoo price feed. suffix is appended to bare
// symbols (".IS" for Borsa Istanbul).
func NewYahooQuotes(suffix string) *YahooQuotes {
	return &YahooQuotes{suffix: suffix, now: time.Now}
}

func (y *YahooQuotes) ticker(symbol string) string {
	sym := normalize(symbol)
	if y.suffix == "" || strings.Contains(sym, ".") {
		return sym
	}
	return sym + y.suffix
}

// GetPrice returns the latest regular market quote.
func (y *YahooQuotes) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	if err := ctx.Err(); err != nil {
		return market.Quote{}, err
	}
	if normalize(symbol) == "" {
		return market.Quote{}, errors.ErrInvalidSymbol
	}

	ticker := y.ticker(symbol)
	q, err := quote.Get(ticker)
	if err != nil {
		return market.Quote{}, errors.Wrapf(err, "yahoo quote %s", ticker)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return market.Quote{}, errors.Wrapf(errors.ErrNotFound, "yahoo quote %s", ticker)
	}

	ts := y.now()
	if q.RegularMarketTime > 0 {
		ts = time.Unix(int64(q.RegularMarketTime), 0)
	}
	return market.Quote{
		Symbol:        normalize(symbol),
		Price:         q.RegularMarketPrice,
		PreviousClose: q.RegularMarketPreviousClose,
		Volume:        int64(q.RegularMarketVolume),
		Currency:      q.CurrencyID,
		Timestamp:     ts,
	}, nil
}

// GetPriceHistory returns daily bars covering the last days calendar days.
func (y *YahooQuotes) GetPriceHistory(ctx context.Context, symbol string, days int) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if normalize(symbol) == "" {
		return nil, errors.ErrInvalidSymbol
	}
	if days <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "days must be positive, got %d", days)
	}

	end := y.now()
	start := end.AddDate(0, 0, -days)
	ticker := y.ticker(symbol)

	iter := chart.Get(&chart.Params{
		Symbol:   ticker,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	candles := make([]market.Candle, 0, days)
	for iter.Next() {
		bar := iter.Bar()
		open, _ := bar.Open.Float64()
		high, _ := bar.High.Float64()
		low, _ := bar.Low.Float64()
		closePx, _ := bar.Close.Float64()
		candles = append(candles, market.Candle{
			Time:   time.Unix(int64(bar.Timestamp), 0),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(err, "yahoo chart %s", ticker)
	}
	if len(candles) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "yahoo chart %s: no bars", ticker)
	}
	return candles, nil
}
