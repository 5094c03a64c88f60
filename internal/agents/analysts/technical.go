package analysts

import (
	"context"
	"math"

	"github.com/markcheno/go-talib"

	"quorum/internal/agents"
	"quorum/internal/domain/fusion"
	"quorum/internal/domain/market"
	"quorum/pkg/errors"
)

const (
	// DefaultHistoryDays is the price window requested for indicators.
	DefaultHistoryDays = 120
	// MinHistoryBars is the shortest series SMA50 can be computed on.
	MinHistoryBars = 50
)

// Indicators holds the latest value of each indicator.
type Indicators struct {
	Price      float64 `json:"price"`
	SMA20      float64 `json:"sma20"`
	SMA50      float64 `json:"sma50"`
	RSI14      float64 `json:"rsi14"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
	Trend      string  `json:"trend"`
}

// TechnicalReport is the technical_agent output.
type TechnicalReport struct {
	Symbol     string        `json:"symbol"`
	Bars       int           `json:"bars"`
	Indicators Indicators    `json:"indicators"`
	Score      int           `json:"score"`
	Signal     fusion.Signal `json:"signal"`
	Strength   float64       `json:"strength"`
	Reasons    []string      `json:"reasons"`
}

func (r *TechnicalReport) Source() string { return fusion.SourceTechnical }

func (r *TechnicalReport) SubResult() fusion.SubResult {
	return fusion.SignalResult(r.Signal, r.Strength)
}

// TechnicalAnalyst derives trading signals from daily bars.
type TechnicalAnalyst struct {
	*agents.BaseAgent
	source market.DataSource
}

// NewTechnicalAnalyst creates the technical_agent worker
func NewTechnicalAnalyst(source market.DataSource) *TechnicalAnalyst {
	a := &TechnicalAnalyst{source: source}
	a.BaseAgent = agents.NewBaseAgent(agents.TechnicalAgent, map[agents.TaskKind]agents.Handler{
		agents.TaskGenerateSignals:     a.signals,
		agents.TaskCalculateIndicators: a.indicators,
	})
	return a
}

func (a *TechnicalAnalyst) closes(ctx context.Context, task agents.Task) (string, []float64, error) {
	symbol := task.String("symbol", "")
	if symbol == "" {
		return "", nil, errors.NewValidationError("symbol", "symbol is required", symbol)
	}
	days := task.Int("days", DefaultHistoryDays)

	candles, err := a.source.GetPriceHistory(ctx, symbol, days)
	if err != nil {
		return "", nil, errors.Wrapf(err, "fetch history %s", symbol)
	}
	if len(candles) < MinHistoryBars {
		return "", nil, errors.Wrapf(errors.ErrInvalidInput, "%s: %d bars, need %d", symbol, len(candles), MinHistoryBars)
	}
	return symbol, market.Closes(candles), nil
}

func (a *TechnicalAnalyst) indicators(ctx context.Context, task agents.Task) (any, error) {
	_, closes, err := a.closes(ctx, task)
	if err != nil {
		return nil, err
	}
	return ComputeIndicators(closes), nil
}

func (a *TechnicalAnalyst) signals(ctx context.Context, task agents.Task) (any, error) {
	symbol, closes, err := a.closes(ctx, task)
	if err != nil {
		return nil, err
	}

	ind := ComputeIndicators(closes)
	score, reasons := ScoreIndicators(ind)
	report := &TechnicalReport{
		Symbol:     symbol,
		Bars:       len(closes),
		Indicators: ind,
		Score:      score,
		Signal:     SignalFor(score),
		Strength:   math.Abs(float64(score)),
		Reasons:    reasons,
	}

	a.Log().Debugw("Signals generated",
		"symbol", symbol,
		"score", score,
		"signal", report.Signal,
		"rsi", ind.RSI14,
	)
	return report, nil
}

// ComputeIndicators calculates SMA20/50, RSI14, MACD(12,26,9) and
// Bollinger(20,2) on closing prices.
func ComputeIndicators(closes []float64) Indicators {
	ind := Indicators{Price: last(closes)}

	ind.SMA20 = round4(last(talib.Sma(closes, 20)))
	ind.SMA50 = round4(last(talib.Sma(closes, 50)))
	ind.RSI14 = round2(last(talib.Rsi(closes, 14)))

	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	ind.MACD = round4(last(macd))
	ind.MACDSignal = round4(last(signal))
	ind.MACDHist = round4(last(hist))

	upper, middle, lower := talib.BBands(closes, 20, 2.0, 2.0, talib.SMA)
	ind.BBUpper = round4(last(upper))
	ind.BBMiddle = round4(last(middle))
	ind.BBLower = round4(last(lower))

	switch {
	case ind.SMA20 > ind.SMA50:
		ind.Trend = "up"
	case ind.SMA20 < ind.SMA50:
		ind.Trend = "down"
	default:
		ind.Trend = "flat"
	}
	return ind
}

// ScoreIndicators votes MA trend ±2, RSI extremes ±3 and MACD cross ±1.
func ScoreIndicators(ind Indicators) (int, []string) {
	score := 0
	reasons := make([]string, 0, 3)

	if ind.Trend == "up" {
		score += 2
		reasons = append(reasons, "MA: SMA20 above SMA50")
	} else {
		score -= 2
		reasons = append(reasons, "MA: SMA20 not above SMA50")
	}

	switch {
	case ind.RSI14 < 30:
		score += 3
		reasons = append(reasons, "RSI: oversold")
	case ind.RSI14 > 70:
		score -= 3
		reasons = append(reasons, "RSI: overbought")
	default:
		reasons = append(reasons, "RSI: neutral")
	}

	if ind.MACD > ind.MACDSignal {
		score++
		reasons = append(reasons, "MACD: above signal line")
	} else {
		score--
		reasons = append(reasons, "MACD: below signal line")
	}

	return score, reasons
}

// SignalFor labels a vote score.
func SignalFor(score int) fusion.Signal {
	switch {
	case score >= 3:
		return fusion.SignalStrongBuy
	case score >= 1:
		return fusion.SignalBuy
	case score <= -3:
		return fusion.SignalStrongSell
	case score <= -1:
		return fusion.SignalSell
	}
	return fusion.SignalNeutral
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
