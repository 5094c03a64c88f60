package analysts

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/adapters/marketdata"
	"quorum/internal/agents"
	"quorum/internal/domain/fusion"
	"quorum/internal/domain/market"
	"quorum/pkg/errors"
)

var anchor = time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)

func TestScoreText(t *testing.T) {
	tests := []struct {
		name string
		text string
		dir  fusion.Direction
		conf float64
	}{
		{"no keywords", "lorem ipsum", fusion.Neutral, 0.5},
		{"positive", "Record profit and strong growth", fusion.Bullish, 1},
		{"negative", "Net loss widened on weak demand", fusion.Bearish, 1},
		{"neutral wins tie", "Board meeting: profit", fusion.Neutral, 0.67},
		{"turkish positive", "Şirketimiz bu çeyrekte büyük artış ve kâr elde etmiştir", fusion.Bullish, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, conf, _ := ScoreText(tt.text)
			assert.Equal(t, tt.dir, dir)
			assert.InDelta(t, tt.conf, conf, 0.001)
		})
	}
}

func TestNewsAnalyst_AggregatesDisclosures(t *testing.T) {
	src := marketdata.NewStaticSource(anchor).SetDisclosures([]market.Disclosure{
		{Company: "THYAO", Content: "profit growth and record dividend"},
		{Company: "PETKM", Content: "loss and weak demand"},
		{Company: "KCHOL", Content: "lorem ipsum"},
	})
	analyst := NewNewsAnalyst(src)

	out, err := analyst.Process(context.Background(), agents.NewTask(agents.TaskGetDisclosures, map[string]any{"limit": 3}))
	require.NoError(t, err)

	report, ok := out.(*NewsReport)
	require.True(t, ok)
	require.Len(t, report.Items, 3)
	assert.Equal(t, SentimentCounts{Positive: 4, Negative: 2}, report.Counts)
	assert.Equal(t, fusion.Bullish, report.Direction)
	assert.InDelta(t, 0.33, report.Confidence, 0.001)
	assert.Equal(t, "moderate", report.Strength)
	assert.Equal(t, fusion.Bullish, report.Items[0].Sentiment)
	assert.Equal(t, fusion.Bearish, report.Items[1].Sentiment)

	var c agents.Contributor = report
	assert.Equal(t, fusion.SourceNews, c.Source())
	assert.Equal(t, fusion.KindSentiment, c.SubResult().Kind)
}

func TestNewsAnalyst_SourceFailure(t *testing.T) {
	boom := errors.New("feed down")
	analyst := NewNewsAnalyst(marketdata.NewStaticSource(anchor).FailOn("disclosures", boom))

	_, err := analyst.Process(context.Background(), agents.NewTask(agents.TaskGetDisclosures, nil))
	assert.ErrorIs(t, err, boom)
}

func TestNewsAnalyst_SentimentRequiresText(t *testing.T) {
	analyst := NewNewsAnalyst(marketdata.NewStaticSource(anchor))

	_, err := analyst.Process(context.Background(), agents.NewTask(agents.TaskAnalyzeSentiment, nil))
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	out, err := analyst.Process(context.Background(), agents.NewTask(agents.TaskAnalyzeSentiment, map[string]any{"text": "dividend increase"}))
	require.NoError(t, err)
	assert.Equal(t, fusion.Bullish, out.(*NewsReport).Direction)
}

func TestAnalyzeHealth(t *testing.T) {
	report, err := AnalyzeHealth(market.Financials{
		Symbol:             "THYAO",
		CurrentAssets:      1_000_000,
		CurrentLiabilities: 500_000,
		TotalAssets:        5_000_000,
		TotalLiabilities:   2_000_000,
		Equity:             3_000_000,
		Revenue:            2_000_000,
		GrossProfit:        800_000,
		NetIncome:          300_000,
	})
	require.NoError(t, err)

	// current ratio 2.0 (25) + D/E 0.67 (15) + ROE 10% (0) + ROA 6% (15)
	assert.Equal(t, 55.0, report.HealthScore)
	assert.Equal(t, "HOLD", report.Rating)
	assert.Equal(t, "strong", report.Liquidity)
	assert.Equal(t, "moderate", report.Leverage)
	assert.Equal(t, "moderate", report.Profitability)
	assert.Equal(t, 2.0, report.Ratios.CurrentRatio)
	assert.Equal(t, 0.67, report.Ratios.DebtToEquity)
	assert.Equal(t, 40.0, report.Ratios.GrossMarginPct)
	assert.Equal(t, 15.0, report.Ratios.NetMarginPct)
	assert.Equal(t, fusion.KindScore, report.SubResult().Kind)
}

func TestAnalyzeHealth_MaximumScore(t *testing.T) {
	report, err := AnalyzeHealth(market.Financials{
		CurrentAssets: 300, CurrentLiabilities: 100,
		TotalAssets: 1000, TotalLiabilities: 200, Equity: 800,
		NetIncome: 150,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, report.HealthScore)
	assert.Equal(t, "STRONG_BUY", report.Rating)
}

func TestComputeRatios_RejectsIncompleteStatements(t *testing.T) {
	_, err := ComputeRatios(market.Financials{CurrentAssets: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestFinancialAnalyst_RequiresSymbol(t *testing.T) {
	analyst := NewFinancialAnalyst(marketdata.NewStaticSource(anchor))

	_, err := analyst.Process(context.Background(), agents.NewTask(agents.TaskAnalyzeHealth, nil))
	require.Error(t, err)

	out, err := analyst.Process(context.Background(), agents.NewTask(agents.TaskCalculateRatios, map[string]any{"symbol": "ASELS"}))
	require.NoError(t, err)
	_, ok := out.(Ratios)
	assert.True(t, ok)
}

func TestSignalFor(t *testing.T) {
	cases := map[int]fusion.Signal{
		6: fusion.SignalStrongBuy, 3: fusion.SignalStrongBuy, 2: fusion.SignalBuy, 1: fusion.SignalBuy,
		0: fusion.SignalNeutral, -1: fusion.SignalSell, -2: fusion.SignalSell, -3: fusion.SignalStrongSell, -6: fusion.SignalStrongSell,
	}
	for score, want := range cases {
		assert.Equal(t, want, SignalFor(score), "score %d", score)
	}
}

func TestScoreIndicators(t *testing.T) {
	tests := []struct {
		name string
		ind  Indicators
		want int
	}{
		{"uptrend oversold bullish macd", Indicators{Trend: "up", RSI14: 25, MACD: 1, MACDSignal: 0.5}, 6},
		{"uptrend overbought", Indicators{Trend: "up", RSI14: 80, MACD: 1, MACDSignal: 0.5}, 0},
		{"downtrend neutral rsi", Indicators{Trend: "down", RSI14: 50, MACD: 0, MACDSignal: 0.5}, -3},
		{"flat counts as bearish trend", Indicators{Trend: "flat", RSI14: 50, MACD: 1, MACDSignal: 0}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reasons := ScoreIndicators(tt.ind)
			assert.Equal(t, tt.want, score)
			assert.Len(t, reasons, 3)
		})
	}
}

func TestTechnicalAnalyst_GeneratesConsistentSignal(t *testing.T) {
	analyst := NewTechnicalAnalyst(marketdata.NewStaticSource(anchor))

	out, err := analyst.Process(context.Background(), agents.NewTask(agents.TaskGenerateSignals, map[string]any{"symbol": "THYAO"}))
	require.NoError(t, err)

	report := out.(*TechnicalReport)
	assert.Equal(t, DefaultHistoryDays, report.Bars)
	assert.Equal(t, SignalFor(report.Score), report.Signal)
	assert.Equal(t, math.Abs(float64(report.Score)), report.Strength)
	assert.GreaterOrEqual(t, report.Indicators.RSI14, 0.0)
	assert.LessOrEqual(t, report.Indicators.RSI14, 100.0)
	assert.GreaterOrEqual(t, report.Indicators.BBUpper, report.Indicators.BBLower)

	v, ok := report.SubResult().Scalar()
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
}

func TestTechnicalAnalyst_InsufficientHistory(t *testing.T) {
	candles := make([]market.Candle, 10)
	for i := range candles {
		candles[i] = market.Candle{Time: anchor.AddDate(0, 0, i-9), Close: float64(10 + i)}
	}
	analyst := NewTechnicalAnalyst(marketdata.NewStaticSource(anchor).SetHistory("TINY", candles))

	_, err := analyst.Process(context.Background(), agents.NewTask(agents.TaskGenerateSignals, map[string]any{"symbol": "TINY"}))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestTechnicalAnalyst_RisingSeriesIsOverbought(t *testing.T) {
	candles := make([]market.Candle, 80)
	for i := range candles {
		candles[i] = market.Candle{Time: anchor.AddDate(0, 0, i-79), Close: 100 + float64(i)}
	}
	analyst := NewTechnicalAnalyst(marketdata.NewStaticSource(anchor).SetHistory("UP", candles))

	out, err := analyst.Process(context.Background(), agents.NewTask(agents.TaskCalculateIndicators, map[string]any{"symbol": "UP", "days": 80}))
	require.NoError(t, err)

	ind := out.(Indicators)
	assert.Equal(t, "up", ind.Trend)
	assert.Greater(t, ind.RSI14, 70.0)
	assert.Equal(t, 179.0, ind.Price)
}
