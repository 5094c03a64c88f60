package risk

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/pkg/errors"
)

func TestKellySizer_Defaults(t *testing.T) {
	sizer := NewKellySizer(0, 0, 0, 0)

	res, err := sizer.Size(SizingRequest{})
	require.NoError(t, err)

	assert.True(t, res.BaseAmount.Equal(decimal.NewFromInt(100000)), res.BaseAmount.String())
	assert.True(t, res.AdjustedAmount.Equal(decimal.NewFromInt(75000)), res.AdjustedAmount.String())
	assert.True(t, res.KellyFraction.Equal(decimal.NewFromFloat(0.25)), res.KellyFraction.String())
	assert.True(t, res.RecommendedAmount.Equal(decimal.NewFromInt(75000)), res.RecommendedAmount.String())
	assert.True(t, res.PortfolioPct.Equal(decimal.NewFromFloat(7.5)), res.PortfolioPct.String())
	assert.True(t, res.MaxLossAmount.Equal(decimal.NewFromInt(5250)), res.MaxLossAmount.String())
	assert.Equal(t, "confidence_scaled", res.Method)
}

func TestKellySizer_KellyBindsAndRoundsToLot(t *testing.T) {
	sizer := NewKellySizer(1_000_000, 15, 0.25, 1000)

	res, err := sizer.Size(SizingRequest{PositionSizePct: 25, StopLossPct: 10, Confidence: 45})
	require.NoError(t, err)

	assert.True(t, res.AdjustedAmount.Equal(decimal.NewFromInt(112500)))
	assert.True(t, res.KellyFraction.Equal(decimal.NewFromFloat(0.0833)), res.KellyFraction.String())
	assert.True(t, res.RecommendedAmount.Equal(decimal.NewFromInt(83000)), res.RecommendedAmount.String())
	assert.Equal(t, "kelly_capped", res.Method)
}

func TestKellySizer_NegativeEdgeSizesToZero(t *testing.T) {
	sizer := NewKellySizer(500_000, 15, 0.25, 1000)

	res, err := sizer.Size(SizingRequest{PositionSizePct: 3, StopLossPct: 20, Confidence: 30})
	require.NoError(t, err)

	assert.True(t, res.KellyFraction.IsZero())
	assert.True(t, res.RecommendedAmount.IsZero())
	assert.True(t, res.MaxLossAmount.IsZero())
}

func TestKellySizer_RequestPortfolioOverridesDefault(t *testing.T) {
	sizer := NewKellySizer(1_000_000, 15, 0.25, 1000)

	res, err := sizer.Size(SizingRequest{PortfolioValue: 200_000, PositionSizePct: 10, StopLossPct: 5, Confidence: 80})
	require.NoError(t, err)

	assert.True(t, res.PortfolioValue.Equal(decimal.NewFromInt(200000)))
	// base 20000, adjusted 16000, kelly capped at 0.25 -> 50000
	assert.True(t, res.RecommendedAmount.Equal(decimal.NewFromInt(16000)), res.RecommendedAmount.String())
}

func TestKellySizer_NeverExceedsEitherBound(t *testing.T) {
	sizer := NewKellySizer(1_000_000, 15, 0.25, 1000)

	for _, conf := range []float64{5, 25, 50, 75, 95} {
		for _, stop := range []float64{3, 7, 15, 20} {
			for _, pct := range []float64{1, 10, 25} {
				res, err := sizer.Size(SizingRequest{PositionSizePct: pct, StopLossPct: stop, Confidence: conf})
				require.NoError(t, err)

				limit := decimal.Min(res.AdjustedAmount, res.KellyAmount).Add(decimal.NewFromInt(500))
				assert.True(t, res.RecommendedAmount.LessThanOrEqual(limit))
				assert.False(t, res.RecommendedAmount.IsNegative())
				assert.True(t, res.KellyFraction.LessThanOrEqual(decimal.NewFromFloat(0.25)))
			}
		}
	}
}

func TestKellySizer_Validation(t *testing.T) {
	sizer := NewKellySizer(0, 0, 0, 0)

	_, err := sizer.Size(SizingRequest{Confidence: 120, StopLossPct: -1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestKellySizer_RejectsNonFinite(t *testing.T) {
	sizer := NewKellySizer(0, 0, 0, 0)

	tests := []struct {
		name string
		req  SizingRequest
	}{
		{"portfolio +inf", SizingRequest{PortfolioValue: math.Inf(1)}},
		{"portfolio nan", SizingRequest{PortfolioValue: math.NaN()}},
		{"position nan", SizingRequest{PositionSizePct: math.NaN()}},
		{"stop loss -inf", SizingRequest{StopLossPct: math.Inf(-1)}},
		{"confidence nan", SizingRequest{Confidence: math.NaN()}},
		{"confidence +inf", SizingRequest{Confidence: math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = sizer.Size(tt.req) })
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestNewKellySizer_NonFiniteSelectsDefaults(t *testing.T) {
	var sizer *KellySizer
	require.NotPanics(t, func() { sizer = NewKellySizer(math.NaN(), math.Inf(1), math.NaN(), math.Inf(-1)) })

	res, err := sizer.Size(SizingRequest{})
	require.NoError(t, err)
	assert.True(t, res.RecommendedAmount.Equal(decimal.NewFromInt(75000)), res.RecommendedAmount.String())
}

func TestParseTier(t *testing.T) {
	cases := map[string]Tier{
		"Very High":  TierVeryHigh,
		"very_high":  TierVeryHigh,
		"VERY-LOW":   TierVeryLow,
		"Medium-Low": TierMediumLow,
		"medium":     TierMedium,
		"low":        TierLow,
	}
	for in, want := range cases {
		got, err := ParseTier(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTier("extreme")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
