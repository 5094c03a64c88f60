package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"quorum/pkg/errors"
)

// Sizer defaults
const (
	DefaultPortfolioValue = 1_000_000
	DefaultPositionPct    = 10.0
	DefaultStopLossPct    = 7.0
	DefaultConfidence     = 75.0
	DefaultAvgWinPct      = 15.0
	DefaultMaxKelly       = 0.25
	DefaultLotSize        = 1000
)

// KellySizer turns a recommendation into a cash amount: the smaller of a
// confidence-scaled base allocation and a capped Kelly estimate.
type KellySizer struct {
	portfolioValue decimal.Decimal
	avgWinPct      decimal.Decimal // expected gain of a winning trade, in percent
	maxKelly       decimal.Decimal // cap on the Kelly fraction
	lotSize        decimal.Decimal // final amount is rounded to this
}

// NewKellySizer creates a sizer. Non-positive or non-finite arguments select defaults.
func NewKellySizer(portfolioValue, avgWinPct, maxKelly, lotSize float64) *KellySizer {
	return &KellySizer{
		portfolioValue: positiveOr(portfolioValue, DefaultPortfolioValue),
		avgWinPct:      positiveOr(avgWinPct, DefaultAvgWinPct),
		maxKelly:       positiveOr(maxKelly, DefaultMaxKelly),
		lotSize:        positiveOr(lotSize, DefaultLotSize),
	}
}

func positiveOr(v, def float64) decimal.Decimal {
	if !finite(v) || v <= 0 {
		v = def
	}
	return decimal.NewFromFloat(v)
}

// SizingRequest carries the recommendation fields sizing depends on.
// Zero values fall back to the sizer defaults.
type SizingRequest struct {
	PortfolioValue  float64 `json:"portfolio_value"`
	PositionSizePct float64 `json:"position_size_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	Confidence      float64 `json:"confidence"`
}

// SizingResult is the cash allocation for one trade.
type SizingResult struct {
	PortfolioValue    decimal.Decimal `json:"portfolio_value"`
	BaseAmount        decimal.Decimal `json:"base_amount"`
	AdjustedAmount    decimal.Decimal `json:"adjusted_amount"`
	KellyFraction     decimal.Decimal `json:"kelly_fraction"`
	KellyAmount       decimal.Decimal `json:"kelly_amount"`
	RecommendedAmount decimal.Decimal `json:"recommended_amount"`
	PortfolioPct      decimal.Decimal `json:"portfolio_pct"`
	MaxLossAmount     decimal.Decimal `json:"max_loss_amount"`
	Method            string          `json:"method"`
}

// Size computes the Kelly-blend allocation.
//
//	base     = portfolio * pct/100
//	adjusted = base * confidence/100
//	kelly    = (p*win - (1-p)*stop) / win, clamped to [0, maxKelly], p = confidence/100
//	final    = min(adjusted, portfolio*kelly), rounded to the lot size
func (s *KellySizer) Size(req SizingRequest) (*SizingResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	portfolio := s.portfolioValue
	if req.PortfolioValue > 0 {
		portfolio = decimal.NewFromFloat(req.PortfolioValue)
	}
	pct := decimal.NewFromFloat(orDefault(req.PositionSizePct, DefaultPositionPct))
	stop := decimal.NewFromFloat(orDefault(req.StopLossPct, DefaultStopLossPct))
	conf := decimal.NewFromFloat(orDefault(req.Confidence, DefaultConfidence))

	hundred := decimal.NewFromInt(100)
	one := decimal.NewFromInt(1)

	base := portfolio.Mul(pct).Div(hundred)
	adjusted := base.Mul(conf).Div(hundred)

	p := conf.Div(hundred)
	kelly := p.Mul(s.avgWinPct).Sub(one.Sub(p).Mul(stop)).Div(s.avgWinPct)
	if kelly.IsNegative() {
		kelly = decimal.Zero
	}
	if kelly.GreaterThan(s.maxKelly) {
		kelly = s.maxKelly
	}
	kellyAmount := portfolio.Mul(kelly)

	final := decimal.Min(adjusted, kellyAmount)
	method := "confidence_scaled"
	if kellyAmount.LessThan(adjusted) {
		method = "kelly_capped"
	}
	final = final.Div(s.lotSize).Round(0).Mul(s.lotSize)

	portfolioPct := decimal.Zero
	if portfolio.IsPositive() {
		portfolioPct = final.Div(portfolio).Mul(hundred).Round(2)
	}

	return &SizingResult{
		PortfolioValue:    portfolio,
		BaseAmount:        base.Round(2),
		AdjustedAmount:    adjusted.Round(2),
		KellyFraction:     kelly.Round(4),
		KellyAmount:       kellyAmount.Round(2),
		RecommendedAmount: final,
		PortfolioPct:      portfolioPct,
		MaxLossAmount:     final.Mul(stop).Div(hundred).Round(2),
		Method:            method,
	}, nil
}

func validate(req SizingRequest) error {
	var errs errors.MultiError
	switch {
	case !finite(req.PortfolioValue):
		errs.Add(errors.NewValidationError("portfolio_value", "must be a finite number", req.PortfolioValue))
	case req.PortfolioValue < 0:
		errs.Add(errors.NewValidationError("portfolio_value", "must not be negative", req.PortfolioValue))
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"position_size_pct", req.PositionSizePct},
		{"stop_loss_pct", req.StopLossPct},
		{"confidence", req.Confidence},
	} {
		if !finite(f.value) || f.value < 0 || f.value > 100 {
			errs.Add(errors.NewValidationError(f.name, "must be within [0,100]", f.value))
		}
	}
	if errs.HasErrors() {
		return errors.Wrap(errors.ErrInvalidInput, errs.Error())
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
