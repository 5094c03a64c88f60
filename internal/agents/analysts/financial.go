package analysts

import (
	"context"

	"quorum/internal/agents"
	"quorum/internal/domain/fusion"
	"quorum/internal/domain/market"
	"quorum/pkg/errors"
)

// Ratios are the statement ratios behind the health score. Percentages are in
// percent units.
type Ratios struct {
	CurrentRatio   float64 `json:"current_ratio"`
	DebtToEquity   float64 `json:"debt_to_equity"`
	ROAPct         float64 `json:"roa_pct"`
	ROEPct         float64 `json:"roe_pct"`
	GrossMarginPct float64 `json:"gross_margin_pct"`
	NetMarginPct   float64 `json:"net_margin_pct"`
}

// FinancialReport is the financial_agent output.
type FinancialReport struct {
	Symbol        string  `json:"symbol"`
	Period        string  `json:"period"`
	HealthScore   float64 `json:"health_score"`
	Ratios        Ratios  `json:"ratios"`
	Liquidity     string  `json:"liquidity"`
	Leverage      string  `json:"leverage"`
	Profitability string  `json:"profitability"`
	Rating        string  `json:"rating"`
}

func (r *FinancialReport) Source() string { return fusion.SourceFinancial }

func (r *FinancialReport) SubResult() fusion.SubResult {
	return fusion.ScoreResult(r.HealthScore)
}

// Health score points per check: full marks above the strong threshold,
// partial above the acceptable one.
const (
	fullPoints    = 25
	partialPoints = 15
)

// FinancialAnalyst scores balance sheet health.
type FinancialAnalyst struct {
	*agents.BaseAgent
	source market.DataSource
}

// NewFinancialAnalyst creates the financial_agent worker
func NewFinancialAnalyst(source market.DataSource) *FinancialAnalyst {
	a := &FinancialAnalyst{source: source}
	a.BaseAgent = agents.NewBaseAgent(agents.FinancialAgent, map[agents.TaskKind]agents.Handler{
		agents.TaskCalculateRatios: a.ratios,
		agents.TaskAnalyzeHealth:   a.health,
	})
	return a
}

func (a *FinancialAnalyst) fetch(ctx context.Context, task agents.Task) (market.Financials, error) {
	symbol := task.String("symbol", "")
	if symbol == "" {
		return market.Financials{}, errors.NewValidationError("symbol", "symbol is required", symbol)
	}
	f, err := a.source.GetFinancials(ctx, symbol)
	if err != nil {
		return market.Financials{}, errors.Wrapf(err, "fetch financials %s", symbol)
	}
	return f, nil
}

func (a *FinancialAnalyst) ratios(ctx context.Context, task agents.Task) (any, error) {
	f, err := a.fetch(ctx, task)
	if err != nil {
		return nil, err
	}
	return ComputeRatios(f)
}

func (a *FinancialAnalyst) health(ctx context.Context, task agents.Task) (any, error) {
	f, err := a.fetch(ctx, task)
	if err != nil {
		return nil, err
	}
	report, err := AnalyzeHealth(f)
	if err != nil {
		return nil, err
	}
	a.Log().Debugw("Financial health scored",
		"symbol", report.Symbol,
		"health_score", report.HealthScore,
		"rating", report.Rating,
	)
	return report, nil
}

// ComputeRatios derives ratios from statements. Statements with non-positive
// current liabilities, equity or total assets cannot be scored.
func ComputeRatios(f market.Financials) (Ratios, error) {
	var errs errors.MultiError
	if f.CurrentLiabilities <= 0 {
		errs.Add(errors.NewValidationError("current_liabilities", "must be positive", f.CurrentLiabilities))
	}
	if f.Equity <= 0 {
		errs.Add(errors.NewValidationError("equity", "must be positive", f.Equity))
	}
	if f.TotalAssets <= 0 {
		errs.Add(errors.NewValidationError("total_assets", "must be positive", f.TotalAssets))
	}
	if errs.HasErrors() {
		return Ratios{}, errors.Newf("%w: %w", errors.ErrInvalidInput, &errs)
	}

	r := Ratios{
		CurrentRatio: round2(f.CurrentAssets / f.CurrentLiabilities),
		DebtToEquity: round2(f.TotalLiabilities / f.Equity),
		ROAPct:       round2(f.NetIncome / f.TotalAssets * 100),
		ROEPct:       round2(f.NetIncome / f.Equity * 100),
	}
	if f.Revenue > 0 {
		r.GrossMarginPct = round2(f.GrossProfit / f.Revenue * 100)
		r.NetMarginPct = round2(f.NetIncome / f.Revenue * 100)
	}
	return r, nil
}

// AnalyzeHealth scores liquidity, leverage, profitability and asset
// efficiency, 25 points each.
func AnalyzeHealth(f market.Financials) (*FinancialReport, error) {
	r, err := ComputeRatios(f)
	if err != nil {
		return nil, err
	}

	score := 0
	score += points(r.CurrentRatio > 1.5, r.CurrentRatio > 1.0)
	score += points(r.DebtToEquity < 0.5, r.DebtToEquity < 1.0)
	score += points(r.ROEPct > 15, r.ROEPct > 10)
	score += points(r.ROAPct > 10, r.ROAPct > 5)

	return &FinancialReport{
		Symbol:        f.Symbol,
		Period:        f.Period,
		HealthScore:   float64(score),
		Ratios:        r,
		Liquidity:     grade(r.CurrentRatio > 1.5, r.CurrentRatio > 1.0, "strong", "moderate", "weak"),
		Leverage:      grade(r.DebtToEquity < 0.5, r.DebtToEquity < 1.0, "low", "moderate", "high"),
		Profitability: grade(r.ROEPct > 15, r.ROEPct > 10, "excellent", "good", "moderate"),
		Rating:        ratingFor(score),
	}, nil
}

func points(strong, acceptable bool) int {
	switch {
	case strong:
		return fullPoints
	case acceptable:
		return partialPoints
	}
	return 0
}

func grade(strong, acceptable bool, hi, mid, lo string) string {
	switch {
	case strong:
		return hi
	case acceptable:
		return mid
	}
	return lo
}

func ratingFor(score int) string {
	switch {
	case score >= 80:
		return "STRONG_BUY"
	case score >= 60:
		return "BUY"
	case score >= 40:
		return "HOLD"
	}
	return "SELL"
}
