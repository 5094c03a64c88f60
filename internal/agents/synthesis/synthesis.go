package synthesis

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quorum/internal/agents"
	"quorum/internal/domain/decision"
	"quorum/internal/domain/fusion"
	"quorum/internal/domain/market"
	"quorum/internal/domain/risk"
	"quorum/internal/services/execution"
	"quorum/pkg/errors"
)

// Task parameter keys shared with the workflow.
const (
	ParamInputs         = "inputs"
	ParamComposite      = "composite"
	ParamRiskTier       = "risk_tier"
	ParamScore          = "score"
	ParamRecommendation = "recommendation"
	ParamSymbol         = "symbol"
)

// IntegrationReport is the data_agent output.
type IntegrationReport struct {
	Composite fusion.CompositeScore `json:"composite"`
	RiskTier  risk.Tier             `json:"risk_tier"`
	Sources   []string              `json:"sources"`
}

// MarketSnapshot is the collect_market_data output.
type MarketSnapshot struct {
	Symbol        string             `json:"symbol"`
	Price         float64            `json:"price"`
	PreviousClose float64            `json:"previous_close"`
	Change        float64            `json:"change"`
	ChangePct     float64            `json:"change_pct"`
	Volume        int64              `json:"volume"`
	Currency      string             `json:"currency"`
	QuotedAt      time.Time          `json:"quoted_at"`
	CollectedAt   time.Time          `json:"collected_at"`
	Session       market.Session     `json:"session"`
	Rates         map[string]float64 `json:"rates,omitempty"`
	QualityScore  float64            `json:"quality_score"`
}

// Quality penalties, out of 100.
const (
	thinVolume        = 100_000
	staleAfter        = 72 * time.Hour
	penaltyThin       = 20
	penaltyNoClose    = 15
	penaltyStale      = 15
	penaltyNoRates    = 10
	penaltyNoCurrency = 5
)

// DataAgent collects market snapshots and fuses analyst sub-results into a
// composite score.
type DataAgent struct {
	*agents.BaseAgent
	fusion *fusion.Engine
	source market.DataSource
	now    func() time.Time
	loc    *time.Location
}

// NewDataAgent creates the data_agent worker. Sessions are read in loc; nil means UTC.
func NewDataAgent(engine *fusion.Engine, source market.DataSource, loc *time.Location) *DataAgent {
	if loc == nil {
		loc = time.UTC
	}
	a := &DataAgent{fusion: engine, source: source, now: time.Now, loc: loc}
	handlers := map[agents.TaskKind]agents.Handler{
		agents.TaskCombineAgentData: a.combine,
	}
	if source != nil {
		handlers[agents.TaskCollectMarketData] = a.collect
	}
	a.BaseAgent = agents.NewBaseAgent(agents.DataAgent, handlers)
	return a
}

// WithClock replaces the wall clock used for session and staleness checks.
func (a *DataAgent) WithClock(now func() time.Time) *DataAgent {
	a.now = now
	return a
}

func (a *DataAgent) collect(ctx context.Context, task agents.Task) (any, error) {
	symbol := strings.ToUpper(strings.TrimSpace(task.String(ParamSymbol, "")))
	if symbol == "" {
		return nil, errors.NewValidationError(ParamSymbol, "symbol is required", task.Params[ParamSymbol])
	}

	quote, err := a.source.GetPrice(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch price %s", symbol)
	}
	if !finite(quote.Price) || quote.Price <= 0 {
		return nil, errors.Wrapf(errors.ErrUnavailable, "no usable price for %s", symbol)
	}

	now := a.now()
	snap := &MarketSnapshot{
		Symbol:        symbol,
		Price:         quote.Price,
		PreviousClose: quote.PreviousClose,
		ChangePct:     round2(quote.ChangePct()),
		Volume:        quote.Volume,
		Currency:      quote.Currency,
		QuotedAt:      quote.Timestamp,
		CollectedAt:   now,
		Session:       market.SessionAt(now.In(a.loc)),
	}
	if quote.PreviousClose > 0 {
		snap.Change = round2(quote.Price - quote.PreviousClose)
	}

	// FX is supplementary: a failed fetch lowers the quality score only.
	rates, err := a.source.GetExchangeRates(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.Log().Warnw("Exchange rates unavailable", "symbol", symbol, "error", err)
	} else {
		snap.Rates = rates
	}
	snap.QualityScore = assessQuality(snap, now)

	a.Log().Debugw("Market data collected",
		"symbol", symbol,
		"price", snap.Price,
		"change_pct", snap.ChangePct,
		"session", snap.Session,
		"quality", snap.QualityScore,
	)
	return snap, nil
}

// assessQuality scores a snapshot out of 100.
func assessQuality(s *MarketSnapshot, now time.Time) float64 {
	score := 100.0
	if s.Volume < thinVolume {
		score -= penaltyThin
	}
	if s.PreviousClose <= 0 {
		score -= penaltyNoClose
	}
	if s.QuotedAt.IsZero() || now.Sub(s.QuotedAt) > staleAfter {
		score -= penaltyStale
	}
	if len(s.Rates) == 0 {
		score -= penaltyNoRates
	}
	if s.Currency == "" {
		score -= penaltyNoCurrency
	}
	return math.Max(0, score)
}

func (a *DataAgent) combine(_ context.Context, task agents.Task) (any, error) {
	inputs, err := subResults(task.Params[ParamInputs])
	if err != nil {
		return nil, err
	}

	composite := a.fusion.Fuse(inputs)
	tier, err := tierParam(task)
	if err != nil {
		return nil, err
	}
	if !tier.Valid() {
		tier = fusion.AssessRisk(composite.Value)
	}

	a.Log().Debugw("Agent data combined",
		"sources", composite.Sources(),
		"composite", composite.Value,
		"consensus", composite.Consensus.Level,
		"risk_tier", tier,
	)
	return &IntegrationReport{Composite: composite, RiskTier: tier, Sources: composite.Sources()}, nil
}

// subResults accepts either prepared sub-results or analyst reports.
func subResults(v any) (map[string]fusion.SubResult, error) {
	switch in := v.(type) {
	case nil:
		return map[string]fusion.SubResult{}, nil
	case map[string]fusion.SubResult:
		return in, nil
	case []agents.Contributor:
		out := make(map[string]fusion.SubResult, len(in))
		for _, c := range in {
			out[c.Source()] = c.SubResult()
		}
		return out, nil
	}
	return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported %s param %T", ParamInputs, v)
}

// tierParam reads an optional risk tier override. A missing tier is returned as 0.
func tierParam(task agents.Task) (risk.Tier, error) {
	switch v := task.Params[ParamRiskTier].(type) {
	case nil:
		return 0, nil
	case risk.Tier:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		return risk.ParseTier(v)
	}
	return 0, errors.Wrapf(errors.ErrInvalidInput, "unsupported %s param", ParamRiskTier)
}

// DecisionAgent turns a composite score into a recommendation.
type DecisionAgent struct {
	*agents.BaseAgent
	engine *decision.Engine
}

// NewDecisionAgent creates the decision_agent worker
func NewDecisionAgent(engine *decision.Engine) *DecisionAgent {
	a := &DecisionAgent{engine: engine}
	a.BaseAgent = agents.NewBaseAgent(agents.DecisionAgent, map[agents.TaskKind]agents.Handler{
		agents.TaskMakeDecision: a.decide,
	})
	return a
}

func (a *DecisionAgent) decide(_ context.Context, task agents.Task) (any, error) {
	tier, err := tierParam(task)
	if err != nil {
		return nil, err
	}

	var in decision.Input
	switch c := task.Params[ParamComposite].(type) {
	case fusion.CompositeScore:
		in = decision.FromComposite(c, tier)
	case *fusion.CompositeScore:
		in = decision.FromComposite(*c, tier)
	default:
		score := task.Float(ParamScore, -1)
		if score < 0 || score > 100 {
			return nil, errors.NewValidationError(ParamScore, "score in [0,100] or a composite is required", task.Params[ParamScore])
		}
		if !tier.Valid() {
			tier = fusion.AssessRisk(score)
		}
		in = decision.Input{Score: score, Tier: tier, Consensus: fusion.ConsensusInsufficient}
	}

	rec := a.engine.Decide(in)
	a.Log().Debugw("Decision made",
		"action", rec.Action,
		"confidence", rec.Confidence,
		"adjusted_score", rec.AdjustedScore,
	)
	return rec, nil
}

// TradingAgent sizes and simulates trades.
type TradingAgent struct {
	*agents.BaseAgent
	sizer     *risk.KellySizer
	simulator *execution.Simulator
	source    market.DataSource
}

// NewTradingAgent creates the trading_agent worker. When source is set, an
// execute_trade task without a price is filled at the latest quote.
func NewTradingAgent(sizer *risk.KellySizer, simulator *execution.Simulator, source market.DataSource) *TradingAgent {
	a := &TradingAgent{sizer: sizer, simulator: simulator, source: source}
	a.BaseAgent = agents.NewBaseAgent(agents.TradingAgent, map[agents.TaskKind]agents.Handler{
		agents.TaskCalculateTradeSize: a.size,
		agents.TaskExecuteTrade:       a.execute,
	})
	return a
}

func (a *TradingAgent) size(_ context.Context, task agents.Task) (any, error) {
	req := risk.SizingRequest{
		PortfolioValue:  task.Float("portfolio_value", 0),
		PositionSizePct: task.Float("position_size_pct", 0),
		StopLossPct:     task.Float("stop_loss_pct", 0),
		Confidence:      task.Float("confidence", 0),
	}
	switch rec := task.Params[ParamRecommendation].(type) {
	case decision.Recommendation:
		req.PositionSizePct, req.StopLossPct, req.Confidence = rec.PositionSizePct, rec.StopLossPct, rec.Confidence
	case *decision.Recommendation:
		req.PositionSizePct, req.StopLossPct, req.Confidence = rec.PositionSizePct, rec.StopLossPct, rec.Confidence
	}

	res, err := a.sizer.Size(req)
	if err != nil {
		return nil, err
	}
	a.Log().Debugw("Trade sized",
		"recommended_amount", res.RecommendedAmount,
		"kelly_fraction", res.KellyFraction,
		"method", res.Method,
	)
	return res, nil
}

func (a *TradingAgent) execute(ctx context.Context, task agents.Task) (any, error) {
	side, err := execution.ParseSide(task.String("side", ""))
	if err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(strings.TrimSpace(task.String(ParamSymbol, "")))

	price := task.Float("price", 0)
	if _, set := task.Params["price"]; !set && a.source != nil && symbol != "" {
		quote, err := a.source.GetPrice(ctx, symbol)
		if err != nil {
			return nil, errors.Wrapf(err, "quote %s", symbol)
		}
		price = quote.Price
	}
	quantity := task.Float("quantity", 0)

	var errs errors.MultiError
	if !finite(quantity) {
		errs.Add(errors.NewValidationError("quantity", "must be a finite number", quantity))
	}
	if !finite(price) {
		errs.Add(errors.NewValidationError("price", "must be a finite number", price))
	}
	if errs.HasErrors() {
		return nil, errors.Newf("%w: %w", errors.ErrInvalidOrder, &errs)
	}

	order := execution.Order{
		Symbol:   symbol,
		Side:     side,
		Quantity: decimal.NewFromFloat(quantity),
		Price:    decimal.NewFromFloat(price),
	}
	res, err := a.simulator.Execute(ctx, order)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
