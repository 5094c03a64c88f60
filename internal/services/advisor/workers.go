package advisor

import (
	"time"

	"quorum/internal/agents"
	"quorum/internal/agents/analysts"
	"quorum/internal/agents/synthesis"
	"quorum/internal/domain/decision"
	"quorum/internal/domain/fusion"
	"quorum/internal/domain/market"
	"quorum/internal/domain/risk"
	"quorum/internal/services/execution"
	"quorum/pkg/errors"
)

// Components are the dependencies of the standard worker set.
type Components struct {
	Source    market.DataSource
	Fusion    *fusion.Engine
	Decisions *decision.Engine
	Sizer     *risk.KellySizer
	Simulator *execution.Simulator

	// Location is the exchange timezone for market sessions. Nil means UTC.
	Location *time.Location
}

// RegisterWorkers registers the six workflow workers with their capability tags.
func RegisterWorkers(registry *agents.Registry, c Components) error {
	if c.Source == nil {
		return errors.NewValidationError("source", "data source is required", nil)
	}
	if c.Fusion == nil {
		c.Fusion = fusion.NewEngine(nil, 0)
	}
	if c.Decisions == nil {
		c.Decisions = decision.NewEngine()
	}
	if c.Sizer == nil {
		c.Sizer = risk.NewKellySizer(0, 0, 0, 0)
	}
	if c.Simulator == nil {
		c.Simulator = execution.NewSimulator(execution.DefaultConfig())
	}

	workers := []struct {
		name   string
		worker agents.Worker
		tags   []string
	}{
		{agents.NewsAgent, analysts.NewNewsAnalyst(c.Source), []string{"news", "sentiment", "disclosures"}},
		{agents.FinancialAgent, analysts.NewFinancialAnalyst(c.Source), []string{"fundamentals", "ratios"}},
		{agents.TechnicalAgent, analysts.NewTechnicalAnalyst(c.Source), []string{"technical", "indicators", "signals"}},
		{agents.DataAgent, synthesis.NewDataAgent(c.Fusion, c.Source, c.Location), []string{"market_data", "fusion", "integration"}},
		{agents.DecisionAgent, synthesis.NewDecisionAgent(c.Decisions), []string{"decision", "risk"}},
		{agents.TradingAgent, synthesis.NewTradingAgent(c.Sizer, c.Simulator, c.Source), []string{"sizing", "execution"}},
	}

	var errs errors.MultiError
	for _, w := range workers {
		errs.Add(registry.Register(w.name, w.worker, w.tags...))
	}
	return errs.ToError()
}
