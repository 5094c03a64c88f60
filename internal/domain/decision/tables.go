package decision

import "quorum/internal/domain/risk"

// tierParams holds every risk-tier dependent constant.
type tierParams struct {
	multiplier  float64 // applied to the composite score
	sizeFactor  float64 // applied to the position size
	stopLossPct float64
}

var tierTable = map[risk.Tier]tierParams{
	risk.TierVeryLow:   {multiplier: 1.10, sizeFactor: 1.3, stopLossPct: 3},
	risk.TierLow:       {multiplier: 1.05, sizeFactor: 1.1, stopLossPct: 5},
	risk.TierMediumLow: {multiplier: 1.00, sizeFactor: 1.0, stopLossPct: 7},
	risk.TierMedium:    {multiplier: 0.95, sizeFactor: 0.9, stopLossPct: 10},
	risk.TierHigh:      {multiplier: 0.85, sizeFactor: 0.6, stopLossPct: 15},
	risk.TierVeryHigh:  {multiplier: 0.70, sizeFactor: 0.3, stopLossPct: 20},
}

// unknownTier is used for tiers outside the table.
var unknownTier = tierParams{multiplier: 0.9, sizeFactor: 0.8, stopLossPct: 10}

func paramsFor(t risk.Tier) tierParams {
	if p, ok := tierTable[t]; ok {
		return p
	}
	return unknownTier
}

// actionFloors must stay in descending order and end at 0.
var actionFloors = []struct {
	floor  float64
	action Action
}{
	{75, ActionStrongBuy},
	{60, ActionBuy},
	{45, ActionHold},
	{30, ActionWeakSell},
	{0, ActionStrongSell},
}

// Position size bounds in percent of portfolio.
const (
	basePositionPct = 10.0
	minPositionPct  = 1.0
	maxPositionPct  = 25.0
)

// Confidence terms.
const (
	consensusStrongWeight   = 0.30
	consensusModerateWeight = 0.20
	consensusWeakWeight     = 0.10
	dataPresenceWeight      = 0.25
	perSignalWeight         = 0.15
	maxSignalWeight         = 0.45
	maxConfidence           = 95.0
	neutralConfidence       = 50.0
)
