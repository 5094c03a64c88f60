package decision

import (
	"fmt"
	"math"

	"quorum/internal/domain/fusion"
	"quorum/internal/domain/risk"
)

// Action is the recommended trade direction, ranked from STRONG_SELL to STRONG_BUY.
type Action string

const (
	ActionStrongBuy  Action = "STRONG_BUY"
	ActionBuy        Action = "BUY"
	ActionHold       Action = "HOLD"
	ActionWeakSell   Action = "WEAK_SELL"
	ActionStrongSell Action = "STRONG_SELL"
)

// Rank orders actions: STRONG_SELL=0 ... STRONG_BUY=4.
func (a Action) Rank() int {
	switch a {
	case ActionStrongSell:
		return 0
	case ActionWeakSell:
		return 1
	case ActionHold:
		return 2
	case ActionBuy:
		return 3
	case ActionStrongBuy:
		return 4
	}
	return -1
}

// Input is everything a decision depends on.
type Input struct {
	Score     float64               // composite score, 0-100
	Tier      risk.Tier             // risk tier
	Consensus fusion.ConsensusLevel // agreement grade from fusion
	Signals   int                   // number of confirming analyst sources
}

// FromComposite builds an Input from a fused score. The tier is derived from
// the score unless override is a valid tier.
func FromComposite(c fusion.CompositeScore, override risk.Tier) Input {
	tier := override
	if !tier.Valid() {
		tier = fusion.AssessRisk(c.Value)
	}
	signals := 0
	for _, src := range []string{fusion.SourceNews, fusion.SourceFinancial, fusion.SourceTechnical} {
		if c.Has(src) {
			signals++
		}
	}
	return Input{
		Score:     c.Value,
		Tier:      tier,
		Consensus: c.Consensus.Level,
		Signals:   signals,
	}
}

// Recommendation is immutable once built.
type Recommendation struct {
	Action          Action    `json:"action"`
	Confidence      float64   `json:"confidence"`
	PositionSizePct float64   `json:"position_size_pct"`
	StopLossPct     float64   `json:"stop_loss_pct"`
	TakeProfitPct   float64   `json:"take_profit_pct"`
	CompositeScore  float64   `json:"composite_score"`
	AdjustedScore   float64   `json:"adjusted_score"`
	RiskTier        risk.Tier `json:"risk_tier"`
	RiskReward      float64   `json:"risk_reward"`
	MaxLossPct      float64   `json:"max_loss_pct"`
	Urgency         string    `json:"urgency"`
	HoldingPeriod   string    `json:"holding_period"`
	Rationale       string    `json:"rationale"`
	Fallback        bool      `json:"fallback,omitempty"`
}

// Engine converts a score and risk tier into a sized recommendation.
type Engine struct{}

// NewEngine creates a decision engine
func NewEngine() *Engine {
	return &Engine{}
}

// Decide is deterministic and keeps every output inside its documented range.
func (e *Engine) Decide(in Input) Recommendation {
	params := paramsFor(in.Tier)

	score := clamp(in.Score, 0, 100)
	adjusted := round2(clamp(score*params.multiplier, 0, 100))

	action := actionFor(adjusted)
	size := positionSize(adjusted, params.sizeFactor)
	rr := rewardMultiple(adjusted)
	stop := params.stopLossPct

	rec := Recommendation{
		Action:          action,
		Confidence:      confidence(in, score),
		PositionSizePct: size,
		StopLossPct:     stop,
		TakeProfitPct:   round2(stop * rr),
		CompositeScore:  round2(score),
		AdjustedScore:   adjusted,
		RiskTier:        in.Tier,
		RiskReward:      rr,
		MaxLossPct:      round2(math.Min(size*0.2, 2.0)),
		Urgency:         urgency(action),
		HoldingPeriod:   holdingPeriod(action),
	}
	rec.Rationale = fmt.Sprintf("composite %.1f adjusted to %.1f for %s risk; %s consensus across %d sources",
		rec.CompositeScore, adjusted, in.Tier, consensusLabel(in.Consensus), in.Signals)
	return rec
}

// Neutral is the HOLD recommendation used when no composite score exists.
func (e *Engine) Neutral() Recommendation {
	rec := e.Decide(Input{Score: fusion.NeutralScore, Tier: risk.TierMedium})
	rec.Action = ActionHold
	rec.Confidence = neutralConfidence
	rec.Urgency = urgency(ActionHold)
	rec.HoldingPeriod = holdingPeriod(ActionHold)
	rec.Rationale = "no composite score available; defaulting to neutral hold"
	rec.Fallback = true
	return rec
}

func actionFor(adjusted float64) Action {
	for _, f := range actionFloors {
		if adjusted >= f.floor {
			return f.action
		}
	}
	return ActionStrongSell
}

func positionSize(adjusted, sizeFactor float64) float64 {
	size := basePositionPct
	switch {
	case adjusted > 80:
		size *= 1.5
	case adjusted > 70:
		size *= 1.2
	case adjusted < 30:
		size *= 0.3
	case adjusted < 40:
		size *= 0.5
	}
	size *= sizeFactor
	return math.Round(clamp(size, minPositionPct, maxPositionPct)*10) / 10
}

func rewardMultiple(adjusted float64) float64 {
	switch {
	case adjusted > 80:
		return 3.0
	case adjusted < 40:
		return 1.5
	default:
		return 2.5
	}
}

func confidence(in Input, score float64) float64 {
	c := consensusWeakWeight
	switch in.Consensus {
	case fusion.ConsensusStrong:
		c = consensusStrongWeight
	case fusion.ConsensusModerate:
		c = consensusModerateWeight
	}
	if score > 0 {
		c += dataPresenceWeight
	}
	if in.Signals > 0 {
		c += math.Min(float64(in.Signals)*perSignalWeight, maxSignalWeight)
	}
	return round2(math.Min(c*100, maxConfidence))
}

func urgency(a Action) string {
	switch a {
	case ActionStrongBuy, ActionStrongSell:
		return "HIGH"
	case ActionBuy, ActionWeakSell:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func holdingPeriod(a Action) string {
	switch a {
	case ActionStrongBuy:
		return "6-12 months"
	case ActionBuy:
		return "3-6 months"
	case ActionHold:
		return "re-evaluate in 1-3 months"
	default:
		return "exit within 1 month"
	}
}

func consensusLabel(l fusion.ConsensusLevel) string {
	if l == "" {
		return string(fusion.ConsensusInsufficient)
	}
	return string(l)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
