package fusion

import "math"

// ConsensusLevel grades how strongly the sources agree on a bullish view.
type ConsensusLevel string

const (
	ConsensusStrong       ConsensusLevel = "strong"
	ConsensusModerate     ConsensusLevel = "moderate"
	ConsensusWeak         ConsensusLevel = "weak"
	ConsensusInsufficient ConsensusLevel = "insufficient"
)

// bullishFloor is the scalar a source must exceed to count as agreeing.
const bullishFloor = 60.0

// Consensus is a confidence signal only; it never alters the composite value.
type Consensus struct {
	Level        ConsensusLevel `json:"level"`
	AgreementPct float64        `json:"agreement_pct"`
	Sources      int            `json:"sources"`
}

// MeasureConsensus computes the share of sources scoring above 60.
func MeasureConsensus(scores map[string]float64) Consensus {
	n := len(scores)
	if n < 2 {
		return Consensus{Level: ConsensusInsufficient, Sources: n}
	}

	agreeing := 0
	for _, s := range scores {
		if s > bullishFloor {
			agreeing++
		}
	}
	pct := math.Round(float64(agreeing)/float64(n)*1000) / 10

	level := ConsensusWeak
	switch {
	case pct >= 80:
		level = ConsensusStrong
	case pct >= 60:
		level = ConsensusModerate
	}

	return Consensus{Level: level, AgreementPct: pct, Sources: n}
}
