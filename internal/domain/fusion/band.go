package fusion

import "quorum/internal/domain/risk"

// Band is the discrete recommendation derived from a composite score.
type Band string

const (
	BandStrongBuy  Band = "STRONG_BUY"
	BandBuy        Band = "BUY"
	BandHold       Band = "HOLD"
	BandWeakSell   Band = "WEAK_SELL"
	BandStrongSell Band = "STRONG_SELL"
)

// bandFloors must stay in descending order and end at 0 so every score maps to a band.
var bandFloors = []struct {
	floor float64
	band  Band
}{
	{70, BandStrongBuy},
	{60, BandBuy},
	{40, BandHold},
	{20, BandWeakSell},
	{0, BandStrongSell},
}

// BandFor thresholds a composite score.
func BandFor(score float64) Band {
	for _, b := range bandFloors {
		if score >= b.floor {
			return b.band
		}
	}
	return BandStrongSell
}

// AssessRisk derives a risk tier from the composite score: stronger
// fundamentals and signals imply lower risk.
func AssessRisk(score float64) risk.Tier {
	switch {
	case score >= 80:
		return risk.TierLow
	case score >= 60:
		return risk.TierMediumLow
	case score >= 40:
		return risk.TierMedium
	case score >= 20:
		return risk.TierHigh
	default:
		return risk.TierVeryHigh
	}
}
