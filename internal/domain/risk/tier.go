package risk

import (
	"strings"

	"quorum/pkg/errors"
)

// Tier is a discrete risk category, ordered from safest to riskiest.
type Tier int

const (
	TierVeryLow Tier = iota + 1
	TierLow
	TierMediumLow
	TierMedium
	TierHigh
	TierVeryHigh
)

var tierNames = map[Tier]string{
	TierVeryLow:   "Very Low",
	TierLow:       "Low",
	TierMediumLow: "Medium-Low",
	TierMedium:    "Medium",
	TierHigh:      "High",
	TierVeryHigh:  "Very High",
}

// Tiers lists all tiers in ascending risk order.
func Tiers() []Tier {
	return []Tier{TierVeryLow, TierLow, TierMediumLow, TierMedium, TierHigh, TierVeryHigh}
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// MarshalText renders the tier by name
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier accepts "Very High", "very_high", "VERY-HIGH" and similar spellings.
func ParseTier(s string) (Tier, error) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(s))
	for tier, name := range tierNames {
		if strings.NewReplacer("-", "", " ", "").Replace(strings.ToLower(name)) == key {
			return tier, nil
		}
	}
	return 0, errors.Wrapf(errors.ErrInvalidInput, "unknown risk tier %q", s)
}
