package fusion

import (
	"math"
	"sort"
)

// Source names used by the analysis workflow.
const (
	SourceNews      = "news"
	SourceFinancial = "financial"
	SourceTechnical = "technical"
)

// NeutralScore is returned when no source reports.
const NeutralScore = 50.0

// DefaultWeights is the static weight table used when none is configured.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		SourceNews:      0.2,
		SourceFinancial: 0.4,
		SourceTechnical: 0.4,
	}
}

// DefaultFallbackWeight applies to sources missing from the weight table.
const DefaultFallbackWeight = 0.1

// Contribution is one source's share of a composite score.
type Contribution struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// CompositeScore is the fused 0-100 view of all reporting sources.
type CompositeScore struct {
	Value         float64                 `json:"value"`
	Band          Band                    `json:"band"`
	Contributions map[string]Contribution `json:"contributions"`
	Consensus     Consensus               `json:"consensus"`
}

// Sources returns contributing source names, sorted.
func (c CompositeScore) Sources() []string {
	names := make([]string, 0, len(c.Contributions))
	for name := range c.Contributions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether source contributed.
func (c CompositeScore) Has(source string) bool {
	_, ok := c.Contributions[source]
	return ok
}

// Engine fuses heterogeneous sub-results with a static weight table.
type Engine struct {
	weights  map[string]float64
	fallback float64
}

// NewEngine creates a fusion engine. Nil or empty weights select DefaultWeights.
// A source configured at zero or below is muted: it never contributes to the
// composite. Non-finite weights are ignored and the source falls back.
// A non-positive fallback selects DefaultFallbackWeight.
func NewEngine(weights map[string]float64, fallback float64) *Engine {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	table := make(map[string]float64, len(weights))
	for k, v := range weights {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		table[k] = math.Max(0, v)
	}
	if fallback <= 0 {
		fallback = DefaultFallbackWeight
	}
	return &Engine{weights: table, fallback: fallback}
}

// Weight returns the raw configured weight of a source.
func (e *Engine) Weight(source string) float64 {
	if w, ok := e.weights[source]; ok {
		return w
	}
	return e.fallback
}

// Fuse maps every sub-result to [0,100], renormalizes weights over the
// sources present and returns the weighted mean with its band and consensus.
func (e *Engine) Fuse(inputs map[string]SubResult) CompositeScore {
	result := CompositeScore{
		Value:         NeutralScore,
		Contributions: make(map[string]Contribution, len(inputs)),
	}

	scores := make(map[string]float64, len(inputs))
	total := 0.0
	for source, sub := range inputs {
		s, ok := sub.Scalar()
		if !ok {
			continue
		}
		w := e.Weight(source)
		if w <= 0 {
			continue
		}
		scores[source] = s
		total += w
	}

	if total > 0 {
		sum := 0.0
		for source, s := range scores {
			w := e.Weight(source) / total
			result.Contributions[source] = Contribution{Score: round2(s), Weight: w}
			sum += s * w
		}
		result.Value = round2(clamp(sum, 0, 100))
	}

	result.Band = BandFor(result.Value)
	result.Consensus = MeasureConsensus(scores)
	return result
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return NeutralScore
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
