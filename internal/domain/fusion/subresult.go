package fusion

import (
	"math"
	"strings"
)

// Kind tags which shape a SubResult carries.
type Kind int

const (
	KindScore Kind = iota + 1
	KindSentiment
	KindSignal
)

// Direction is the sign of a sentiment or signal.
type Direction int

const (
	Bearish Direction = -1
	Neutral Direction = 0
	Bullish Direction = 1
)

// ParseDirection maps sentiment words to a direction.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "bullish", "up", "buy":
		return Bullish
	case "negative", "bearish", "down", "sell":
		return Bearish
	default:
		return Neutral
	}
}

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "positive"
	case Bearish:
		return "negative"
	default:
		return "neutral"
	}
}

// Signal is a technical signal label.
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG_BUY"
	SignalBuy        Signal = "BUY"
	SignalNeutral    Signal = "NEUTRAL"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG_SELL"
)

// Direction returns the side the signal points to.
func (s Signal) Direction() Direction {
	switch s {
	case SignalStrongBuy, SignalBuy:
		return Bullish
	case SignalStrongSell, SignalSell:
		return Bearish
	default:
		return Neutral
	}
}

// SubResult is one agent's raw contribution to fusion.
type SubResult struct {
	Kind Kind `json:"kind"`

	// KindScore
	Score float64 `json:"score,omitempty"`

	// KindSentiment
	Sentiment  Direction `json:"sentiment,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`

	// KindSignal
	Signal   Signal  `json:"signal,omitempty"`
	Strength float64 `json:"strength,omitempty"`
}

// ScoreResult wraps a ready 0-100 score, such as a financial health score.
func ScoreResult(score float64) SubResult {
	return SubResult{Kind: KindScore, Score: score}
}

// SentimentResult wraps a sentiment direction with confidence in [0,1].
func SentimentResult(d Direction, confidence float64) SubResult {
	return SubResult{Kind: KindSentiment, Sentiment: d, Confidence: confidence}
}

// SignalResult wraps a technical signal label with its strength.
func SignalResult(s Signal, strength float64) SubResult {
	return SubResult{Kind: KindSignal, Signal: s, Strength: strength}
}

// signalStep is the score distance per unit of signal strength.
const signalStep = 5.0

// Scalar maps the sub-result to [0,100]. ok is false for an unusable result.
func (r SubResult) Scalar() (float64, bool) {
	switch r.Kind {
	case KindScore:
		if math.IsNaN(r.Score) {
			return 0, false
		}
		return clamp(r.Score, 0, 100), true

	case KindSentiment:
		if math.IsNaN(r.Confidence) {
			return 0, false
		}
		raw := clamp(float64(r.Sentiment)*r.Confidence*100, -100, 100)
		return (raw + 100) / 2, true

	case KindSignal:
		if math.IsNaN(r.Strength) {
			return 0, false
		}
		offset := float64(r.Signal.Direction()) * math.Abs(r.Strength) * signalStep
		return clamp(NeutralScore+offset, 0, 100), true

	default:
		return 0, false
	}
}
