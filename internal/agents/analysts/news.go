package analysts

import (
	"context"
	"math"
	"strings"
	"time"

	"quorum/internal/agents"
	"quorum/internal/domain/fusion"
	"quorum/internal/domain/market"
	"quorum/pkg/errors"
)

// DefaultDisclosureLimit is how many disclosures a news analysis reads.
const DefaultDisclosureLimit = 5

// Keyword lists cover English and Turkish disclosure wording.
var (
	positiveTerms = []string{
		"increase", "growth", "grew", "profit", "record", "beat", "gain", "expansion", "improve", "dividend", "agreement",
		"artış", "yükseliş", "başarı", "kâr", "büyüme", "gelişme", "iyileştirme", "pozitif", "arttı", "yükseldi", "kazanç", "getiri",
	}
	negativeTerms = []string{
		"decline", "decrease", "loss", "risk", "fine", "weak", "debt", "crisis", "lawsuit", "threat", "fell",
		"düşüş", "azalış", "zarar", "sorun", "olumsuz", "negatif", "kriz", "düştü", "azaldı", "kayıp", "tehdit",
	}
	neutralTerms = []string{
		"announce", "notice", "meeting", "agenda", "board", "statement", "signed", "approval",
		"açıklama", "duyuru", "bilgilendirme", "toplantı", "karar", "onay", "imza", "sözleşme",
	}
)

// SentimentCounts holds keyword hits per polarity.
type SentimentCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

func (c SentimentCounts) total() int { return c.Positive + c.Negative + c.Neutral }

// NewsItem is one scored disclosure.
type NewsItem struct {
	Title      string           `json:"title"`
	Company    string           `json:"company"`
	Date       time.Time        `json:"date"`
	Sentiment  fusion.Direction `json:"sentiment"`
	Confidence float64          `json:"confidence"`
	Counts     SentimentCounts  `json:"counts"`
}

// NewsReport aggregates disclosure sentiment.
type NewsReport struct {
	Direction  fusion.Direction `json:"direction"`
	Confidence float64          `json:"confidence"`
	Strength   string           `json:"strength"`
	Counts     SentimentCounts  `json:"counts"`
	Items      []NewsItem       `json:"items"`
}

func (r *NewsReport) Source() string { return fusion.SourceNews }

func (r *NewsReport) SubResult() fusion.SubResult {
	return fusion.SentimentResult(r.Direction, r.Confidence)
}

// NewsAnalyst scores company disclosures with keyword sentiment.
type NewsAnalyst struct {
	*agents.BaseAgent
	source market.DataSource
}

// NewNewsAnalyst creates the news_agent worker
func NewNewsAnalyst(source market.DataSource) *NewsAnalyst {
	a := &NewsAnalyst{source: source}
	a.BaseAgent = agents.NewBaseAgent(agents.NewsAgent, map[agents.TaskKind]agents.Handler{
		agents.TaskGetDisclosures:   a.disclosures,
		agents.TaskAnalyzeSentiment: a.sentiment,
	})
	return a
}

func (a *NewsAnalyst) disclosures(ctx context.Context, task agents.Task) (any, error) {
	limit := task.Int("limit", DefaultDisclosureLimit)

	items, err := a.source.GetDisclosures(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "fetch disclosures")
	}

	report := &NewsReport{Items: make([]NewsItem, 0, len(items))}
	for _, d := range items {
		dir, conf, counts := ScoreText(d.Title + " " + d.Content)
		report.Items = append(report.Items, NewsItem{
			Title:      d.Title,
			Company:    d.Company,
			Date:       d.Date,
			Sentiment:  dir,
			Confidence: conf,
			Counts:     counts,
		})
		report.Counts.Positive += counts.Positive
		report.Counts.Negative += counts.Negative
		report.Counts.Neutral += counts.Neutral
	}
	report.Direction, report.Confidence, report.Strength = aggregate(report.Counts)

	a.Log().Debugw("Disclosures scored",
		"items", len(report.Items),
		"direction", report.Direction,
		"confidence", report.Confidence,
	)
	return report, nil
}

func (a *NewsAnalyst) sentiment(ctx context.Context, task agents.Task) (any, error) {
	text := task.String("text", "")
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewValidationError("text", "text is required", text)
	}
	dir, conf, counts := ScoreText(text)
	return &NewsReport{
		Direction:  dir,
		Confidence: conf,
		Strength:   strengthOf(counts),
		Counts:     counts,
	}, nil
}

// ScoreText counts sentiment keywords in text. Each keyword counts once.
// With no hits the text is neutral at confidence 0.5.
func ScoreText(text string) (fusion.Direction, float64, SentimentCounts) {
	lower := strings.ToLower(text)
	counts := SentimentCounts{
		Positive: hits(lower, positiveTerms),
		Negative: hits(lower, negativeTerms),
		Neutral:  hits(lower, neutralTerms),
	}

	total := float64(counts.total())
	if total == 0 {
		return fusion.Neutral, 0.5, counts
	}

	switch {
	case counts.Positive > counts.Negative && counts.Positive > counts.Neutral:
		return fusion.Bullish, round2(float64(counts.Positive) / total), counts
	case counts.Negative > counts.Positive && counts.Negative > counts.Neutral:
		return fusion.Bearish, round2(float64(counts.Negative) / total), counts
	case counts.Neutral > 0:
		return fusion.Neutral, round2(float64(counts.Neutral) / total), counts
	default:
		return fusion.Neutral, 0.5, counts
	}
}

// aggregate turns summed counts into a direction and a confidence equal to
// the net polar share of polar hits.
func aggregate(c SentimentCounts) (fusion.Direction, float64, string) {
	polar := c.Positive + c.Negative
	if polar == 0 || c.Positive == c.Negative {
		return fusion.Neutral, 0, "balanced"
	}
	conf := round2(math.Abs(float64(c.Positive-c.Negative)) / float64(polar))
	if c.Positive > c.Negative {
		return fusion.Bullish, conf, strengthOf(c)
	}
	return fusion.Bearish, conf, strengthOf(c)
}

func strengthOf(c SentimentCounts) string {
	switch {
	case c.Positive == c.Negative:
		return "balanced"
	case c.Positive > 2*c.Negative || c.Negative > 2*c.Positive:
		return "strong"
	default:
		return "moderate"
	}
}

func hits(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
