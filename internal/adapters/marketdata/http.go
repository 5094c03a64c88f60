package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"quorum/internal/domain/market"
	"quorum/pkg/errors"
)

// DefaultPairs are the currency pairs reported by GetExchangeRates.
var DefaultPairs = []string{"USD/TRY", "EUR/TRY", "EUR/USD", "GBP/TRY"}

// RestFeedsConfig configures the HTTP feeds
type RestFeedsConfig struct {
	FXBaseURL      string
	FXBase         string
	DisclosuresURL string
	FinancialsURL  string
	Timeout        time.Duration
	Pairs          []string
}

// RestFeeds serves exchange rates, disclosures and financial statements
// from JSON HTTP endpoints.
type RestFeeds struct {
	fx    *resty.Client
	feeds *resty.Client
	cfg   RestFeedsConfig
}

// NewRestFeeds creates the HTTP feed client
func NewRestFeeds(cfg RestFeedsConfig) *RestFeeds {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FXBase == "" {
		cfg.FXBase = "USD"
	}
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = DefaultPairs
	}

	fx := resty.New().
		SetBaseURL(strings.TrimRight(cfg.FXBaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	feeds := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &RestFeeds{fx: fx, feeds: feeds, cfg: cfg}
}

type fxResponse struct {
	Result   string             `json:"result"`
	BaseCode string             `json:"base_code"`
	Rates    map[string]float64 `json:"rates"`
}

// GetExchangeRates returns the configured pairs as BASE/QUOTE -> price.
func (r *RestFeeds) GetExchangeRates(ctx context.Context) (map[string]float64, error) {
	if r.cfg.FXBaseURL == "" {
		return nil, errors.Wrap(errors.ErrUnavailable, "fx endpoint not configured")
	}

	resp, err := r.fx.R().
		SetContext(ctx).
		Get("/latest/" + r.cfg.FXBase)
	if err != nil {
		return nil, errors.Wrap(err, "fx request")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Newf("fx API error %d: %s", resp.StatusCode(), resp.String())
	}

	var body fxResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errors.Wrap(err, "decode fx response")
	}
	if body.Result != "" && body.Result != "success" {
		return nil, errors.Newf("fx API result %q", body.Result)
	}

	rates := make(map[string]float64, len(body.Rates)+1)
	for k, v := range body.Rates {
		rates[strings.ToUpper(k)] = v
	}
	rates[strings.ToUpper(r.cfg.FXBase)] = 1

	return crossRates(rates, r.cfg.Pairs), nil
}

// crossRates derives each A/B pair from base-denominated rates.
// Pairs with an unknown leg are skipped.
func crossRates(rates map[string]float64, pairs []string) map[string]float64 {
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		legs := strings.SplitN(strings.ToUpper(pair), "/", 2)
		if len(legs) != 2 {
			continue
		}
		a, okA := rates[legs[0]]
		b, okB := rates[legs[1]]
		if !okA || !okB || a == 0 {
			continue
		}
		out[legs[0]+"/"+legs[1]] = round4(b / a)
	}
	return out
}

// GetDisclosures fetches the most recent announcements.
func (r *RestFeeds) GetDisclosures(ctx context.Context, limit int) ([]market.Disclosure, error) {
	if r.cfg.DisclosuresURL == "" {
		return nil, errors.Wrap(errors.ErrUnavailable, "disclosures endpoint not configured")
	}

	req := r.feeds.R().SetContext(ctx)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get(r.cfg.DisclosuresURL)
	if err != nil {
		return nil, errors.Wrap(err, "disclosures request")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Newf("disclosures API error %d: %s", resp.StatusCode(), resp.String())
	}

	var items []market.Disclosure
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, errors.Wrap(err, "decode disclosures")
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// GetFinancials fetches the latest statements for a symbol.
func (r *RestFeeds) GetFinancials(ctx context.Context, symbol string) (market.Financials, error) {
	if r.cfg.FinancialsURL == "" {
		return market.Financials{}, errors.Wrap(errors.ErrUnavailable, "financials endpoint not configured")
	}
	sym := normalize(symbol)
	if sym == "" {
		return market.Financials{}, errors.ErrInvalidSymbol
	}

	resp, err := r.feeds.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/%s", strings.TrimRight(r.cfg.FinancialsURL, "/"), sym))
	if err != nil {
		return market.Financials{}, errors.Wrap(err, "financials request")
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return market.Financials{}, errors.Wrapf(errors.ErrNotFound, "financials %s", sym)
	default:
		return market.Financials{}, errors.Newf("financials API error %d: %s", resp.StatusCode(), resp.String())
	}

	var f market.Financials
	if err := json.Unmarshal(resp.Body(), &f); err != nil {
		return market.Financials{}, errors.Wrap(err, "decode financials")
	}
	if f.Symbol == "" {
		f.Symbol = sym
	}
	return f, nil
}
