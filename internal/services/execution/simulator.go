package execution

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quorum/internal/events"
	"quorum/internal/metrics"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts buy/sell in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", errors.Wrapf(errors.ErrInvalidInput, "unknown side %q", s)
}

// Order is a request to simulate one fill.
type Order struct {
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ExecutionResult describes a simulated fill.
type ExecutionResult struct {
	TradeID        string          `json:"trade_id"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	RequestedPrice decimal.Decimal `json:"requested_price"`
	ExecutedPrice  decimal.Decimal `json:"executed_price"`
	Notional       decimal.Decimal `json:"notional"`
	Commission     decimal.Decimal `json:"commission"`
	ExchangeFee    decimal.Decimal `json:"exchange_fee"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	SlippagePct    decimal.Decimal `json:"slippage_pct"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	Position       Position        `json:"position"`
	ExecutedAt     time.Time       `json:"executed_at"`
}

// Config holds limits and the fee schedule.
type Config struct {
	MaxNotional     float64
	OpenHour        int
	CloseHour       int
	Location        *time.Location
	EnforceHours    bool
	CommissionRate  float64
	MinCommission   float64
	ExchangeFeeRate float64
	HistorySize     int
}

// DefaultConfig mirrors the production fee schedule.
func DefaultConfig() Config {
	return Config{
		MaxNotional:     1_000_000,
		OpenHour:        9,
		CloseHour:       18,
		Location:        time.UTC,
		EnforceHours:    true,
		CommissionRate:  0.001,
		MinCommission:   5,
		ExchangeFeeRate: 0.0003,
		HistorySize:     1000,
	}
}

// Market impact model constants.
const (
	impactPerShare  = 1.0 / 10000
	maxSizeImpact   = 0.005
	maxRandomImpact = 0.001
	minFillPrice    = 0.01
)

// Simulator fills orders against a modelled market and keeps a ledger.
type Simulator struct {
	cfg Config

	mu      sync.Mutex
	ledger  *Ledger
	history []ExecutionResult
	rnd     func() float64
	now     func() time.Time

	events *events.Publisher
	log    *logger.Logger
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithRandom sets the uniform [0,1) source used for random slippage.
func WithRandom(f func() float64) Option {
	return func(s *Simulator) { s.rnd = f }
}

// WithClock sets the clock used for trading-hours checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithEvents publishes a trade.executed event for every fill.
func WithEvents(p *events.Publisher) Option {
	return func(s *Simulator) { s.events = p }
}

// NewSimulator creates a simulator with an empty ledger
func NewSimulator(cfg Config, opts ...Option) *Simulator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	s := &Simulator{
		cfg:    cfg,
		ledger: NewLedger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())).Float64,
		now:    time.Now,
		events: events.NewNoopPublisher(),
		log:    logger.Component("execution_simulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute validates and fills an order. Validation failures wrap
// ErrInvalidOrder and leave the ledger untouched.
func (s *Simulator) Execute(ctx context.Context, o Order) (*ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := s.fill(o)
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishTradeExecuted(ctx, tradeEvent(res)); err != nil {
		s.log.Warnw("Trade event not published", "trade_id", res.TradeID, "error", err)
	}
	return res, nil
}

func (s *Simulator) fill(o Order) (*ExecutionResult, error) {
	o.Symbol = normalizeSymbol(o.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if err := s.validate(o, now); err != nil {
		metrics.RecordRejectedOrder(string(o.Side))
		s.log.Warnw("Order rejected",
			"symbol", o.Symbol,
			"side", o.Side,
			"quantity", o.Quantity,
			"price", o.Price,
			"error", err,
		)
		return nil, err
	}

	impact := s.impact(o)
	execPrice := o.Price.Mul(decimal.NewFromFloat(1 + impact))
	if execPrice.LessThan(decimal.NewFromFloat(minFillPrice)) {
		execPrice = decimal.NewFromFloat(minFillPrice)
	}

	notional := o.Quantity.Mul(o.Price)
	commission := decimal.Max(
		notional.Mul(decimal.NewFromFloat(s.cfg.CommissionRate)),
		decimal.NewFromFloat(s.cfg.MinCommission),
	).Round(2)
	exchangeFee := notional.Mul(decimal.NewFromFloat(s.cfg.ExchangeFeeRate)).Round(2)
	fees := commission.Add(exchangeFee)

	net := notional.Add(fees)
	if o.Side == SideSell {
		net = notional.Sub(fees)
	}

	slippage := execPrice.Sub(o.Price).Abs().Div(o.Price).Mul(decimal.NewFromInt(100)).Round(4)

	var (
		pos      Position
		realized decimal.Decimal
	)
	if o.Side == SideBuy {
		pos = s.ledger.Buy(o.Symbol, o.Quantity, execPrice)
	} else {
		pos, realized = s.ledger.Sell(o.Symbol, o.Quantity, execPrice)
	}

	res := ExecutionResult{
		TradeID:        "TRD-" + uuid.NewString(),
		Symbol:         o.Symbol,
		Side:           o.Side,
		Quantity:       o.Quantity,
		RequestedPrice: o.Price,
		ExecutedPrice:  execPrice,
		Notional:       notional.Round(2),
		Commission:     commission,
		ExchangeFee:    exchangeFee,
		TotalFees:      fees,
		NetAmount:      net.Round(2),
		SlippagePct:    slippage,
		RealizedPnL:    realized.Round(2),
		Position:       pos,
		ExecutedAt:     now,
	}
	s.remember(res)

	slipF, _ := slippage.Float64()
	feesF, _ := fees.Float64()
	metrics.RecordExecution(string(o.Side), slipF, feesF)

	notionalF, _ := notional.Float64()
	s.log.Infow("Order filled",
		"trade_id", res.TradeID,
		"symbol", o.Symbol,
		"side", o.Side,
		"quantity", o.Quantity,
		"executed_price", execPrice,
		"notional", humanize.CommafWithDigits(notionalF, 2),
		"slippage_pct", slippage,
	)

	return &res, nil
}

func tradeEvent(res *ExecutionResult) *events.TradeExecuted {
	return &events.TradeExecuted{
		BaseEvent:     events.NewBaseEvent("trade.executed", "execution_simulator"),
		TradeID:       res.TradeID,
		Symbol:        res.Symbol,
		Side:          string(res.Side),
		Quantity:      res.Quantity.String(),
		ExecutedPrice: res.ExecutedPrice.String(),
		NetAmount:     res.NetAmount.String(),
		TotalFees:     res.TotalFees.String(),
		SlippagePct:   res.SlippagePct.String(),
	}
}

// Positions returns the current ledger.
func (s *Simulator) Positions() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Snapshot()
}

// Position returns one ledger entry.
func (s *Simulator) Position(symbol string) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Get(normalizeSymbol(symbol))
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// History returns up to n most recent fills, newest first. n<=0 returns all retained fills.
func (s *Simulator) History(n int) []ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]ExecutionResult, 0, n)
	for i := len(s.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.history[i])
	}
	return out
}

func (s *Simulator) remember(res ExecutionResult) {
	s.history = append(s.history, res)
	if over := len(s.history) - s.cfg.HistorySize; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
}

// impact returns the signed relative price move for the order.
func (s *Simulator) impact(o Order) float64 {
	qty, _ := o.Quantity.Float64()
	sizeImpact := math.Min(qty*impactPerShare, maxSizeImpact)
	randomImpact := math.Abs((s.rnd()*2 - 1) * maxRandomImpact)

	impact := sizeImpact + randomImpact
	if o.Side == SideSell {
		impact = -impact
	}
	return impact
}

func (s *Simulator) validate(o Order, now time.Time) error {
	var errs errors.MultiError

	if o.Symbol == "" {
		errs.Add(errors.NewValidationError("symbol", "symbol is required", o.Symbol))
	}
	if o.Side != SideBuy && o.Side != SideSell {
		errs.Add(errors.NewValidationError("side", "must be BUY or SELL", o.Side))
	}
	if !o.Quantity.IsPositive() {
		errs.Add(errors.NewValidationError("quantity", "must be positive", o.Quantity))
	}
	if !o.Price.IsPositive() {
		errs.Add(errors.NewValidationError("price", "must be positive", o.Price))
	}
	if s.cfg.MaxNotional > 0 {
		notional := o.Quantity.Mul(o.Price)
		if notional.GreaterThan(decimal.NewFromFloat(s.cfg.MaxNotional)) {
			errs.Add(errors.NewValidationError("notional", "exceeds maximum order value", notional))
		}
	}
	if s.cfg.EnforceHours {
		hour := now.In(s.cfg.Location).Hour()
		if hour < s.cfg.OpenHour || hour > s.cfg.CloseHour {
			errs.Add(errors.NewValidationError("time", "outside trading hours", now.In(s.cfg.Location).Format("15:04")))
		}
	}

	if errs.HasErrors() {
		return errors.Newf("%w: %w", errors.ErrInvalidOrder, &errs)
	}
	return nil
}
