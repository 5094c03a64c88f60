package execution

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Position is one ledger entry.
type Position struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// Ledger tracks simulated holdings. It is not safe for concurrent use on its
// own; the Simulator serializes access.
type Ledger struct {
	positions map[string]*Position
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[string]*Position)}
}

// Buy merges a fill into the position using weighted-average cost.
func (l *Ledger) Buy(symbol string, qty, price decimal.Decimal) Position {
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		l.positions[symbol] = pos
	}
	pos.TotalCost = pos.TotalCost.Add(qty.Mul(price))
	pos.Quantity = pos.Quantity.Add(qty)
	pos.AvgCost = pos.TotalCost.Div(pos.Quantity)
	return *pos
}

// Sell reduces the position at its average cost and removes it once flat.
// It returns the remaining position (zero when closed) and the realized PnL.
// Selling a symbol that is not held leaves the ledger untouched.
func (l *Ledger) Sell(symbol string, qty, price decimal.Decimal) (Position, decimal.Decimal) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{Symbol: symbol}, decimal.Zero
	}

	closed := decimal.Min(qty, pos.Quantity)
	realized := price.Sub(pos.AvgCost).Mul(closed)

	pos.Quantity = pos.Quantity.Sub(qty)
	if !pos.Quantity.IsPositive() {
		delete(l.positions, symbol)
		return Position{Symbol: symbol}, realized
	}
	pos.TotalCost = pos.Quantity.Mul(pos.AvgCost)
	return *pos, realized
}

// Get returns a copy of the position for symbol.
func (l *Ledger) Get(symbol string) (Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Snapshot returns copies of all positions sorted by symbol.
func (l *Ledger) Snapshot() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
