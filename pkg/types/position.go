package types

import "github.com/shopspring/decimal"

// Position is the broker's mirror of an open position, refreshed every
// monitoring cycle. It is read-only from the engine's perspective; only the
// broker mutates it.
type Position struct {
	Ticket     uint64
	Symbol     string
	Side       OrderSide
	Volume     decimal.Decimal
	EntryPrice decimal.Decimal
	SL         decimal.Decimal
	TP         decimal.Decimal
	OpenedAt   int64
	Magic      int64
}

// RMultiple returns unrealized profit expressed as a fraction of the
// position's distance to TP, the R used throughout C8's state machine.
func (p Position) RMultiple(currentPrice decimal.Decimal) decimal.Decimal {
	distToTP := p.TP.Sub(p.EntryPrice).Abs()
	if distToTP.IsZero() {
		return decimal.Zero
	}
	var moved decimal.Decimal
	if p.Side == Buy {
		moved = currentPrice.Sub(p.EntryPrice)
	} else {
		moved = p.EntryPrice.Sub(currentPrice)
	}
	return moved.Div(distToTP)
}

// InitialRisk returns |entry-sl|, the unit of the loss cutter's R (RMultiple
// above divides by the distance to TP instead).
func (p Position) InitialRisk() decimal.Decimal {
	return p.EntryPrice.Sub(p.SL).Abs()
}
