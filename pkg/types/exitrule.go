package types

import "github.com/shopspring/decimal"

// ExitRule is the per-position managed state owned exclusively by the
// intelligent exit manager (C8). Invariants: InitialSL is on the protective
// side of Entry; State is monotone (Init < BEArmed < PartialTaken <
// Trailing < Closed, with a direct jump to Closed always legal); SL never
// moves against the position once BEArmed.
type ExitRule struct {
	Ticket    uint64
	Symbol    string
	Side      OrderSide
	Entry     decimal.Decimal
	InitialSL decimal.Decimal
	InitialTP decimal.Decimal

	BreakevenPct           decimal.Decimal // default 0.20-0.30 of distance-to-TP
	PartialPct             decimal.Decimal // default 0.40-0.60 of distance-to-TP
	PartialCloseFraction   decimal.Decimal // default 0.50; skipped if volume < 0.02
	TrailingEnabled        bool
	TrailingDistanceATRMult decimal.Decimal // default 1.5
	VIXThreshold           decimal.Decimal

	State          ExitRuleState
	CurrentSL      decimal.Decimal
	LastTrailingSL decimal.Decimal
	PartialSkipped bool // volume<0.02 at the partial threshold; allows BEArmed->Trailing direct jump

	VIXPreWidened bool // one-time SL widening applied before BE armed

	Degraded            bool
	ConsecutiveFailures int

	CreatedAt int64
	UpdatedAt int64
}

// CanAdvanceTo reports whether transitioning to next preserves the monotone
// state invariant: any forward move is legal, CLOSED is always legal, and
// BEArmed->Trailing is legal (skipping PartialTaken) exactly when the
// partial was skipped.
func (e ExitRule) CanAdvanceTo(next ExitRuleState) bool {
	if next == Closed {
		return true
	}
	if next == e.State {
		return true
	}
	if next < e.State {
		return false
	}
	if e.State == BEArmed && next == Trailing && !e.PartialSkipped {
		return false
	}
	return true
}

// DefaultExitRule returns an ExitRule with the spec's default band values
// (breakeven 0.25, partial 0.50) for a newly opened position.
func DefaultExitRule(pos Position, now int64) ExitRule {
	return ExitRule{
		Ticket:                  pos.Ticket,
		Symbol:                  pos.Symbol,
		Side:                    pos.Side,
		Entry:                   pos.EntryPrice,
		InitialSL:               pos.SL,
		InitialTP:               pos.TP,
		BreakevenPct:            decimal.NewFromFloat(0.25),
		PartialPct:              decimal.NewFromFloat(0.50),
		PartialCloseFraction:    decimal.NewFromFloat(0.50),
		TrailingEnabled:         true,
		TrailingDistanceATRMult: decimal.NewFromFloat(1.5),
		VIXThreshold:            decimal.NewFromFloat(20),
		State:                   Init,
		CurrentSL:               pos.SL,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}
