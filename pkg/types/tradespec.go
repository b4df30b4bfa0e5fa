package types

import "github.com/shopspring/decimal"

// TradeSpec is a proposed order, emitted by a strategy template (and
// untrusted advisor input) and validated by C6 before reaching C7.
type TradeSpec struct {
	Symbol          string
	Side            OrderSide
	OrderType       OrderType
	Entry           decimal.Decimal
	SL              decimal.Decimal
	TP              decimal.Decimal
	Volume          decimal.Decimal
	TemplateName    string
	TemplateVersion string
	Confidence      OptionalDecimal
	RR              decimal.Decimal
	Tags            []string
}

// ComputeRR returns |tp-entry|/|entry-sl|, zero if entry==sl.
func (t TradeSpec) ComputeRR() decimal.Decimal {
	risk := t.Entry.Sub(t.SL).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	reward := t.TP.Sub(t.Entry).Abs()
	return reward.Div(risk)
}

// GeometryValid checks the side-of-entry invariant from §3: for BUY,
// sl<entry<tp; for SELL, sl>entry>tp.
func (t TradeSpec) GeometryValid() bool {
	if t.Side == Buy {
		return t.SL.LessThan(t.Entry) && t.Entry.LessThan(t.TP)
	}
	return t.SL.GreaterThan(t.Entry) && t.Entry.GreaterThan(t.TP)
}

// Decision is the output of the decision pipeline (C4->C5->C6): either an
// emitted TradeSpec or a structured skip.
type Decision struct {
	Status          DecisionStatus
	TradeSpec       *TradeSpec
	SkipReasons     []string
	Template        string
	SessionTag      Session
	Regime          Regime
	DecisionTags    []string
	ValidationScore int
}
