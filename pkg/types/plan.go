package types

import "github.com/shopspring/decimal"

// Condition is a tagged variant evaluated by the auto-execution planner
// (C11). Concrete variants below are the only implementations; the
// interface exists purely to let Plan.Conditions hold a heterogeneous,
// exhaustively-switchable list instead of an untyped dict (§9).
type Condition interface {
	conditionKind() string
}

// Kind returns the condition's tag, used for logging and persistence.
func Kind(c Condition) string { return c.conditionKind() }

type PriceAbove struct{ Level decimal.Decimal }

func (PriceAbove) conditionKind() string { return "price_above" }

type PriceBelow struct{ Level decimal.Decimal }

func (PriceBelow) conditionKind() string { return "price_below" }

type ChochDetected struct{ Direction string } // "bull" or "bear"

func (ChochDetected) conditionKind() string { return "choch_detected" }

type RejectionWick struct{ Direction string }

func (RejectionWick) conditionKind() string { return "rejection_wick" }

type SessionIn struct{ SessionTag Session }

func (SessionIn) conditionKind() string { return "session_in" }

type MinVolatility struct{ ATRRatio decimal.Decimal }

func (MinVolatility) conditionKind() string { return "min_volatility" }

type MaxVolatility struct{ ATRRatio decimal.Decimal }

func (MaxVolatility) conditionKind() string { return "max_volatility" }

type TimeAfter struct{ EpochMS int64 }

func (TimeAfter) conditionKind() string { return "time_after" }

type TimeBefore struct{ EpochMS int64 }

func (TimeBefore) conditionKind() string { return "time_before" }

type NewsClear struct{}

func (NewsClear) conditionKind() string { return "news_clear" }

// Plan is a conditional trade authored by an external advisor and triggered
// by the auto-execution planner when all of its Conditions hold.
type Plan struct {
	PlanID      string
	Symbol      string
	Direction   OrderSide
	Entry       decimal.Decimal
	SL          decimal.Decimal
	TP          decimal.Decimal
	Volume      decimal.Decimal
	Conditions  []Condition
	ExpiresAt   int64
	State       PlanState
	CreatedAt   int64
	UpdatedAt   int64
}
