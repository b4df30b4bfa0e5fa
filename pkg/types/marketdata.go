package types

import "github.com/shopspring/decimal"

// Tick is a single bid/ask update from the BrokerGateway. EpochMS is
// monotonic per symbol; out-of-order ticks are dropped by the ring (C1).
type Tick struct {
	Symbol  string
	EpochMS int64
	Bid     decimal.Decimal
	Ask     decimal.Decimal
	Last    OptionalDecimal
	Volume  OptionalDecimal
}

// Mid returns the mid price between bid and ask.
func (t Tick) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

// Spread returns ask-bid.
func (t Tick) Spread() decimal.Decimal {
	return t.Ask.Sub(t.Bid)
}

// Candle is one OHLCV bar for (symbol, timeframe). The currently-open candle
// has Complete=false and is mutated in place until the timeframe boundary;
// closed candles are immutable.
type Candle struct {
	Symbol      string
	Timeframe   Timeframe
	EpochMSOpen int64
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
	Complete    bool
}

// PendingOrder mirrors a resting order on the broker (§6.1 list_pending_orders).
type PendingOrder struct {
	Ticket    uint64
	Symbol    string
	Side      OrderSide
	OrderType OrderType
	Price     decimal.Decimal
	SL        decimal.Decimal
	TP        decimal.Decimal
	Volume    decimal.Decimal
	PlacedAt  int64
}

// SymbolInfo is the broker's per-symbol trading parameters (§6.1 symbol_info).
type SymbolInfo struct {
	Symbol       string
	Digits       int32
	Point        decimal.Decimal
	VolumeMin    decimal.Decimal
	VolumeStep   decimal.Decimal
	VolumeCap    decimal.Decimal
	Spread       decimal.Decimal
	TradingHours string
}

// PlaceOrderResult is the normalized outcome of BrokerGateway.place_order.
type PlaceOrderResult struct {
	Ticket  uint64
	Retcode Retcode
	Reason  string
}
