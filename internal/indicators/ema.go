// Package indicators implements C2, the indicator engine: deterministic,
// stateless functions over candle slices (plus the incremental EMA/VWAP
// helpers from pkg/utils for the high-cost recurring ones). Given the same
// candle slice, Compute always returns a bit-identical Features value.
package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
	"github.com/silverline-labs/tradeengine/pkg/utils"
)

// closes extracts closing prices, oldest first.
func closes(candles []types.Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// ema computes the EMA of period over values, replaying the incremental
// utils.EMA so the last value is the indicator reading. Returns
// Unavailable if fewer than period candles are present.
func ema(values []decimal.Decimal, period int) types.OptionalDecimal {
	if len(values) < period {
		return types.Unavailable()
	}
	e := utils.NewEMA(period)
	var last decimal.Decimal
	for _, v := range values {
		last = e.Add(v)
	}
	return types.Avail(last)
}

// emaSeries returns the EMA history value-by-value (same length as values),
// used by MACD, which needs the EMA series rather than just its last point.
func emaSeries(values []decimal.Decimal, period int) []decimal.Decimal {
	if len(values) == 0 {
		return nil
	}
	e := utils.NewEMA(period)
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = e.Add(v)
	}
	return out
}
