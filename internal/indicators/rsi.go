package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// rsi computes Wilder's RSI(period) over a close-price series. Requires
// period+1 candles (period deltas).
func rsi(values []decimal.Decimal, period int) types.OptionalDecimal {
	if len(values) < period+1 {
		return types.Unavailable()
	}

	gains := decimal.Zero
	losses := decimal.Zero
	for i := 1; i <= period; i++ {
		delta := values[i].Sub(values[i-1])
		if delta.GreaterThan(decimal.Zero) {
			gains = gains.Add(delta)
		} else {
			losses = losses.Add(delta.Abs())
		}
	}
	avgGain := gains.Div(decimal.NewFromInt(int64(period)))
	avgLoss := losses.Div(decimal.NewFromInt(int64(period)))

	periodDec := decimal.NewFromInt(int64(period))
	for i := period + 1; i < len(values); i++ {
		delta := values[i].Sub(values[i-1])
		gain := decimal.Zero
		loss := decimal.Zero
		if delta.GreaterThan(decimal.Zero) {
			gain = delta
		} else {
			loss = delta.Abs()
		}
		avgGain = avgGain.Mul(periodDec.Sub(decimal.NewFromInt(1))).Add(gain).Div(periodDec)
		avgLoss = avgLoss.Mul(periodDec.Sub(decimal.NewFromInt(1))).Add(loss).Div(periodDec)
	}

	if avgLoss.IsZero() {
		return types.Avail(decimal.NewFromInt(100))
	}
	rs := avgGain.Div(avgLoss)
	hundred := decimal.NewFromInt(100)
	result := hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
	return types.Avail(result)
}
