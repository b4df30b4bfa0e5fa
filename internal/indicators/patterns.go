package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

func body(c types.Candle) decimal.Decimal    { return c.Close.Sub(c.Open).Abs() }
func upperWick(c types.Candle) decimal.Decimal {
	top := c.Close
	if c.Open.GreaterThan(top) {
		top = c.Open
	}
	return c.High.Sub(top)
}
func lowerWick(c types.Candle) decimal.Decimal {
	bottom := c.Close
	if c.Open.LessThan(bottom) {
		bottom = c.Open
	}
	return bottom.Sub(c.Low)
}

// candlePatterns evaluates the engulfing/hammer/star/rejection-wick
// patterns over the last few closed candles. Requires at least 3 closed
// candles; fewer leaves every flag UnevaluatedPattern.
func candlePatterns(candles []types.Candle) (engulfBull, engulfBear, hammer, morning, evening, rejUp, rejDown types.PatternFlag) {
	closed := onlyComplete(candles)
	if len(closed) < 3 {
		u := types.UnevaluatedPattern()
		return u, u, u, u, u, u, u
	}
	last := closed[len(closed)-1]
	prev := closed[len(closed)-2]
	prev2 := closed[len(closed)-3]

	engulfBull = boolPattern(
		prev.Close.LessThan(prev.Open) && last.Close.GreaterThan(last.Open) &&
			last.Open.LessThanOrEqual(prev.Close) && last.Close.GreaterThanOrEqual(prev.Open))
	engulfBear = boolPattern(
		prev.Close.GreaterThan(prev.Open) && last.Close.LessThan(last.Open) &&
			last.Open.GreaterThanOrEqual(prev.Close) && last.Close.LessThanOrEqual(prev.Open))

	b := body(last)
	lw := lowerWick(last)
	uw := upperWick(last)
	two := decimal.NewFromInt(2)
	hammer = boolPattern(!b.IsZero() && lw.GreaterThanOrEqual(b.Mul(two)) && uw.LessThan(b))

	rejUp = boolPattern(!b.IsZero() && uw.GreaterThanOrEqual(b.Mul(two)))
	rejDown = boolPattern(!b.IsZero() && lw.GreaterThanOrEqual(b.Mul(two)))

	smallMid := body(prev).LessThan(body(prev2).Mul(decimal.NewFromFloat(0.5)))
	morning = boolPattern(
		prev2.Close.LessThan(prev2.Open) && smallMid && last.Close.GreaterThan(last.Open) &&
			last.Close.GreaterThan(prev2.Open.Add(prev2.Close).Div(two)))
	evening = boolPattern(
		prev2.Close.GreaterThan(prev2.Open) && smallMid && last.Close.LessThan(last.Open) &&
			last.Close.LessThan(prev2.Open.Add(prev2.Close).Div(two)))

	return
}

func boolPattern(present bool) types.PatternFlag {
	if present {
		return types.DetectedPattern()
	}
	return types.AbsentPattern()
}

func onlyComplete(candles []types.Candle) []types.Candle {
	out := make([]types.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Complete {
			out = append(out, c)
		}
	}
	return out
}
