package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// trueRanges computes the true range series (len(candles)-1 entries).
func trueRanges(candles []types.Candle) []decimal.Decimal {
	if len(candles) < 2 {
		return nil
	}
	out := make([]decimal.Decimal, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hi := candles[i].High
		lo := candles[i].Low
		prevClose := candles[i-1].Close
		tr := hi.Sub(lo)
		if d := hi.Sub(prevClose).Abs(); d.GreaterThan(tr) {
			tr = d
		}
		if d := lo.Sub(prevClose).Abs(); d.GreaterThan(tr) {
			tr = d
		}
		out = append(out, tr)
	}
	return out
}

// wilderSmooth applies Wilder's smoothing (used by ATR and ADX) over a
// series, requiring at least `period` values to seed.
func wilderSmooth(values []decimal.Decimal, period int) []decimal.Decimal {
	if len(values) < period {
		return nil
	}
	periodDec := decimal.NewFromInt(int64(period))
	sum := decimal.Zero
	for i := 0; i < period; i++ {
		sum = sum.Add(values[i])
	}
	out := make([]decimal.Decimal, 0, len(values)-period+1)
	cur := sum.Div(periodDec)
	out = append(out, cur)
	for i := period; i < len(values); i++ {
		cur = cur.Mul(periodDec.Sub(decimal.NewFromInt(1))).Add(values[i]).Div(periodDec)
		out = append(out, cur)
	}
	return out
}

// atr computes ATR(period) over candles, plus a baseline ATR averaged over
// the preceding `baselinePeriod` ATR readings (used by C4's VOLATILE ratio
// test: ATR(M5)/ATR(M5, baseline 50)).
func atr(candles []types.Candle, period, baselinePeriod int) (current, baseline types.OptionalDecimal) {
	trs := trueRanges(candles)
	series := wilderSmooth(trs, period)
	if len(series) == 0 {
		return types.Unavailable(), types.Unavailable()
	}
	current = types.Avail(series[len(series)-1])
	if len(series) < baselinePeriod {
		return current, types.Unavailable()
	}
	window := series[len(series)-baselinePeriod:]
	sum := decimal.Zero
	for _, v := range window {
		sum = sum.Add(v)
	}
	baseline = types.Avail(sum.Div(decimal.NewFromInt(int64(baselinePeriod))))
	return current, baseline
}

// adx computes ADX(period) plus +DI/-DI over candles.
func adx(candles []types.Candle, period int) (adxVal, diPlus, diMinus types.OptionalDecimal) {
	if len(candles) < period*2+1 {
		return types.Unavailable(), types.Unavailable(), types.Unavailable()
	}

	trs := trueRanges(candles)
	plusDM := make([]decimal.Decimal, 0, len(candles)-1)
	minusDM := make([]decimal.Decimal, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High.Sub(candles[i-1].High)
		downMove := candles[i-1].Low.Sub(candles[i].Low)
		switch {
		case upMove.GreaterThan(downMove) && upMove.GreaterThan(decimal.Zero):
			plusDM = append(plusDM, upMove)
			minusDM = append(minusDM, decimal.Zero)
		case downMove.GreaterThan(upMove) && downMove.GreaterThan(decimal.Zero):
			plusDM = append(plusDM, decimal.Zero)
			minusDM = append(minusDM, downMove)
		default:
			plusDM = append(plusDM, decimal.Zero)
			minusDM = append(minusDM, decimal.Zero)
		}
	}

	smoothTR := wilderSmooth(trs, period)
	smoothPlusDM := wilderSmooth(plusDM, period)
	smoothMinusDM := wilderSmooth(minusDM, period)
	n := len(smoothTR)
	if len(smoothPlusDM) < n {
		n = len(smoothPlusDM)
	}
	if len(smoothMinusDM) < n {
		n = len(smoothMinusDM)
	}
	if n == 0 {
		return types.Unavailable(), types.Unavailable(), types.Unavailable()
	}

	dx := make([]decimal.Decimal, 0, n)
	var lastPlusDI, lastMinusDI decimal.Decimal
	hundred := decimal.NewFromInt(100)
	for i := 0; i < n; i++ {
		if smoothTR[i].IsZero() {
			continue
		}
		plusDI := smoothPlusDM[i].Div(smoothTR[i]).Mul(hundred)
		minusDI := smoothMinusDM[i].Div(smoothTR[i]).Mul(hundred)
		lastPlusDI, lastMinusDI = plusDI, minusDI
		denom := plusDI.Add(minusDI)
		if denom.IsZero() {
			dx = append(dx, decimal.Zero)
			continue
		}
		dx = append(dx, plusDI.Sub(minusDI).Abs().Div(denom).Mul(hundred))
	}

	adxSeries := wilderSmooth(dx, period)
	if len(adxSeries) == 0 {
		return types.Unavailable(), types.Avail(lastPlusDI), types.Avail(lastMinusDI)
	}
	return types.Avail(adxSeries[len(adxSeries)-1]), types.Avail(lastPlusDI), types.Avail(lastMinusDI)
}
