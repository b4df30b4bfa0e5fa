package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// Engine computes C2's Features vector from a candle slice. It is
// stateless: Compute rebuilds every indicator from the given slice each
// call, so determinism follows from the slice alone.
type Engine struct{}

// NewEngine builds an indicator engine. There is no per-instance state.
func NewEngine() *Engine { return &Engine{} }

// Compute implements the C2 contract: compute(symbol, tf, candles[]) -> Features.
func (e *Engine) Compute(symbol string, tf types.Timeframe, candles []types.Candle) types.Features {
	values := closes(candles)

	var f types.Features
	f.EMA20 = ema(values, 20)
	f.EMA50 = ema(values, 50)
	f.EMA200 = ema(values, 200)

	f.RSI14 = rsi(values, 14)

	f.ADX14, f.DIPlus, f.DIMinus = adx(candles, 14)
	f.ATR14, f.ATRBaseline = atr(candles, 14, 50)

	f.MACD, f.MACDSignal, f.MACDHist = macd(values)

	f.BBUpper, f.BBMiddle, f.BBLower, f.BBWidth, f.BBWidthMedian20 = bollinger(values, 20, 2.0)

	today, yesterday := sessionCandles(candles)
	f.VWAPSession, f.VWAPSigma1Upper, f.VWAPSigma1Lower, f.VWAPZone = sessionVWAP(today)
	f.SessionHigh, f.SessionLow = sessionHighLow(today)
	f.PDH, f.PDL = previousDayHighLow(yesterday)

	f.EngulfingBull, f.EngulfingBear, f.Hammer, f.MorningStar, f.EveningStar, f.RejectionWickUp, f.RejectionWickDown =
		candlePatterns(candles)

	f.Structure, f.LastSwingHigh, f.LastSwingLow = structureAndSwings(candles)
	f.VolRegime = classifyVolatility(f)

	return f
}

// classifyVolatility labels squeeze/normal/expanded from the Bollinger
// width-vs-median ratio, feeding C8's "not squeeze" trailing gate.
func classifyVolatility(f types.Features) types.VolatilityRegime {
	width, wOK := f.BBWidth.Get()
	median, mOK := f.BBWidthMedian20.Get()
	if !wOK || !mOK || median.IsZero() {
		return types.VolUnknown
	}
	ratio := width.Div(median)
	switch {
	case ratio.LessThan(decimal.NewFromFloat(0.5)):
		return types.VolSqueeze
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(1.8)):
		return types.VolExpanded
	default:
		return types.VolNormal
	}
}
