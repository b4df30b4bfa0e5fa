package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

func syntheticCandles(n int, start decimal.Decimal, step decimal.Decimal, baseMS int64) []types.Candle {
	candles := make([]types.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		open := price
		close := price.Add(step)
		hi := close
		lo := open
		if step.IsNegative() {
			hi, lo = open, close
		}
		candles[i] = types.Candle{
			Symbol: "EURUSD", Timeframe: types.M15,
			EpochMSOpen: baseMS + int64(i)*int64(15*time.Minute/time.Millisecond),
			Open:        open, High: hi.Add(decimal.NewFromFloat(0.0005)), Low: lo.Sub(decimal.NewFromFloat(0.0005)),
			Close: close, Volume: decimal.NewFromInt(100), Complete: true,
		}
		price = close
	}
	return candles
}

func TestComputeReturnsUnavailableWithInsufficientData(t *testing.T) {
	eng := NewEngine()
	candles := syntheticCandles(3, decimal.NewFromFloat(1.1000), decimal.NewFromFloat(0.0001), 0)
	f := eng.Compute("EURUSD", types.M15, candles)

	if _, ok := f.EMA200.Get(); ok {
		t.Fatalf("expected EMA200 unavailable with only 3 candles")
	}
	if f.EngulfingBull.Valid && f.EngulfingBull.Present {
		t.Fatalf("did not expect a detected engulfing pattern from a monotonic series")
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	eng := NewEngine()
	candles := syntheticCandles(260, decimal.NewFromFloat(1.1000), decimal.NewFromFloat(0.0002), 0)

	f1 := eng.Compute("EURUSD", types.M15, candles)
	f2 := eng.Compute("EURUSD", types.M15, candles)

	v1, _ := f1.EMA20.Get()
	v2, _ := f2.EMA20.Get()
	if !v1.Equal(v2) {
		t.Fatalf("expected bit-identical EMA20 across repeated Compute calls, got %s vs %s", v1, v2)
	}
	if !f1.ATR14.Value.Equal(f2.ATR14.Value) {
		t.Fatalf("expected bit-identical ATR14 across repeated Compute calls")
	}
}

func TestComputeUptrendProducesRisingEMA(t *testing.T) {
	eng := NewEngine()
	candles := syntheticCandles(260, decimal.NewFromFloat(1.1000), decimal.NewFromFloat(0.0003), 0)
	f := eng.Compute("EURUSD", types.M15, candles)

	ema20, ok20 := f.EMA20.Get()
	ema200, ok200 := f.EMA200.Get()
	if !ok20 || !ok200 {
		t.Fatalf("expected both EMAs available with 260 candles")
	}
	if !ema20.GreaterThan(ema200) {
		t.Fatalf("expected ema20 > ema200 in a steady uptrend, got ema20=%s ema200=%s", ema20, ema200)
	}
}
