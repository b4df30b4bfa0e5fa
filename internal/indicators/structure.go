package indicators

import (
	"github.com/silverline-labs/tradeengine/pkg/types"
)

type swingPoint struct {
	index int
	price types.OptionalDecimal
	high  bool
}

// fractalSwings finds 5-bar fractal swing highs/lows (a candle whose
// high/low is the extreme of itself and its two neighbors on each side)
// over closed candles.
func fractalSwings(closed []types.Candle) []swingPoint {
	var swings []swingPoint
	for i := 2; i < len(closed)-2; i++ {
		c := closed[i]
		isHigh := true
		isLow := true
		for _, j := range []int{i - 2, i - 1, i + 1, i + 2} {
			if !closed[j].High.LessThan(c.High) {
				isHigh = false
			}
			if !closed[j].Low.GreaterThan(c.Low) {
				isLow = false
			}
		}
		if isHigh {
			swings = append(swings, swingPoint{index: i, price: types.Avail(c.High), high: true})
		}
		if isLow {
			swings = append(swings, swingPoint{index: i, price: types.Avail(c.Low), high: false})
		}
	}
	return swings
}

// structureAndSwings classifies BOS/CHoCH from fractal swing detection and
// returns the most recent swing high/low for the loss-cutter's
// CHoCH-against-position check.
func structureAndSwings(candles []types.Candle) (state types.StructureState, lastHigh, lastLow types.OptionalDecimal) {
	closed := onlyComplete(candles)
	swings := fractalSwings(closed)
	lastHigh, lastLow = types.Unavailable(), types.Unavailable()
	for i := len(swings) - 1; i >= 0; i-- {
		if swings[i].high && !lastHigh.Valid {
			lastHigh = swings[i].price
		}
		if !swings[i].high && !lastLow.Valid {
			lastLow = swings[i].price
		}
		if lastHigh.Valid && lastLow.Valid {
			break
		}
	}
	if len(swings) < 4 || len(closed) == 0 {
		return types.StructureNone, lastHigh, lastLow
	}

	highs := filterSwings(swings, true)
	lows := filterSwings(swings, false)
	if len(highs) < 2 || len(lows) < 2 {
		return types.StructureNone, lastHigh, lastLow
	}
	uptrend := highs[len(highs)-1].price.Value.GreaterThan(highs[len(highs)-2].price.Value) &&
		lows[len(lows)-1].price.Value.GreaterThan(lows[len(lows)-2].price.Value)
	downtrend := highs[len(highs)-1].price.Value.LessThan(highs[len(highs)-2].price.Value) &&
		lows[len(lows)-1].price.Value.LessThan(lows[len(lows)-2].price.Value)

	last := closed[len(closed)-1]
	breaksAboveLastHigh := lastHigh.Valid && last.Close.GreaterThan(lastHigh.Value)
	breaksBelowLastLow := lastLow.Valid && last.Close.LessThan(lastLow.Value)

	switch {
	case breaksAboveLastHigh && uptrend:
		return types.StructureBOS, lastHigh, lastLow
	case breaksBelowLastLow && downtrend:
		return types.StructureBOS, lastHigh, lastLow
	case breaksAboveLastHigh && downtrend:
		return types.StructureCHoCH, lastHigh, lastLow
	case breaksBelowLastLow && uptrend:
		return types.StructureCHoCH, lastHigh, lastLow
	default:
		return types.StructureNone, lastHigh, lastLow
	}
}

func filterSwings(swings []swingPoint, high bool) []swingPoint {
	out := make([]swingPoint, 0, len(swings))
	for _, s := range swings {
		if s.high == high {
			out = append(out, s)
		}
	}
	return out
}
