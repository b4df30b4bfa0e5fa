package indicators

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
	"github.com/silverline-labs/tradeengine/pkg/utils"
)

// sessionStartMS returns the UTC midnight boundary for the day containing
// epochMS. Sessions (and PDH/PDL, VWAP reset) are anchored to the UTC day.
func sessionStartMS(epochMS int64) int64 {
	t := time.UnixMilli(epochMS).UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start.UnixMilli()
}

// sessionCandles splits candles into "today" (same UTC day as the last
// candle) and "yesterday" for PDH/PDL.
func sessionCandles(candles []types.Candle) (today, yesterday []types.Candle) {
	if len(candles) == 0 {
		return nil, nil
	}
	lastStart := sessionStartMS(candles[len(candles)-1].EpochMSOpen)
	prevStart := lastStart - 24*int64(time.Hour/time.Millisecond)
	for _, c := range candles {
		start := sessionStartMS(c.EpochMSOpen)
		switch start {
		case lastStart:
			today = append(today, c)
		case prevStart:
			yesterday = append(yesterday, c)
		}
	}
	return today, yesterday
}

// sessionHighLow returns the high/low of today's session candles.
func sessionHighLow(today []types.Candle) (hi, lo types.OptionalDecimal) {
	if len(today) == 0 {
		return types.Unavailable(), types.Unavailable()
	}
	h, l := today[0].High, today[0].Low
	for _, c := range today[1:] {
		if c.High.GreaterThan(h) {
			h = c.High
		}
		if c.Low.LessThan(l) {
			l = c.Low
		}
	}
	return types.Avail(h), types.Avail(l)
}

// previousDayHighLow returns PDH/PDL from yesterday's session candles.
func previousDayHighLow(yesterday []types.Candle) (pdh, pdl types.OptionalDecimal) {
	if len(yesterday) == 0 {
		return types.Unavailable(), types.Unavailable()
	}
	h, l := yesterday[0].High, yesterday[0].Low
	for _, c := range yesterday[1:] {
		if c.High.GreaterThan(h) {
			h = c.High
		}
		if c.Low.LessThan(l) {
			l = c.Low
		}
	}
	return types.Avail(h), types.Avail(l)
}

// sessionVWAP computes the session-anchored volume-weighted average price
// and 1-sigma bands from today's candles, plus a zone classification for
// the last close relative to those bands.
func sessionVWAP(today []types.Candle) (vwap, upper, lower types.OptionalDecimal, zone types.VWAPZone) {
	if len(today) == 0 {
		return types.Unavailable(), types.Unavailable(), types.Unavailable(), types.VWAPZoneUnknown
	}
	cumPV := decimal.Zero
	cumVol := decimal.Zero
	typicalPrices := make([]decimal.Decimal, 0, len(today))
	for _, c := range today {
		typical := c.High.Add(c.Low).Add(c.Close).Div(decimal.NewFromInt(3))
		typicalPrices = append(typicalPrices, typical)
		vol := c.Volume
		cumPV = cumPV.Add(typical.Mul(vol))
		cumVol = cumVol.Add(vol)
	}
	if cumVol.IsZero() {
		return types.Unavailable(), types.Unavailable(), types.Unavailable(), types.VWAPZoneUnknown
	}
	v := cumPV.Div(cumVol)
	std := utils.CalculateStdDev(typicalPrices)
	u := v.Add(std)
	l := v.Sub(std)

	last := today[len(today)-1].Close
	dist := last.Sub(v).Abs()
	var z types.VWAPZone
	switch {
	case std.IsZero():
		z = types.VWAPZoneInner
	case dist.LessThanOrEqual(std):
		z = types.VWAPZoneInner
	case dist.LessThanOrEqual(std.Mul(decimal.NewFromInt(2))):
		z = types.VWAPZoneMid
	default:
		z = types.VWAPZoneOuter
	}
	return types.Avail(v), types.Avail(u), types.Avail(l), z
}
