package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
	"github.com/silverline-labs/tradeengine/pkg/utils"
)

// macd computes MACD(12,26,9): the MACD line, its signal line, and histogram.
func macd(values []decimal.Decimal) (line, signal, hist types.OptionalDecimal) {
	if len(values) < 26+9 {
		return types.Unavailable(), types.Unavailable(), types.Unavailable()
	}
	fast := emaSeries(values, 12)
	slow := emaSeries(values, 26)
	macdSeries := make([]decimal.Decimal, len(values))
	for i := range values {
		macdSeries[i] = fast[i].Sub(slow[i])
	}
	signalSeries := emaSeries(macdSeries, 9)

	lastMACD := macdSeries[len(macdSeries)-1]
	lastSignal := signalSeries[len(signalSeries)-1]
	return types.Avail(lastMACD), types.Avail(lastSignal), types.Avail(lastMACD.Sub(lastSignal))
}

// bollinger computes Bollinger(20,2): upper/middle/lower bands, width, and
// the median width over the trailing 20 width readings (used by C4's
// VOLATILE/RANGE width-ratio tests).
func bollinger(values []decimal.Decimal, period int, stdDevMult float64) (upper, middle, lower, width, medianWidth types.OptionalDecimal) {
	if len(values) < period {
		return types.Unavailable(), types.Unavailable(), types.Unavailable(), types.Unavailable(), types.Unavailable()
	}

	widths := make([]decimal.Decimal, 0, len(values)-period+1)
	mult := decimal.NewFromFloat(stdDevMult)
	var lastUpper, lastMiddle, lastLower, lastWidth decimal.Decimal
	for end := period; end <= len(values); end++ {
		window := values[end-period : end]
		mean := utils.CalculateMean(window)
		std := utils.CalculateStdDev(window)
		u := mean.Add(std.Mul(mult))
		l := mean.Sub(std.Mul(mult))
		w := decimal.Zero
		if !mean.IsZero() {
			w = u.Sub(l).Div(mean)
		}
		widths = append(widths, w)
		lastUpper, lastMiddle, lastLower, lastWidth = u, mean, l, w
	}

	med := medianOf(widths)
	if len(widths) < period {
		return types.Avail(lastUpper), types.Avail(lastMiddle), types.Avail(lastLower), types.Avail(lastWidth), types.Unavailable()
	}
	return types.Avail(lastUpper), types.Avail(lastMiddle), types.Avail(lastLower), types.Avail(lastWidth), types.Avail(med)
}

func medianOf(values []decimal.Decimal) decimal.Decimal {
	n := len(values)
	if n == 0 {
		return decimal.Zero
	}
	window := values
	if n > 20 {
		window = values[n-20:]
	}
	sorted := append([]decimal.Decimal(nil), window...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].GreaterThan(sorted[j]); j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
	}
	return sorted[mid]
}
