// Package regime implements C4, the regime classifier: a deterministic,
// rule-based classifier (TREND/VOLATILE/RANGE/UNKNOWN) over a symbol's
// current M5/M15/M30/H1 snapshot, with a persistence filter requiring 3
// consecutive classifications to confirm a regime change and 5
// classifications of inertia before the next change.
package regime

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// Result is C4's output: {regime, confidence}.
type Result struct {
	Regime     types.Regime
	Confidence decimal.Decimal
}

// state tracks the persistence filter's per-symbol bookkeeping.
type state struct {
	current          types.Regime
	pendingRegime    types.Regime
	pendingStreak    int
	sinceLastChange  int
}

// Classifier is the C4 regime classifier. Hold per symbol, owned by that
// symbol's decision task (§5 ownership policy).
type Classifier struct {
	logger *zap.Logger
	states map[string]*state
}

// NewClassifier builds a regime classifier.
func NewClassifier(logger *zap.Logger) *Classifier {
	return &Classifier{logger: logger.Named("regime"), states: make(map[string]*state)}
}

const (
	confirmStreak = 3
	inertiaFloor  = 5
)

// Classify applies the §4.4 rules (first match wins) to snap, then runs the
// persistence filter before returning the held/confirmed regime.
func (c *Classifier) Classify(symbol string, snap types.Snapshot) Result {
	raw, confidence := rawClassify(snap)

	st, ok := c.states[symbol]
	if !ok {
		// A fresh state has had no change yet, so the inertia floor is met.
		st = &state{current: types.RegimeUnknown, sinceLastChange: inertiaFloor}
		c.states[symbol] = st
	}
	st.sinceLastChange++

	if raw == st.current {
		st.pendingRegime = raw
		st.pendingStreak = 0
		return Result{Regime: st.current, Confidence: confidence}
	}

	if raw == st.pendingRegime {
		st.pendingStreak++
	} else {
		st.pendingRegime = raw
		st.pendingStreak = 1
	}

	if st.pendingStreak >= confirmStreak && st.sinceLastChange >= inertiaFloor {
		st.current = raw
		st.sinceLastChange = 0
		st.pendingStreak = 0
	}

	return Result{Regime: st.current, Confidence: confidence}
}

// rawClassify evaluates the §4.4 rules in order against a single snapshot,
// with no persistence filtering.
func rawClassify(snap types.Snapshot) (types.Regime, decimal.Decimal) {
	m5 := snap.View(types.M5)
	m15 := snap.View(types.M15)
	h1 := snap.View(types.H1)
	m30 := snap.View(types.M30)

	if trend, conf, ok := trendRule(m15, m30, h1); ok {
		return trend, conf
	}
	if vol, conf, ok := volatileRule(m5); ok {
		return vol, conf
	}
	if rng, conf, ok := rangeRule(m15, m5); ok {
		return rng, conf
	}
	return types.RegimeUnknown, decimal.Zero
}

func emaAligned(v types.TimeframeView) (long, short bool) {
	e20, ok20 := v.Features.EMA20.Get()
	e50, ok50 := v.Features.EMA50.Get()
	e200, ok200 := v.Features.EMA200.Get()
	if !ok20 || !ok50 || !ok200 {
		return false, false
	}
	long = e20.GreaterThan(e50) && e50.GreaterThan(e200)
	short = e20.LessThan(e50) && e50.LessThan(e200)
	return
}

func trendRule(m15, m30, h1 types.TimeframeView) (types.Regime, decimal.Decimal, bool) {
	adxM15, okM15 := m15.Features.ADX14.Get()
	adxH1, okH1 := h1.Features.ADX14.Get()
	threshold := decimal.NewFromInt(25)
	adxPass := (okM15 && adxM15.GreaterThan(threshold)) || (okH1 && adxH1.GreaterThan(threshold))
	if !adxPass {
		return types.RegimeUnknown, decimal.Zero, false
	}

	longM15, shortM15 := emaAligned(m15)
	longH1, shortH1 := emaAligned(h1)
	longM30, shortM30 := emaAligned(m30)

	longVotes := boolToInt(longM15) + boolToInt(longH1) + boolToInt(longM30)
	shortVotes := boolToInt(shortM15) + boolToInt(shortH1) + boolToInt(shortM30)

	if longVotes >= 2 || shortVotes >= 2 {
		confidence := decimal.NewFromFloat(0.5).Add(decimal.NewFromFloat(0.1).Mul(decimal.NewFromInt(int64(maxInt(longVotes, shortVotes)))))
		if confidence.GreaterThan(decimal.NewFromInt(1)) {
			confidence = decimal.NewFromInt(1)
		}
		return types.RegimeTrend, confidence, true
	}
	return types.RegimeUnknown, decimal.Zero, false
}

func volatileRule(m5 types.TimeframeView) (types.Regime, decimal.Decimal, bool) {
	atr, okATR := m5.Features.ATR14.Get()
	baseline, okBaseline := m5.Features.ATRBaseline.Get()
	atrRatioPass := false
	if okATR && okBaseline && !baseline.IsZero() {
		ratio := atr.Div(baseline)
		atrRatioPass = ratio.GreaterThanOrEqual(decimal.NewFromFloat(1.4))
	}

	width, okWidth := m5.Features.BBWidth.Get()
	median, okMedian := m5.Features.BBWidthMedian20.Get()
	widthPass := false
	if okWidth && okMedian && !median.IsZero() {
		widthPass = width.GreaterThanOrEqual(median.Mul(decimal.NewFromFloat(1.8)))
	}

	if atrRatioPass || widthPass {
		confidence := decimal.Zero
		if atrRatioPass {
			confidence = confidence.Add(decimal.NewFromFloat(0.6))
		}
		if widthPass {
			confidence = confidence.Add(decimal.NewFromFloat(0.4))
		}
		return types.RegimeVolatile, confidence, true
	}
	return types.RegimeUnknown, decimal.Zero, false
}

func rangeRule(m15, m5 types.TimeframeView) (types.Regime, decimal.Decimal, bool) {
	adx, okADX := m15.Features.ADX14.Get()
	if !okADX || !adx.LessThan(decimal.NewFromInt(20)) {
		return types.RegimeUnknown, decimal.Zero, false
	}

	width, okWidth := m5.Features.BBWidth.Get()
	median, okMedian := m5.Features.BBWidthMedian20.Get()
	if !okWidth || !okMedian || median.IsZero() || !width.LessThan(median.Mul(decimal.NewFromFloat(0.5))) {
		return types.RegimeUnknown, decimal.Zero, false
	}

	sessionHigh, okHigh := m15.Features.SessionHigh.Get()
	sessionLow, okLow := m15.Features.SessionLow.Get()
	if !okHigh || !okLow || len(m15.Candles) == 0 {
		return types.RegimeUnknown, decimal.Zero, false
	}
	lastClose := m15.Candles[len(m15.Candles)-1].Close
	inRange := lastClose.GreaterThanOrEqual(sessionLow) && lastClose.LessThanOrEqual(sessionHigh)
	if !inRange {
		return types.RegimeUnknown, decimal.Zero, false
	}

	confidence := decimal.NewFromFloat(0.4).Add(decimal.NewFromFloat(0.3)).Add(decimal.NewFromFloat(0.3))
	return types.RegimeRange, confidence, true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
