// Package losscutter implements C9, the profit protector / loss cutter: a
// seven-signal weighted scorer independent of C8 that produces MONITOR,
// TIGHTEN, or EXIT decisions, plus an early-exit gate for losing
// positions. Grounded on the teacher's RSIDivergenceStrategy divergence
// check (internal/strategy/strategy.go) for the momentum-divergence signal
// and the RiskManager ordered-violation pattern for the scorer shape.
package losscutter

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// Action is the decision C9 produces each cycle.
type Action string

const (
	Monitor Action = "MONITOR"
	Tighten Action = "TIGHTEN"
	Exit    Action = "EXIT"
)

// Decision is the C9 output: an Action, the signals that fired (for EXIT's
// reason list), the aggregate score, and (for TIGHTEN) the candidate SL.
type Decision struct {
	Action      Action
	Score       int
	FiredSignals []string
	NewSL        decimal.Decimal
	Reason       string
}

// signalWeights mirrors the §4.9 table exactly.
const (
	weightCHoCH              = 3
	weightOppositeEngulfing  = 3
	weightLiquidityRejection = 2
	weightMomentumDivergence = 2
	weightDynamicSRBreak     = 2
	weightMomentumLoss       = 1
	weightSessionShift       = 1
	weightWhaleOpposing      = 1

	exitThreshold    = 5
	tightenThreshold = 2
)

// Inputs bundles everything the scorer needs for one position's cycle.
type Inputs struct {
	Position     types.Position
	CurrentPrice decimal.Decimal
	CurrentSL    decimal.Decimal
	Spread       decimal.Decimal
	ATR          decimal.Decimal
	PriorATR     decimal.Decimal // for the >15% ATR-drop momentum-loss test
	ADX          types.OptionalDecimal
	RSI          types.OptionalDecimal
	PriorRSI     types.OptionalDecimal
	MACDHist     types.OptionalDecimal
	PriorMACDHist types.OptionalDecimal
	EMA20        types.OptionalDecimal
	EMA50        types.OptionalDecimal
	LastSwingHigh types.OptionalDecimal
	LastSwingLow  types.OptionalDecimal
	Candles       []types.Candle // recent closed candles, oldest first, for engulfing/wick checks
	AdvisoryPoor  bool
	WhaleOpposing bool
	SessionTime   time.Time // for the Friday PM / London close window check
	EarlyExitR            decimal.Decimal
	RiskScoreThreshold     decimal.Decimal
	SpreadATRCapRatio      decimal.Decimal
}

// Scorer is the C9 profit protector / loss cutter.
type Scorer struct {
	logger *zap.Logger
}

// NewScorer builds a C9 scorer.
func NewScorer(logger *zap.Logger) *Scorer {
	return &Scorer{logger: logger.Named("losscutter")}
}

// Evaluate scores the seven (plus whale) signals and returns a decision.
func (s *Scorer) Evaluate(in Inputs) Decision {
	score := 0
	var fired []string

	if chochAgainstPosition(in) {
		score += weightCHoCH
		fired = append(fired, "choch_against_position")
	}
	if oppositeEngulfing(in) {
		score += weightOppositeEngulfing
		fired = append(fired, "opposite_engulfing")
	}
	if liquidityRejection(in) {
		score += weightLiquidityRejection
		fired = append(fired, "liquidity_rejection")
	}
	if momentumDivergence(in) {
		score += weightMomentumDivergence
		fired = append(fired, "momentum_divergence")
	}
	if dynamicSRBreak(in) {
		score += weightDynamicSRBreak
		fired = append(fired, "dynamic_sr_break")
	}
	if momentumLoss(in) {
		score += weightMomentumLoss
		fired = append(fired, "momentum_loss")
	}
	if sessionShift(in.SessionTime) {
		score += weightSessionShift
		fired = append(fired, "session_shift")
	}
	if in.WhaleOpposing {
		score += weightWhaleOpposing
		fired = append(fired, "whale_opposing")
	}

	r := rMultipleVsRisk(in)

	if r.LessThan(decimal.Zero) {
		// risk_score_threshold is a fraction of the normal exit bar: a deep
		// loss (R <= early_exit_r) overrides MONITOR/TIGHTEN once the score
		// clears risk_score_threshold * exitThreshold, a lower bar than the
		// full exitThreshold used above.
		cutoff := in.RiskScoreThreshold.Mul(decimal.NewFromInt(exitThreshold))
		if r.LessThanOrEqual(in.EarlyExitR) && decimal.NewFromInt(int64(score)).GreaterThanOrEqual(cutoff) {
			if in.ATR.IsZero() || in.Spread.Div(in.ATR).LessThanOrEqual(in.SpreadATRCapRatio) {
				return Decision{Action: Exit, Score: score, FiredSignals: fired, Reason: "early_exit_losing_position"}
			}
			return Decision{Action: Monitor, Score: score, FiredSignals: fired, Reason: "early_exit_blocked_by_spread"}
		}
	}

	switch {
	case score >= exitThreshold:
		return Decision{Action: Exit, Score: score, FiredSignals: fired, Reason: "score_threshold"}
	case score >= tightenThreshold:
		newSL, ok := structureBasedSL(in)
		if !ok || !slImproves(in.Position.Side, in.CurrentSL, newSL) {
			return Decision{Action: Monitor, Score: score, FiredSignals: fired, Reason: "tighten_not_improving"}
		}
		return Decision{Action: Tighten, Score: score, FiredSignals: fired, NewSL: newSL, Reason: "structure_based_tighten"}
	default:
		return Decision{Action: Monitor, Score: score, FiredSignals: fired}
	}
}

// rMultipleVsRisk computes R as unrealized profit over initial risk
// (|entry-sl|), the loss-cutter's definition, distinct from C8's
// TP-relative R.
func rMultipleVsRisk(in Inputs) decimal.Decimal {
	risk := in.Position.InitialRisk()
	if risk.IsZero() {
		return decimal.Zero
	}
	var moved decimal.Decimal
	if in.Position.Side == types.Buy {
		moved = in.CurrentPrice.Sub(in.Position.EntryPrice)
	} else {
		moved = in.Position.EntryPrice.Sub(in.CurrentPrice)
	}
	return moved.Div(risk)
}

func chochAgainstPosition(in Inputs) bool {
	if len(in.Candles) == 0 {
		return false
	}
	last := in.Candles[len(in.Candles)-1]
	if in.Position.Side == types.Buy {
		v, ok := in.LastSwingLow.Get()
		return ok && last.Close.LessThan(v)
	}
	v, ok := in.LastSwingHigh.Get()
	return ok && last.Close.GreaterThan(v)
}

func oppositeEngulfing(in Inputs) bool {
	if len(in.Candles) < 2 {
		return false
	}
	prior := in.Candles[len(in.Candles)-2]
	last := in.Candles[len(in.Candles)-1]
	priorBody := prior.Close.Sub(prior.Open).Abs()
	lastBody := last.Close.Sub(last.Open).Abs()
	if priorBody.IsZero() || !lastBody.GreaterThan(priorBody.Mul(decimal.NewFromFloat(1.5))) {
		return false
	}
	lastBullish := last.Close.GreaterThan(last.Open)
	if in.Position.Side == types.Buy {
		return !lastBullish
	}
	return lastBullish
}

func liquidityRejection(in Inputs) bool {
	if len(in.Candles) == 0 {
		return false
	}
	last := in.Candles[len(in.Candles)-1]
	body := last.Close.Sub(last.Open).Abs()
	if body.IsZero() {
		return false
	}
	upperWick := last.High.Sub(decimal.Max(last.Close, last.Open))
	lowerWick := decimal.Min(last.Close, last.Open).Sub(last.Low)
	threshold := body.Mul(decimal.NewFromFloat(2.0))
	if in.Position.Side == types.Buy {
		return upperWick.GreaterThan(threshold)
	}
	return lowerWick.GreaterThan(threshold)
}

func momentumDivergence(in Inputs) bool {
	rsi, rsiOK := in.RSI.Get()
	if rsiOK {
		if rsi.GreaterThan(decimal.NewFromInt(70)) && in.Position.Side == types.Buy {
			return true
		}
		if rsi.LessThan(decimal.NewFromInt(30)) && in.Position.Side == types.Sell {
			return true
		}
	}
	priorRSI, priorOK := in.PriorRSI.Get()
	macd, macdOK := in.MACDHist.Get()
	priorMACD, priorMACDOK := in.PriorMACDHist.Get()
	if !(rsiOK && priorOK && macdOK && priorMACDOK) {
		return false
	}
	priceUp := len(in.Candles) >= 2 && in.Candles[len(in.Candles)-1].Close.GreaterThan(in.Candles[len(in.Candles)-2].Close)
	if in.Position.Side == types.Buy {
		return priceUp && rsi.LessThan(priorRSI) && macd.LessThan(priorMACD)
	}
	priceDown := len(in.Candles) >= 2 && in.Candles[len(in.Candles)-1].Close.LessThan(in.Candles[len(in.Candles)-2].Close)
	return priceDown && rsi.GreaterThan(priorRSI) && macd.GreaterThan(priorMACD)
}

func dynamicSRBreak(in Inputs) bool {
	ema20, ok20 := in.EMA20.Get()
	ema50, ok50 := in.EMA50.Get()
	if !ok20 && !ok50 {
		return false
	}
	if in.Position.Side == types.Buy {
		return (ok20 && in.CurrentPrice.LessThan(ema20)) || (ok50 && in.CurrentPrice.LessThan(ema50))
	}
	return (ok20 && in.CurrentPrice.GreaterThan(ema20)) || (ok50 && in.CurrentPrice.GreaterThan(ema50))
}

func momentumLoss(in Inputs) bool {
	if in.AdvisoryPoor {
		return true
	}
	if adx, ok := in.ADX.Get(); ok && adx.LessThan(decimal.NewFromInt(20)) {
		return true
	}
	if in.PriorATR.IsZero() {
		return false
	}
	drop := in.PriorATR.Sub(in.ATR).Div(in.PriorATR)
	return drop.GreaterThan(decimal.NewFromFloat(0.15))
}

func sessionShift(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	u := t.UTC()
	if u.Weekday() == time.Friday && u.Hour() >= 17 {
		return true
	}
	// London close window, approx 15:30-16:30 UTC.
	if u.Hour() == 15 && u.Minute() >= 30 {
		return true
	}
	if u.Hour() == 16 && u.Minute() <= 30 {
		return true
	}
	return false
}

// structureBasedSL computes the TIGHTEN target: the last detected swing
// low (BUY) or swing high (SELL) -/+ 0.5*ATR buffer, falling back to
// entry -/+ buffer. The swing level is used whatever its age; it is not
// limited to the last 5 bars.
func structureBasedSL(in Inputs) (decimal.Decimal, bool) {
	buffer := in.ATR.Mul(decimal.NewFromFloat(0.5))
	if in.Position.Side == types.Buy {
		if v, ok := in.LastSwingLow.Get(); ok {
			return v.Sub(buffer), true
		}
		return in.Position.EntryPrice.Sub(buffer), true
	}
	if v, ok := in.LastSwingHigh.Get(); ok {
		return v.Add(buffer), true
	}
	return in.Position.EntryPrice.Add(buffer), true
}

func slImproves(side types.OrderSide, current, next decimal.Decimal) bool {
	if side == types.Buy {
		return next.GreaterThan(current)
	}
	return next.LessThan(current)
}
