// Package validator implements C6, the trade validator: layered
// schema/geometry/cost/RR/session checks over a candidate TradeSpec,
// grounded on the teacher's ordered CheckOrder violation-checking pattern
// in internal/execution/risk_manager.go.
package validator

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/internal/router"
	"github.com/silverline-labs/tradeengine/pkg/types"
)

// MarketContext carries the inputs the validator needs beyond the
// TradeSpec itself: live ATR(H1), current spread, a slippage estimate, and
// the session/news state.
type MarketContext struct {
	ATRH1            decimal.Decimal
	Spread           decimal.Decimal
	SlippageEstimate decimal.Decimal
	Session          types.Session
	NewsBlackout     bool
	VolumeConfirmed  bool // for session-specific extras (Asia breakout)
}

// Validator is the C6 trade validator.
type Validator struct {
	logger *zap.Logger
}

// NewValidator builds a trade validator.
func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger.Named("validator")}
}

const geometryFloorMult = 0.4

// Validate runs the layered checks in order, attempting at most one
// auto-repair, and returns a Decision carrying validation_score on success.
func (v *Validator) Validate(spec types.TradeSpec, tmpl router.Template, mkt MarketContext, regime types.Regime) types.Decision {
	spec, repaired := v.autoRepair(spec, mkt)

	if reason, ok := checkSchema(spec); !ok {
		return skip(tmpl, mkt, regime, reason)
	}
	if reason, ok := checkGeometry(spec, mkt); !ok {
		if repaired || reason != "geometry_invalid(sl_too_tight)" {
			return skip(tmpl, mkt, regime, reason)
		}
		widened, ok2 := widenGeometry(spec, mkt)
		if !ok2 {
			return skip(tmpl, mkt, regime, reason)
		}
		spec = widened
		if reason, ok := checkGeometry(spec, mkt); !ok {
			return skip(tmpl, mkt, regime, reason)
		}
	}
	if reason, ok := checkCostGating(spec, mkt); !ok {
		return skip(tmpl, mkt, regime, reason)
	}
	if reason, ok := checkRRBounds(spec, tmpl); !ok {
		return skip(tmpl, mkt, regime, reason)
	}
	if reason, ok := checkSessionNews(spec, mkt); !ok {
		return skip(tmpl, mkt, regime, reason)
	}

	score := validationScore(spec, mkt)
	return types.Decision{
		Status:          types.Emitted,
		TradeSpec:       &spec,
		Template:        tmpl.FullName(),
		SessionTag:      mkt.Session,
		Regime:          regime,
		DecisionTags:    []string{"session=" + string(mkt.Session), "template=" + tmpl.FullName(), "regime=" + string(regime)},
		ValidationScore: score,
	}
}

func skip(tmpl router.Template, mkt MarketContext, regime types.Regime, reason string) types.Decision {
	return types.Decision{
		Status:       types.Skipped,
		SkipReasons:  []string{reason},
		Template:     tmpl.FullName(),
		SessionTag:   mkt.Session,
		Regime:       regime,
		DecisionTags: []string{"session=" + string(mkt.Session), "template=" + tmpl.FullName(), "regime=" + string(regime)},
	}
}

// autoRepair applies the one permitted repair: a missing confidence
// defaults to a neutral median. (Invalid RR caused by a too-tight SL is
// repaired in the geometry-check widening path instead, since it requires
// re-validating geometry, not just the spec.)
func (v *Validator) autoRepair(spec types.TradeSpec, mkt MarketContext) (types.TradeSpec, bool) {
	if _, ok := spec.Confidence.Get(); !ok {
		spec.Confidence = types.Avail(decimal.NewFromFloat(0.5))
		return spec, true
	}
	return spec, false
}

func checkSchema(spec types.TradeSpec) (string, bool) {
	if spec.Symbol == "" {
		return "schema_invalid(symbol)", false
	}
	if spec.Side != types.Buy && spec.Side != types.Sell {
		return "schema_invalid(side)", false
	}
	if spec.OrderType != types.OrderMarket && spec.OrderType != types.OrderLimit && spec.OrderType != types.OrderStop {
		return "schema_invalid(order_type)", false
	}
	if spec.Volume.LessThanOrEqual(decimal.Zero) {
		return "schema_invalid(volume)", false
	}
	return "", true
}

func checkGeometry(spec types.TradeSpec, mkt MarketContext) (string, bool) {
	if !spec.GeometryValid() {
		return "geometry_invalid(sl_wrong_side)", false
	}
	floor := mkt.ATRH1.Mul(decimal.NewFromFloat(geometryFloorMult))
	if spec.Entry.Sub(spec.SL).Abs().LessThan(floor) {
		return "geometry_invalid(sl_too_tight)", false
	}
	return "", true
}

// widenGeometry is the one auto-repair attempt for a too-tight SL: widen to
// 0.4*ATR and re-validate once.
func widenGeometry(spec types.TradeSpec, mkt MarketContext) (types.TradeSpec, bool) {
	floor := mkt.ATRH1.Mul(decimal.NewFromFloat(geometryFloorMult))
	if floor.IsZero() {
		return spec, false
	}
	if spec.Side == types.Buy {
		spec.SL = spec.Entry.Sub(floor)
	} else {
		spec.SL = spec.Entry.Add(floor)
	}
	spec.RR = spec.ComputeRR()
	return spec, true
}

func checkCostGating(spec types.TradeSpec, mkt MarketContext) (string, bool) {
	reward := spec.TP.Sub(spec.Entry).Abs()
	if reward.IsZero() {
		return "cost_gate_failed", false
	}
	ratio := mkt.Spread.Add(mkt.SlippageEstimate).Div(reward)
	if ratio.GreaterThan(decimal.NewFromFloat(0.20)) {
		return "cost_gate_failed", false
	}
	return "", true
}

func checkRRBounds(spec types.TradeSpec, tmpl router.Template) (string, bool) {
	rr := spec.ComputeRR()
	if rr.LessThan(tmpl.RRMin) || rr.GreaterThan(tmpl.RRMax) {
		return "rr_out_of_bounds", false
	}
	return "", true
}

func checkSessionNews(spec types.TradeSpec, mkt MarketContext) (string, bool) {
	if mkt.NewsBlackout {
		return "news_block", false
	}
	if mkt.Session == types.SessionAsia && !mkt.VolumeConfirmed {
		return "asia_volume_unconfirmed", false
	}
	return "", true
}

// baseValidationScore is the neutral starting point for a geometrically
// sound spec before the §4.6 deltas are applied: a spec that clears every
// hard check but earns none of the quality bonuses still lands mid-range
// rather than near zero.
const baseValidationScore = 60

// validationScore assigns the §4.6 scoring formula: a base score adjusted
// by +2/-2/+2/-5 deltas, clamped to the spec's [0,100] range.
func validationScore(spec types.TradeSpec, mkt MarketContext) int {
	score := baseValidationScore
	slDist := spec.Entry.Sub(spec.SL).Abs()
	if !mkt.ATRH1.IsZero() {
		ratio := slDist.Div(mkt.ATRH1)
		if ratio.GreaterThanOrEqual(decimal.NewFromFloat(0.5)) {
			score += 2
		} else if ratio.GreaterThanOrEqual(decimal.NewFromFloat(0.4)) {
			score -= 2
		}
	}
	reward := spec.TP.Sub(spec.Entry).Abs()
	if !reward.IsZero() {
		costRatio := mkt.Spread.Add(mkt.SlippageEstimate).Div(reward)
		if costRatio.LessThan(decimal.NewFromFloat(0.10)) {
			score += 2
		}
	}
	rr := spec.ComputeRR()
	if rr.GreaterThan(decimal.NewFromInt(5)) {
		score -= 5
	}
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
