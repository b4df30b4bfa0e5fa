// Package exitmanager implements C8, the intelligent exit manager: a
// per-position state machine (INIT -> BE_ARMED -> PARTIAL_TAKEN ->
// TRAILING -> CLOSED) that arms breakeven, takes a partial, and trails
// the stop once all trailing gates pass. Grounded on the teacher's
// RiskManager position-monitoring loop in internal/execution/risk_manager.go,
// generalized from a single stop-loss check to a full state machine.
package exitmanager

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// safetyTick is the small buffer added beyond entry when arming breakeven,
// so the SL sits strictly on the protective side rather than exactly at entry.
var safetyTick = decimal.NewFromFloat(0.0002)

// Broker is the subset of gateway operations the exit manager needs.
type Broker interface {
	ModifyPosition(ctx context.Context, ticket uint64, sl, tp decimal.Decimal) error
	ClosePosition(ctx context.Context, ticket uint64, volume decimal.Decimal) error
}

// Inputs bundles the per-cycle context the exit manager needs beyond the
// ExitRule and Position themselves.
type Inputs struct {
	CurrentPrice decimal.Decimal
	ATR          decimal.Decimal
	VIX          decimal.Decimal
	Regime       types.Regime
	VolRegime    types.VolatilityRegime
	VWAPZone     types.VWAPZone
	EMA200       types.OptionalDecimal
	MTFAlignment int // count of {M5,M15,H1} aligned with the position's direction, 0-3
	LiquidityGravityATRMult decimal.Decimal // distance to nearest high-volume node, in ATR units
	EMA50SlopeUp, EMA200SlopeUp bool
	FakeMomentum bool
}

// Manager owns exit rules for all managed positions and drives their state
// machine each cycle.
type Manager struct {
	logger *zap.Logger
	broker Broker
	rules  map[uint64]*types.ExitRule
}

// NewManager builds a C8 exit manager.
func NewManager(logger *zap.Logger, broker Broker) *Manager {
	return &Manager{logger: logger.Named("exitmanager"), broker: broker, rules: make(map[uint64]*types.ExitRule)}
}

// Track registers a new position under management, seeding its ExitRule
// with the spec's default bands unless one already exists.
func (m *Manager) Track(pos types.Position, now int64) *types.ExitRule {
	if r, ok := m.rules[pos.Ticket]; ok {
		return r
	}
	rule := types.DefaultExitRule(pos, now)
	m.rules[pos.Ticket] = &rule
	return &rule
}

// Rule returns the managed ExitRule for a ticket, if tracked.
func (m *Manager) Rule(ticket uint64) (*types.ExitRule, bool) {
	r, ok := m.rules[ticket]
	return r, ok
}

// Untrack removes a rule once its position has closed on the broker side.
func (m *Manager) Untrack(ticket uint64) { delete(m.rules, ticket) }

// Cycle advances one position's exit rule by one monitoring cycle (~30s
// cadence, driven externally). It applies VIX pre-widening, evaluates
// breakeven/partial/trailing transitions in order, and tags the rule
// degraded on broker failure.
func (m *Manager) Cycle(ctx context.Context, pos types.Position, in Inputs) {
	rule, ok := m.rules[pos.Ticket]
	if !ok {
		return
	}

	r := pos.RMultiple(in.CurrentPrice)

	m.applyVIXPreWiden(ctx, rule, pos, in)
	m.applyAdaptiveTightening(rule, in)

	switch rule.State {
	case types.Init:
		if r.GreaterThanOrEqual(rule.BreakevenPct) {
			m.armBreakeven(ctx, rule, pos)
		}
	case types.BEArmed:
		if r.GreaterThanOrEqual(rule.PartialPct) && pos.Volume.GreaterThanOrEqual(decimal.NewFromFloat(0.02)) {
			m.takePartial(ctx, rule, pos)
		} else if r.GreaterThanOrEqual(rule.PartialPct) {
			rule.PartialSkipped = true
		}
	}

	if rule.State == types.BEArmed || rule.State == types.PartialTaken || rule.State == types.Trailing {
		partialTaken := rule.State == types.PartialTaken || (rule.State == types.Trailing && !rule.PartialSkipped)
		if m.trailingGatesPass(r, partialTaken, in) {
			m.trail(ctx, rule, pos, in)
		}
	}
}

func (m *Manager) armBreakeven(ctx context.Context, rule *types.ExitRule, pos types.Position) {
	var newSL decimal.Decimal
	if pos.Side == types.Buy {
		newSL = pos.EntryPrice.Add(safetyTick)
	} else {
		newSL = pos.EntryPrice.Sub(safetyTick)
	}
	if err := m.broker.ModifyPosition(ctx, pos.Ticket, newSL, pos.TP); err != nil {
		m.fail(rule)
		return
	}
	rule.CurrentSL = newSL
	rule.State = types.BEArmed
	rule.ConsecutiveFailures = 0
}

func (m *Manager) takePartial(ctx context.Context, rule *types.ExitRule, pos types.Position) {
	closeVol := pos.Volume.Mul(rule.PartialCloseFraction)
	if err := m.broker.ClosePosition(ctx, pos.Ticket, closeVol); err != nil {
		m.fail(rule)
		return
	}
	rule.State = types.PartialTaken
	rule.ConsecutiveFailures = 0
}

// trailingGatesPass checks all five gates from §4.8; any failing gate
// pauses trailing for this cycle without reverting prior progress.
func (m *Manager) trailingGatesPass(r decimal.Decimal, partialTaken bool, in Inputs) bool {
	gate1 := partialTaken || r.GreaterThanOrEqual(decimal.NewFromFloat(0.6))
	gate2 := in.VolRegime != types.VolSqueeze
	gate3 := in.MTFAlignment >= 2
	gate4 := in.VWAPZone != types.VWAPZoneOuter && boundedStretch(in.EMA200, in)
	gate5 := in.LiquidityGravityATRMult.GreaterThanOrEqual(decimal.NewFromFloat(0.3))
	return gate1 && gate2 && gate3 && gate4 && gate5
}

func boundedStretch(ema200 types.OptionalDecimal, in Inputs) bool {
	v, ok := ema200.Get()
	if !ok || in.ATR.IsZero() {
		return true
	}
	stretch := in.CurrentPrice.Sub(v).Div(in.ATR).Abs()
	return stretch.LessThanOrEqual(decimal.NewFromFloat(2.0))
}

func (m *Manager) trail(ctx context.Context, rule *types.ExitRule, pos types.Position, in Inputs) {
	if !rule.CanAdvanceTo(types.Trailing) {
		return
	}
	dist := in.ATR.Mul(rule.TrailingDistanceATRMult)
	var newSL decimal.Decimal
	if pos.Side == types.Buy {
		newSL = in.CurrentPrice.Sub(dist)
	} else {
		newSL = in.CurrentPrice.Add(dist)
	}
	if !slImproves(pos.Side, rule.CurrentSL, newSL) {
		return
	}
	if err := m.broker.ModifyPosition(ctx, pos.Ticket, newSL, pos.TP); err != nil {
		m.fail(rule)
		return
	}
	rule.CurrentSL = newSL
	rule.LastTrailingSL = newSL
	if rule.State != types.Trailing {
		rule.State = types.Trailing
	}
	rule.ConsecutiveFailures = 0
}

// slImproves reports whether newSL is strictly on the protective side of
// currentSL, enforcing the monotone-SL invariant.
func slImproves(side types.OrderSide, current, next decimal.Decimal) bool {
	if side == types.Buy {
		return next.GreaterThan(current)
	}
	return next.LessThan(current)
}

// applyVIXPreWiden widens the SL once, before BE is armed, when VIX
// exceeds threshold.
func (m *Manager) applyVIXPreWiden(ctx context.Context, rule *types.ExitRule, pos types.Position, in Inputs) {
	if rule.State != types.Init || rule.VIXPreWidened {
		return
	}
	if in.VIX.LessThanOrEqual(rule.VIXThreshold) {
		return
	}
	widenBy := in.ATR.Mul(decimal.NewFromFloat(0.5))
	var newSL decimal.Decimal
	if pos.Side == types.Buy {
		newSL = pos.SL.Sub(widenBy)
	} else {
		newSL = pos.SL.Add(widenBy)
	}
	if err := m.broker.ModifyPosition(ctx, pos.Ticket, newSL, pos.TP); err != nil {
		m.fail(rule)
		return
	}
	rule.CurrentSL = newSL
	rule.VIXPreWidened = true
	rule.ConsecutiveFailures = 0
}

// applyAdaptiveTightening sets breakeven_pct/partial_pct to 70% of their
// default bands (a 30% cut) when stretch is extreme, vwap_zone is outer, or
// fake momentum is flagged; a quality trend with normal stretch and MTF>=2
// widens trailing distance.
func (m *Manager) applyAdaptiveTightening(rule *types.ExitRule, in Inputs) {
	stretched := !boundedStretch(in.EMA200, in) || in.VWAPZone == types.VWAPZoneOuter || in.FakeMomentum
	if stretched {
		// Scale from the default bands, not the current values, so a
		// condition that persists across cycles does not compound the cut.
		def := types.DefaultExitRule(types.Position{}, 0)
		scale := decimal.NewFromFloat(0.7)
		rule.BreakevenPct = def.BreakevenPct.Mul(scale)
		rule.PartialPct = def.PartialPct.Mul(scale)
		return
	}
	qualityTrend := in.EMA50SlopeUp == in.EMA200SlopeUp && boundedStretch(in.EMA200, in) && in.MTFAlignment >= 2
	if qualityTrend {
		rule.TrailingDistanceATRMult = decimal.NewFromFloat(2.0)
	}
}

// fail tags the rule degraded and counts consecutive failures, logging an
// error once three or more have accumulated. The rule stays in the cycle and
// is retried as before; no quarantine state or structured event is produced.
func (m *Manager) fail(rule *types.ExitRule) {
	rule.ConsecutiveFailures++
	rule.Degraded = true
	if rule.ConsecutiveFailures >= 3 {
		m.logger.Error("exit rule failed three or more consecutive times", zap.Uint64("ticket", rule.Ticket))
	}
}

// Close marks a rule closed on broker-observed position closure; always legal.
func (m *Manager) Close(ticket uint64) {
	if r, ok := m.rules[ticket]; ok {
		r.State = types.Closed
	}
}
