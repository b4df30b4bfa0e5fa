// Package planner implements C11, the auto-execution planner: a Plan is a
// conditional trade with a list of Conditions (tagged sum type, all must
// hold) evaluated every 30s against the latest snapshot; once triggered the
// planner issues the order through the gateway. Grounded on the teacher's
// StrategyRegistry-style exhaustive dispatch and RiskManager's layered
// check evaluation, applied here to a switch over types.Condition variants
// instead of an untyped rule dict (§9).
package planner

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// evalTimeframe is the timeframe every condition is evaluated against; M15
// mirrors C4's primary classification driver.
const evalTimeframe = types.M15

// Gateway is the subset of C7 the planner needs to submit a triggered plan.
type Gateway interface {
	PlaceOrder(ctx context.Context, spec types.TradeSpec, comment string) (types.PlaceOrderResult, error)
}

// Store persists Plan records (§6.4) on every state change and reloads them
// at startup.
type Store interface {
	SavePlan(types.Plan) error
	LoadPlans() ([]types.Plan, error)
}

// EvalContext carries the external state conditions need beyond the snapshot.
type EvalContext struct {
	NowEpochMS int64
	Session    types.Session
	NewsClear  bool
}

// Planner is the C11 auto-execution planner.
type Planner struct {
	logger  *zap.Logger
	gateway Gateway
	store   Store
	plans   map[string]*types.Plan
}

// NewPlanner builds a C11 planner, reloading any persisted plans.
func NewPlanner(logger *zap.Logger, gateway Gateway, store Store) (*Planner, error) {
	p := &Planner{logger: logger.Named("planner"), gateway: gateway, store: store, plans: make(map[string]*types.Plan)}
	loaded, err := store.LoadPlans()
	if err != nil {
		return nil, err
	}
	for i := range loaded {
		pl := loaded[i]
		p.plans[pl.PlanID] = &pl
	}
	return p, nil
}

// Add registers a new PENDING plan and persists it.
func (p *Planner) Add(plan types.Plan) error {
	plan.State = types.PlanPending
	p.plans[plan.PlanID] = &plan
	return p.store.SavePlan(plan)
}

// Evaluate runs one 30s cycle over every PENDING plan for the given symbol
// against its latest snapshot.
func (p *Planner) Evaluate(ctx context.Context, snap types.Snapshot, evalCtx EvalContext) {
	for _, plan := range p.plans {
		if plan.Symbol != snap.Symbol || plan.State != types.PlanPending {
			continue
		}
		p.evaluateOne(ctx, plan, snap, evalCtx)
	}
}

func (p *Planner) evaluateOne(ctx context.Context, plan *types.Plan, snap types.Snapshot, evalCtx EvalContext) {
	if evalCtx.NowEpochMS >= plan.ExpiresAt && plan.ExpiresAt > 0 {
		plan.State = types.PlanExpired
		p.persist(*plan)
		return
	}

	if !allConditionsHold(plan.Conditions, snap, evalCtx) {
		return
	}

	plan.State = types.PlanTriggered
	p.persist(*plan)

	spec := types.TradeSpec{
		Symbol: plan.Symbol, Side: plan.Direction, OrderType: types.OrderMarket,
		Entry: plan.Entry, SL: plan.SL, TP: plan.TP, Volume: plan.Volume,
	}
	res, err := p.gateway.PlaceOrder(ctx, spec, "plan_"+plan.PlanID)
	if err != nil || res.Retcode == types.RetTransient {
		// Transient failure: stay PENDING, retried on the next 30s cycle.
		plan.State = types.PlanPending
		p.persist(*plan)
		return
	}
	if res.Retcode != types.RetOK {
		plan.State = types.PlanPending
		p.persist(*plan)
		return
	}
	plan.State = types.PlanExecuted
	p.persist(*plan)
}

func (p *Planner) persist(plan types.Plan) {
	if err := p.store.SavePlan(plan); err != nil {
		p.logger.Warn("plan persist failed", zap.String("plan_id", plan.PlanID), zap.Error(err))
	}
}

// allConditionsHold evaluates every Condition in order; ALL must hold.
func allConditionsHold(conditions []types.Condition, snap types.Snapshot, evalCtx EvalContext) bool {
	for _, c := range conditions {
		if !conditionHolds(c, snap, evalCtx) {
			return false
		}
	}
	return true
}

func conditionHolds(c types.Condition, snap types.Snapshot, evalCtx EvalContext) bool {
	view := snap.View(evalTimeframe)
	switch cond := c.(type) {
	case types.PriceAbove:
		price, ok := currentPrice(view)
		return ok && price.GreaterThan(cond.Level)
	case types.PriceBelow:
		price, ok := currentPrice(view)
		return ok && price.LessThan(cond.Level)
	case types.ChochDetected:
		return view.Features.Structure == types.StructureCHoCH && chochDirectionMatches(cond.Direction, view)
	case types.RejectionWick:
		return rejectionWickMatches(cond.Direction, view.Features)
	case types.SessionIn:
		return evalCtx.Session == cond.SessionTag
	case types.MinVolatility:
		ratio, ok := atrRatio(view.Features)
		return ok && ratio.GreaterThanOrEqual(cond.ATRRatio)
	case types.MaxVolatility:
		ratio, ok := atrRatio(view.Features)
		return ok && ratio.LessThanOrEqual(cond.ATRRatio)
	case types.TimeAfter:
		return evalCtx.NowEpochMS > cond.EpochMS
	case types.TimeBefore:
		return evalCtx.NowEpochMS < cond.EpochMS
	case types.NewsClear:
		return evalCtx.NewsClear
	default:
		return false
	}
}

func currentPrice(view types.TimeframeView) (decimal.Decimal, bool) {
	if view.HasOpen {
		return view.Open.Close, true
	}
	if len(view.Candles) == 0 {
		return decimal.Zero, false
	}
	return view.Candles[len(view.Candles)-1].Close, true
}

func chochDirectionMatches(direction string, view types.TimeframeView) bool {
	// A CHoCH breaking above the last swing high is a bullish reversal; below
	// the last swing low is bearish.
	price, ok := currentPrice(view)
	if !ok {
		return false
	}
	if direction == "bull" {
		v, ok := view.Features.LastSwingHigh.Get()
		return ok && price.GreaterThan(v)
	}
	v, ok := view.Features.LastSwingLow.Get()
	return ok && price.LessThan(v)
}

func rejectionWickMatches(direction string, f types.Features) bool {
	if direction == "bull" {
		return f.RejectionWickUp.Valid && f.RejectionWickUp.Present
	}
	return f.RejectionWickDown.Valid && f.RejectionWickDown.Present
}

func atrRatio(f types.Features) (decimal.Decimal, bool) {
	atr, ok1 := f.ATR14.Get()
	baseline, ok2 := f.ATRBaseline.Get()
	if !ok1 || !ok2 || baseline.IsZero() {
		return decimal.Zero, false
	}
	return atr.Div(baseline), true
}
