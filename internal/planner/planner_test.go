package planner

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

type fakeGateway struct {
	calls  int
	lastSpec types.TradeSpec
	result types.PlaceOrderResult
	err    error
}

func (f *fakeGateway) PlaceOrder(ctx context.Context, spec types.TradeSpec, comment string) (types.PlaceOrderResult, error) {
	f.calls++
	f.lastSpec = spec
	return f.result, f.err
}

type fakeStore struct {
	saved   []types.Plan
	preload []types.Plan
}

func (f *fakeStore) SavePlan(p types.Plan) error {
	f.saved = append(f.saved, p)
	return nil
}

func (f *fakeStore) LoadPlans() ([]types.Plan, error) {
	return f.preload, nil
}

func basePlan() types.Plan {
	return types.Plan{
		PlanID: "p1", Symbol: "EURUSD", Direction: types.Buy,
		Entry: decimal.NewFromFloat(1.1000), SL: decimal.NewFromFloat(1.0950), TP: decimal.NewFromFloat(1.1100),
		Volume: decimal.NewFromFloat(0.02), ExpiresAt: 100000,
		Conditions: []types.Condition{types.PriceAbove{Level: decimal.NewFromFloat(1.1005)}},
	}
}

func snapshotAtPrice(price float64) types.Snapshot {
	return types.Snapshot{
		Symbol: "EURUSD",
		Views: map[types.Timeframe]types.TimeframeView{
			types.M15: {
				Candles: []types.Candle{{Close: decimal.NewFromFloat(price), Complete: true}},
			},
		},
	}
}

func TestPlanStaysPendingUntilConditionHolds(t *testing.T) {
	gw := &fakeGateway{result: types.PlaceOrderResult{Ticket: 1, Retcode: types.RetOK}}
	store := &fakeStore{}
	p, err := NewPlanner(zap.NewNop(), gw, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Add(basePlan()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	p.Evaluate(context.Background(), snapshotAtPrice(1.0990), EvalContext{NowEpochMS: 1000})
	if gw.calls != 0 {
		t.Fatalf("expected no order placed while condition unmet, got %d calls", gw.calls)
	}
}

func TestPlanTriggersAndExecutesWhenConditionHolds(t *testing.T) {
	gw := &fakeGateway{result: types.PlaceOrderResult{Ticket: 1, Retcode: types.RetOK}}
	store := &fakeStore{}
	p, _ := NewPlanner(zap.NewNop(), gw, store)
	p.Add(basePlan())

	p.Evaluate(context.Background(), snapshotAtPrice(1.1010), EvalContext{NowEpochMS: 1000})

	if gw.calls != 1 {
		t.Fatalf("expected exactly one order placed, got %d", gw.calls)
	}
	plan := p.plans["p1"]
	if plan.State != types.PlanExecuted {
		t.Fatalf("expected EXECUTED, got %s", plan.State)
	}
	if gw.lastSpec.Symbol != "EURUSD" || gw.lastSpec.Side != types.Buy {
		t.Fatalf("unexpected spec submitted: %+v", gw.lastSpec)
	}
}

func TestPlanExpiresPastDeadlineWithoutTriggering(t *testing.T) {
	gw := &fakeGateway{result: types.PlaceOrderResult{Ticket: 1, Retcode: types.RetOK}}
	store := &fakeStore{}
	p, _ := NewPlanner(zap.NewNop(), gw, store)
	p.Add(basePlan())

	p.Evaluate(context.Background(), snapshotAtPrice(1.1010), EvalContext{NowEpochMS: 200000})

	if gw.calls != 0 {
		t.Fatalf("expected no order placed after expiry, got %d calls", gw.calls)
	}
	plan := p.plans["p1"]
	if plan.State != types.PlanExpired {
		t.Fatalf("expected EXPIRED, got %s", plan.State)
	}
}

func TestTransientFailureStaysPendingForRetry(t *testing.T) {
	gw := &fakeGateway{result: types.PlaceOrderResult{Retcode: types.RetTransient, Reason: "timeout"}}
	store := &fakeStore{}
	p, _ := NewPlanner(zap.NewNop(), gw, store)
	p.Add(basePlan())

	p.Evaluate(context.Background(), snapshotAtPrice(1.1010), EvalContext{NowEpochMS: 1000})

	plan := p.plans["p1"]
	if plan.State != types.PlanPending {
		t.Fatalf("expected plan to stay PENDING after transient failure, got %s", plan.State)
	}
	if gw.calls != 1 {
		t.Fatalf("expected one attempt, got %d", gw.calls)
	}
}

func TestMultipleConditionsAllMustHold(t *testing.T) {
	gw := &fakeGateway{result: types.PlaceOrderResult{Ticket: 1, Retcode: types.RetOK}}
	store := &fakeStore{}
	p, _ := NewPlanner(zap.NewNop(), gw, store)
	plan := basePlan()
	plan.Conditions = append(plan.Conditions, types.NewsClear{})
	p.Add(plan)

	p.Evaluate(context.Background(), snapshotAtPrice(1.1010), EvalContext{NowEpochMS: 1000, NewsClear: false})
	if gw.calls != 0 {
		t.Fatalf("expected no order while NewsClear condition unmet, got %d calls", gw.calls)
	}

	p.Evaluate(context.Background(), snapshotAtPrice(1.1010), EvalContext{NowEpochMS: 1000, NewsClear: true})
	if gw.calls != 1 {
		t.Fatalf("expected order once all conditions hold, got %d calls", gw.calls)
	}
}

func TestPlansReloadFromStoreAtStartup(t *testing.T) {
	gw := &fakeGateway{result: types.PlaceOrderResult{Ticket: 1, Retcode: types.RetOK}}
	store := &fakeStore{preload: []types.Plan{basePlan()}}
	p, err := NewPlanner(zap.NewNop(), gw, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.plans["p1"]; !ok {
		t.Fatalf("expected preloaded plan to be tracked")
	}
}

func TestSessionInConditionMatchesTag(t *testing.T) {
	gw := &fakeGateway{result: types.PlaceOrderResult{Ticket: 1, Retcode: types.RetOK}}
	store := &fakeStore{}
	p, _ := NewPlanner(zap.NewNop(), gw, store)
	plan := basePlan()
	plan.Conditions = []types.Condition{types.SessionIn{SessionTag: types.SessionLondon}}
	p.Add(plan)

	p.Evaluate(context.Background(), snapshotAtPrice(1.1010), EvalContext{NowEpochMS: 1000, Session: types.SessionNY})
	if gw.calls != 0 {
		t.Fatalf("expected no order outside matching session, got %d calls", gw.calls)
	}

	p.Evaluate(context.Background(), snapshotAtPrice(1.1010), EvalContext{NowEpochMS: 1000, Session: types.SessionLondon})
	if gw.calls != 1 {
		t.Fatalf("expected order once session matches, got %d calls", gw.calls)
	}
}
