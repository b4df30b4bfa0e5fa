package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/internal/gateway"
	"github.com/silverline-labs/tradeengine/internal/validator"
	"github.com/silverline-labs/tradeengine/pkg/types"
)

const testConfigYAML = `
health_addr: "127.0.0.1:0"
exit:
  breakeven_pct: "0.25"
  partial_pct: "0.50"
  partial_close_fraction: "0.50"
  trailing_distance_atr_mult: "1.5"
  vix_threshold: "20"
  trailing_enabled: true
loss_cutter:
  early_exit_r: "-0.8"
  risk_score_threshold: "0.65"
  spread_atr_cap: "0.40"
gateway:
  pos_close_retry_max: 3
  pos_close_backoff_ms: "300,600,900"
volume_caps:
  crypto_metals: "0.02"
  fx_majors: "0.04"
  fx_crosses: "0.03"
`

type fakeBroker struct {
	placeCalls int
	positions  []types.Position
}

func (f *fakeBroker) SubscribeTicks(ctx context.Context, symbols []string) (<-chan types.Tick, error) {
	return nil, nil
}
func (f *fakeBroker) FetchCandles(ctx context.Context, symbol string, tf types.Timeframe, n int) ([]types.Candle, error) {
	return nil, nil
}
func (f *fakeBroker) ListPositions(ctx context.Context) ([]types.Position, error) {
	return f.positions, nil
}
func (f *fakeBroker) ListPendingOrders(ctx context.Context) ([]types.PendingOrder, error) {
	return nil, nil
}
func (f *fakeBroker) ModifyPosition(ctx context.Context, ticket uint64, sl, tp decimal.Decimal) error {
	return nil
}
func (f *fakeBroker) ClosePosition(ctx context.Context, ticket uint64, volume decimal.Decimal) error {
	return nil
}
func (f *fakeBroker) CancelOrder(ctx context.Context, ticket uint64) error { return nil }
func (f *fakeBroker) SymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	return types.SymbolInfo{Symbol: symbol}, nil
}
func (f *fakeBroker) LivePrice(ctx context.Context, symbol string, side types.OrderSide) (decimal.Decimal, error) {
	return decimal.NewFromFloat(1.1000), nil
}
func (f *fakeBroker) PlaceOrder(ctx context.Context, req gateway.PlaceOrderRequest) (types.PlaceOrderResult, error) {
	f.placeCalls++
	if req.Symbol == "" {
		return types.PlaceOrderResult{}, errors.New("bad request")
	}
	return types.PlaceOrderResult{Ticket: uint64(100 + f.placeCalls), Retcode: types.RetOK}, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeBroker) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	broker := &fakeBroker{}
	e, err := New(zap.NewNop(), Options{
		Symbols:    []string{"EURUSD"},
		Broker:     broker,
		ConfigPath: path,
		DataDir:    filepath.Join(dir, "data"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, broker
}

func sampleSnapshot(symbol string, price float64) types.Snapshot {
	view := types.TimeframeView{
		HasOpen: true,
		Open: types.Candle{
			Symbol: symbol, Timeframe: types.M15,
			Close: decimal.NewFromFloat(price),
		},
		Features:    types.Features{},
		LastUpdated: time.Now().UnixMilli(),
	}
	return types.Snapshot{
		Symbol:      symbol,
		SnapshotID:  1,
		AsOfEpochMS: time.Now().UnixMilli(),
		Views:       map[types.Timeframe]types.TimeframeView{types.M15: view},
	}
}

func TestNewWiresEveryComponent(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.gw == nil || e.exits == nil || e.scorer == nil || e.ocoMgr == nil || e.plans == nil {
		t.Fatalf("expected every component to be wired")
	}
}

func TestOnSnapshotStoresLatestAndIsRetrievable(t *testing.T) {
	e, _ := newTestEngine(t)
	snap := sampleSnapshot("EURUSD", 1.1050)
	e.onSnapshot(snap)

	got, ok := e.LatestSnapshot("EURUSD")
	if !ok {
		t.Fatalf("expected snapshot to be stored")
	}
	if got.SnapshotID != snap.SnapshotID {
		t.Fatalf("unexpected snapshot round-trip: %+v", got)
	}
}

func TestSubmitAdvisorSpecSkipsWithoutSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	spec := types.TradeSpec{Symbol: "GBPUSD", Side: types.Buy, OrderType: types.OrderMarket}
	decision, err := e.SubmitAdvisorSpec(context.Background(), spec, validator.MarketContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Status != types.Skipped || len(decision.SkipReasons) == 0 || decision.SkipReasons[0] != "no_snapshot_for_symbol" {
		t.Fatalf("expected no_snapshot_for_symbol skip, got %+v", decision)
	}
}

func TestSubmitAdvisorSpecSkipsWithoutRoutableTemplate(t *testing.T) {
	e, _ := newTestEngine(t)
	e.onSnapshot(sampleSnapshot("EURUSD", 1.1050))

	spec := types.TradeSpec{
		Symbol: "EURUSD", Side: types.Buy, OrderType: types.OrderMarket,
		Entry: decimal.NewFromFloat(1.1000), SL: decimal.NewFromFloat(1.0950), TP: decimal.NewFromFloat(1.1100),
		Volume: decimal.NewFromFloat(0.10),
	}
	decision, err := e.SubmitAdvisorSpec(context.Background(), spec, validator.MarketContext{Session: types.SessionNY})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// With an empty Features vector the regime classifies UNKNOWN and no
	// template matches it, so the decision always skips here.
	if decision.Status != types.Skipped {
		t.Fatalf("expected a skip with an empty feature snapshot, got %+v", decision)
	}
}

func TestSubmitConditionalPlanMintsPlanID(t *testing.T) {
	e, _ := newTestEngine(t)
	plan, err := e.SubmitConditionalPlan(
		types.Buy, "EURUSD",
		decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.0950), decimal.NewFromFloat(1.1100),
		decimal.NewFromFloat(0.10), nil, time.Now().Add(time.Hour).UnixMilli(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.PlanID == "" {
		t.Fatalf("expected a minted plan id")
	}
	if plan.State != types.PlanPending {
		t.Fatalf("expected a pending plan, got %s", plan.State)
	}
}

func TestArmOCOBracketMintsGroupID(t *testing.T) {
	e, _ := newTestEngine(t)
	legA := types.TradeSpec{Symbol: "EURUSD", Side: types.Buy, OrderType: types.OrderMarket}
	legB := types.TradeSpec{Symbol: "EURUSD", Side: types.Sell, OrderType: types.OrderMarket}
	pair, err := e.ArmOCOBracket(context.Background(), legA, legB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.GroupID == "" {
		t.Fatalf("expected a minted group id")
	}
}

func TestStartAndStopRespectsShutdownDeadline(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		e.Start(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := e.Stop(stopCtx); err != nil {
		t.Fatalf("unexpected error stopping engine: %v", err)
	}
}

func TestSessionForEpochMSBoundaries(t *testing.T) {
	cases := []struct {
		hour int
		want types.Session
	}{
		{2, types.SessionAsia},
		{10, types.SessionLondon},
		{14, types.SessionOverlap},
		{18, types.SessionNY},
		{23, types.SessionOffHours},
	}
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for _, c := range cases {
		ms := base.Add(time.Duration(c.hour) * time.Hour).UnixMilli()
		if got := sessionForEpochMS(ms); got != c.want {
			t.Fatalf("hour %d: expected %s, got %s", c.hour, c.want, got)
		}
	}
}
