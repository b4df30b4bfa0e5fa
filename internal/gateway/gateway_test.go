package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

type fakeBroker struct {
	livePrice      decimal.Decimal
	placeCalls     int
	failuresBefore int
	lastReq        PlaceOrderRequest
}

func (f *fakeBroker) SubscribeTicks(ctx context.Context, symbols []string) (<-chan types.Tick, error) {
	return nil, nil
}
func (f *fakeBroker) FetchCandles(ctx context.Context, symbol string, tf types.Timeframe, n int) ([]types.Candle, error) {
	return nil, nil
}
func (f *fakeBroker) ListPositions(ctx context.Context) ([]types.Position, error)       { return nil, nil }
func (f *fakeBroker) ListPendingOrders(ctx context.Context) ([]types.PendingOrder, error) { return nil, nil }
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
	return f.livePrice, nil
}
func (f *fakeBroker) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (types.PlaceOrderResult, error) {
	f.placeCalls++
	f.lastReq = req
	if f.placeCalls <= f.failuresBefore {
		return types.PlaceOrderResult{}, errors.New("transient")
	}
	return types.PlaceOrderResult{Ticket: 42, Retcode: types.RetOK}, nil
}

func testSpec() types.TradeSpec {
	return types.TradeSpec{
		Symbol: "EURUSD", Side: types.Buy, OrderType: types.OrderMarket,
		Entry: decimal.NewFromFloat(1.1000), SL: decimal.NewFromFloat(1.0950), TP: decimal.NewFromFloat(1.1100),
		Volume: decimal.NewFromFloat(0.10),
	}
}

func TestPlaceOrderCapsVolumeAndTruncatesComment(t *testing.T) {
	broker := &fakeBroker{livePrice: decimal.NewFromFloat(1.1001)}
	g := NewGateway(zap.NewNop(), broker, types.DefaultSymbolVolumeCaps(), false)

	longComment := "this comment is definitely longer than thirty one bytes"
	res, err := g.PlaceOrder(context.Background(), testSpec(), longComment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Retcode != types.RetOK {
		t.Fatalf("expected RetOK, got %s (%s)", res.Retcode, res.Reason)
	}
	if !broker.lastReq.Volume.Equal(types.DefaultSymbolVolumeCaps().FXMajors) {
		t.Fatalf("expected volume capped to FX majors cap, got %s", broker.lastReq.Volume)
	}
	if len(broker.lastReq.Comment) > maxCommentBytes {
		t.Fatalf("expected comment truncated to %d bytes, got %d", maxCommentBytes, len(broker.lastReq.Comment))
	}
	if broker.lastReq.TypeTime != "GTC" {
		t.Fatalf("expected type_time GTC, got %s", broker.lastReq.TypeTime)
	}
}

func TestPlaceOrderRejectsOnMarketMoved(t *testing.T) {
	broker := &fakeBroker{livePrice: decimal.NewFromFloat(1.15)} // far from 1.10 entry
	g := NewGateway(zap.NewNop(), broker, types.DefaultSymbolVolumeCaps(), false)

	res, err := g.PlaceOrder(context.Background(), testSpec(), "entry")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Retcode != types.RetRejected || res.Reason != "market_moved" {
		t.Fatalf("expected market_moved rejection, got %+v", res)
	}
	if broker.placeCalls != 0 {
		t.Fatalf("expected broker.PlaceOrder never called, got %d calls", broker.placeCalls)
	}
}

func TestPlaceOrderRetriesTransientFailures(t *testing.T) {
	broker := &fakeBroker{livePrice: decimal.NewFromFloat(1.1001), failuresBefore: 2}
	g := NewGateway(zap.NewNop(), broker, types.DefaultSymbolVolumeCaps(), false)

	res, err := g.PlaceOrder(context.Background(), testSpec(), "entry")
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if res.Ticket != 42 || broker.placeCalls != 3 {
		t.Fatalf("expected success on 3rd attempt, got ticket=%d calls=%d", res.Ticket, broker.placeCalls)
	}
}

func TestPlaceOrderDryRunNeverCallsBroker(t *testing.T) {
	broker := &fakeBroker{livePrice: decimal.NewFromFloat(1.1001)}
	g := NewGateway(zap.NewNop(), broker, types.DefaultSymbolVolumeCaps(), true)

	res, err := g.PlaceOrder(context.Background(), testSpec(), "entry")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reason != "dry_run" || broker.placeCalls != 0 {
		t.Fatalf("expected dry_run with no broker calls, got %+v calls=%d", res, broker.placeCalls)
	}
}

func TestLimitOrderRetainsAdvisorEntryPrice(t *testing.T) {
	broker := &fakeBroker{livePrice: decimal.NewFromFloat(1.2000)} // would fail market-moved check if used
	g := NewGateway(zap.NewNop(), broker, types.DefaultSymbolVolumeCaps(), false)

	spec := testSpec()
	spec.OrderType = types.OrderLimit
	res, err := g.PlaceOrder(context.Background(), spec, "entry")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Retcode != types.RetOK {
		t.Fatalf("expected RetOK for limit order, got %+v", res)
	}
	if !broker.lastReq.Price.Equal(spec.Entry) {
		t.Fatalf("expected limit order to retain advisor entry %s, got %s", spec.Entry, broker.lastReq.Price)
	}
}
