package ring

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(zap.NewNop(), types.RingConfig{TickCapacity: 4, CandleCapacity: 4})
}

func TestPushTickDropsOutOfOrder(t *testing.T) {
	m := testManager(t)

	ok := m.PushTick(types.Tick{Symbol: "EURUSD", EpochMS: 100, Bid: decimal.NewFromInt(1)})
	if !ok {
		t.Fatalf("expected first tick to be accepted")
	}
	ok = m.PushTick(types.Tick{Symbol: "EURUSD", EpochMS: 100, Bid: decimal.NewFromInt(1)})
	if ok {
		t.Fatalf("expected equal-epoch tick to be dropped")
	}
	ok = m.PushTick(types.Tick{Symbol: "EURUSD", EpochMS: 50, Bid: decimal.NewFromInt(1)})
	if ok {
		t.Fatalf("expected out-of-order tick to be dropped")
	}
	if got := m.DroppedOutOfOrder(); got != 2 {
		t.Fatalf("expected 2 dropped ticks, got %d", got)
	}

	latest, ok := m.LatestTick("EURUSD")
	if !ok || latest.EpochMS != 100 {
		t.Fatalf("expected latest tick epoch 100, got %+v ok=%v", latest, ok)
	}
}

func TestCandleRingOverwritesOnExhaustion(t *testing.T) {
	m := testManager(t)
	for i := 0; i < 6; i++ {
		m.PushCandle(types.Candle{
			Symbol: "XAUUSD", Timeframe: types.M1,
			EpochMSOpen: int64(i), Open: decimal.NewFromInt(int64(i)),
		})
	}
	candles := m.SnapshotCandles("XAUUSD", types.M1, 10)
	if len(candles) != 4 {
		t.Fatalf("expected ring capped at 4 candles, got %d", len(candles))
	}
	if candles[0].EpochMSOpen != 2 || candles[3].EpochMSOpen != 5 {
		t.Fatalf("expected oldest-to-newest window [2..5], got %+v", candles)
	}
	_, overwrites := m.OverwriteStats("XAUUSD", types.M1)
	if overwrites != 2 {
		t.Fatalf("expected 2 overwrites, got %d", overwrites)
	}
}
