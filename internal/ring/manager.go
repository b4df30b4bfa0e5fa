package ring

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// Manager owns every per-symbol tick ring and per-(symbol,timeframe) candle
// ring. One ingesting task per symbol is the only writer (§5); all other
// tasks read.
type Manager struct {
	logger *zap.Logger
	config types.RingConfig

	mu      sync.RWMutex
	ticks   map[string]*buffer[types.Tick]
	candles map[string]map[types.Timeframe]*buffer[types.Candle]
	lastEpoch map[string]int64

	droppedOutOfOrder atomic.Uint64
}

// NewManager builds a ring manager with the given per-symbol capacities.
func NewManager(logger *zap.Logger, config types.RingConfig) *Manager {
	return &Manager{
		logger:    logger.Named("ring"),
		config:    config,
		ticks:     make(map[string]*buffer[types.Tick]),
		candles:   make(map[string]map[types.Timeframe]*buffer[types.Candle]),
		lastEpoch: make(map[string]int64),
	}
}

func (m *Manager) tickBuffer(symbol string) *buffer[types.Tick] {
	m.mu.RLock()
	b, ok := m.ticks[symbol]
	m.mu.RUnlock()
	if ok {
		return b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.ticks[symbol]; ok {
		return b
	}
	b = newBuffer[types.Tick](m.config.TickCapacity)
	m.ticks[symbol] = b
	return b
}

func (m *Manager) candleBuffer(symbol string, tf types.Timeframe) *buffer[types.Candle] {
	m.mu.RLock()
	perTF, ok := m.candles[symbol]
	if ok {
		if b, ok := perTF[tf]; ok {
			m.mu.RUnlock()
			return b
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	perTF, ok = m.candles[symbol]
	if !ok {
		perTF = make(map[types.Timeframe]*buffer[types.Candle])
		m.candles[symbol] = perTF
	}
	b, ok := perTF[tf]
	if !ok {
		b = newBuffer[types.Candle](m.config.CandleCapacity)
		perTF[tf] = b
	}
	return b
}

// PushTick appends a tick for its symbol, dropping out-of-order ticks
// (epoch_ms <= last seen) and counting the drop (§4.1).
func (m *Manager) PushTick(t types.Tick) bool {
	m.mu.Lock()
	last, seen := m.lastEpoch[t.Symbol]
	if seen && t.EpochMS <= last {
		m.mu.Unlock()
		m.droppedOutOfOrder.Add(1)
		m.logger.Debug("dropped out-of-order tick",
			zap.String("symbol", t.Symbol), zap.Int64("epoch_ms", t.EpochMS), zap.Int64("last_epoch_ms", last))
		return false
	}
	m.lastEpoch[t.Symbol] = t.EpochMS
	m.mu.Unlock()

	m.tickBuffer(t.Symbol).push(t)
	return true
}

// PushCandle appends (or overwrites, on ring exhaustion) a candle for its
// (symbol, timeframe).
func (m *Manager) PushCandle(c types.Candle) {
	m.candleBuffer(c.Symbol, c.Timeframe).push(c)
}

// SnapshotCandles returns up to n of the most recent candles for
// (symbol, timeframe), oldest first.
func (m *Manager) SnapshotCandles(symbol string, tf types.Timeframe, n int) []types.Candle {
	return m.candleBuffer(symbol, tf).last(n)
}

// LatestTick returns the most recent tick for symbol, if any.
func (m *Manager) LatestTick(symbol string) (types.Tick, bool) {
	return m.tickBuffer(symbol).latest()
}

// DroppedOutOfOrder returns the running count of out-of-order ticks dropped.
func (m *Manager) DroppedOutOfOrder() uint64 {
	return m.droppedOutOfOrder.Load()
}

// OverwriteStats reports write/overwrite counters for a (symbol, timeframe)
// candle ring, a backpressure signal.
func (m *Manager) OverwriteStats(symbol string, tf types.Timeframe) (writes, overwrites uint64) {
	return m.candleBuffer(symbol, tf).stats()
}

// TickOverwriteStats reports write/overwrite counters for a symbol's tick ring.
func (m *Manager) TickOverwriteStats(symbol string) (writes, overwrites uint64) {
	return m.tickBuffer(symbol).stats()
}
