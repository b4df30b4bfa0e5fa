// Package stream implements C3, the multi-timeframe streamer: it owns
// candle aggregation from ticks (closing a candle exactly at the timeframe
// boundary in UTC) and schedules indicator refresh per timeframe, publishing
// a new Snapshot to subscribers on each refresh.
package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/internal/indicators"
	"github.com/silverline-labs/tradeengine/internal/ring"
	"github.com/silverline-labs/tradeengine/pkg/types"
)

const snapshotCandleWindow = 200

// SnapshotHandler receives newly published snapshots.
type SnapshotHandler func(types.Snapshot)

// Streamer coordinates C1 (ring) and C2 (indicators) across every tracked
// timeframe and publishes Snapshots. One ingesting task per symbol is the
// sole tick writer; refresh cadences run on independent tickers per
// timeframe (§5).
type Streamer struct {
	logger    *zap.Logger
	rings     *ring.Manager
	engine    *indicators.Engine

	mu           sync.Mutex
	openCandle   map[string]map[types.Timeframe]*types.Candle
	lastRefresh  map[string]map[types.Timeframe]int64
	snapshotIDs  map[string]*atomic.Uint64

	subMu       sync.RWMutex
	subscribers []SnapshotHandler

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewStreamer builds a streamer over the given ring manager and indicator engine.
func NewStreamer(logger *zap.Logger, rings *ring.Manager, engine *indicators.Engine) *Streamer {
	return &Streamer{
		logger:      logger.Named("stream"),
		rings:       rings,
		engine:      engine,
		openCandle:  make(map[string]map[types.Timeframe]*types.Candle),
		lastRefresh: make(map[string]map[types.Timeframe]int64),
		snapshotIDs: make(map[string]*atomic.Uint64),
		stopCh:      make(chan struct{}),
	}
}

// Subscribe registers a handler invoked synchronously (by the calling
// refresh/ingest task) whenever a new Snapshot publishes.
func (s *Streamer) Subscribe(h SnapshotHandler) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, h)
}

func (s *Streamer) publish(snap types.Snapshot) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, h := range s.subscribers {
		h(snap)
	}
}

// boundaryMS returns the UTC timeframe-boundary start containing epochMS.
func boundaryMS(tf types.Timeframe, epochMS int64) int64 {
	t := time.UnixMilli(epochMS).UTC()
	var dur time.Duration
	switch tf {
	case types.M1:
		dur = time.Minute
	case types.M5:
		dur = 5 * time.Minute
	case types.M15:
		dur = 15 * time.Minute
	case types.M30:
		dur = 30 * time.Minute
	case types.H1:
		dur = time.Hour
	case types.H4:
		dur = 4 * time.Hour
	default:
		dur = time.Minute
	}
	epoch := t.Unix()
	secs := int64(dur / time.Second)
	bucket := (epoch / secs) * secs
	return bucket * 1000
}

// IngestTick feeds one tick into the ring and every timeframe's open
// candle, closing and persisting a candle exactly at its UTC boundary. It
// never blocks on I/O, satisfying the hot-path latency budget in §5.
func (s *Streamer) IngestTick(t types.Tick) {
	if !s.rings.PushTick(t) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	perTF, ok := s.openCandle[t.Symbol]
	if !ok {
		perTF = make(map[types.Timeframe]*types.Candle)
		s.openCandle[t.Symbol] = perTF
	}

	price := t.Mid()
	vol := decimalZeroOrVolume(t)

	for _, tf := range types.Timeframes {
		boundary := boundaryMS(tf, t.EpochMS)
		open := perTF[tf]
		if open == nil || open.EpochMSOpen != boundary {
			if open != nil {
				open.Complete = true
				s.rings.PushCandle(*open)
			}
			open = &types.Candle{
				Symbol: t.Symbol, Timeframe: tf, EpochMSOpen: boundary,
				Open: price, High: price, Low: price, Close: price, Volume: vol,
			}
			perTF[tf] = open
			continue
		}
		open.Close = price
		if price.GreaterThan(open.High) {
			open.High = price
		}
		if price.LessThan(open.Low) {
			open.Low = price
		}
		open.Volume = open.Volume.Add(vol)
	}
}

func decimalZeroOrVolume(t types.Tick) decimal.Decimal {
	if v, ok := t.Volume.Get(); ok {
		return v
	}
	return decimal.Zero
}
