package stream

import (
	"sync/atomic"
	"time"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// RefreshSnapshot recomputes the indicator vector for every tracked
// timeframe of symbol and publishes a new Snapshot with a strictly
// increasing snapshot_id (§8 Ordering invariant).
func (s *Streamer) RefreshSnapshot(symbol string, nowMS int64) types.Snapshot {
	views := make(map[types.Timeframe]types.TimeframeView, len(types.Timeframes))

	s.mu.Lock()
	perTF := s.openCandle[symbol]
	refreshTimes, ok := s.lastRefresh[symbol]
	if !ok {
		refreshTimes = make(map[types.Timeframe]int64)
		s.lastRefresh[symbol] = refreshTimes
	}
	s.mu.Unlock()

	anyStale := false
	for _, tf := range types.Timeframes {
		closed := s.rings.SnapshotCandles(symbol, tf, snapshotCandleWindow)
		var open types.Candle
		hasOpen := false
		s.mu.Lock()
		if perTF != nil {
			if oc := perTF[tf]; oc != nil {
				open = *oc
				hasOpen = true
			}
		}
		refreshTimes[tf] = nowMS
		s.mu.Unlock()

		all := closed
		if hasOpen {
			all = append(append([]types.Candle(nil), closed...), open)
		}
		features := s.engine.Compute(symbol, tf, all)

		lastUpdated := int64(0)
		if len(all) > 0 {
			lastUpdated = all[len(all)-1].EpochMSOpen
		}
		_, maxCadenceSec := tf.RefreshCadence()
		stale := lastUpdated > 0 && nowMS-lastUpdated > 2*maxCadenceSec*1000
		if stale {
			anyStale = true
		}

		views[tf] = types.TimeframeView{
			Candles: closed, Open: open, HasOpen: hasOpen,
			Features: features, LastUpdated: lastUpdated, Stale: stale,
		}
	}

	id := s.nextSnapshotID(symbol)
	snap := types.Snapshot{Symbol: symbol, SnapshotID: id, AsOfEpochMS: nowMS, Views: views, Stale: anyStale}
	s.publish(snap)
	return snap
}

func (s *Streamer) nextSnapshotID(symbol string) uint64 {
	s.mu.Lock()
	counter, ok := s.snapshotIDs[symbol]
	if !ok {
		counter = &atomic.Uint64{}
		s.snapshotIDs[symbol] = counter
	}
	s.mu.Unlock()
	return counter.Add(1)
}

// Start launches one refresh-scheduler task per timeframe cadence, each
// refreshing every known symbol on its own ticker (§5: independent tasks
// per cadence, decoupled from the ingestion hot path).
func (s *Streamer) Start(symbols []string, nowFn func() int64) {
	for _, tf := range types.Timeframes {
		minSec, _ := tf.RefreshCadence()
		interval := time.Duration(minSec) * time.Second
		if interval <= 0 {
			interval = time.Second
		}
		s.wg.Add(1)
		go s.refreshLoop(tf, interval, symbols, nowFn)
	}
}

func (s *Streamer) refreshLoop(tf types.Timeframe, interval time.Duration, symbols []string, nowFn func() int64) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			now := nowFn()
			for _, sym := range symbols {
				s.RefreshSnapshot(sym, now)
			}
		}
	}
}

// Stop halts every refresh task and waits for them to exit.
func (s *Streamer) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}
