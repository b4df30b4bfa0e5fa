package types

// TimeframeView is C3's per-timeframe slice of candle history for a symbol:
// the last N complete candles plus the currently-open one.
type TimeframeView struct {
	Candles     []Candle
	Open        Candle
	HasOpen     bool
	Features    Features
	LastUpdated int64 // epoch ms open time of the newest candle (the open one if present)
	Stale       bool  // fresh within 2x cadence check failed
}

// Snapshot is a consistent per-symbol read issued by the multi-timeframe
// streamer (C3): one TimeframeView per timeframe, carrying a monotonic
// snapshot_id and as_of timestamp (§3, §8 Ordering invariant).
type Snapshot struct {
	Symbol      string
	SnapshotID  uint64
	AsOfEpochMS int64
	Views       map[Timeframe]TimeframeView
	Stale       bool
}

// View returns the timeframe view, or the zero value with HasOpen=false if
// the timeframe has not been populated yet.
func (s Snapshot) View(tf Timeframe) TimeframeView {
	return s.Views[tf]
}
