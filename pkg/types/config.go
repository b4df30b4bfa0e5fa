package types

import "github.com/shopspring/decimal"

// ExitConfig groups the tunable C8/C9 parameters recognized by §6.5 with
// their defaults. The config loader binds its own config.Config type;
// nothing in the engine builds or reads an ExitConfig.
type ExitConfig struct {
	BreakevenPct            decimal.Decimal // 0.20-0.30
	PartialPct              decimal.Decimal // 0.40-0.60
	PartialCloseFraction    decimal.Decimal // default 0.50
	TrailingDistanceATRMult decimal.Decimal // default 1.5
	VIXThreshold            decimal.Decimal // 18-22
	TrailingEnabled         bool

	EarlyExitR         decimal.Decimal // default -0.8
	RiskScoreThreshold decimal.Decimal // default 0.65
	SpreadATRCap       decimal.Decimal // default 0.40

	PosCloseRetryMax    int
	PosCloseBackoffMS   []int
}

// DefaultExitConfig returns the spec's documented defaults.
func DefaultExitConfig() ExitConfig {
	return ExitConfig{
		BreakevenPct:            decimal.NewFromFloat(0.25),
		PartialPct:              decimal.NewFromFloat(0.50),
		PartialCloseFraction:    decimal.NewFromFloat(0.50),
		TrailingDistanceATRMult: decimal.NewFromFloat(1.5),
		VIXThreshold:            decimal.NewFromFloat(20),
		TrailingEnabled:         true,
		EarlyExitR:              decimal.NewFromFloat(-0.8),
		RiskScoreThreshold:      decimal.NewFromFloat(0.65),
		SpreadATRCap:            decimal.NewFromFloat(0.40),
		PosCloseRetryMax:        3,
		PosCloseBackoffMS:       []int{300, 600, 900},
	}
}

// SymbolVolumeCaps are the per-symbol default volume caps from §6.5.
type SymbolVolumeCaps struct {
	BTCXAU    decimal.Decimal
	FXMajors  decimal.Decimal
	FXCrosses decimal.Decimal
}

// DefaultSymbolVolumeCaps returns the spec's documented defaults.
func DefaultSymbolVolumeCaps() SymbolVolumeCaps {
	return SymbolVolumeCaps{
		BTCXAU:    decimal.NewFromFloat(0.02),
		FXMajors:  decimal.NewFromFloat(0.04),
		FXCrosses: decimal.NewFromFloat(0.03),
	}
}

// CapFor returns the default volume cap for a symbol class. BTC and XAU
// (gold) symbols get the tightest cap; recognized FX majors get the
// widest; everything else is treated as a cross.
func (c SymbolVolumeCaps) CapFor(symbol string) decimal.Decimal {
	switch {
	case containsAny(symbol, "BTC", "XAU"):
		return c.BTCXAU
	case containsAny(symbol, "EURUSD", "GBPUSD", "USDJPY", "USDCHF", "AUDUSD", "USDCAD", "NZDUSD"):
		return c.FXMajors
	default:
		return c.FXCrosses
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}

// RingConfig configures C1's per-symbol preallocated ring sizes.
type RingConfig struct {
	TickCapacity   int // typical N=10000
	CandleCapacity int // typical M=1000
}

// DefaultRingConfig returns the spec's documented defaults.
func DefaultRingConfig() RingConfig {
	return RingConfig{TickCapacity: 10000, CandleCapacity: 1000}
}
