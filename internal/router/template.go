// Package router implements C5, the prompt router / template selector: a
// versioned-template registry (grounded on the teacher's StrategyRegistry
// factory pattern) that chooses a template by regime and session, or
// advises a structured skip.
package router

import (
	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// Template is a versioned strategy template declaration.
type Template struct {
	Name                 string
	Version              string
	RegimeMatch          types.Regime
	RRMin, RRMax         decimal.Decimal
	OrderTypePreference  types.OrderType
	SessionPreference    []types.Session // empty means "all sessions"
	RequiredFeatures     []string
}

// FullName returns "name_version", e.g. "trend_pullback_v2".
func (t Template) FullName() string { return t.Name }

// registry is the builtin set of templates, one per regime this engine
// trades (§4.5): trend_pullback_v2, range_fade_v2, breakout_v2.
func registry() []Template {
	return []Template{
		{
			Name: "trend_pullback_v2", Version: "v2", RegimeMatch: types.RegimeTrend,
			RRMin: decimal.NewFromFloat(1.5), RRMax: decimal.NewFromFloat(4.0),
			OrderTypePreference: types.OrderStop,
			RequiredFeatures:    []string{"ema20", "ema50", "ema200", "atr14"},
		},
		{
			Name: "range_fade_v2", Version: "v2", RegimeMatch: types.RegimeRange,
			RRMin: decimal.NewFromFloat(1.0), RRMax: decimal.NewFromFloat(2.5),
			OrderTypePreference: types.OrderLimit,
			RequiredFeatures:    []string{"bb_upper", "bb_lower", "atr14"},
		},
		{
			Name: "breakout_v2", Version: "v2", RegimeMatch: types.RegimeVolatile,
			RRMin: decimal.NewFromFloat(1.5), RRMax: decimal.NewFromFloat(5.0),
			OrderTypePreference: types.OrderStop,
			RequiredFeatures:    []string{"atr14", "session_high", "session_low"},
		},
	}
}

// Registry exposes the builtin templates and allows registering
// additional ones (factory-registry pattern, mirroring
// internal/strategy.StrategyRegistry in the teacher).
type Registry struct {
	templates map[string]Template
}

// NewRegistry builds a registry pre-populated with the three builtin templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]Template)}
	for _, t := range registry() {
		r.templates[t.Name] = t
	}
	return r
}

// Register adds or replaces a template.
func (r *Registry) Register(t Template) { r.templates[t.Name] = t }

// ForRegime returns the template whose RegimeMatch equals regime, if any.
func (r *Registry) ForRegime(regime types.Regime) (Template, bool) {
	for _, t := range r.templates {
		if t.RegimeMatch == regime {
			return t, true
		}
	}
	return Template{}, false
}
