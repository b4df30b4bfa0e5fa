package router

import (
	"fmt"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// Outcome is C5's routing result: either a selected Template, or a skip
// with the reason that prevented selection.
type Outcome struct {
	Template   Template
	Selected   bool
	SkipReason string
}

// Route picks the template for the current regime (with Asia-session
// re-weighting toward range_fade_v2) and checks that the snapshot carries
// every feature the template requires.
func (r *Registry) Route(snap types.Snapshot, regime types.Regime, session types.Session) Outcome {
	tmpl, ok := r.ForRegime(regime)
	if session == types.SessionAsia {
		if rangeTmpl, rangeOK := r.templates["range_fade_v2"]; rangeOK {
			if rangeMissing := missingFeatures(snap, rangeTmpl); len(rangeMissing) == 0 {
				tmpl, ok = rangeTmpl, true
			}
		}
	}
	if !ok {
		return Outcome{SkipReason: "no_template_for_regime"}
	}

	if missing := missingFeatures(snap, tmpl); len(missing) > 0 {
		return Outcome{SkipReason: fmt.Sprintf("missing_required_feature(%s)", missing[0])}
	}

	return Outcome{Template: tmpl, Selected: true}
}

func missingFeatures(snap types.Snapshot, tmpl Template) []string {
	var missing []string
	for _, name := range tmpl.RequiredFeatures {
		if !featureAvailable(snap, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// featureAvailable reports whether any tracked timeframe in the snapshot
// has the named feature computed (Valid).
func featureAvailable(snap types.Snapshot, name string) bool {
	for _, view := range snap.Views {
		f := view.Features
		switch name {
		case "ema20":
			if _, ok := f.EMA20.Get(); ok {
				return true
			}
		case "ema50":
			if _, ok := f.EMA50.Get(); ok {
				return true
			}
		case "ema200":
			if _, ok := f.EMA200.Get(); ok {
				return true
			}
		case "atr14":
			if _, ok := f.ATR14.Get(); ok {
				return true
			}
		case "bb_upper":
			if _, ok := f.BBUpper.Get(); ok {
				return true
			}
		case "bb_lower":
			if _, ok := f.BBLower.Get(); ok {
				return true
			}
		case "session_high":
			if _, ok := f.SessionHigh.Get(); ok {
				return true
			}
		case "session_low":
			if _, ok := f.SessionLow.Get(); ok {
				return true
			}
		}
	}
	return false
}
