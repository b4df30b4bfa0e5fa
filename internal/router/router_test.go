package router

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

func decimalOne() decimal.Decimal { return decimal.NewFromInt(1) }

func TestRouteSkipsWhenNoTemplateForRegime(t *testing.T) {
	r := NewRegistry()
	out := r.Route(types.Snapshot{}, types.RegimeUnknown, types.SessionNY)
	if out.Selected || out.SkipReason != "no_template_for_regime" {
		t.Fatalf("expected no_template_for_regime skip, got %+v", out)
	}
}

func TestRouteSkipsOnMissingRequiredFeature(t *testing.T) {
	r := NewRegistry()
	snap := types.Snapshot{Views: map[types.Timeframe]types.TimeframeView{types.M15: {}}}
	out := r.Route(snap, types.RegimeTrend, types.SessionNY)
	if out.Selected {
		t.Fatalf("expected skip due to missing features, got selected template %+v", out.Template)
	}
	if out.SkipReason == "" {
		t.Fatalf("expected a missing_required_feature skip reason")
	}
}

func TestRouteSelectsTemplateWhenFeaturesPresent(t *testing.T) {
	r := NewRegistry()
	snap := types.Snapshot{Views: map[types.Timeframe]types.TimeframeView{
		types.M15: {Features: types.Features{
			EMA20: types.Avail(decimalOne()), EMA50: types.Avail(decimalOne()),
			EMA200: types.Avail(decimalOne()), ATR14: types.Avail(decimalOne()),
		}},
	}}
	out := r.Route(snap, types.RegimeTrend, types.SessionNY)
	if !out.Selected || out.Template.Name != "trend_pullback_v2" {
		t.Fatalf("expected trend_pullback_v2 selected, got %+v", out)
	}
}

func TestRouteAsiaSessionPrefersRangeFade(t *testing.T) {
	r := NewRegistry()
	snap := types.Snapshot{Views: map[types.Timeframe]types.TimeframeView{
		types.M15: {Features: types.Features{
			BBUpper: types.Avail(decimalOne()), BBLower: types.Avail(decimalOne()), ATR14: types.Avail(decimalOne()),
		}},
	}}
	out := r.Route(snap, types.RegimeTrend, types.SessionAsia)
	if !out.Selected || out.Template.Name != "range_fade_v2" {
		t.Fatalf("expected Asia session to prefer range_fade_v2, got %+v", out)
	}
}
