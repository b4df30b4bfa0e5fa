package persistence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFileStore(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return fs
}

func TestSaveAndLoadPlansRoundTrip(t *testing.T) {
	fs := newTestStore(t)
	plan := types.Plan{PlanID: "p1", Symbol: "EURUSD", Direction: types.Buy, Entry: decimal.NewFromFloat(1.1), State: types.PlanPending}
	if err := fs.SavePlan(plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	loaded, err := fs.LoadPlans()
	if err != nil {
		t.Fatalf("LoadPlans: %v", err)
	}
	if len(loaded) != 1 || loaded[0].PlanID != "p1" {
		t.Fatalf("expected one reloaded plan p1, got %+v", loaded)
	}
}

func TestSavePlanOverwritesLeavesNoTempFile(t *testing.T) {
	fs := newTestStore(t)
	plan := types.Plan{PlanID: "p1", Symbol: "EURUSD", State: types.PlanPending}
	fs.SavePlan(plan)
	plan.State = types.PlanTriggered
	if err := fs.SavePlan(plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(fs.dir, "plans"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("expected no leftover temp file, found %s", e.Name())
		}
	}
	loaded, _ := fs.LoadPlans()
	if len(loaded) != 1 || loaded[0].State != types.PlanTriggered {
		t.Fatalf("expected overwritten state TRIGGERED, got %+v", loaded)
	}
}

func TestSaveAndLoadExitRulesKeyedByTicket(t *testing.T) {
	fs := newTestStore(t)
	rule := types.ExitRule{Ticket: 42, Symbol: "XAUUSD", State: types.BEArmed}
	if err := fs.SaveExitRule(42, rule); err != nil {
		t.Fatalf("SaveExitRule: %v", err)
	}
	loaded, err := fs.LoadExitRules()
	if err != nil {
		t.Fatalf("LoadExitRules: %v", err)
	}
	got, ok := loaded[42]
	if !ok || got.State != types.BEArmed {
		t.Fatalf("expected ticket 42 reloaded with BE_ARMED, got %+v", loaded)
	}
}

func TestSaveAndLoadOCOPairsKeyedByGroupID(t *testing.T) {
	fs := newTestStore(t)
	pair := types.OCOPair{GroupID: "grp1", Symbol: "EURUSD", State: types.OCOActive}
	if err := fs.SaveOCOPair(pair); err != nil {
		t.Fatalf("SaveOCOPair: %v", err)
	}
	loaded, err := fs.LoadOCOPairs()
	if err != nil {
		t.Fatalf("LoadOCOPairs: %v", err)
	}
	if len(loaded) != 1 || loaded[0].GroupID != "grp1" {
		t.Fatalf("expected one reloaded pair grp1, got %+v", loaded)
	}
}

func TestAppendEventWritesOneJSONLinePerCall(t *testing.T) {
	fs := newTestStore(t)
	e1 := types.Event{TS: 1, Component: "oco", Kind: "oco_double_fill", Severity: types.SeverityWarning}
	e2 := types.Event{TS: 2, Component: "losscutter", Kind: "exit", Severity: types.SeverityInfo}
	if err := fs.AppendEvent(e1); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := fs.AppendEvent(e2); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(fs.dir, "events.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), string(data))
	}
}

func TestLoadPlansOnEmptyStoreReturnsNoError(t *testing.T) {
	fs := newTestStore(t)
	loaded, err := fs.LoadPlans()
	if err != nil {
		t.Fatalf("unexpected error on empty store: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected no plans, got %d", len(loaded))
	}
}
