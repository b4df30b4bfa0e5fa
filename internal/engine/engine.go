// Package engine is the composition root: it wires C1-C12 into one running
// system per a fixed symbol list, owns the per-cadence background loops
// (§5's concurrency model), and exposes the synchronous C4->C5->C6
// decision path for externally-submitted advisor TradeSpecs. Grounded on
// the teacher's orchestrator.Orchestrator Start/Stop lifecycle in
// internal/orchestrator/orchestrator.go, narrowed from a PhD-level
// multi-strategy autonomous loop to this system's fixed component
// pipeline.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/internal/config"
	"github.com/silverline-labs/tradeengine/internal/eventbus"
	"github.com/silverline-labs/tradeengine/internal/exitmanager"
	"github.com/silverline-labs/tradeengine/internal/gateway"
	"github.com/silverline-labs/tradeengine/internal/healthapi"
	"github.com/silverline-labs/tradeengine/internal/indicators"
	"github.com/silverline-labs/tradeengine/internal/losscutter"
	"github.com/silverline-labs/tradeengine/internal/oco"
	"github.com/silverline-labs/tradeengine/internal/persistence"
	"github.com/silverline-labs/tradeengine/internal/planner"
	"github.com/silverline-labs/tradeengine/internal/regime"
	"github.com/silverline-labs/tradeengine/internal/ring"
	"github.com/silverline-labs/tradeengine/internal/router"
	"github.com/silverline-labs/tradeengine/internal/stream"
	"github.com/silverline-labs/tradeengine/internal/validator"
	"github.com/silverline-labs/tradeengine/pkg/types"
)

// cadences match §5's per-component refresh/poll intervals.
const (
	exitCadence    = 30 * time.Second
	lossCadence    = 15 * time.Second
	ocoCadence     = 3 * time.Second
	plannerCadence = 30 * time.Second

	shutdownDeadline = 10 * time.Second
)

// eventSink adapts eventbus.Bus to oco.EventSink: OCO double-fill/cancel-
// failed events are always action priority and must never be dropped.
type eventSink struct{ bus *eventbus.Bus }

func (s eventSink) Emit(e types.Event) { s.bus.Publish(e, eventbus.PriorityAction) }

// Options configures the engine at construction time.
type Options struct {
	Symbols    []string
	Broker     gateway.Broker
	ConfigPath string
	DataDir    string
}

// Engine composes every component (C1-C12) into one running system and
// implements healthapi.Reporter over its own live state.
type Engine struct {
	logger    *zap.Logger
	cfg       *config.Loader
	store     *persistence.FileStore
	bus       *eventbus.Bus
	busCancel context.CancelFunc

	rings     *ring.Manager
	streamer  *stream.Streamer
	indEngine *indicators.Engine
	classifier *regime.Classifier
	templates *router.Registry
	validate  *validator.Validator
	gw        *gateway.Gateway
	exits     *exitmanager.Manager
	scorer    *losscutter.Scorer
	ocoMgr    *oco.Manager
	plans     *planner.Planner

	health *healthapi.Server
	hub    *healthapi.Hub

	symbols []string

	latestMu sync.RWMutex
	latest   map[string]types.Snapshot

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New builds every component and reloads persisted plan/OCO state. It does
// not start any background loop; call Start for that.
func New(logger *zap.Logger, opts Options) (*Engine, error) {
	cfgLoader, err := config.NewLoader(logger, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cur := cfgLoader.Current()

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = cur.DataDir
	}
	store, err := persistence.NewFileStore(logger, dataDir)
	if err != nil {
		return nil, err
	}

	busCtx, busCancel := context.WithCancel(context.Background())
	bus := eventbus.NewBus(busCtx, logger, store)

	rings := ring.NewManager(logger, types.DefaultRingConfig())
	indEngine := indicators.NewEngine()
	streamer := stream.NewStreamer(logger, rings, indEngine)
	classifier := regime.NewClassifier(logger)
	templates := router.NewRegistry()
	validate := validator.NewValidator(logger)

	gw := gateway.NewGateway(logger, opts.Broker, types.DefaultSymbolVolumeCaps(), cur.DryRun)
	exits := exitmanager.NewManager(logger, gw)
	scorer := losscutter.NewScorer(logger)
	ocoMgr := oco.NewManager(logger, gw, store, eventSink{bus: bus})

	plans, err := planner.NewPlanner(logger, gw, store)
	if err != nil {
		return nil, err
	}

	hub := healthapi.NewHub(logger)

	e := &Engine{
		logger:     logger.Named("engine"),
		cfg:        cfgLoader,
		store:      store,
		bus:        bus,
		busCancel:  busCancel,
		rings:      rings,
		streamer:   streamer,
		indEngine:  indEngine,
		classifier: classifier,
		templates:  templates,
		validate:   validate,
		gw:         gw,
		exits:      exits,
		scorer:     scorer,
		ocoMgr:     ocoMgr,
		plans:      plans,
		hub:        hub,
		symbols:    opts.Symbols,
		latest:     make(map[string]types.Snapshot),
		stopCh:     make(chan struct{}),
	}
	e.health = healthapi.NewServer(logger, cur.HealthAddr, e, hub)
	streamer.Subscribe(e.onSnapshot)
	return e, nil
}

// onSnapshot is invoked synchronously by the streamer's refresh task (§5:
// snapshot publication happens on the publishing goroutine, not a new
// one). It stores the latest snapshot, updates the freshness and
// degraded-mode gauges, runs the regime classifier, and publishes a
// snapshot_classified context event. The C4->C5->C6 decision path is left
// to SubmitAdvisorSpec, and the planner runs on its own loop.
func (e *Engine) onSnapshot(snap types.Snapshot) {
	e.latestMu.Lock()
	e.latest[snap.Symbol] = snap
	e.latestMu.Unlock()

	for tf, view := range snap.Views {
		healthapi.SetSymbolFreshness(snap.Symbol, string(tf), nowMS()-view.LastUpdated)
	}

	result := e.classifier.Classify(snap.Symbol, snap)
	healthapi.SetDegraded(snap.Symbol, snap.Stale)

	e.bus.Publish(types.Event{
		TS:        nowMS(),
		Component: "engine",
		Symbol:    snap.Symbol,
		Kind:      "snapshot_classified",
		Payload:   map[string]any{"regime": string(result.Regime)},
		Severity:  types.SeverityInfo,
	}, eventbus.PriorityContext)
}

// LatestSnapshot returns the last published snapshot for symbol, if any.
func (e *Engine) LatestSnapshot(symbol string) (types.Snapshot, bool) {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()
	snap, ok := e.latest[symbol]
	return snap, ok
}

// SubmitAdvisorSpec runs the synchronous C4->C5->C6 decision path over an
// externally-supplied advisor TradeSpec and, if emitted, forwards it to C7.
// This is the single entrypoint untrusted advisor input crosses (§3).
func (e *Engine) SubmitAdvisorSpec(ctx context.Context, spec types.TradeSpec, mkt validator.MarketContext) (types.Decision, error) {
	snap, ok := e.LatestSnapshot(spec.Symbol)
	if !ok {
		return types.Decision{Status: types.Skipped, SkipReasons: []string{"no_snapshot_for_symbol"}}, nil
	}

	result := e.classifier.Classify(spec.Symbol, snap)
	outcome := e.templates.Route(snap, result.Regime, mkt.Session)
	if !outcome.Selected {
		return types.Decision{
			Status:      types.Skipped,
			SkipReasons: []string{outcome.SkipReason},
			Regime:      result.Regime,
			SessionTag:  mkt.Session,
		}, nil
	}

	decision := e.validate.Validate(spec, outcome.Template, mkt, result.Regime)
	if decision.Status != types.Emitted || decision.TradeSpec == nil {
		return decision, nil
	}

	res, err := e.gw.PlaceOrder(ctx, *decision.TradeSpec, "advisor_"+spec.TemplateName)
	if err != nil {
		return decision, err
	}
	if res.Retcode == types.RetOK {
		rule := e.exits.Track(types.Position{
			Ticket:     res.Ticket,
			Symbol:     decision.TradeSpec.Symbol,
			Side:       decision.TradeSpec.Side,
			Volume:     decision.TradeSpec.Volume,
			EntryPrice: decision.TradeSpec.Entry,
			SL:         decision.TradeSpec.SL,
			TP:         decision.TradeSpec.TP,
			OpenedAt:   nowMS(),
		}, nowMS())
		if rule != nil {
			_ = e.store.SaveExitRule(res.Ticket, *rule)
		}
	}
	return decision, nil
}

// SubmitConditionalPlan registers a new PENDING conditional plan (C11) and
// mints its PlanID, since callers only supply the symbol/conditions/legs,
// not an identity for the resulting record.
func (e *Engine) SubmitConditionalPlan(direction types.OrderSide, symbol string, entry, sl, tp, volume decimal.Decimal, conditions []types.Condition, expiresAt int64) (types.Plan, error) {
	plan := types.Plan{
		PlanID:     uuid.New().String(),
		Symbol:     symbol,
		Direction:  direction,
		Entry:      entry,
		SL:         sl,
		TP:         tp,
		Volume:     volume,
		Conditions: conditions,
		ExpiresAt:  expiresAt,
		State:      types.PlanPending,
		CreatedAt:  nowMS(),
		UpdatedAt:  nowMS(),
	}
	if err := e.plans.Add(plan); err != nil {
		return types.Plan{}, err
	}
	return plan, nil
}

// ArmOCOBracket mints a GroupID and arms a new OCO pair (C10) over legA/legB.
func (e *Engine) ArmOCOBracket(ctx context.Context, legA, legB types.TradeSpec) (types.OCOPair, error) {
	return e.ocoMgr.Arm(ctx, uuid.New().String(), legA, legB, nowMS())
}

// Start launches every per-cadence background loop. It blocks until ctx is
// cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.wg.Add(4)
	go e.runExitLoop(ctx)
	go e.runLossCutterLoop(ctx)
	go e.runOCOLoop(ctx)
	go e.runPlannerLoop(ctx)

	go func() {
		if err := e.health.Start(); err != nil {
			e.logger.Error("healthapi server error", zap.Error(err))
		}
	}()
	go e.hub.Run()

	select {
	case <-ctx.Done():
	case <-e.stopCh:
	}
	return nil
}

// Stop drains the per-cadence loops with a bounded deadline, persists
// final state, and shuts the health server down.
func (e *Engine) Stop(ctx context.Context) error {
	close(e.stopCh)

	deadline, cancel := context.WithTimeout(ctx, shutdownDeadline)
	defer cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-deadline.Done():
		e.logger.Warn("shutdown deadline exceeded, forcing exit")
	}

	e.busCancel()
	e.hub.Close()
	return e.health.Stop(deadline)
}

func (e *Engine) runExitLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(exitCadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.cycleExits(ctx)
		}
	}
}

func (e *Engine) cycleExits(ctx context.Context) {
	cur := e.cfg.Current()
	for _, symbol := range e.symbols {
		snap, ok := e.LatestSnapshot(symbol)
		if !ok {
			continue
		}
		positions, err := e.gw.ListPositions(ctx)
		if err != nil {
			continue
		}
		for _, pos := range positions {
			if pos.Symbol != symbol {
				continue
			}
			if _, tracked := e.exits.Rule(pos.Ticket); !tracked {
				e.exits.Track(pos, nowMS())
			}
			in := exitInputsFromSnapshot(snap, pos, cur)
			e.exits.Cycle(ctx, pos, in)
			if updated, ok := e.exits.Rule(pos.Ticket); ok {
				healthapi.IncExitTransition(updated.State.String())
				_ = e.store.SaveExitRule(pos.Ticket, *updated)
				if updated.State == types.Closed {
					e.hub.Notify(healthapi.Notification{
						Type: healthapi.NotifyExitTransition, Symbol: symbol,
						Payload: map[string]string{"state": updated.State.String()}, Timestamp: nowMS(),
					})
				}
			}
		}
	}
}

func (e *Engine) runLossCutterLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(lossCadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.cycleLossCutter(ctx)
		}
	}
}

func (e *Engine) cycleLossCutter(ctx context.Context) {
	cur := e.cfg.Current()
	for _, symbol := range e.symbols {
		snap, ok := e.LatestSnapshot(symbol)
		if !ok {
			continue
		}
		positions, err := e.gw.ListPositions(ctx)
		if err != nil {
			continue
		}
		for _, pos := range positions {
			if pos.Symbol != symbol {
				continue
			}
			in := lossCutterInputsFromSnapshot(snap, pos, cur)
			decision := e.scorer.Evaluate(in)
			healthapi.IncLossCutterAction(string(decision.Action))
			if decision.Action == losscutter.Exit {
				if err := e.gw.ClosePosition(ctx, pos.Ticket, pos.Volume); err == nil {
					e.hub.Notify(healthapi.Notification{
						Type: healthapi.NotifyLossCutterAction, Symbol: symbol,
						Payload: decision, Timestamp: nowMS(),
					})
				}
			} else if decision.Action == losscutter.Tighten && !decision.NewSL.IsZero() {
				_ = e.gw.ModifyPosition(ctx, pos.Ticket, decision.NewSL, pos.TP)
			}
		}
	}
}

func (e *Engine) runOCOLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(ocoCadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.ocoMgr.Poll(ctx, nowMS())
		}
	}
}

func (e *Engine) runPlannerLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(plannerCadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.cyclePlanner(ctx)
		}
	}
}

func (e *Engine) cyclePlanner(ctx context.Context) {
	now := nowMS()
	for _, symbol := range e.symbols {
		snap, ok := e.LatestSnapshot(symbol)
		if !ok {
			continue
		}
		evalCtx := planner.EvalContext{
			NowEpochMS: now,
			Session:    sessionForEpochMS(now),
			NewsClear:  true,
		}
		e.plans.Evaluate(ctx, snap, evalCtx)
	}
}

// Snapshot implements healthapi.Reporter.
func (e *Engine) Snapshot() healthapi.HealthSnapshot {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()

	now := nowMS()
	symbols := make([]healthapi.SymbolHealth, 0, len(e.latest))
	for sym, snap := range e.latest {
		for tf, view := range snap.Views {
			symbols = append(symbols, healthapi.SymbolHealth{
				Symbol:       sym,
				Timeframe:    string(tf),
				FreshMs:      now - view.LastUpdated,
				Stale:        view.Stale,
				DegradedMode: snap.Stale,
			})
		}
	}

	return healthapi.HealthSnapshot{
		Status:      "ok",
		TimeUnixMS:  now,
		Components:  map[string]bool{"gateway": true, "exitmanager": true, "losscutter": true, "oco": true, "planner": true},
		Symbols:     symbols,
		QueueDepths: map[string]int{},
	}
}

func exitInputsFromSnapshot(snap types.Snapshot, pos types.Position, cur config.Config) exitmanager.Inputs {
	m15 := snap.View(types.M15)
	price, _ := currentPriceOf(m15)
	atr, _ := m15.Features.ATR14.Get()
	return exitmanager.Inputs{
		CurrentPrice: price,
		ATR:          atr,
		EMA200:       m15.Features.EMA200,
	}
}

func lossCutterInputsFromSnapshot(snap types.Snapshot, pos types.Position, cur config.Config) losscutter.Inputs {
	m15 := snap.View(types.M15)
	price, _ := currentPriceOf(m15)
	atr, _ := m15.Features.ATR14.Get()
	return losscutter.Inputs{
		Position:           pos,
		CurrentPrice:       price,
		CurrentSL:          pos.SL,
		ATR:                atr,
		ADX:                m15.Features.ADX14,
		RSI:                m15.Features.RSI14,
		MACDHist:           m15.Features.MACDHist,
		EMA20:              m15.Features.EMA20,
		EMA50:              m15.Features.EMA50,
		LastSwingHigh:      m15.Features.LastSwingHigh,
		LastSwingLow:       m15.Features.LastSwingLow,
		Candles:            m15.Candles,
		SessionTime:        time.UnixMilli(nowMS()),
		EarlyExitR:         cur.LossCutter.EarlyExitR,
		RiskScoreThreshold: cur.LossCutter.RiskScoreThreshold,
		SpreadATRCapRatio:  cur.LossCutter.SpreadATRCap,
	}
}

func currentPriceOf(view types.TimeframeView) (decimal.Decimal, bool) {
	if view.HasOpen {
		return view.Open.Close, true
	}
	if n := len(view.Candles); n > 0 {
		return view.Candles[n-1].Close, true
	}
	return decimal.Zero, false
}

func nowMS() int64 { return time.Now().UnixMilli() }

// sessionForEpochMS classifies the UTC hour of epochMS into the session
// tag used by the router, validator, and planner (§4.5, §4.6): Asia
// 00:00-08:00, London 08:00-13:00, the London/NY overlap 13:00-16:00, NY
// 16:00-21:00, off-hours otherwise.
func sessionForEpochMS(epochMS int64) types.Session {
	hour := time.UnixMilli(epochMS).UTC().Hour()
	switch {
	case hour >= 0 && hour < 8:
		return types.SessionAsia
	case hour >= 8 && hour < 13:
		return types.SessionLondon
	case hour >= 13 && hour < 16:
		return types.SessionOverlap
	case hour >= 16 && hour < 21:
		return types.SessionNY
	default:
		return types.SessionOffHours
	}
}
