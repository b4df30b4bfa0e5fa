// Package oco implements C10, the OCO pair manager: atomic two-leg
// bracket arming with rollback on a failed second leg, and a background
// poller that cancels the surviving leg once one side fills. Grounded on
// the teacher's OrderManager.LinkStopLoss/LinkTakeProfit/CancelLinkedOrders
// linked-order bookkeeping in internal/execution/order_manager.go.
package oco

import (
	"context"

	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
	"github.com/silverline-labs/tradeengine/pkg/utils"
)

// Broker is the subset of gateway operations the OCO manager needs.
type Broker interface {
	PlaceOrder(ctx context.Context, spec types.TradeSpec, comment string) (types.PlaceOrderResult, error)
	CancelOrder(ctx context.Context, ticket uint64) error
	ListPositions(ctx context.Context) ([]types.Position, error)
	ListPendingOrders(ctx context.Context) ([]types.PendingOrder, error)
}

// Store persists OCOPair records (§6.4); adapted at the persistence layer.
type Store interface {
	SaveOCOPair(types.OCOPair) error
}

// EventSink records structured events (double-fill, FAILED alerts).
type EventSink interface {
	Emit(types.Event)
}

// Manager is the C10 OCO pair manager.
type Manager struct {
	logger *zap.Logger
	broker Broker
	store  Store
	events EventSink
	retry  utils.RetryConfig

	pairs map[string]*types.OCOPair
}

// NewManager builds a C10 OCO manager.
func NewManager(logger *zap.Logger, broker Broker, store Store, events EventSink) *Manager {
	return &Manager{
		logger: logger.Named("oco"),
		broker: broker,
		store:  store,
		events: events,
		retry:  utils.DefaultRetryConfig(),
		pairs:  make(map[string]*types.OCOPair),
	}
}

// Arm places both legs of a bracket atomically: if the second leg fails,
// the first is rolled back (cancelled) and no pair is persisted.
func (m *Manager) Arm(ctx context.Context, groupID string, legA, legB types.TradeSpec, now int64) (types.OCOPair, error) {
	resA, err := m.broker.PlaceOrder(ctx, legA, groupID+"_A")
	if err != nil || resA.Retcode != types.RetOK {
		return types.OCOPair{}, errOrRetcode(err, resA.Retcode, resA.Reason)
	}

	resB, err := m.broker.PlaceOrder(ctx, legB, groupID+"_B")
	if err != nil || resB.Retcode != types.RetOK {
		_ = m.broker.CancelOrder(ctx, resA.Ticket) // rollback leg A
		return types.OCOPair{}, errOrRetcode(err, resB.Retcode, resB.Reason)
	}

	pair := types.OCOPair{
		GroupID: groupID, Symbol: legA.Symbol,
		OrderATicket: resA.Ticket, OrderBTicket: resB.Ticket,
		SideA: legA.Side, SideB: legB.Side,
		State: types.OCOActive, CreatedAt: now, UpdatedAt: now,
	}
	if err := m.store.SaveOCOPair(pair); err != nil {
		m.logger.Warn("oco pair persist failed after arming", zap.String("group_id", groupID), zap.Error(err))
	}
	m.pairs[groupID] = &pair
	return pair, nil
}

func errOrRetcode(err error, code types.Retcode, reason string) error {
	if err != nil {
		return err
	}
	return &retcodeError{code: code, reason: reason}
}

type retcodeError struct {
	code   types.Retcode
	reason string
}

func (e *retcodeError) Error() string { return string(e.code) + ": " + e.reason }

// Poll checks every ACTIVE or FAILED pair against current positions/pending
// orders (~3s cadence, driven externally): fills trigger cancel-survivor
// and TRIGGERED on success; both legs gone transitions to CANCELLED; a
// cancel that exhausts its retry budget escalates to FAILED instead, and
// stays under poll so a later cancel attempt can still resolve it.
func (m *Manager) Poll(ctx context.Context, now int64) {
	positions, err := m.broker.ListPositions(ctx)
	if err != nil {
		return
	}
	pending, err := m.broker.ListPendingOrders(ctx)
	if err != nil {
		return
	}
	positionTickets := ticketSet(positionsToTickets(positions))
	pendingTickets := ticketSet(pendingToTickets(pending))

	for groupID, pair := range m.pairs {
		if pair.State != types.OCOActive && pair.State != types.OCOFailed {
			continue
		}
		m.pollOne(ctx, groupID, pair, positionTickets, pendingTickets, now)
	}
}

// pollOne re-derives a pair's disposition from the current fill state. A
// FAILED pair (an exhausted-but-unresolved cancel) is re-entered here on
// every cycle too, so a later successful cancel can still resolve it to
// TRIGGERED; cancelSurvivor owns the FAILED transition and pollOne never
// overwrites it with TRIGGERED on its own.
func (m *Manager) pollOne(ctx context.Context, groupID string, pair *types.OCOPair, positions, pending map[uint64]bool, now int64) {
	aFilled := positions[pair.OrderATicket]
	bFilled := positions[pair.OrderBTicket]
	aPending := pending[pair.OrderATicket]
	bPending := pending[pair.OrderBTicket]

	switch {
	case aFilled && bFilled:
		m.events.Emit(types.Event{
			TS: now, Component: "oco", Symbol: pair.Symbol, Kind: "oco_double_fill",
			Severity: types.SeverityWarning, Payload: map[string]any{"group_id": groupID},
		})
		if m.cancelSurvivor(ctx, pair, pair.OrderBTicket, now) {
			pair.State = types.OCOTriggered
		}
		pair.UpdatedAt = now
	case aFilled && !bFilled:
		if m.cancelSurvivor(ctx, pair, pair.OrderBTicket, now) {
			pair.State = types.OCOTriggered
		}
		pair.UpdatedAt = now
	case bFilled && !aFilled:
		if m.cancelSurvivor(ctx, pair, pair.OrderATicket, now) {
			pair.State = types.OCOTriggered
		}
		pair.UpdatedAt = now
	case !aPending && !bPending && !aFilled && !bFilled:
		pair.State = types.OCOCancelled
		pair.UpdatedAt = now
	}

	if pair.State != types.OCOActive {
		if err := m.store.SaveOCOPair(*pair); err != nil {
			m.logger.Warn("oco pair persist failed on transition", zap.String("group_id", groupID), zap.Error(err))
		}
	}
}

// cancelSurvivor cancels the surviving leg, retrying with backoff up to
// the configured budget within this single call. It reports whether the
// cancel ultimately succeeded; on exhaustion it marks the pair FAILED and
// emits a critical alert itself, since pollOne must not also set TRIGGERED
// over that outcome.
func (m *Manager) cancelSurvivor(ctx context.Context, pair *types.OCOPair, ticket uint64, now int64) bool {
	_, err := utils.Retry(ctx, m.retry, func() (struct{}, error) {
		return struct{}{}, m.broker.CancelOrder(ctx, ticket)
	})
	if err == nil {
		return true
	}
	pair.Retries++
	pair.State = types.OCOFailed
	m.events.Emit(types.Event{
		TS: now, Component: "oco", Symbol: pair.Symbol, Kind: "oco_cancel_failed",
		Severity: types.SeverityCritical, Payload: map[string]any{"group_id": pair.GroupID, "ticket": ticket},
	})
	return false
}

func positionsToTickets(positions []types.Position) []uint64 {
	out := make([]uint64, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.Ticket)
	}
	return out
}

func pendingToTickets(pending []types.PendingOrder) []uint64 {
	out := make([]uint64, 0, len(pending))
	for _, p := range pending {
		out = append(out, p.Ticket)
	}
	return out
}

func ticketSet(tickets []uint64) map[uint64]bool {
	m := make(map[uint64]bool, len(tickets))
	for _, t := range tickets {
		m[t] = true
	}
	return m
}

// Pair returns the tracked OCOPair for a group, if any.
func (m *Manager) Pair(groupID string) (types.OCOPair, bool) {
	p, ok := m.pairs[groupID]
	if !ok {
		return types.OCOPair{}, false
	}
	return *p, true
}
