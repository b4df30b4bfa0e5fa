// Package brokerstub provides an in-memory paper-trading BrokerGateway
// (§6.1's opaque collaborator) for local runs and tests: it never talks
// to a real broker terminal, fills market orders immediately at their
// requested price, parks other order types as pending orders, and
// remembers resulting positions so the C8/C9/C10
// cycles have something to manage. Grounded on the teacher's
// Executor.simulateExecution paper-trading path in
// internal/execution/executor.go, adapted into a standalone Broker
// rather than an Executor-internal branch so it implements the C7
// Broker port directly.
package brokerstub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/silverline-labs/tradeengine/internal/gateway"
	"github.com/silverline-labs/tradeengine/pkg/types"
)

// Broker is a deterministic paper broker: LivePrice always answers a
// caller-seeded quote, PlaceOrder fills market orders and parks the rest as
// pending, and positions persist in memory until ClosePosition removes them.
type Broker struct {
	mu        sync.Mutex
	nextTicket uint64
	prices    map[string]decimal.Decimal
	positions map[uint64]types.Position
	pending   map[uint64]types.PendingOrder
}

// New builds an empty paper broker. SetPrice seeds a symbol's live quote
// before placing market orders against it.
func New() *Broker {
	return &Broker{
		prices:    make(map[string]decimal.Decimal),
		positions: make(map[uint64]types.Position),
		pending:   make(map[uint64]types.PendingOrder),
	}
}

// SetPrice seeds the live quote LivePrice answers for symbol.
func (b *Broker) SetPrice(symbol string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price
}

func (b *Broker) SubscribeTicks(ctx context.Context, symbols []string) (<-chan types.Tick, error) {
	ch := make(chan types.Tick)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (b *Broker) FetchCandles(ctx context.Context, symbol string, tf types.Timeframe, n int) ([]types.Candle, error) {
	return nil, nil
}

func (b *Broker) ListPositions(ctx context.Context) ([]types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out, nil
}

func (b *Broker) ListPendingOrders(ctx context.Context) ([]types.PendingOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.PendingOrder, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p)
	}
	return out, nil
}

func (b *Broker) PlaceOrder(ctx context.Context, req gateway.PlaceOrderRequest) (types.PlaceOrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ticket := atomic.AddUint64(&b.nextTicket, 1)

	if req.OrderType == types.OrderMarket {
		b.positions[ticket] = types.Position{
			Ticket: ticket, Symbol: req.Symbol, Side: req.Side, Volume: req.Volume,
			EntryPrice: req.Price, SL: req.SL, TP: req.TP,
		}
	} else {
		b.pending[ticket] = types.PendingOrder{
			Ticket: ticket, Symbol: req.Symbol, Side: req.Side, OrderType: req.OrderType,
			Price: req.Price, SL: req.SL, TP: req.TP, Volume: req.Volume,
		}
	}
	return types.PlaceOrderResult{Ticket: ticket, Retcode: types.RetOK}, nil
}

func (b *Broker) ModifyPosition(ctx context.Context, ticket uint64, sl, tp decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[ticket]
	if !ok {
		return nil
	}
	pos.SL, pos.TP = sl, tp
	b.positions[ticket] = pos
	return nil
}

func (b *Broker) ClosePosition(ctx context.Context, ticket uint64, volume decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[ticket]
	if !ok {
		return nil
	}
	if volume.GreaterThanOrEqual(pos.Volume) {
		delete(b.positions, ticket)
		return nil
	}
	pos.Volume = pos.Volume.Sub(volume)
	b.positions[ticket] = pos
	return nil
}

func (b *Broker) CancelOrder(ctx context.Context, ticket uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, ticket)
	return nil
}

func (b *Broker) SymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	return types.SymbolInfo{Symbol: symbol}, nil
}

func (b *Broker) LivePrice(ctx context.Context, symbol string, side types.OrderSide) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.prices[symbol]; ok {
		return p, nil
	}
	return decimal.Zero, nil
}
