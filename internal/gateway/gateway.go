// Package gateway implements C7, the order gateway adapter: a thin,
// serialized port over a broker connection that normalizes retcodes,
// truncates order comments, re-validates market orders against the live
// price, and retries transient failures with backoff. Grounded on the
// teacher's internal/execution Executor/ExchangeAdapter split, adapted
// from a multi-exchange crypto executor to a single-broker FX/CFD port.
package gateway

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
	"github.com/silverline-labs/tradeengine/pkg/utils"
)

// maxCommentBytes is the broker's order-comment field limit (§6.1).
const maxCommentBytes = 31

// marketMovedTolerancePct bounds how far the live price may have moved
// from the advisor's entry before a market order is rejected.
const marketMovedTolerancePct = 0.0015

// Broker is the underlying connection port this adapter drives. A real
// implementation dials a broker terminal/FIX session; tests and dry-run
// mode use an in-memory fake.
type Broker interface {
	SubscribeTicks(ctx context.Context, symbols []string) (<-chan types.Tick, error)
	FetchCandles(ctx context.Context, symbol string, tf types.Timeframe, n int) ([]types.Candle, error)
	ListPositions(ctx context.Context) ([]types.Position, error)
	ListPendingOrders(ctx context.Context) ([]types.PendingOrder, error)
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (types.PlaceOrderResult, error)
	ModifyPosition(ctx context.Context, ticket uint64, sl, tp decimal.Decimal) error
	ClosePosition(ctx context.Context, ticket uint64, volume decimal.Decimal) error
	CancelOrder(ctx context.Context, ticket uint64) error
	SymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error)
	LivePrice(ctx context.Context, symbol string, side types.OrderSide) (decimal.Decimal, error)
}

// PlaceOrderRequest is the normalized order request this adapter sends to
// the broker, after validation, volume capping, and comment truncation.
type PlaceOrderRequest struct {
	Symbol    string
	Side      types.OrderSide
	OrderType types.OrderType
	Price     decimal.Decimal
	SL        decimal.Decimal
	TP        decimal.Decimal
	Volume    decimal.Decimal
	Comment   string
	TypeTime  string // always "GTC" (§6.1)
}

// Gateway is the C7 broker gateway adapter.
type Gateway struct {
	logger  *zap.Logger
	broker  Broker
	caps    types.SymbolVolumeCaps
	retry   utils.RetryConfig
	dryRun  bool

	mu sync.Mutex // serializes all broker calls (§9: no concurrent broker access)
}

// NewGateway builds a C7 gateway. dryRun, when true, validates and logs
// every call without forwarding PlaceOrder/ModifyPosition/ClosePosition/
// CancelOrder to the broker.
func NewGateway(logger *zap.Logger, broker Broker, caps types.SymbolVolumeCaps, dryRun bool) *Gateway {
	return &Gateway{
		logger: logger.Named("gateway"),
		broker: broker,
		caps:   caps,
		retry:  utils.DefaultRetryConfig(),
		dryRun: dryRun,
	}
}

// SubscribeTicks passes through to the broker; no retry since it is a
// long-lived stream, not a single call.
func (g *Gateway) SubscribeTicks(ctx context.Context, symbols []string) (<-chan types.Tick, error) {
	return g.broker.SubscribeTicks(ctx, symbols)
}

// FetchCandles retries transient failures with the standard backoff.
func (g *Gateway) FetchCandles(ctx context.Context, symbol string, tf types.Timeframe, n int) ([]types.Candle, error) {
	return utils.Retry(ctx, g.retry, func() ([]types.Candle, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.broker.FetchCandles(ctx, symbol, tf, n)
	})
}

// ListPositions retries transient failures.
func (g *Gateway) ListPositions(ctx context.Context) ([]types.Position, error) {
	return utils.Retry(ctx, g.retry, func() ([]types.Position, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.broker.ListPositions(ctx)
	})
}

// ListPendingOrders retries transient failures.
func (g *Gateway) ListPendingOrders(ctx context.Context) ([]types.PendingOrder, error) {
	return utils.Retry(ctx, g.retry, func() ([]types.PendingOrder, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.broker.ListPendingOrders(ctx)
	})
}

// SymbolInfo retries transient failures.
func (g *Gateway) SymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	return utils.Retry(ctx, g.retry, func() (types.SymbolInfo, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.broker.SymbolInfo(ctx, symbol)
	})
}

// PlaceOrder normalizes a validated TradeSpec into a broker order: caps
// volume to the symbol's class limit, truncates the comment to 31 bytes,
// forces type_time=GTC, and for market orders re-validates against the
// live price before sending (rejecting on market_moved). Limit and stop
// orders keep the advisor's original entry price unmodified.
func (g *Gateway) PlaceOrder(ctx context.Context, spec types.TradeSpec, comment string) (types.PlaceOrderResult, error) {
	volume := utils.MinDecimal(spec.Volume, g.caps.CapFor(spec.Symbol))

	req := PlaceOrderRequest{
		Symbol:    spec.Symbol,
		Side:      spec.Side,
		OrderType: spec.OrderType,
		Price:     spec.Entry,
		SL:        spec.SL,
		TP:        spec.TP,
		Volume:    volume,
		Comment:   truncateComment(comment),
		TypeTime:  "GTC",
	}

	if spec.OrderType == types.OrderMarket {
		live, err := g.broker.LivePrice(ctx, spec.Symbol, spec.Side)
		if err != nil {
			return types.PlaceOrderResult{Retcode: types.RetTransient, Reason: "live_price_unavailable"}, err
		}
		if priceMovedTooFar(spec.Entry, live) {
			g.logger.Warn("market order rejected: price moved",
				zap.String("symbol", spec.Symbol), zap.String("entry", spec.Entry.String()), zap.String("live", live.String()))
			return types.PlaceOrderResult{Retcode: types.RetRejected, Reason: "market_moved"}, nil
		}
		req.Price = live
	}

	if g.dryRun {
		g.logger.Info("dry_run place_order", zap.String("symbol", req.Symbol), zap.String("side", string(req.Side)),
			zap.String("volume", req.Volume.String()), zap.String("comment", req.Comment))
		return types.PlaceOrderResult{Ticket: 0, Retcode: types.RetOK, Reason: "dry_run"}, nil
	}

	return utils.Retry(ctx, g.retry, func() (types.PlaceOrderResult, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.broker.PlaceOrder(ctx, req)
	})
}

// ModifyPosition retries transient failures; dry-run mode logs and no-ops.
func (g *Gateway) ModifyPosition(ctx context.Context, ticket uint64, sl, tp decimal.Decimal) error {
	if g.dryRun {
		g.logger.Info("dry_run modify_position", zap.Uint64("ticket", ticket), zap.String("sl", sl.String()), zap.String("tp", tp.String()))
		return nil
	}
	_, err := utils.Retry(ctx, g.retry, func() (struct{}, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return struct{}{}, g.broker.ModifyPosition(ctx, ticket, sl, tp)
	})
	return err
}

// ClosePosition retries transient failures; dry-run mode logs and no-ops.
func (g *Gateway) ClosePosition(ctx context.Context, ticket uint64, volume decimal.Decimal) error {
	if g.dryRun {
		g.logger.Info("dry_run close_position", zap.Uint64("ticket", ticket), zap.String("volume", volume.String()))
		return nil
	}
	_, err := utils.Retry(ctx, g.retry, func() (struct{}, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return struct{}{}, g.broker.ClosePosition(ctx, ticket, volume)
	})
	return err
}

// CancelOrder retries transient failures; dry-run mode logs and no-ops.
func (g *Gateway) CancelOrder(ctx context.Context, ticket uint64) error {
	if g.dryRun {
		g.logger.Info("dry_run cancel_order", zap.Uint64("ticket", ticket))
		return nil
	}
	_, err := utils.Retry(ctx, g.retry, func() (struct{}, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return struct{}{}, g.broker.CancelOrder(ctx, ticket)
	})
	return err
}

func truncateComment(c string) string {
	b := []byte(c)
	if len(b) <= maxCommentBytes {
		return c
	}
	return string(b[:maxCommentBytes])
}

func priceMovedTooFar(entry, live decimal.Decimal) bool {
	if entry.IsZero() {
		return false
	}
	diff := entry.Sub(live).Abs().Div(entry)
	return diff.GreaterThan(decimal.NewFromFloat(marketMovedTolerancePct))
}
