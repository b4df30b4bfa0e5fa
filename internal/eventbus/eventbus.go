// Package eventbus implements the C12 bounded event channel between
// components and the single persistence writer. Grounded on the teacher's
// internal/events/event_bus.go worker-pool/buffered-channel design,
// narrowed from N-type pub/sub fan-out to the two-tier priority queue
// described in §4.12: context events are dropped under backpressure, exit
// and stop actions never are.
package eventbus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/silverline-labs/tradeengine/pkg/types"
)

// Priority classifies an event for the backpressure policy.
type Priority int

const (
	// PriorityContext covers feature/classification/telemetry events: safe
	// to drop under backpressure.
	PriorityContext Priority = iota
	// PriorityAction covers exit, stop, and OCO-resolution events: never
	// dropped.
	PriorityAction
)

const (
	contextBufferSize = 4096
	actionBufferSize  = 1024
	batchMaxRows      = 100
	batchMinRows      = 50
	batchMaxWindow    = 200 * time.Millisecond
)

// Writer is the single persistence sink the bus flushes batches to.
type Writer interface {
	AppendEvent(types.Event) error
}

// Bus is the bounded, two-tier event channel feeding the persistence writer.
type Bus struct {
	logger  *zap.Logger
	writer  Writer
	context chan types.Event
	action  chan types.Event
	dropped int64
}

// NewBus creates a bus and starts its batching writer goroutine, stopped
// by cancelling ctx.
func NewBus(ctx context.Context, logger *zap.Logger, writer Writer) *Bus {
	b := &Bus{
		logger:  logger.Named("eventbus"),
		writer:  writer,
		context: make(chan types.Event, contextBufferSize),
		action:  make(chan types.Event, actionBufferSize),
	}
	go b.run(ctx)
	return b
}

// Publish enqueues an event at the given priority. PriorityContext events
// are dropped (and counted) if the context channel is full; PriorityAction
// events block the caller until the action channel accepts them, since they
// must never be silently lost.
func (b *Bus) Publish(e types.Event, p Priority) {
	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	switch p {
	case PriorityAction:
		b.action <- e
	default:
		select {
		case b.context <- e:
		default:
			b.dropped++
			b.logger.Warn("context event dropped under backpressure",
				zap.String("kind", e.Kind), zap.String("component", e.Component))
		}
	}
}

// Dropped returns the count of context events dropped since startup.
func (b *Bus) Dropped() int64 { return b.dropped }

// drainRemaining pulls any events already sitting in the channels at
// shutdown time so a just-published action event is not lost to a race
// between Publish and the ctx.Done() case.
func (b *Bus) drainRemaining(batch *[]types.Event) {
	for {
		select {
		case e := <-b.action:
			*batch = append(*batch, e)
		case e := <-b.context:
			*batch = append(*batch, e)
		default:
			return
		}
	}
}

// run batches events into the writer every batchMaxWindow, or sooner once
// batchMaxRows have accumulated. The action and context channels are read
// by the same select, so neither is given priority over the other.
func (b *Bus) run(ctx context.Context) {
	ticker := time.NewTicker(batchMaxWindow)
	defer ticker.Stop()

	batch := make([]types.Event, 0, batchMaxRows)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			if err := b.writer.AppendEvent(e); err != nil {
				b.logger.Warn("event persist failed", zap.String("kind", e.Kind), zap.Error(err))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			b.drainRemaining(&batch)
			flush()
			return
		case e := <-b.action:
			batch = append(batch, e)
			if len(batch) >= batchMaxRows {
				flush()
			}
		case e := <-b.context:
			batch = append(batch, e)
			if len(batch) >= batchMaxRows {
				flush()
			}
		case <-ticker.C:
			if len(batch) >= batchMinRows || len(batch) > 0 {
				flush()
			}
		}
	}
}
