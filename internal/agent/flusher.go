package agent

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pokeagent/internal/logger"
	"pokeagent/internal/store"
	"pokeagent/pkg/logging"
	"pokeagent/pkg/metrics"
	"pokeagent/pkg/tracing"
)

// Flusher periodically hands buffered outcomes to the store and asks for
// their deliveries to be acknowledged.
type Flusher struct {
	inbox    <-chan BufferedOutcome
	writer   store.Writer
	acks     *AckEmitter
	interval time.Duration
	logger   logger.Logger

	mu        sync.Mutex
	lastFlush time.Time
	flushed   uint64
}

func NewFlusher(inbox <-chan BufferedOutcome, writer store.Writer, acks *AckEmitter, interval time.Duration, log logger.Logger) *Flusher {
	return &Flusher{
		inbox:    inbox,
		writer:   writer,
		acks:     acks,
		interval: interval,
		logger:   log,
	}
}

// Run flushes on every tick until ctx is done.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Flush(ctx)
		}
	}
}

// Flush takes every outcome ready in the inbox without waiting for more.
// Each one is translated, written and then emitted for acknowledgement, in
// the order it was taken. A failed write is logged and the outcome is
// acknowledged anyway. It returns the number of outcomes taken.
func (f *Flusher) Flush(ctx context.Context) int {
	batch := f.drain()

	metrics.FlushesTotal.Inc()
	metrics.BufferedResults.Set(float64(len(batch)))
	f.logger.Debugw("Flush tick", "outcomes", len(batch))

	if len(batch) == 0 {
		return 0
	}

	ctx, span := tracing.Tracer().Start(ctx, "agent.flush",
		trace.WithAttributes(attribute.Int("flush.outcomes", len(batch))),
	)
	defer span.End()

	failed := 0
	for _, bo := range batch {
		if err := f.write(ctx, bo); err != nil {
			failed++
		}
		f.acks.Emit(bo.Token)
	}

	if failed > 0 {
		span.SetStatus(codes.Error, "store write failed")
		span.SetAttributes(attribute.Int("flush.failed_writes", failed))
	}

	f.mu.Lock()
	f.lastFlush = time.Now()
	f.flushed += uint64(len(batch))
	f.mu.Unlock()

	return len(batch)
}

func (f *Flusher) write(ctx context.Context, bo BufferedOutcome) error {
	points := Translate(bo)
	if len(points) == 0 {
		return nil
	}

	ctx = logging.WithDeliveryTag(ctx, bo.Token.Tag())
	ctx = logging.WithDomain(ctx, bo.Request.URL)

	if err := f.writer.Write(ctx, points); err != nil {
		f.logger.ErrorwCtx(ctx, "Failed to write metric points",
			"store", f.writer.Name(),
			"points", len(points),
			"error", err,
		)
		return err
	}

	f.logger.DebugwCtx(ctx, "Metric points written",
		"store", f.writer.Name(),
		"points", len(points),
	)
	return nil
}

func (f *Flusher) drain() []BufferedOutcome {
	var batch []BufferedOutcome
	for {
		select {
		case bo := <-f.inbox:
			batch = append(batch, bo)
		default:
			return batch
		}
	}
}

// Stats returns the time of the last non-empty flush and the number of
// outcomes flushed so far.
func (f *Flusher) Stats() (time.Time, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFlush, f.flushed
}
