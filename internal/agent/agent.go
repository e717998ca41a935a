package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pokeagent/internal/broker"
	"pokeagent/internal/check"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	"pokeagent/internal/store"
	apperrors "pokeagent/pkg/errors"
	"pokeagent/pkg/logging"
	"pokeagent/pkg/metrics"
	"pokeagent/pkg/models"
	"pokeagent/pkg/tracing"
)

type Options struct {
	BufferInterval time.Duration
	InboxSize      int
	Workers        int
	CheckTimeout   time.Duration
}

// Agent consumes work requests, checks them off the dispatch loop, and
// acknowledges each delivery once its outcome was handed to the store.
type Agent struct {
	consumer broker.Consumer
	checker  Checker
	writer   store.Writer
	logger   logger.Logger
	opts     Options

	acks    *AckEmitter
	inbox   chan BufferedOutcome
	flusher *Flusher
	pool    *Pool
	stopped chan struct{}

	mu       sync.Mutex
	inFlight map[broker.AckToken]struct{}

	running   atomic.Bool
	acked     atomic.Uint64
	malformed atomic.Uint64

	now func() time.Time
}

func New(consumer broker.Consumer, checker Checker, writer store.Writer, opts Options, log logger.Logger) *Agent {
	if opts.InboxSize <= 0 {
		opts.InboxSize = constants.DefaultInboxSize
	}
	if opts.BufferInterval <= 0 {
		opts.BufferInterval = time.Duration(constants.DefaultBufferInSeconds) * time.Second
	}

	acks := NewAckEmitter()
	inbox := make(chan BufferedOutcome, opts.InboxSize)

	return &Agent{
		consumer: consumer,
		checker:  checker,
		writer:   writer,
		logger:   log,
		opts:     opts,
		acks:     acks,
		inbox:    inbox,
		flusher:  NewFlusher(inbox, writer, acks, opts.BufferInterval, log),
		pool:     NewPool(opts.Workers),
		stopped:  make(chan struct{}),
		inFlight: make(map[broker.AckToken]struct{}),
		now:      time.Now,
	}
}

// Run consumes until ctx is cancelled, then drains: it waits for running
// checks, flushes once more and acknowledges what was flushed. If the
// broker ends the stream first, Run returns ErrStreamClosed. The consumer
// is left open for the caller to close.
func (a *Agent) Run(ctx context.Context) error {
	deliveries, err := a.consumer.Subscribe(ctx)
	if err != nil {
		return apperrors.ErrBroker.WithCause(err).AsFatal()
	}

	a.running.Store(true)
	defer a.running.Store(false)

	a.logger.Infow("Agent started",
		"broker", a.consumer.Name(),
		"store", a.writer.Name(),
		"buffer_interval", a.opts.BufferInterval.String(),
		"workers", a.opts.Workers,
	)

	// The flusher outlives ctx so that checks still running at shutdown
	// can be flushed; drain stops it.
	flushCtx, stopFlusher := context.WithCancel(context.WithoutCancel(ctx))
	defer stopFlusher()

	flusherDone := make(chan struct{})
	go func() {
		defer close(flusherDone)
		a.flusher.Run(flushCtx)
	}()

	for ev := range Unify(ctx, deliveries, a.acks) {
		switch ev.Kind {
		case EventInbound:
			a.dispatch(ctx, ev.Delivery)
		case EventAck:
			a.ack(ctx, ev.Token)
		}
	}

	if ctx.Err() == nil {
		stopFlusher()
		<-flusherDone
		close(a.stopped)
		a.logger.Errorw("Delivery stream ended", "broker", a.consumer.Name())
		return ErrStreamClosed
	}

	a.drain(stopFlusher, flusherDone)
	return nil
}

func (a *Agent) dispatch(ctx context.Context, d broker.Delivery) {
	ctx = logging.WithDeliveryTag(ctx, d.Token.Tag())

	req, err := models.DecodeWorkRequest(d.Body)
	if err != nil {
		if apperrors.IsDecode(err) {
			a.malformed.Add(1)
			metrics.IncDelivery(a.consumer.Name(), "malformed")
		}
		a.logger.WarnwCtx(ctx, "Dropping malformed work request",
			"error", err,
			"size", len(d.Body),
		)
		if err := a.consumer.Release(ctx, d.Token); err != nil {
			a.logger.ErrorwCtx(ctx, "Failed to release delivery", "error", err)
		}
		return
	}
	metrics.IncDelivery(a.consumer.Name(), "accepted")

	a.mu.Lock()
	if _, dup := a.inFlight[d.Token]; dup {
		a.mu.Unlock()
		a.logger.WarnwCtx(ctx, "Delivery already in flight, skipping", "token", d.Token.String())
		return
	}
	a.inFlight[d.Token] = struct{}{}
	a.mu.Unlock()

	ctx = logging.WithDomain(ctx, req.URL)
	a.logger.DebugwCtx(ctx, "Work request accepted")

	a.pool.Submit(ctx, func() {
		a.runCheck(ctx, d, req)
	}, func(err error) {
		a.logger.WarnwCtx(ctx, "Check abandoned before it started", "error", err)
	})
}

// runCheck executes on a pool goroutine. A cancelled run context does not
// cut a started check short; only the check timeout does.
func (a *Agent) runCheck(ctx context.Context, d broker.Delivery, req models.WorkRequest) {
	checkCtx, span := tracing.StartSpanFromHeaders(context.WithoutCancel(ctx), "agent.check", d.Headers)
	defer span.End()

	if a.opts.CheckTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(checkCtx, a.opts.CheckTimeout)
		defer cancel()
	}

	bo := BufferedOutcome{
		Outcomes:  a.safeCheck(checkCtx, req.URL),
		Timestamp: a.now(),
		Token:     d.Token,
		Request:   req,
	}

	select {
	case a.inbox <- bo:
	case <-a.stopped:
		a.logger.WarnwCtx(ctx, "Agent stopped, outcome left unacknowledged")
	}
}

// safeCheck reports a panicking check as failed on every scheme.
func (a *Agent) safeCheck(ctx context.Context, domain string) (outcomes []check.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.RecoverPanic(r)
			a.logger.ErrorwCtx(ctx, "Check panicked", "error", err)
			outcomes = make([]check.Outcome, len(check.Schemes))
			for i, scheme := range check.Schemes {
				outcomes[i] = check.Outcome{Scheme: scheme, Err: err}
			}
		}
	}()

	return a.checker.Check(ctx, domain)
}

func (a *Agent) ack(ctx context.Context, token broker.AckToken) {
	ctx = logging.WithDeliveryTag(ctx, token.Tag())

	a.mu.Lock()
	_, ok := a.inFlight[token]
	delete(a.inFlight, token)
	a.mu.Unlock()

	if !ok {
		a.logger.WarnwCtx(ctx, "Ack requested for unknown delivery, skipping", "token", token.String())
		return
	}

	if err := a.consumer.Ack(ctx, token); err != nil {
		a.logger.ErrorwCtx(ctx, "Failed to acknowledge delivery", "error", err)
		return
	}

	a.acked.Add(1)
	a.logger.DebugwCtx(ctx, "Delivery acknowledged")
}

func (a *Agent) drain(stopFlusher context.CancelFunc, flusherDone <-chan struct{}) {
	a.logger.Infow("Draining agent", "in_flight", a.pool.Running())

	waitCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := a.pool.Wait(waitCtx); err != nil {
		a.logger.Warnw("Checks still running at shutdown, their deliveries stay unacknowledged",
			"running", a.pool.Running(),
		)
	}
	close(a.stopped)

	stopFlusher()
	<-flusherDone

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancelFlush()

	flushed := a.flusher.Flush(flushCtx)
	tokens := a.acks.TakeAll()
	for _, token := range tokens {
		a.ack(flushCtx, token)
	}

	a.logger.Infow("Agent drained",
		"flushed", flushed,
		"acked", len(tokens),
	)
}

func (a *Agent) Status() Status {
	a.mu.Lock()
	inFlight := len(a.inFlight)
	a.mu.Unlock()

	lastFlush, flushed := a.flusher.Stats()

	healthy := true
	if h, ok := a.writer.(interface{ Healthy() bool }); ok {
		healthy = h.Healthy()
	}

	return Status{
		Running:      a.running.Load(),
		InFlight:     inFlight,
		InboxDepth:   len(a.inbox),
		PendingAcks:  a.acks.Len(),
		LastFlush:    lastFlush,
		Flushed:      flushed,
		Acked:        a.acked.Load(),
		Malformed:    a.malformed.Load(),
		StoreHealthy: healthy,
	}
}

// HealthCheck fails once the agent stopped running.
func (a *Agent) HealthCheck(ctx context.Context) error {
	if !a.running.Load() {
		return fmt.Errorf("agent is not running")
	}
	return nil
}
