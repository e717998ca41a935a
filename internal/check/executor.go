package check

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
	"pokeagent/pkg/logging"
	"pokeagent/pkg/metrics"
	"pokeagent/pkg/tracing"
)

// Executor checks a domain over every scheme in Schemes. It never retries.
type Executor struct {
	getter  Getter
	logger  logger.Logger
	limiter *rate.Limiter
	verbose bool
}

type ExecutorOption func(*Executor)

// WithRateLimit caps outbound GETs per second across all checks. Zero or a
// negative value means unlimited.
func WithRateLimit(perSecond float64) ExecutorOption {
	return func(e *Executor) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithVerbose logs every response's headers.
func WithVerbose(verbose bool) ExecutorOption {
	return func(e *Executor) {
		e.verbose = verbose
	}
}

func NewExecutor(getter Getter, log logger.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		getter: getter,
		logger: log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check GETs http://<domain> and https://<domain> concurrently and returns
// one outcome per scheme, in the order of Schemes.
func (e *Executor) Check(ctx context.Context, domain string) []Outcome {
	ctx = logging.WithDomain(ctx, domain)
	ctx, span := tracing.Tracer().Start(ctx, "check.domain",
		trace.WithAttributes(attribute.String("domain", domain)),
	)
	defer span.End()

	outcomes := make([]Outcome, len(Schemes))

	var wg sync.WaitGroup
	for i, scheme := range Schemes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = e.checkScheme(ctx, scheme, domain)
		}()
	}
	wg.Wait()

	failures := 0
	for _, o := range outcomes {
		if !o.OK() {
			failures++
		}
	}
	span.SetAttributes(attribute.Int("check.failures", failures))
	if failures == len(outcomes) {
		span.SetStatus(codes.Error, "all schemes failed")
	}

	return outcomes
}

func (e *Executor) checkScheme(ctx context.Context, scheme, domain string) Outcome {
	url := fmt.Sprintf("%s://%s", scheme, domain)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return e.fail(ctx, scheme, url, fmt.Errorf("rate limiter: %w", err))
		}
	}

	resp, err := e.getter.Get(ctx, url)
	if err != nil {
		return e.fail(ctx, scheme, url, err)
	}

	res := &Result{
		URL:           url,
		StatusCode:    resp.StatusCode,
		Latency:       resp.Elapsed,
		ContentLength: resp.ContentLength,
		Header:        resp.Header,
	}

	metrics.IncCheck("success")
	metrics.ObserveCheckLatency(res.StatusCode, res.LatencyMillis())

	if e.verbose {
		marker := animal()
		e.logger.InfowCtx(ctx, marker+" check response",
			"url", url,
			"status", res.StatusCode,
			"latency_ms", res.LatencyMillis(),
			"content_length", res.ContentLength,
		)
		for name, values := range res.Header {
			e.logger.InfowCtx(ctx, marker+" header",
				"url", url,
				"name", name,
				"value", values,
			)
		}
	} else {
		e.logger.DebugwCtx(ctx, "Check succeeded",
			"url", url,
			"status", res.StatusCode,
			"latency_ms", res.LatencyMillis(),
		)
	}

	return Outcome{Scheme: scheme, Result: res}
}

// fail records a transport failure. A timeout keeps ErrTransport as its
// kind and carries ErrTimeout underneath.
func (e *Executor) fail(ctx context.Context, scheme, url string, cause error) Outcome {
	if isTimeout(cause) {
		cause = apperrors.ErrTimeout.WithCause(cause)
	}

	metrics.IncCheck("failure")
	e.logger.WarnwCtx(ctx, "Check failed",
		"url", url,
		"error", cause,
	)
	return Outcome{
		Scheme: scheme,
		Err:    ErrTransport.WithCause(cause).WithDetail("url", url),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
