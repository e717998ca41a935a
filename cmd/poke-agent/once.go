package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"pokeagent/internal/agent"
	"pokeagent/internal/check"
	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	"pokeagent/internal/store"
	"pokeagent/pkg/models"
)

// runOnce checks domain, prints what it found and posts the points to
// Warp 10.
func runOnce(ctx context.Context, cfg *config.Config, log logger.Logger, domain string, out io.Writer) error {
	getter, err := check.NewHTTPGetter(
		check.WithTimeout(cfg.Check.Timeout),
		check.WithSkipVerify(cfg.Check.SkipVerify),
	)
	if err != nil {
		return fmt.Errorf("failed to create http getter: %w", err)
	}

	writer, err := store.NewWarp10Writer(cfg.Store.Warp10, log)
	if err != nil {
		return fmt.Errorf("failed to create warp10 writer: %w", err)
	}
	defer writer.Close()

	executor := check.NewExecutor(getter, log, check.WithVerbose(cfg.Check.Verbose))
	return once(ctx, executor, writer, domain, out)
}

func once(ctx context.Context, checker agent.Checker, writer store.Writer, domain string, out io.Writer) error {
	bo := agent.BufferedOutcome{
		Outcomes:  checker.Check(ctx, domain),
		Timestamp: time.Now(),
		Request:   models.NewDomainRequest(domain, constants.DefaultStatusClassName, constants.DefaultLatencyClassName),
	}

	fmt.Fprintln(out, "result:")
	for _, o := range bo.Outcomes {
		if o.OK() {
			fmt.Fprintf(out, "  %s: status=%d latency=%dms content_length=%d\n",
				o.Result.URL, o.Result.StatusCode, o.Result.LatencyMillis(), o.Result.ContentLength)
			continue
		}
		fmt.Fprintf(out, "  %s: error: %v\n", o.Scheme, o.Err)
	}

	points := agent.Translate(bo)
	fmt.Fprintln(out, "data:")
	fmt.Fprint(out, store.EncodeGTS(points))

	if len(points) == 0 {
		fmt.Fprintln(out, "nothing to post")
		return nil
	}

	if err := writer.Write(ctx, points); err != nil {
		return fmt.Errorf("failed to post to %s: %w", writer.Name(), err)
	}

	fmt.Fprintf(out, "posted %d points to %s\n", len(points), writer.Name())
	return nil
}
