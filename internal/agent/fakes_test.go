package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"pokeagent/internal/broker"
	"pokeagent/internal/check"
	"pokeagent/internal/store"
)

type fakeConsumer struct {
	deliveries chan broker.Delivery
	subErr     error

	mu       sync.Mutex
	acked    []broker.AckToken
	released []broker.AckToken
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{deliveries: make(chan broker.Delivery, 128)}
}

func (c *fakeConsumer) Subscribe(ctx context.Context) (<-chan broker.Delivery, error) {
	if c.subErr != nil {
		return nil, c.subErr
	}
	return c.deliveries, nil
}

func (c *fakeConsumer) Ack(ctx context.Context, token broker.AckToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, token)
	return nil
}

func (c *fakeConsumer) Release(ctx context.Context, token broker.AckToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, token)
	return nil
}

func (c *fakeConsumer) Close() error               { return nil }
func (c *fakeConsumer) SetServiceName(name string) {}
func (c *fakeConsumer) Name() string               { return "fake" }

func (c *fakeConsumer) send(tag uint64, body string) broker.AckToken {
	token := broker.NewAckToken(tag)
	c.deliveries <- broker.Delivery{Body: []byte(body), Token: token, ReceivedAt: time.Now()}
	return token
}

func (c *fakeConsumer) Acked() []broker.AckToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]broker.AckToken(nil), c.acked...)
}

func (c *fakeConsumer) Released() []broker.AckToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]broker.AckToken(nil), c.released...)
}

type fakeWriter struct {
	err error

	mu     sync.Mutex
	writes [][]store.Point
}

func (w *fakeWriter) Write(ctx context.Context, points []store.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, points)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }
func (w *fakeWriter) Name() string { return "fake" }

func (w *fakeWriter) Writes() [][]store.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]store.Point(nil), w.writes...)
}

// fakeChecker answers http with 200 in 12ms; https fails when httpsDown.
type fakeChecker struct {
	httpsDown bool
	panics    bool
}

func (c fakeChecker) Check(ctx context.Context, domain string) []check.Outcome {
	if c.panics {
		panic("boom")
	}

	ok := func(scheme string) check.Outcome {
		return check.Outcome{Scheme: scheme, Result: &check.Result{
			URL:        scheme + "://" + domain,
			StatusCode: 200,
			Latency:    12 * time.Millisecond,
		}}
	}

	out := []check.Outcome{ok(check.SchemeHTTP), ok(check.SchemeHTTPS)}
	if c.httpsDown {
		out[1] = check.Outcome{Scheme: check.SchemeHTTPS, Err: check.ErrTransport.WithCause(errors.New("tls handshake"))}
	}
	return out
}

// slowChecker answers like fakeChecker after delay.
type slowChecker struct {
	delay time.Duration
}

func (c slowChecker) Check(ctx context.Context, domain string) []check.Outcome {
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
	}
	return fakeChecker{}.Check(ctx, domain)
}

const validBody = `{"labels":{"domain":"example.com"},"url":"example.com",` +
	`"checks":{"latency":{"class_name":"http-latency"},"status":{"class_name":"http-status"}}}`
