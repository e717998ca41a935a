package check

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"pokeagent/internal/constants"
)

// maxDrainBytes bounds how much of a body is read to measure its length
// when the server did not announce it.
const maxDrainBytes = 10 << 20

type HTTPGetter struct {
	timeout    time.Duration
	skipVerify bool
	transport  http.RoundTripper
	client     *http.Client
}

type Option func(*HTTPGetter) error

// WithTimeout bounds each GET, connection and headers included.
func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGetter) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		g.timeout = d
		return nil
	}
}

func WithSkipVerify(skip bool) Option {
	return func(g *HTTPGetter) error {
		g.skipVerify = skip
		return nil
	}
}

// WithTransport replaces the HTTP transport. The skip-verify option has no
// effect on a custom transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(g *HTTPGetter) error {
		if rt == nil {
			return fmt.Errorf("transport must not be nil")
		}
		g.transport = rt
		return nil
	}
}

func NewHTTPGetter(opts ...Option) (*HTTPGetter, error) {
	g := &HTTPGetter{
		timeout: constants.DefaultCheckTimeout,
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("http getter: %w", err)
		}
	}

	transport := g.transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: g.skipVerify}
		t.DisableKeepAlives = true
		transport = t
	}

	g.client = &http.Client{
		Timeout:   g.timeout,
		Transport: transport,
	}

	return g, nil
}

// Get measures the time until the response headers arrive, then drains the
// body to learn its length when Content-Length was absent.
func (g *HTTPGetter) Get(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", constants.ServiceName)

	start := time.Now()
	resp, err := g.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Response{}, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	length := resp.ContentLength
	if length < 0 {
		n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		length = n
	}

	return Response{
		StatusCode:    resp.StatusCode,
		Elapsed:       elapsed,
		ContentLength: length,
		Header:        resp.Header,
	}, nil
}
