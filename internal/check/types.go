package check

import (
	"context"
	"net/http"
	"time"

	"pokeagent/internal/constants"
	apperrors "pokeagent/pkg/errors"
)

const (
	SchemeHTTP  = constants.SchemeHTTP
	SchemeHTTPS = constants.SchemeHTTPS
)

// Schemes is the fixed order in which a domain is checked and in which
// outcomes are reported.
var Schemes = []string{SchemeHTTP, SchemeHTTPS}

// ErrTransport is the single error kind for a check that got no HTTP
// response: timeout, DNS, TLS or refused connection. The cause is kept.
var ErrTransport = apperrors.ErrTransport

type Result struct {
	URL           string
	StatusCode    int
	Latency       time.Duration
	ContentLength int64
	Header        http.Header
}

// LatencyMillis is the latency in whole milliseconds.
func (r Result) LatencyMillis() int64 {
	return r.Latency.Milliseconds()
}

// Outcome is the result of checking one scheme. Exactly one of Result and
// Err is set.
type Outcome struct {
	Scheme string
	Result *Result
	Err    error
}

func (o Outcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

type Response struct {
	StatusCode    int
	Elapsed       time.Duration
	ContentLength int64
	Header        http.Header
}

// Getter performs one GET. Any failure to obtain a response is returned
// as an error; HTTP error statuses are responses, not errors.
type Getter interface {
	Get(ctx context.Context, url string) (Response, error)
}

type GetterFunc func(ctx context.Context, url string) (Response, error)

func (f GetterFunc) Get(ctx context.Context, url string) (Response, error) {
	return f(ctx, url)
}
