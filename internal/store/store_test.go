package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
)

var ts = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func samplePoints() []Point {
	labels := NewLabels(map[string]string{"domain": "example.com", "dc": "par1"})
	return []Point{
		{Timestamp: ts, ClassName: "http-status", Labels: labels, Value: 200},
		{Timestamp: ts, ClassName: "http-latency", Labels: labels, Value: 42},
	}
}

func TestNewLabels_Sorted(t *testing.T) {
	labels := NewLabels(map[string]string{"z": "1", "a": "2", "m": "3"})
	assert.Equal(t, []Label{{"a", "2"}, {"m", "3"}, {"z", "1"}}, labels)
	assert.Empty(t, NewLabels(nil))
}

func TestPoint_Record(t *testing.T) {
	p := samplePoints()[0]
	rec := p.Record()

	assert.Equal(t, ts, rec.Timestamp)
	assert.Equal(t, "http-status", rec.ClassName)
	assert.Equal(t, map[string]string{"domain": "example.com", "dc": "par1"}, rec.Labels)
	assert.Equal(t, int64(200), rec.Value)
}

func TestEncodeGTS(t *testing.T) {
	got := EncodeGTS(samplePoints())
	want := "1709294400000000// http-status{dc=par1,domain=example.com} 200\n" +
		"1709294400000000// http-latency{dc=par1,domain=example.com} 42\n"
	assert.Equal(t, want, got)
}

func TestEncodeGTS_Escaping(t *testing.T) {
	p := Point{
		Timestamp: ts,
		ClassName: "http latency",
		Labels:    NewLabels(map[string]string{"path": "a=b,c{d}"}),
		Value:     1,
	}
	assert.Equal(t, "1709294400000000// http+latency{path=a%3Db%2Cc%7Bd%7D} 1\n", EncodeGTS([]Point{p}))
	assert.Equal(t, "", EncodeGTS(nil))
}

func TestWarp10Writer_Write(t *testing.T) {
	var gotPath, gotToken, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath, gotToken, gotBody = r.URL.Path, r.Header.Get("X-Warp10-Token"), string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w, err := NewWarp10Writer(config.Warp10Config{URL: server.URL + "/", Token: "write-token"}, logger.NopLogger())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(context.Background(), samplePoints()))
	assert.Equal(t, "/api/v0/update", gotPath)
	assert.Equal(t, "write-token", gotToken)
	assert.Equal(t, EncodeGTS(samplePoints()), gotBody)
	assert.Equal(t, constants.StoreTypeWarp10, w.Name())
}

func TestWarp10Writer_EmptyBatchDoesNotPost(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	w, err := NewWarp10Writer(config.Warp10Config{URL: server.URL, Token: "t"}, logger.NopLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), nil))
	assert.False(t, called)
}

func TestWarp10Writer_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"server error is retryable", http.StatusServiceUnavailable, true},
		{"bad token is fatal", http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			w, err := NewWarp10Writer(config.Warp10Config{URL: server.URL, Token: "t"}, logger.NopLogger())
			require.NoError(t, err)

			err = w.Write(context.Background(), samplePoints())
			require.Error(t, err)
			assert.True(t, apperrors.IsStoreWrite(err))
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestNewWarp10Writer_BadURL(t *testing.T) {
	_, err := NewWarp10Writer(config.Warp10Config{URL: "ftp://warp"}, logger.NopLogger())
	assert.Error(t, err)
}

type fakeWriter struct {
	mu     sync.Mutex
	fail   int
	err    error
	calls  int
	points [][]Point
	closed bool
}

func (f *fakeWriter) Name() string { return "fake" }

func (f *fakeWriter) Write(ctx context.Context, points []Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fail {
		return f.err
	}
	f.points = append(f.points, points)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func fastRetry(attempts int) config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
	}
}

func TestResilient_SingleAttemptByDefault(t *testing.T) {
	fake := &fakeWriter{fail: 1, err: apperrors.ErrStoreWrite}
	r := NewResilient(fake, fastRetry(1), config.CircuitBreakerConfig{}, logger.NopLogger())

	err := r.Write(context.Background(), samplePoints())
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestResilient_Retries(t *testing.T) {
	fake := &fakeWriter{fail: 2, err: apperrors.ErrStoreWrite}
	r := NewResilient(fake, fastRetry(3), config.CircuitBreakerConfig{}, logger.NopLogger())

	require.NoError(t, r.Write(context.Background(), samplePoints()))
	assert.Equal(t, 3, fake.calls)
	assert.Len(t, fake.points, 1)
}

func TestResilient_WrapsForeignErrors(t *testing.T) {
	fake := &fakeWriter{fail: 1, err: fmt.Errorf("connection reset")}
	r := NewResilient(fake, fastRetry(1), config.CircuitBreakerConfig{}, logger.NopLogger())

	err := r.Write(context.Background(), samplePoints())
	assert.True(t, apperrors.IsStoreWrite(err))
}

func TestResilient_BreakerOpens(t *testing.T) {
	fake := &fakeWriter{fail: 100, err: apperrors.ErrStoreWrite}
	r := NewResilient(fake, fastRetry(1), config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}, logger.NopLogger())

	assert.True(t, r.Healthy())
	for i := 0; i < 2; i++ {
		require.Error(t, r.Write(context.Background(), samplePoints()))
	}
	assert.False(t, r.Healthy())

	err := r.Write(context.Background(), samplePoints())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreWrite))
	assert.Equal(t, 2, fake.calls, "open breaker must not reach the store")
}

func TestResilient_EmptyAndClose(t *testing.T) {
	fake := &fakeWriter{}
	r := NewResilient(fake, fastRetry(1), config.CircuitBreakerConfig{}, logger.NopLogger())

	require.NoError(t, r.Write(context.Background(), nil))
	assert.Equal(t, 0, fake.calls)
	require.NoError(t, r.Close())
	assert.True(t, fake.closed)
	assert.Equal(t, "fake", r.Name())
}

func TestNew_MissingClients(t *testing.T) {
	log := logger.NopLogger()
	for _, typ := range []string{constants.StoreTypeRedis, constants.StoreTypeMongoDB, constants.StoreTypePostgres, "influx"} {
		_, err := New(context.Background(), config.StoreConfig{Type: typ}, config.CircuitBreakerConfig{}, Clients{}, log)
		assert.Error(t, err, typ)
	}

	w, err := New(context.Background(), config.StoreConfig{
		Type:   constants.StoreTypeWarp10,
		Warp10: config.Warp10Config{URL: "http://localhost:8080/", Token: "t"},
		Retry:  fastRetry(1),
	}, config.CircuitBreakerConfig{}, Clients{}, log)
	require.NoError(t, err)
	assert.Equal(t, constants.StoreTypeWarp10, w.Name())
}
