package agent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokeagent/internal/check"
	"pokeagent/internal/store"
	"pokeagent/pkg/models"
)

func sampleRequest() models.WorkRequest {
	return models.WorkRequest{
		URL:    "example.com",
		Labels: map[string]string{"domain": "example.com"},
		Checks: models.Checks{
			Status:  models.CheckSpec{ClassName: "http-status"},
			Latency: models.CheckSpec{ClassName: "http-latency"},
		},
	}
}

func okOutcome(scheme string, status int, latency time.Duration) check.Outcome {
	return check.Outcome{Scheme: scheme, Result: &check.Result{StatusCode: status, Latency: latency}}
}

func TestTranslate_BothSchemesSucceed(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bo := BufferedOutcome{
		Outcomes: []check.Outcome{
			okOutcome(check.SchemeHTTP, 301, 40*time.Millisecond),
			okOutcome(check.SchemeHTTPS, 200, 120*time.Millisecond),
		},
		Timestamp: ts,
		Request:   sampleRequest(),
	}

	points := Translate(bo)
	require.Len(t, points, 4)

	labels := []store.Label{{Key: "domain", Value: "example.com"}}
	assert.Equal(t, store.Point{Timestamp: ts, ClassName: "http-status", Labels: labels, Value: 301}, points[0])
	assert.Equal(t, store.Point{Timestamp: ts, ClassName: "http-latency", Labels: labels, Value: 40}, points[1])
	assert.Equal(t, store.Point{Timestamp: ts, ClassName: "http-status", Labels: labels, Value: 200}, points[2])
	assert.Equal(t, store.Point{Timestamp: ts, ClassName: "http-latency", Labels: labels, Value: 120}, points[3])
}

func TestTranslate_FailedSchemeContributesNothing(t *testing.T) {
	bo := BufferedOutcome{
		Outcomes: []check.Outcome{
			okOutcome(check.SchemeHTTP, 200, 8*time.Millisecond),
			{Scheme: check.SchemeHTTPS, Err: check.ErrTransport.WithCause(errors.New("refused"))},
		},
		Timestamp: time.Now(),
		Request:   sampleRequest(),
	}

	points := Translate(bo)
	require.Len(t, points, 2)
	assert.Equal(t, int64(200), points[0].Value)
	assert.Equal(t, int64(8), points[1].Value)
}

func TestTranslate_AllFailed(t *testing.T) {
	bo := BufferedOutcome{
		Outcomes: []check.Outcome{
			{Scheme: check.SchemeHTTP, Err: check.ErrTransport},
			{Scheme: check.SchemeHTTPS, Err: check.ErrTransport},
		},
		Request: sampleRequest(),
	}

	assert.Empty(t, Translate(bo))
}

func TestTranslate_CheckLabelsWin(t *testing.T) {
	req := sampleRequest()
	req.Labels = map[string]string{"domain": "example.com", "dc": "par1", "env": "prod"}
	req.Checks.Status.Labels = map[string]string{"dc": "ams1", "probe": "status"}

	bo := BufferedOutcome{
		Outcomes:  []check.Outcome{okOutcome(check.SchemeHTTP, 200, time.Millisecond)},
		Timestamp: time.Now(),
		Request:   req,
	}

	points := Translate(bo)
	require.Len(t, points, 2)

	assert.Equal(t, map[string]string{
		"domain": "example.com", "dc": "ams1", "env": "prod", "probe": "status",
	}, points[0].LabelMap())
	assert.Equal(t, map[string]string{
		"domain": "example.com", "dc": "par1", "env": "prod",
	}, points[1].LabelMap())

	assert.Equal(t, "par1", req.Labels["dc"], "request labels must not be modified")
}

func TestTranslate_Deterministic(t *testing.T) {
	req := sampleRequest()
	req.Labels = map[string]string{"z": "1", "a": "2", "m": "3", "domain": "example.com"}
	bo := BufferedOutcome{
		Outcomes: []check.Outcome{
			okOutcome(check.SchemeHTTP, 200, time.Millisecond),
			okOutcome(check.SchemeHTTPS, 503, 2*time.Millisecond),
		},
		Timestamp: time.Unix(1700000000, 0),
		Request:   req,
	}

	first := Translate(bo)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Translate(bo))
	}
}
