package agent

import (
	"context"
	"errors"
	"time"

	"pokeagent/internal/broker"
	"pokeagent/internal/check"
	"pokeagent/pkg/models"
)

// ErrStreamClosed is returned by Run when the broker ends the delivery
// stream without the agent being asked to stop.
var ErrStreamClosed = errors.New("delivery stream closed by broker")

// Checker runs the checks of one work request.
type Checker interface {
	Check(ctx context.Context, domain string) []check.Outcome
}

// BufferedOutcome is a finished check waiting for the next flush, together
// with the token of the delivery that asked for it.
type BufferedOutcome struct {
	Outcomes  []check.Outcome
	Timestamp time.Time
	Token     broker.AckToken
	Request   models.WorkRequest
}

type EventKind int

const (
	EventInbound EventKind = iota + 1
	EventAck
)

func (k EventKind) String() string {
	switch k {
	case EventInbound:
		return "inbound"
	case EventAck:
		return "ack"
	default:
		return "unknown"
	}
}

// Event is one item of the unified stream. Delivery is set for
// EventInbound, Token for both kinds.
type Event struct {
	Kind     EventKind
	Delivery broker.Delivery
	Token    broker.AckToken
}

// Status is a snapshot of the pipeline for the admin API.
type Status struct {
	Running      bool      `json:"running"`
	InFlight     int       `json:"in_flight"`
	InboxDepth   int       `json:"inbox_depth"`
	PendingAcks  int       `json:"pending_acks"`
	LastFlush    time.Time `json:"last_flush"`
	Flushed      uint64    `json:"flushed_outcomes"`
	Acked        uint64    `json:"acked"`
	Malformed    uint64    `json:"malformed"`
	StoreHealthy bool      `json:"store_healthy"`
}
