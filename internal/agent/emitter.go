package agent

import (
	"sync"

	"pokeagent/internal/broker"
)

// AckEmitter queues tokens whose outcome has been handed to the store.
// Emit never blocks; Ready fires when at least one token is waiting.
type AckEmitter struct {
	mu      sync.Mutex
	pending []broker.AckToken
	ready   chan struct{}
}

func NewAckEmitter() *AckEmitter {
	return &AckEmitter{
		ready: make(chan struct{}, 1),
	}
}

func (e *AckEmitter) Emit(token broker.AckToken) {
	e.mu.Lock()
	e.pending = append(e.pending, token)
	e.mu.Unlock()

	e.signal()
}

func (e *AckEmitter) Ready() <-chan struct{} {
	return e.ready
}

// TakeAll removes and returns every waiting token in emission order.
func (e *AckEmitter) TakeAll() []broker.AckToken {
	e.mu.Lock()
	defer e.mu.Unlock()

	tokens := e.pending
	e.pending = nil
	return tokens
}

func (e *AckEmitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// requeue puts tokens back in front of anything emitted since they were
// taken.
func (e *AckEmitter) requeue(tokens []broker.AckToken) {
	if len(tokens) == 0 {
		return
	}

	e.mu.Lock()
	e.pending = append(append([]broker.AckToken{}, tokens...), e.pending...)
	e.mu.Unlock()

	e.signal()
}

func (e *AckEmitter) signal() {
	select {
	case e.ready <- struct{}{}:
	default:
	}
}
