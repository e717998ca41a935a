package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
	"pokeagent/pkg/logging"
	"pokeagent/pkg/metrics"
)

const natsFetchBatch = 16

// NatsConsumer pulls work requests from a JetStream durable consumer with
// explicit acks. Fetched messages are held until their token is acked.
type NatsConsumer struct {
	cfg         config.NatsConfig
	logger      logger.Logger
	serviceName string

	conn *nats.Conn
	js   nats.JetStreamContext
	wg   sync.WaitGroup

	// pending is keyed by stream sequence, so a redelivery replaces the
	// message it was held under.
	mu      sync.Mutex
	seq     uint64
	pending map[uint64]*nats.Msg
}

func NewNatsConsumer(cfg config.NatsConfig, log logger.Logger) *NatsConsumer {
	return &NatsConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: constants.ServiceName,
		pending:     make(map[uint64]*nats.Msg),
	}
}

func (c *NatsConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *NatsConsumer) Name() string {
	return constants.BrokerTypeNats
}

func (c *NatsConsumer) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	conn, err := nats.Connect(c.cfg.URL, nats.Name(c.serviceName))
	if err != nil {
		return nil, apperrors.ErrBroker.WithCause(fmt.Errorf("failed to connect to nats: %w", err))
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, apperrors.ErrBroker.WithCause(fmt.Errorf("failed to get jetstream context: %w", err))
	}

	c.conn = conn
	c.js = js

	if err := c.ensureStream(); err != nil {
		conn.Close()
		return nil, apperrors.ErrBroker.WithCause(err)
	}

	if err := c.ensureDurable(); err != nil {
		conn.Close()
		return nil, apperrors.ErrBroker.WithCause(err)
	}

	sub, err := js.PullSubscribe(c.cfg.Subject, c.cfg.Durable, nats.Bind(c.cfg.Stream, c.cfg.Durable))
	if err != nil {
		conn.Close()
		return nil, apperrors.ErrBroker.WithCause(fmt.Errorf("failed to subscribe: %w", err))
	}

	consumeCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming",
		"stream", c.cfg.Stream,
		"subject", c.cfg.Subject,
		"durable", c.cfg.Durable,
	)

	out := make(chan Delivery)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)

		for {
			if ctx.Err() != nil {
				c.logger.InfowCtx(consumeCtx, "Stopped consuming",
					"stream", c.cfg.Stream,
					"reason", "context canceled",
				)
				return
			}

			msgs, err := sub.Fetch(natsFetchBatch, nats.MaxWait(c.cfg.FetchTimeout))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				if ctx.Err() != nil {
					continue
				}
				c.logger.ErrorwCtx(consumeCtx, "NATS fetch failed",
					"error", err,
					"stream", c.cfg.Stream,
				)
				return
			}

			for _, m := range msgs {
				metrics.IncDelivery(c.Name(), "received")
				d := Delivery{
					Body:       m.Data,
					Token:      c.hold(m),
					Headers:    natsHeaders(m.Header),
					ReceivedAt: time.Now(),
				}

				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *NatsConsumer) hold(m *nats.Msg) AckToken {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.nextLocal()
	if meta, err := m.Metadata(); err == nil && meta.Sequence.Stream > 0 {
		key = meta.Sequence.Stream
	}
	c.pending[key] = m
	return NewAckToken(key)
}

// nextLocal numbers messages without JetStream metadata from the top of the
// range, away from stream sequences.
func (c *NatsConsumer) nextLocal() uint64 {
	c.seq++
	return ^uint64(0) - c.seq
}

func (c *NatsConsumer) ensureStream() error {
	_, err := c.js.StreamInfo(c.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream %s: %w", c.cfg.Stream, err)
	}

	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:     c.cfg.Stream,
		Subjects: []string{c.cfg.Subject},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.cfg.Stream, err)
	}
	return nil
}

func (c *NatsConsumer) ensureDurable() error {
	_, err := c.js.ConsumerInfo(c.cfg.Stream, c.cfg.Durable)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("failed to get consumer %s: %w", c.cfg.Durable, err)
	}

	_, err = c.js.AddConsumer(c.cfg.Stream, &nats.ConsumerConfig{
		Durable:       c.cfg.Durable,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       c.cfg.AckWait,
		MaxDeliver:    c.cfg.MaxDeliver,
		FilterSubject: c.cfg.Subject,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", c.cfg.Durable, err)
	}
	return nil
}

func (c *NatsConsumer) Ack(ctx context.Context, token AckToken) error {
	c.mu.Lock()
	m, ok := c.pending[token.Tag()]
	delete(c.pending, token.Tag())
	c.mu.Unlock()

	if !ok {
		return apperrors.ErrBroker.WithDetail("message", fmt.Sprintf("unknown delivery %s", token))
	}

	if err := m.Ack(nats.Context(ctx)); err != nil {
		metrics.IncAck(c.Name(), "error")
		return apperrors.ErrBroker.WithCause(fmt.Errorf("failed to ack delivery %s: %w", token, err))
	}

	metrics.IncAck(c.Name(), "ok")
	return nil
}

// Release drops the held message without acking it. JetStream redelivers it
// after AckWait, up to MaxDeliver times.
func (c *NatsConsumer) Release(ctx context.Context, token AckToken) error {
	c.mu.Lock()
	_, ok := c.pending[token.Tag()]
	delete(c.pending, token.Tag())
	c.mu.Unlock()

	if !ok {
		return apperrors.ErrBroker.WithDetail("message", fmt.Sprintf("unknown delivery %s", token))
	}

	metrics.IncAck(c.Name(), "released")
	return nil
}

// Pending is the number of messages held for an ack or a release.
func (c *NatsConsumer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *NatsConsumer) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Drain()
	c.wg.Wait()
	c.conn.Close()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	return nil
}

func natsHeaders(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}

	headers := make(map[string]string, len(h))
	for k := range h {
		headers[k] = h.Get(k)
	}
	return headers
}
