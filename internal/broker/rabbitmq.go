package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
	"pokeagent/pkg/logging"
	"pokeagent/pkg/metrics"
)

type RabbitMQConsumer struct {
	cfg         config.RabbitMQConfig
	logger      logger.Logger
	serviceName string
	consumerTag string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	wg      sync.WaitGroup
}

func NewRabbitMQConsumer(cfg config.RabbitMQConfig, log logger.Logger) *RabbitMQConsumer {
	prefix := cfg.ConsumerPrefix
	if prefix == "" {
		prefix = constants.DefaultConsumerPrefix
	}

	return &RabbitMQConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: constants.ServiceName,
		consumerTag: fmt.Sprintf("%s-%s", prefix, uuid.NewString()),
	}
}

func (c *RabbitMQConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *RabbitMQConsumer) Name() string {
	return constants.BrokerTypeRabbitMQ
}

// ConsumerTag is the tag announced to the broker.
func (c *RabbitMQConsumer) ConsumerTag() string {
	return c.consumerTag
}

// Subscribe connects, declares the exchange and queue, binds them and starts
// a manual-ack consumer.
func (c *RabbitMQConsumer) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return nil, apperrors.ErrBroker.WithCause(fmt.Errorf("failed to connect to rabbitmq: %w", err))
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, apperrors.ErrBroker.WithCause(fmt.Errorf("failed to open channel: %w", err))
	}

	if err := c.declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, apperrors.ErrBroker.WithCause(err)
	}

	msgs, err := ch.Consume(c.cfg.Queue, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, apperrors.ErrBroker.WithCause(fmt.Errorf("failed to start consuming %s: %w", c.cfg.Queue, err))
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	consumeCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming",
		"queue", c.cfg.Queue,
		"exchange", c.cfg.Exchange,
		"consumer_tag", c.consumerTag,
	)

	out := make(chan Delivery)
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				c.logger.InfowCtx(consumeCtx, "Stopped consuming",
					"queue", c.cfg.Queue,
					"reason", "context canceled",
				)
				return
			case amqpErr, ok := <-closed:
				if ok && amqpErr != nil {
					c.logger.ErrorwCtx(consumeCtx, "RabbitMQ connection closed",
						"error", amqpErr,
						"queue", c.cfg.Queue,
					)
				}
				return
			case m, ok := <-msgs:
				if !ok {
					c.logger.WarnwCtx(consumeCtx, "RabbitMQ delivery channel closed",
						"queue", c.cfg.Queue,
					)
					return
				}

				metrics.IncDelivery(c.Name(), "received")
				d := Delivery{
					Body:       m.Body,
					Token:      NewAckToken(m.DeliveryTag),
					Headers:    tableToHeaders(m.Headers),
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

func (c *RabbitMQConsumer) declare(ch *amqp.Channel) error {
	if c.cfg.Prefetch > 0 {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set prefetch: %w", err)
		}
	}

	q, err := ch.QueueDeclare(c.cfg.Queue, false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.cfg.Queue, err)
	}

	if c.cfg.Exchange == "" {
		return nil
	}

	kind := c.cfg.ExchangeType
	if kind == "" {
		kind = amqp.ExchangeDirect
	}

	if err := ch.ExchangeDeclare(c.cfg.Exchange, kind, false, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", c.cfg.Exchange, err)
	}

	if err := ch.QueueBind(q.Name, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s: %w", q.Name, c.cfg.Exchange, err)
	}

	return nil
}

func (c *RabbitMQConsumer) Ack(ctx context.Context, token AckToken) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return apperrors.ErrBroker.WithDetail("message", "ack before subscribe")
	}

	if err := ch.Ack(token.Tag(), false); err != nil {
		metrics.IncAck(c.Name(), "error")
		return apperrors.ErrBroker.WithCause(fmt.Errorf("failed to ack delivery %d: %w", token.Tag(), err))
	}

	metrics.IncAck(c.Name(), "ok")
	return nil
}

// Release is a no-op: the delivery stays unacknowledged on the channel and
// is requeued by the broker when the channel closes.
func (c *RabbitMQConsumer) Release(ctx context.Context, token AckToken) error {
	metrics.IncAck(c.Name(), "released")
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	c.mu.Lock()
	ch, conn := c.channel, c.conn
	c.channel, c.conn = nil, nil
	c.mu.Unlock()

	var err error
	if ch != nil {
		if cerr := ch.Cancel(c.consumerTag, false); cerr != nil {
			err = cerr
		}
		if cerr := ch.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if conn != nil {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	c.wg.Wait()
	return err
}

func tableToHeaders(t amqp.Table) map[string]string {
	if len(t) == 0 {
		return nil
	}

	headers := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	return headers
}
