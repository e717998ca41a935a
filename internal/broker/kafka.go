package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
	"pokeagent/pkg/logging"
	"pokeagent/pkg/metrics"
)

const kafkaFetchRetryDelay = time.Second

// KafkaConsumer reads work requests from a consumer group. Acking a token
// commits its offset, which in Kafka also covers every earlier offset of the
// same partition.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	serviceName string
	seq         atomic.Uint64
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: constants.ServiceName,
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) Name() string {
	return constants.BrokerTypeKafka
}

func (c *KafkaConsumer) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	if c.reader != nil {
		return nil, apperrors.ErrBroker.WithDetail("message", "already subscribed")
	}

	c.logger.Infow("Creating Kafka reader",
		"topic", c.cfg.InputTopic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    c.cfg.InputTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	out := make(chan Delivery)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)

		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", c.cfg.InputTopic,
		)

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", c.cfg.InputTopic,
						"reason", "context canceled",
					)
					return
				}
				if errors.Is(err, io.EOF) {
					c.logger.ErrorwCtx(consumeCtx, "Kafka reader closed",
						"topic", c.cfg.InputTopic,
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", c.cfg.InputTopic,
				)
				if !pause(ctx, kafkaFetchRetryDelay) {
					return
				}
				continue
			}

			metrics.IncDelivery(c.Name(), "received")
			d := Delivery{
				Body:       m.Value,
				Token:      newKafkaAckToken(c.seq.Add(1), m.Topic, m.Partition, m.Offset),
				Headers:    kafkaHeaders(m.Headers),
				ReceivedAt: time.Now(),
			}

			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (c *KafkaConsumer) Ack(ctx context.Context, token AckToken) error {
	if c.reader == nil {
		return apperrors.ErrBroker.WithDetail("message", "ack before subscribe")
	}

	err := c.reader.CommitMessages(ctx, kafka.Message{
		Topic:     token.topic,
		Partition: token.partition,
		Offset:    token.offset,
	})
	if err != nil {
		metrics.IncAck(c.Name(), "error")
		return apperrors.ErrBroker.WithCause(fmt.Errorf("failed to commit offset %s: %w", token, err))
	}

	metrics.IncAck(c.Name(), "ok")
	return nil
}

// Release holds nothing to free. The offset is left uncommitted, but a later
// commit on the same partition moves the group past it.
func (c *KafkaConsumer) Release(ctx context.Context, token AckToken) error {
	metrics.IncAck(c.Name(), "released")
	return nil
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	c.wg.Wait()
	return err
}

// pause waits d unless ctx ends first, and reports whether it waited.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func kafkaHeaders(hs []kafka.Header) map[string]string {
	if len(hs) == 0 {
		return nil
	}

	headers := make(map[string]string, len(hs))
	for _, h := range hs {
		headers[h.Key] = string(h.Value)
	}
	return headers
}
