package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
	"pokeagent/pkg/tracing"
)

// KafkaWriter publishes one JSON record per point, keyed by class name.
type KafkaWriter struct {
	writer *kafka.Writer
	topic  string
	logger logger.Logger
}

func NewKafkaWriter(cfg config.KafkaStoreConfig, log logger.Logger) *KafkaWriter {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaWriter{writer: w, topic: cfg.Topic, logger: log}
}

func (w *KafkaWriter) Name() string {
	return constants.StoreTypeKafka
}

func (w *KafkaWriter) Write(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	headers := traceHeaders(ctx)
	now := time.Now()

	msgs := make([]kafka.Message, 0, len(points))
	for _, p := range points {
		body, err := json.Marshal(p.Record())
		if err != nil {
			return apperrors.ErrStoreWrite.WithCause(fmt.Errorf("failed to marshal point: %w", err)).AsFatal()
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(p.ClassName),
			Value:   body,
			Headers: headers,
			Time:    now,
		})
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return apperrors.ErrStoreWrite.WithCause(fmt.Errorf("failed to write kafka messages to %s: %w", w.topic, err))
	}

	w.logger.Debugw("Points written to Kafka",
		"points", len(points),
		"topic", w.topic,
	)
	return nil
}

func (w *KafkaWriter) Close() error {
	return w.writer.Close()
}

func traceHeaders(ctx context.Context) []kafka.Header {
	carried := tracing.InjectTraceContext(ctx)
	if len(carried) == 0 {
		return nil
	}

	headers := make([]kafka.Header, 0, len(carried))
	for k, v := range carried {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
