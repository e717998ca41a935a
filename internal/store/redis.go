package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
)

// RedisWriter appends points to a stream with XADD, in one pipeline per
// batch.
type RedisWriter struct {
	client *redis.Client
	stream string
	maxLen int64
	logger logger.Logger
}

// NewRedisWriter does not own client; Close leaves it open.
func NewRedisWriter(client *redis.Client, cfg config.RedisStoreConfig, log logger.Logger) *RedisWriter {
	return &RedisWriter{
		client: client,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
		logger: log,
	}
}

func (w *RedisWriter) Name() string {
	return constants.StoreTypeRedis
}

func (w *RedisWriter) Write(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	_, err := w.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range points {
			labels, err := json.Marshal(p.LabelMap())
			if err != nil {
				return err
			}

			args := &redis.XAddArgs{
				Stream: w.stream,
				Values: map[string]interface{}{
					"timestamp":  strconv.FormatInt(p.Timestamp.UnixMicro(), 10),
					"class_name": p.ClassName,
					"labels":     string(labels),
					"value":      strconv.FormatInt(p.Value, 10),
				},
			}
			if w.maxLen > 0 {
				args.MaxLen = w.maxLen
				args.Approx = true
			}
			pipe.XAdd(ctx, args)
		}
		return nil
	})
	if err != nil {
		return apperrors.ErrStoreWrite.WithCause(fmt.Errorf("failed to xadd to %s: %w", w.stream, err))
	}

	w.logger.Debugw("Points written to Redis",
		"points", len(points),
		"stream", w.stream,
	)
	return nil
}

func (w *RedisWriter) Close() error {
	return nil
}
