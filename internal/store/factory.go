package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
)

// Clients are the database handles a writer may need. Only the one matching
// the store type has to be set.
type Clients struct {
	Redis    *redis.Client
	Postgres *sql.DB
	MongoDB  *mongo.Database
}

// New builds the writer selected by cfg.Type, wrapped in Resilient.
func New(ctx context.Context, cfg config.StoreConfig, cb config.CircuitBreakerConfig, clients Clients, log logger.Logger) (*Resilient, error) {
	w, err := newWriter(ctx, cfg, clients, log)
	if err != nil {
		return nil, err
	}
	return NewResilient(w, cfg.Retry, cb, log), nil
}

func newWriter(ctx context.Context, cfg config.StoreConfig, clients Clients, log logger.Logger) (Writer, error) {
	switch cfg.Type {
	case constants.StoreTypeWarp10:
		return NewWarp10Writer(cfg.Warp10, log)
	case constants.StoreTypeKafka:
		return NewKafkaWriter(cfg.Kafka, log), nil
	case constants.StoreTypeRedis:
		if clients.Redis == nil {
			return nil, fmt.Errorf("redis store needs a redis client")
		}
		return NewRedisWriter(clients.Redis, cfg.Redis, log), nil
	case constants.StoreTypeMongoDB:
		if clients.MongoDB == nil {
			return nil, fmt.Errorf("mongodb store needs a mongodb database")
		}
		return NewMongoWriter(ctx, clients.MongoDB, cfg.MongoDB, log)
	case constants.StoreTypePostgres:
		if clients.Postgres == nil {
			return nil, fmt.Errorf("postgres store needs a postgres connection")
		}
		return NewPostgresWriter(clients.Postgres, cfg.Postgres, log)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
