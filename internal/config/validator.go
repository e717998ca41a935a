package config

import (
	"fmt"
	"net/url"
	"strings"

	"pokeagent/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks everything the daemon needs before it connects to
// anything. Broker settings are validated only for the selected type.
func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateAgent(cfg.Agent); err != nil {
		errors = append(errors, err)
	}

	if err := validateCheck(cfg.Check); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateStore(cfg.Store, cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

// ValidateOnce checks only what the one-shot mode uses.
func ValidateOnce(cfg *Config) error {
	if err := validateCheck(cfg.Check); err != nil {
		return err
	}
	return validateWarp10(cfg.Store.Warp10)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 0 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.Port > 0 && cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.Port > 0 && cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RPS <= 0 {
		return &ValidationError{
			Field:   "server.rate_limit.rps",
			Message: "rps must be positive when rate limiting is enabled",
		}
	}

	return nil
}

func validateAgent(cfg AgentConfig) error {
	if cfg.BufferInSeconds < 1 {
		return &ValidationError{
			Field:   "agent.buffer_in_seconds",
			Message: fmt.Sprintf("buffer interval must be at least 1 second, got %d", cfg.BufferInSeconds),
		}
	}

	if cfg.InboxSize < 1 {
		return &ValidationError{
			Field:   "agent.inbox_size",
			Message: "inbox size must be positive",
		}
	}

	return nil
}

func validateCheck(cfg CheckConfig) error {
	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "check.timeout",
			Message: "timeout must be positive",
		}
	}

	if cfg.Workers < 0 {
		return &ValidationError{
			Field:   "check.workers",
			Message: "workers must be non-negative (0 means unbounded)",
		}
	}

	if cfg.RateLimitPerSecond < 0 {
		return &ValidationError{
			Field:   "check.rate_limit_per_second",
			Message: "rate limit must be non-negative (0 means unlimited)",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	switch cfg.Type {
	case constants.BrokerTypeRabbitMQ:
		return validateRabbitMQ(cfg.RabbitMQ)
	case constants.BrokerTypeKafka:
		return validateKafka(cfg.Kafka)
	case constants.BrokerTypeNats:
		return validateNats(cfg.Nats)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: rabbitmq, kafka, nats)", cfg.Type),
		}
	}
}

func validateRabbitMQ(cfg RabbitMQConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "broker.rabbitmq.url",
			Message: "RabbitMQ URL is required",
		}
	}

	if !strings.HasPrefix(cfg.URL, "amqp://") && !strings.HasPrefix(cfg.URL, "amqps://") {
		return &ValidationError{
			Field:   "broker.rabbitmq.url",
			Message: "RabbitMQ URL must start with amqp:// or amqps://",
		}
	}

	if cfg.Queue == "" {
		return &ValidationError{
			Field:   "broker.rabbitmq.queue",
			Message: "queue name is required",
		}
	}

	if cfg.Prefetch < 0 {
		return &ValidationError{
			Field:   "broker.rabbitmq.prefetch",
			Message: "prefetch must be non-negative",
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.InputTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.input_topic",
			Message: "input topic is required",
		}
	}

	return nil
}

func validateNats(cfg NatsConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "broker.nats.url",
			Message: "NATS URL is required",
		}
	}

	if cfg.Stream == "" || cfg.Subject == "" || cfg.Durable == "" {
		return &ValidationError{
			Field:   "broker.nats",
			Message: "stream, subject and durable are required",
		}
	}

	if cfg.FetchTimeout <= 0 {
		return &ValidationError{
			Field:   "broker.nats.fetch_timeout",
			Message: "fetch timeout must be positive",
		}
	}

	if cfg.MaxDeliver < -1 {
		return &ValidationError{
			Field:   "broker.nats.max_deliver",
			Message: "max_deliver must be positive, or -1 for unlimited",
		}
	}

	return nil
}

func validateStore(cfg StoreConfig, db DatabaseConfig) error {
	if err := validateRetry(cfg.Retry); err != nil {
		return err
	}

	switch cfg.Type {
	case constants.StoreTypeWarp10:
		return validateWarp10(cfg.Warp10)
	case constants.StoreTypeKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return &ValidationError{
				Field:   "store.kafka.brokers",
				Message: "at least one Kafka broker is required",
			}
		}
		if cfg.Kafka.Topic == "" {
			return &ValidationError{
				Field:   "store.kafka.topic",
				Message: "topic is required",
			}
		}
		return nil
	case constants.StoreTypeRedis:
		if cfg.Redis.Stream == "" {
			return &ValidationError{
				Field:   "store.redis.stream",
				Message: "stream key is required",
			}
		}
		return validateRedis(db.Redis)
	case constants.StoreTypeMongoDB:
		if cfg.MongoDB.Collection == "" {
			return &ValidationError{
				Field:   "store.mongodb.collection",
				Message: "collection is required",
			}
		}
		return validateMongoDB(db.MongoDB)
	case constants.StoreTypePostgres:
		return validatePostgres(db.Postgres)
	default:
		return &ValidationError{
			Field:   "store.type",
			Message: fmt.Sprintf("unknown store type: %s (supported: warp10, kafka, redis, mongodb, postgres)", cfg.Type),
		}
	}
}

func validateWarp10(cfg Warp10Config) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "store.warp10.url",
			Message: "Warp 10 URL is required",
		}
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{
			Field:   "store.warp10.url",
			Message: fmt.Sprintf("invalid Warp 10 URL: %q", cfg.URL),
		}
	}

	if cfg.Token == "" {
		return &ValidationError{
			Field:   "store.warp10.token",
			Message: "write token is required",
		}
	}

	return nil
}

func validateRetry(cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "store.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   "store.retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   "store.retry.max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   "store.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.MaxAttempts > 1 && cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   "store.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}
