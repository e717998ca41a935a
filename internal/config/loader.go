package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pokeagent/internal/constants"
)

// FlagBinding maps a command-line flag onto a configuration key. A flag
// overrides the file and environment only when it was set explicitly.
// Value, used when Flag is nil, always overrides; it carries positional
// arguments.
type FlagBinding struct {
	Key   string
	Flag  *pflag.Flag
	Value interface{}
}

// LoadConfig reads configFile (optional), the environment and the bound
// flags, in increasing order of precedence, and validates the result for
// daemon mode.
func LoadConfig(configFile string, bindings ...FlagBinding) (*Config, error) {
	cfg, err := read(configFile, bindings...)
	if err != nil {
		return nil, err
	}

	if err := ValidateStatic(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOnceConfig is LoadConfig for the one-shot mode, which needs neither a
// broker nor a database.
func LoadOnceConfig(configFile string, bindings ...FlagBinding) (*Config, error) {
	cfg, err := read(configFile, bindings...)
	if err != nil {
		return nil, err
	}

	if err := ValidateOnce(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func read(configFile string, bindings ...FlagBinding) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	for _, b := range bindings {
		if b.Flag == nil {
			if b.Value != nil {
				viper.Set(b.Key, b.Value)
			}
			continue
		}
		if err := viper.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", b.Flag.Name, err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if cfg.Agent.Debug {
		cfg.Logging.Level = "debug"
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 0)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "10s")
	viper.SetDefault("server.rate_limit.enabled", false)
	viper.SetDefault("server.rate_limit.rps", 10.0)
	viper.SetDefault("server.rate_limit.burst", 20)

	viper.SetDefault("agent.buffer_in_seconds", constants.DefaultBufferInSeconds)
	viper.SetDefault("agent.inbox_size", constants.DefaultInboxSize)
	viper.SetDefault("agent.service_name", constants.ServiceName)
	viper.SetDefault("agent.debug", false)

	viper.SetDefault("check.timeout", constants.DefaultCheckTimeout.String())
	viper.SetDefault("check.skip_verify", false)
	viper.SetDefault("check.workers", constants.DefaultCheckWorkers)
	viper.SetDefault("check.rate_limit_per_second", 0)
	viper.SetDefault("check.verbose", false)

	viper.SetDefault("broker.type", constants.BrokerTypeRabbitMQ)
	viper.SetDefault("broker.rabbitmq.url", "")
	viper.SetDefault("broker.rabbitmq.queue", constants.DefaultQueueName)
	viper.SetDefault("broker.rabbitmq.exchange", constants.DefaultExchangeName)
	viper.SetDefault("broker.rabbitmq.exchange_type", "direct")
	viper.SetDefault("broker.rabbitmq.routing_key", "")
	viper.SetDefault("broker.rabbitmq.prefetch", 0)
	viper.SetDefault("broker.rabbitmq.consumer_prefix", constants.DefaultConsumerPrefix)
	viper.SetDefault("broker.kafka.brokers", []string{})
	viper.SetDefault("broker.kafka.group_id", constants.ServiceName)
	viper.SetDefault("broker.kafka.input_topic", constants.DefaultExchangeName)
	viper.SetDefault("broker.nats.url", "")
	viper.SetDefault("broker.nats.stream", "checks")
	viper.SetDefault("broker.nats.subject", "http")
	viper.SetDefault("broker.nats.durable", constants.ServiceName)
	viper.SetDefault("broker.nats.ack_wait", "5m")
	viper.SetDefault("broker.nats.max_deliver", 5)
	viper.SetDefault("broker.nats.fetch_timeout", "2s")

	viper.SetDefault("store.type", constants.StoreTypeWarp10)
	viper.SetDefault("store.warp10.url", constants.DefaultWarp10URL)
	viper.SetDefault("store.warp10.token", "")
	viper.SetDefault("store.warp10.timeout", constants.DefaultHTTPTimeout.String())
	viper.SetDefault("store.kafka.brokers", []string{})
	viper.SetDefault("store.kafka.topic", "poke-metrics")
	viper.SetDefault("store.redis.stream", "poke:metrics")
	viper.SetDefault("store.redis.max_len", 0)
	viper.SetDefault("store.mongodb.collection", "metric_points")
	viper.SetDefault("store.postgres.run_migrations", true)
	viper.SetDefault("store.retry.max_attempts", 1)
	viper.SetDefault("store.retry.initial_interval", "500ms")
	viper.SetDefault("store.retry.max_interval", "5s")
	viper.SetDefault("store.retry.multiplier", 2.0)
	viper.SetDefault("store.retry.max_elapsed_time", "0s")

	viper.SetDefault("database.postgres.host", "")
	viper.SetDefault("database.postgres.port", 0)
	viper.SetDefault("database.postgres.user", "")
	viper.SetDefault("database.postgres.password", "")
	viper.SetDefault("database.postgres.dbname", "")
	viper.SetDefault("database.postgres.sslmode", "disable")
	viper.SetDefault("database.redis.host", "")
	viper.SetDefault("database.redis.port", 0)
	viper.SetDefault("database.redis.password", "")
	viper.SetDefault("database.redis.db", 0)
	viper.SetDefault("database.mongodb.uri", "")
	viper.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("circuitbreaker.enabled", false)
	viper.SetDefault("circuitbreaker.max_requests", 3)
	viper.SetDefault("circuitbreaker.interval", "60s")
	viper.SetDefault("circuitbreaker.timeout", "30s")
	viper.SetDefault("circuitbreaker.failure_ratio", 0.5)
	viper.SetDefault("circuitbreaker.min_requests", 3)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.service_name", constants.ServiceName)
	viper.SetDefault("tracing.otlp.endpoint", "localhost:4317")
	viper.SetDefault("tracing.otlp.insecure", true)
	viper.SetDefault("tracing.sampler.type", "always_on")
	viper.SetDefault("tracing.sampler.param", 1.0)
}

func bindEnvVariables() {
	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.rabbitmq.url", "BROKER_RABBITMQ_URL", "RABBITMQ_URL")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	viper.BindEnv("broker.nats.url", "BROKER_NATS_URL")

	viper.BindEnv("store.type", "STORE_TYPE")
	viper.BindEnv("store.warp10.url", "STORE_WARP10_URL", "WARP10_URL")
	viper.BindEnv("store.warp10.token", "STORE_WARP10_TOKEN", "WARP10_TOKEN")
	viper.BindEnv("store.kafka.brokers", "STORE_KAFKA_BROKERS")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

// applyEnvOverrides splits comma separated broker lists, which viper leaves
// as a single element when they come from the environment.
func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		if brokers := splitList(brokersEnv); len(brokers) > 0 {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if brokersEnv := viper.GetString("STORE_KAFKA_BROKERS"); brokersEnv != "" {
		if brokers := splitList(brokersEnv); len(brokers) > 0 {
			cfg.Store.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
