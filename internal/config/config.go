package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Agent          AgentConfig
	Check          CheckConfig
	Broker         BrokerConfig
	Store          StoreConfig
	Database       DatabaseConfig
	Logging        LoggingConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
}

// ServerConfig configures the admin HTTP server. A zero port disables it.
type ServerConfig struct {
	Port                int             `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration   `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration   `mapstructure:"write_timeout_seconds"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles the admin API per client IP.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type AgentConfig struct {
	BufferInSeconds int    `mapstructure:"buffer_in_seconds"`
	InboxSize       int    `mapstructure:"inbox_size"`
	ServiceName     string `mapstructure:"service_name"`
	Debug           bool   `mapstructure:"debug"`
}

// BufferInterval is the flush period of the result buffer.
func (c AgentConfig) BufferInterval() time.Duration {
	return time.Duration(c.BufferInSeconds) * time.Second
}

type CheckConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	SkipVerify         bool          `mapstructure:"skip_verify"`
	Workers            int           `mapstructure:"workers"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second"`
	Verbose            bool          `mapstructure:"verbose"`
}

type BrokerConfig struct {
	Type     string         `mapstructure:"type"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Nats     NatsConfig     `mapstructure:"nats"`
}

type RabbitMQConfig struct {
	URL            string `mapstructure:"url"`
	Queue          string `mapstructure:"queue"`
	Exchange       string `mapstructure:"exchange"`
	ExchangeType   string `mapstructure:"exchange_type"`
	RoutingKey     string `mapstructure:"routing_key"`
	Prefetch       int    `mapstructure:"prefetch"`
	ConsumerPrefix string `mapstructure:"consumer_prefix"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	GroupID    string   `mapstructure:"group_id"`
	InputTopic string   `mapstructure:"input_topic"`
}

type NatsConfig struct {
	URL          string        `mapstructure:"url"`
	Stream       string        `mapstructure:"stream"`
	Subject      string        `mapstructure:"subject"`
	Durable      string        `mapstructure:"durable"`
	AckWait      time.Duration `mapstructure:"ack_wait"`
	MaxDeliver   int           `mapstructure:"max_deliver"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

type StoreConfig struct {
	Type     string              `mapstructure:"type"`
	Warp10   Warp10Config        `mapstructure:"warp10"`
	Kafka    KafkaStoreConfig    `mapstructure:"kafka"`
	Redis    RedisStoreConfig    `mapstructure:"redis"`
	MongoDB  MongoStoreConfig    `mapstructure:"mongodb"`
	Postgres PostgresStoreConfig `mapstructure:"postgres"`
	Retry    RetryConfig         `mapstructure:"retry"`
}

type Warp10Config struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaStoreConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RedisStoreConfig struct {
	Stream string `mapstructure:"stream"`
	MaxLen int64  `mapstructure:"max_len"`
}

type MongoStoreConfig struct {
	Collection string `mapstructure:"collection"`
}

type PostgresStoreConfig struct {
	RunMigrations bool `mapstructure:"run_migrations"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
	MongoDB  MongoDBConfig
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string, bindings ...FlagBinding) (*Config, error) {
	return LoadConfig(configFile, bindings...)
}
