package constants

import "time"

const (
	ServiceName = "poke-agent"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout  = 10 * time.Second
	DefaultCheckTimeout = 10 * time.Second
	DefaultCheckWorkers = 64
)

const (
	DefaultBufferInSeconds = 10
	DefaultInboxSize       = 1024
)

const (
	DefaultQueueName      = "http-agent-queue"
	DefaultExchangeName   = "checks.http"
	DefaultConsumerPrefix = "http-go-agent"
)

const (
	DefaultWarp10URL   = "http://localhost:8080/"
	Warp10UpdatePath   = "api/v0/update"
	Warp10TokenHeader  = "X-Warp10-Token"
	DefaultMongoDBName = "poke"
)

const (
	DefaultStatusClassName  = "http-status"
	DefaultLatencyClassName = "http-latency"
	DomainLabel             = "domain"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	BrokerTypeRabbitMQ = "rabbitmq"
	BrokerTypeKafka    = "kafka"
	BrokerTypeNats     = "nats"
)

const (
	StoreTypeWarp10   = "warp10"
	StoreTypeKafka    = "kafka"
	StoreTypeRedis    = "redis"
	StoreTypeMongoDB  = "mongodb"
	StoreTypePostgres = "postgres"
)

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)
