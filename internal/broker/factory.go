package broker

import (
	"fmt"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
)

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case constants.BrokerTypeRabbitMQ:
		return NewRabbitMQConsumer(cfg.RabbitMQ, log), nil
	case constants.BrokerTypeKafka:
		return NewKafkaConsumer(cfg.Kafka, log), nil
	case constants.BrokerTypeNats:
		return NewNatsConsumer(cfg.Nats, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
