//go:build integration

package broker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	natsmodule "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
)

const payload = `{"labels":{"domain":"example.com"},"url":"example.com",` +
	`"checks":{"latency":{"class_name":"http-latency"},"status":{"class_name":"http-status"}}}`

func TestMain(m *testing.M) {
	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}
	os.Exit(m.Run())
}

func receive(t *testing.T, deliveries <-chan Delivery) Delivery {
	t.Helper()
	select {
	case d, ok := <-deliveries:
		require.True(t, ok, "delivery channel closed")
		return d
	case <-time.After(60 * time.Second):
		t.Fatal("no delivery received")
		return Delivery{}
	}
}

func TestRabbitMQConsumer_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.13-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	consumer := NewRabbitMQConsumer(config.RabbitMQConfig{
		URL:            url,
		Queue:          constants.DefaultQueueName,
		Exchange:       constants.DefaultExchangeName,
		ExchangeType:   "direct",
		ConsumerPrefix: constants.DefaultConsumerPrefix,
	}, logger.NopLogger())

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	deliveries, err := consumer.Subscribe(subCtx)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Close() })

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	err = ch.PublishWithContext(ctx, constants.DefaultExchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        []byte(payload),
		Headers:     amqp.Table{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
	})
	require.NoError(t, err)

	d := receive(t, deliveries)
	assert.JSONEq(t, payload, string(d.Body))
	assert.Equal(t, uint64(1), d.Token.Tag())
	assert.Contains(t, d.Headers, "traceparent")

	require.NoError(t, consumer.Ack(ctx, d.Token))

	require.Eventually(t, func() bool {
		q, err := ch.QueueDeclarePassive(constants.DefaultQueueName, false, true, false, false, nil)
		return err == nil && q.Messages == 0
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-deliveries:
			return !ok
		default:
			return false
		}
	}, 10*time.Second, 50*time.Millisecond)
}

func TestNatsConsumer_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := natsmodule.Run(ctx, "nats:2.10")
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	consumer := NewNatsConsumer(config.NatsConfig{
		URL:          url,
		Stream:       "checks",
		Subject:      "checks.http",
		Durable:      constants.ServiceName,
		AckWait:      30 * time.Second,
		FetchTimeout: time.Second,
	}, logger.NopLogger())

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	deliveries, err := consumer.Subscribe(subCtx)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Close() })

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	js, err := nc.JetStream()
	require.NoError(t, err)

	_, err = js.Publish("checks.http", []byte(payload))
	require.NoError(t, err)

	d := receive(t, deliveries)
	assert.JSONEq(t, payload, string(d.Body))

	require.NoError(t, consumer.Ack(ctx, d.Token))
	assert.Error(t, consumer.Ack(ctx, d.Token), "a token can only be acked once")

	require.Eventually(t, func() bool {
		info, err := js.ConsumerInfo("checks", constants.ServiceName)
		return err == nil && info.NumAckPending == 0
	}, 10*time.Second, 100*time.Millisecond)
}

func TestKafkaConsumer_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkamodule.WithClusterID("poke-test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  constants.DefaultExchangeName,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	require.Eventually(t, func() bool {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return writer.WriteMessages(writeCtx, kafka.Message{
			Value:   []byte(payload),
			Headers: []kafka.Header{{Key: "traceparent", Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")}},
		}) == nil
	}, 60*time.Second, time.Second)

	consumer := NewKafkaConsumer(config.KafkaConfig{
		Brokers:    brokers,
		GroupID:    "poke-test",
		InputTopic: constants.DefaultExchangeName,
	}, logger.NopLogger())

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	deliveries, err := consumer.Subscribe(subCtx)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Close() })

	d := receive(t, deliveries)
	assert.JSONEq(t, payload, string(d.Body))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", d.Headers["traceparent"])
	assert.Contains(t, d.Token.String(), constants.DefaultExchangeName)

	require.NoError(t, consumer.Ack(ctx, d.Token))
}
