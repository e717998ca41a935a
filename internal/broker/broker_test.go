package broker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
)

func TestAckToken(t *testing.T) {
	a := NewAckToken(7)
	b := NewAckToken(7)
	c := newKafkaAckToken(7, "checks.http", 2, 120)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, uint64(7), c.Tag())
	assert.Equal(t, "7", a.String())
	assert.Equal(t, "7(checks.http/2@120)", c.String())
	assert.True(t, AckToken{}.IsZero())
	assert.False(t, a.IsZero())

	seen := map[AckToken]bool{a: true}
	assert.True(t, seen[b])
	assert.False(t, seen[c])
}

func TestNewConsumer(t *testing.T) {
	log := logger.NopLogger()

	tests := []struct {
		name     string
		typ      string
		wantName string
		wantErr  bool
	}{
		{"rabbitmq", constants.BrokerTypeRabbitMQ, "rabbitmq", false},
		{"kafka", constants.BrokerTypeKafka, "kafka", false},
		{"nats", constants.BrokerTypeNats, "nats", false},
		{"unknown", "sqs", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConsumer(config.BrokerConfig{Type: tt.typ}, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, c.Name())
		})
	}
}

func TestRabbitMQConsumer_ConsumerTag(t *testing.T) {
	c := NewRabbitMQConsumer(config.RabbitMQConfig{}, logger.NopLogger())
	assert.Regexp(t, `^http-go-agent-[0-9a-f-]{36}$`, c.ConsumerTag())

	other := NewRabbitMQConsumer(config.RabbitMQConfig{ConsumerPrefix: "edge"}, logger.NopLogger())
	assert.Regexp(t, `^edge-`, other.ConsumerTag())
	assert.NotEqual(t, c.ConsumerTag(), NewRabbitMQConsumer(config.RabbitMQConfig{}, logger.NopLogger()).ConsumerTag())
}

func TestAckBeforeSubscribe(t *testing.T) {
	log := logger.NopLogger()

	assert.Error(t, NewRabbitMQConsumer(config.RabbitMQConfig{}, log).Ack(t.Context(), NewAckToken(1)))
	assert.Error(t, NewKafkaConsumer(config.KafkaConfig{}, log).Ack(t.Context(), NewAckToken(1)))
	assert.Error(t, NewNatsConsumer(config.NatsConfig{}, log).Ack(t.Context(), NewAckToken(1)))
}

func TestHeaderConversion(t *testing.T) {
	assert.Nil(t, tableToHeaders(nil))
	assert.Equal(t,
		map[string]string{"traceparent": "00-abc-def-01"},
		tableToHeaders(amqp.Table{"traceparent": "00-abc-def-01", "x-retries": int32(2)}),
	)

	assert.Nil(t, kafkaHeaders(nil))
	assert.Equal(t,
		map[string]string{"traceparent": "tp"},
		kafkaHeaders([]kafka.Header{{Key: "traceparent", Value: []byte("tp")}}),
	)

	h := nats.Header{}
	h.Set("Traceparent", "tp")
	assert.Equal(t, map[string]string{"Traceparent": "tp"}, natsHeaders(h))
	assert.Nil(t, natsHeaders(nil))
}

func jsMsg(streamSeq, delivered int) *nats.Msg {
	return &nats.Msg{
		Subject: "http",
		Reply:   fmt.Sprintf("$JS.ACK.checks.poke-agent.%d.%d.%d.1700000000000000000.0", delivered, streamSeq, delivered),
		Sub:     &nats.Subscription{},
		Data:    []byte(`{"url": `),
	}
}

func TestNatsConsumer_RedeliveryReplacesHeldMessage(t *testing.T) {
	c := NewNatsConsumer(config.NatsConfig{}, logger.NopLogger())

	var token AckToken
	for delivered := 1; delivered <= 5; delivered++ {
		token = c.hold(jsMsg(7, delivered))
	}

	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, uint64(7), token.Tag())

	other := c.hold(jsMsg(8, 1))
	assert.Equal(t, 2, c.Pending())
	assert.NotEqual(t, token, other)
}

func TestNatsConsumer_Release(t *testing.T) {
	c := NewNatsConsumer(config.NatsConfig{}, logger.NopLogger())

	token := c.hold(jsMsg(3, 1))
	require.Equal(t, 1, c.Pending())

	require.NoError(t, c.Release(t.Context(), token))
	assert.Equal(t, 0, c.Pending())

	assert.Error(t, c.Release(t.Context(), token), "a released token is forgotten")
	assert.Error(t, c.Ack(t.Context(), token))
}

func TestNatsConsumer_HoldWithoutMetadata(t *testing.T) {
	c := NewNatsConsumer(config.NatsConfig{}, logger.NopLogger())

	a := c.hold(&nats.Msg{Subject: "http"})
	b := c.hold(&nats.Msg{Subject: "http"})

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, c.Pending())
	assert.Greater(t, a.Tag(), uint64(1)<<62, "local keys stay clear of stream sequences")
}

func TestRelease_HoldsNothing(t *testing.T) {
	log := logger.NopLogger()

	assert.NoError(t, NewRabbitMQConsumer(config.RabbitMQConfig{}, log).Release(t.Context(), NewAckToken(1)))
	assert.NoError(t, NewKafkaConsumer(config.KafkaConfig{}, log).Release(t.Context(), newKafkaAckToken(1, "checks.http", 0, 4)))
}

func TestPause(t *testing.T) {
	assert.True(t, pause(t.Context(), time.Millisecond))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	start := time.Now()
	assert.False(t, pause(ctx, kafkaFetchRetryDelay))
	assert.Less(t, time.Since(start), kafkaFetchRetryDelay/2, "a cancelled context must not wait out the delay")
}
