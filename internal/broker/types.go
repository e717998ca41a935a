package broker

import (
	"context"
	"fmt"
	"time"
)

// AckToken identifies one delivery for acknowledgement. Its fields are only
// meaningful to the consumer that issued it.
type AckToken struct {
	tag       uint64
	topic     string
	partition int
	offset    int64
}

// NewAckToken returns a token carrying only a delivery tag, as issued by the
// RabbitMQ and NATS consumers.
func NewAckToken(tag uint64) AckToken {
	return AckToken{tag: tag}
}

func newKafkaAckToken(tag uint64, topic string, partition int, offset int64) AckToken {
	return AckToken{tag: tag, topic: topic, partition: partition, offset: offset}
}

// Tag is the per-consumer delivery number. It is what logs show as
// delivery_tag.
func (t AckToken) Tag() uint64 {
	return t.tag
}

func (t AckToken) IsZero() bool {
	return t == AckToken{}
}

func (t AckToken) String() string {
	if t.topic != "" {
		return fmt.Sprintf("%d(%s/%d@%d)", t.tag, t.topic, t.partition, t.offset)
	}
	return fmt.Sprintf("%d", t.tag)
}

// Delivery is one inbound message. Headers carries transport headers that
// are strings, used to continue a producer's trace.
type Delivery struct {
	Body       []byte
	Token      AckToken
	Headers    map[string]string
	ReceivedAt time.Time
}

type Consumer interface {
	// Subscribe starts consuming. The returned channel is closed when the
	// underlying connection or stream ends, or when ctx is done.
	Subscribe(ctx context.Context) (<-chan Delivery, error)
	// Ack acknowledges one delivery. The consumer stays usable for acks
	// after the delivery channel was closed by ctx, until Close.
	Ack(ctx context.Context, token AckToken) error
	// Release forgets a delivery that will never be acknowledged. It does
	// not ack, nack or requeue; redelivery follows the broker's own policy.
	Release(ctx context.Context, token AckToken) error
	Close() error
	SetServiceName(name string)
	Name() string
}
