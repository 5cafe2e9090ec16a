// Package events publishes coupon domain events.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/coupon-engine/internal/codec"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const eventTypeApplied = "coupon.applied"

var _ coupon.Publisher = (*KafkaPublisher)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes coupon events to a Kafka topic. Messages are keyed by
// coupon code so events of one coupon stay ordered within a partition.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}}
}

// PublishApplied implements coupon.Publisher.
func (p *KafkaPublisher) PublishApplied(ctx context.Context, e coupon.AppliedEvent) error {
	msg := kafka.Message{
		Key:   []byte(e.CouponCode),
		Value: codec.EncodeAppliedEvent(e),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventTypeApplied)},
		},
		Time: e.AppliedAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s event", eventTypeApplied)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Nop discards every event. It is used when no brokers are configured.
type Nop struct{}

// PublishApplied implements coupon.Publisher.
func (Nop) PublishApplied(context.Context, coupon.AppliedEvent) error { return nil }
