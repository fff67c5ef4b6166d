package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"mpesa_backend/internal/domain"

	"github.com/segmentio/kafka-go"
)

const (
	TopicPaymentCompleted = "mpesa.payment.completed"
	TopicPaymentFailed    = "mpesa.payment.failed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher builds a writer without a fixed topic; each message names
// its own topic.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	logger := log.New(os.Stdout, "kafka-writer: ", 0)
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		Logger:                 kafka.LoggerFunc(logger.Printf),
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{w: w}
}

func TopicFor(t domain.EventType) string {
	if t == domain.EventPaymentCompleted {
		return TopicPaymentCompleted
	}
	return TopicPaymentFailed
}

// Message keys by checkout id so every event for one payment lands on the
// same partition.
func Message(ev domain.Event) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Topic: TopicFor(ev.Type),
		Key:   []byte(ev.Transaction.CheckoutRequestID),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(ev.ID)},
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.Event) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
