package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-attendance/internal/config"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes attendance and lifecycle domain events. Messages are
// keyed by event id so one event's updates stay ordered within a partition.
type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, l *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: l}
}

func (p *Producer) PublishAttendance(ctx context.Context, evt models.AttendanceEvent) error {
	topic := p.Topics.CheckedIn
	if evt.Action == models.ActionCheckOut {
		topic = p.Topics.CheckedOut
	}
	return p.publish(ctx, topic, evt.EventID, evt)
}

func (p *Producer) PublishStatusChanged(ctx context.Context, evt models.StatusChangedEvent) error {
	return p.publish(ctx, p.Topics.StatusChanged, evt.EventID, evt)
}

func (p *Producer) publish(ctx context.Context, topic, key string, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISH", topic, key)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
