// Package auditkafka publishes audit events to a Kafka topic.
package auditkafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/phonebook"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// Sink produces one JSON record per event, keyed by user id so a user's
// events stay ordered within a partition. Delivery is asynchronous; failed
// records are logged and dropped.
type Sink struct {
	client producer
	topic  string
	logger *zap.Logger
}

var _ phonebook.AuditSink = (*Sink)(nil)

// New connects to the brokers and verifies them with a ping.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Sink, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("audit topic required")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(50 * time.Millisecond),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}
	return newSink(client, cfg.Topic, logger), nil
}

func newSink(client producer, topic string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{client: client, topic: topic, logger: logger}
}

func (s *Sink) Emit(ctx context.Context, ev phonebook.AuditEvent) {
	value, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encode audit event", zap.String("event", ev.EventType), zap.Error(err))
		return
	}

	rec := &kgo.Record{
		Topic: s.topic,
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	}
	if ev.UserID != "" {
		rec.Key = []byte(ev.UserID)
	}
	if ev.RequestID != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: "request_id", Value: []byte(ev.RequestID)})
	}

	// The engine's context may end before delivery; the record outlives it.
	s.client.Produce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn("audit event not delivered",
				zap.String("event", ev.EventType),
				zap.String("topic", r.Topic),
				zap.Error(err),
			)
		}
	})
}

// Close flushes buffered records, bounded by ctx, and closes the client.
func (s *Sink) Close(ctx context.Context) error {
	err := s.client.Flush(ctx)
	s.client.Close()
	return err
}
