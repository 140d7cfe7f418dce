package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/craftmarket/api/internal/platform/config"
	"github.com/craftmarket/api/internal/services"
)

// notificationEnvelope is the wire shape produced to the notification topic.
type notificationEnvelope struct {
	Type        string         `json:"type"`
	SubjectID   string         `json:"subjectId"`
	ActorID     string         `json:"actorId,omitempty"`
	RecipientID string         `json:"recipientId,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// producer is the slice of the franz-go client the publisher needs.
type producer interface {
	Produce(ctx context.Context, record *kgo.Record, promise func(*kgo.Record, error))
}

// KafkaNotificationPublisher publishes marketplace notifications to Kafka.
// Production is fire-and-forget: delivery failures are logged, never returned
// to the request path.
type KafkaNotificationPublisher struct {
	client  producer
	topic   string
	logger  *zap.Logger
	marshal func(any) ([]byte, error)
}

var _ services.NotificationPublisher = (*KafkaNotificationPublisher)(nil)

// NewKafkaNotificationPublisher dials the configured brokers and returns a
// publisher bound to the notification topic.
func NewKafkaNotificationPublisher(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaNotificationPublisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil, errors.New("kafka publisher: at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, nil, errors.New("kafka publisher: topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka publisher: dial brokers: %w", err)
	}

	publisher := newPublisher(client, cfg.Topic, logger)
	return publisher, client.Close, nil
}

func newPublisher(client producer, topic string, logger *zap.Logger) *KafkaNotificationPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaNotificationPublisher{
		client:  client,
		topic:   topic,
		logger:  logger,
		marshal: json.Marshal,
	}
}

// PublishNotification enqueues the notification keyed by subject so consumers
// see per-subject ordering.
func (p *KafkaNotificationPublisher) PublishNotification(ctx context.Context, notification services.Notification) error {
	if p == nil || p.client == nil {
		return errors.New("kafka publisher: not initialised")
	}
	if strings.TrimSpace(notification.Type) == "" {
		return errors.New("kafka publisher: notification type is required")
	}

	data, err := p.marshal(notificationEnvelope{
		Type:        notification.Type,
		SubjectID:   notification.SubjectID,
		ActorID:     notification.ActorID,
		RecipientID: notification.RecipientID,
		OccurredAt:  notification.OccurredAt.UTC(),
		Metadata:    notification.Metadata,
	})
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal notification: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(notification.SubjectID),
		Value: data,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(notification.Type)},
		},
	}

	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("notification publish failed",
				zap.String("type", notification.Type),
				zap.String("subject", notification.SubjectID),
				zap.Error(err),
			)
		}
	})
	return nil
}
