package repository

import (
	"context"

	"ReviewCast/internal/domain/models"
	domrepo "ReviewCast/internal/domain/repository"
	pkgkafka "ReviewCast/pkg/kafka"
	applogger "ReviewCast/pkg/logger"
)

// KafkaAlertPublisher publishes alert events keyed by product id.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAlertPublisher creates Kafka publisher.
func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) Publish(ctx context.Context, ev models.AlertEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.ProductID), ev)
}

// Close is a no-op: the producer is shared and closed by its owner.
func (p *KafkaAlertPublisher) Close() error { return nil }

// LogAlertPublisher writes events to the application log when no broker is
// configured.
type LogAlertPublisher struct {
	l *applogger.Logger
}

// NewLogAlertPublisher creates a log-only publisher.
func NewLogAlertPublisher(l *applogger.Logger) *LogAlertPublisher {
	return &LogAlertPublisher{l: l}
}

func (p *LogAlertPublisher) Publish(_ context.Context, ev models.AlertEvent) error {
	if p.l != nil {
		p.l.Info("alert event",
			applogger.String("type", ev.Type),
			applogger.String("product_id", ev.ProductID),
			applogger.Any("payload", ev.Payload),
		)
	}
	return nil
}

func (p *LogAlertPublisher) Close() error { return nil }

var (
	_ domrepo.AlertPublisher = (*KafkaAlertPublisher)(nil)
	_ domrepo.AlertPublisher = (*LogAlertPublisher)(nil)
)
