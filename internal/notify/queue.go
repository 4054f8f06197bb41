package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// QueueNotifier publishes rendered emails to a Kafka topic for a separate
// mail service to deliver. Messages are keyed by recipient so one address
// stays on one partition.
type QueueNotifier struct {
	writer   messageWriter
	renderer *Renderer
	log      *zap.Logger
	now      func() time.Time
}

func NewQueueNotifier(brokers []string, topic string, renderer *Renderer, log *zap.Logger) *QueueNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: sendTimeout,
	}
	return newQueueNotifier(writer, renderer, log)
}

func newQueueNotifier(writer messageWriter, renderer *Renderer, log *zap.Logger) *QueueNotifier {
	return &QueueNotifier{
		writer:   writer,
		renderer: renderer,
		log:      log.With(zap.String("notifier", "kafka")),
		now:      time.Now,
	}
}

func (n *QueueNotifier) Notify(ctx context.Context, kind Kind, email, token, displayName string) error {
	msg, err := n.renderer.Render(kind, email, token, displayName)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", kind, err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(email),
		Value: payload,
		Time:  n.now(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(kind)},
		},
	})
	if err != nil {
		n.log.Error("Failed to publish email",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("to", email),
		)
		return fmt.Errorf("publish %s email for %s: %w", kind, email, err)
	}

	n.log.Info("Email queued",
		zap.String("kind", string(kind)),
		zap.String("to", email),
	)
	return nil
}

func (n *QueueNotifier) Close() error {
	return n.writer.Close()
}
