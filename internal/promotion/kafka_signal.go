package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cafe_cart/internal/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	PromotionsTopic = "promotions-updated"
	originHeader    = "origin"
)

// KafkaSignal carries promotion markers over a Kafka topic. Every instance reads
// with its own consumer group so each one sees every message. The group is named
// after the instance, not the per-process origin, so a restart rejoins it.
type KafkaSignal struct {
	reader *kafka.Reader
	writer *kafka.Writer
	origin string
	log    *zap.Logger
	now    func() time.Time
}

func NewKafkaSignal(instance, origin string, log *zap.Logger, brokers ...string) *KafkaSignal {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       PromotionsTopic,
		GroupID:     consumerGroup(instance),
		StartOffset: kafka.LastOffset,
		MaxBytes:    1e6, // 1MB
	})
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  PromotionsTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaSignal{
		reader: reader,
		writer: writer,
		origin: origin,
		log:    logger.OrNop(log),
		now:    time.Now,
	}
}

func (k *KafkaSignal) Publish(ctx context.Context) error {
	m := marker{Origin: k.origin, At: k.now().UnixNano()}
	msg := kafka.Message{
		Key:   []byte(k.origin),
		Value: []byte(m.String()),
		Headers: []kafka.Header{
			{Key: originHeader, Value: []byte(k.origin)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish promotion marker failed: %w", err)
	}
	return nil
}

func (k *KafkaSignal) Listen(ctx context.Context, notify func()) error {
	seen := newDedup(k.origin)
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			k.log.Warn("error reading promotion message", zap.Error(err))
			continue
		}
		m, err := decodeMessage(msg)
		if err != nil {
			k.log.Warn("ignoring promotion message", zap.Error(err), zap.Int64("offset", msg.Offset))
			continue
		}
		if seen.accept(m) {
			notify()
		}
	}
}

func (k *KafkaSignal) Close() error {
	return errors.Join(k.reader.Close(), k.writer.Close())
}

func consumerGroup(instance string) string {
	return "cafe-gateway-" + instance
}

// decodeMessage reads the marker; the origin header, when present, must agree with it.
func decodeMessage(msg kafka.Message) (marker, error) {
	m, err := parseMarker(string(msg.Value))
	if err != nil {
		return marker{}, err
	}
	for _, h := range msg.Headers {
		if h.Key == originHeader && string(h.Value) != m.Origin {
			return marker{}, fmt.Errorf("origin header %q does not match marker origin %q", h.Value, m.Origin)
		}
	}
	return m, nil
}
