package events

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MessageWriter is the subset of *kafka.Writer used by the sink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards booking events from the bus to a Kafka topic.
// Messages are keyed by business so one tenant's events stay ordered.
type KafkaSink struct {
	writer MessageWriter
	logger *zerolog.Logger
}

func NewKafkaWriter(cfg config.KafkaConfig, logger *zerolog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error().Err(err).Int("messages", len(messages)).Msg("Kafka delivery failed")
			}
		},
	}
}

func NewKafkaSink(writer MessageWriter, logger *zerolog.Logger) *KafkaSink {
	return &KafkaSink{writer: writer, logger: logger}
}

// Attach subscribes the sink to every booking event type.
func (s *KafkaSink) Attach(bus *EventBus) {
	for _, eventType := range []string{models.EventBookingCreated, models.EventBookingCancelled} {
		bus.Subscribe(eventType, s.Handle)
	}
}

func (s *KafkaSink) Handle(event *Event) error {
	var payload BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	ctx := event.Context()
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(event.ID)},
		{Key: "event_type", Value: []byte(event.Type)},
	}
	headers = InjectTraceHeaders(ctx, headers)

	msg := kafka.Message{
		Key:     []byte(payload.BusinessID),
		Value:   event.Payload,
		Headers: headers,
		Time:    event.CreatedAt,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s to kafka: %w", event.Type, err)
	}

	s.logger.Debug().Str("event_type", event.Type).Str("booking_id", payload.BookingID).Msg("Event forwarded to kafka")
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// HeaderValue returns the first header value with key.
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// InjectTraceHeaders appends W3C trace context headers to Kafka headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	return HeaderValue(c.headers, key)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
