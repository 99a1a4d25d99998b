package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
)

// Envelope is the wire format on every topic.
type Envelope struct {
	EventID   string       `json:"eventId"`
	Data      Payload      `json:"data"`
	UserInfo  models.Actor `json:"userInfo"`
	EventType EventType    `json:"eventType"`
	TopicType Topic        `json:"topicType"`
	Timestamp string       `json:"timestamp"`
	Source    string       `json:"source"`
}

// RawEnvelope is Envelope with the data block left undecoded.
type RawEnvelope struct {
	EventID   string          `json:"eventId"`
	Data      json.RawMessage `json:"data"`
	UserInfo  models.Actor    `json:"userInfo"`
	EventType EventType       `json:"eventType"`
	TopicType Topic           `json:"topicType"`
	Timestamp string          `json:"timestamp"`
	Source    string          `json:"source"`
}

// Publisher is what engines depend on.
type Publisher interface {
	Publish(ctx context.Context, eventType EventType, actor models.Actor, payload Payload)
}

// Emitter wraps payloads in envelopes and hands them to a Producer.
// Publish is called only after a commit and is fire-and-forget: a send
// failure is logged and dropped, never retried and never returned, since
// the database write is already durable.
type Emitter struct {
	producer Producer
	source   string
	timeout  time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewEmitter(producer Producer, source string, timeout time.Duration, log *logger.Logger) *Emitter {
	if producer == nil {
		producer = NopProducer{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Emitter{
		producer: producer,
		source:   source,
		timeout:  timeout,
		log:      log.With("service", "EventEmitter"),
		now:      time.Now,
	}
}

func (e *Emitter) Publish(ctx context.Context, eventType EventType, actor models.Actor, payload Payload) {
	if e == nil || payload == nil {
		return
	}
	// The request may already be finished; delivery gets its own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	topic := TopicFor(eventType)
	env := Envelope{
		EventID:   uuid.NewString(),
		Data:      payload,
		UserInfo:  actor,
		EventType: eventType,
		TopicType: topic,
		Timestamp: e.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Source:    e.source,
	}
	key := payload.EntityID()

	ctx, span := otel.Tracer("events").Start(ctx, "events.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", string(eventType)),
		attribute.String("event.topic", string(topic)),
		attribute.String("event.key", key),
	)

	raw, err := json.Marshal(env)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("Event encode failed", "event_type", eventType, "event_id", env.EventID, "error", err)
		return
	}
	if err := e.producer.Send(ctx, string(topic), key, raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("Event publish failed",
			"event_type", eventType,
			"event_id", env.EventID,
			"topic", topic,
			"key", key,
			"error", err,
		)
		return
	}
	e.log.Debug("Event published", "event_type", eventType, "event_id", env.EventID, "topic", topic, "key", key)
}

// Close drains and releases the producer.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	return e.producer.Close()
}
