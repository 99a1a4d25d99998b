package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Producer delivers an encoded envelope to one topic. Messages with the
// same key must be delivered in Send order.
type Producer interface {
	Send(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// NopProducer drops every message.
type NopProducer struct{}

func (NopProducer) Send(context.Context, string, string, []byte) error { return nil }
func (NopProducer) Close() error                                     { return nil }

type Message struct {
	Topic string
	Key   string
	Value []byte
}

// Envelope decodes the message value.
func (m Message) Envelope() (RawEnvelope, error) {
	var env RawEnvelope
	err := json.Unmarshal(m.Value, &env)
	return env, err
}

var ErrProducerClosed = errors.New("producer closed")

// MemoryProducer keeps messages in process. Fail makes every later Send
// return the given error. A positive limit keeps only the newest messages.
type MemoryProducer struct {
	mu       sync.Mutex
	messages []Message
	limit    int
	fail     error
	closed   bool
}

func NewMemoryProducer() *MemoryProducer {
	return &MemoryProducer{}
}

// NewBoundedMemoryProducer retains at most limit messages, dropping the
// oldest first.
func NewBoundedMemoryProducer(limit int) *MemoryProducer {
	return &MemoryProducer{limit: limit}
}

func (p *MemoryProducer) Send(_ context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProducerClosed
	}
	if p.fail != nil {
		return p.fail
	}
	p.messages = append(p.messages, Message{Topic: topic, Key: key, Value: append([]byte(nil), value...)})
	if p.limit > 0 && len(p.messages) > p.limit {
		drop := len(p.messages) - p.limit
		copy(p.messages, p.messages[drop:])
		clear(p.messages[p.limit:])
		p.messages = p.messages[:p.limit]
	}
	return nil
}

func (p *MemoryProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *MemoryProducer) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// Messages returns a copy of everything sent so far.
func (p *MemoryProducer) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

// Envelopes decodes every message, in send order.
func (p *MemoryProducer) Envelopes() ([]RawEnvelope, error) {
	msgs := p.Messages()
	out := make([]RawEnvelope, 0, len(msgs))
	for _, m := range msgs {
		env, err := m.Envelope()
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// EventTypes lists the event types sent so far, in order.
func (p *MemoryProducer) EventTypes() []EventType {
	envs, err := p.Envelopes()
	if err != nil {
		return nil
	}
	out := make([]EventType, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.EventType)
	}
	return out
}
