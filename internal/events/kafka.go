package events

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/emilythestrangee/social-feed/backend/internal/logger"
)

// KafkaProducer writes to Kafka. The hash balancer sends every key to one
// partition, which gives per-entity ordering.
type KafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

func NewKafkaProducer(brokers []string, clientID string, log *logger.Logger) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		Transport:              &kafka.Transport{ClientID: clientID},
	}
	return &KafkaProducer{writer: w, log: log.With("service", "KafkaProducer")}, nil
}

func (p *KafkaProducer) Send(ctx context.Context, topic, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *KafkaProducer) Close() error {
	p.log.Info("Kafka producer closing")
	return p.writer.Close()
}

// EnsureTopics creates any missing topic through the cluster controller.
func EnsureTopics(ctx context.Context, brokers []string, partitions int, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	if partitions < 1 {
		partitions = 1
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka controller dial: %w", err)
	}
	defer cc.Close()

	configs := make([]kafka.TopicConfig, 0, len(Topics()))
	for _, topic := range Topics() {
		configs = append(configs, kafka.TopicConfig{
			Topic:             string(topic),
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}
	if err := cc.CreateTopics(configs...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka create topics: %w", err)
	}
	log.Info("Kafka topics ready", "topics", Topics())
	return nil
}
