package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/rebill/internal/config"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/pubsub"
)

// PubSub implements the pubsub interfaces on top of Kafka for deployments
// where task fan-out must survive process restarts.
type PubSub struct {
	publisher  *wkafka.Publisher
	subscriber *wkafka.Subscriber
	logger     *logger.Logger
}

// NewPubSub creates a new kafka-based pubsub
func NewPubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	wmLogger := watermill.NewStdLogger(false, false)

	publisher, err := wkafka.NewPublisher(
		wkafka.PublisherConfig{
			Brokers:   cfg.Kafka.Brokers,
			Marshaler: wkafka.DefaultMarshaler{},
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	subscriber, err := wkafka.NewSubscriber(
		wkafka.SubscriberConfig{
			Brokers:       cfg.Kafka.Brokers,
			Unmarshaler:   wkafka.DefaultMarshaler{},
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	return &PubSub{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     log,
	}, nil
}

// Publish publishes a message
func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	return p.publisher.Publish(topic, msg)
}

// Subscribe starts consuming messages
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

// Close closes both publisher and subscriber
func (p *PubSub) Close() error {
	if err := p.publisher.Close(); err != nil {
		return err
	}
	return p.subscriber.Close()
}
