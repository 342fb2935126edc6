package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (single node), NATS or Kafka.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel", "nats" or "kafka"
	Type string `json:"type" yaml:"type"`

	// Channel settings
	ChannelBufferSize int `json:"channelBufferSize" yaml:"channel_buffer_size"`

	// NATS settings
	NATSUrl           string `json:"natsUrl" yaml:"nats_url"`
	NATSToken         string `json:"-" yaml:"nats_token"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" yaml:"nats_max_reconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" yaml:"nats_reconnect_wait"` // seconds
	NATSQueueGroup    string `json:"natsQueueGroup" yaml:"nats_queue_group"`

	// Kafka settings
	KafkaBrokers []string `json:"kafkaBrokers" yaml:"kafka_brokers"`
	KafkaGroupID string   `json:"kafkaGroupId" yaml:"kafka_group_id"`
}

// Standard topic names for the scoring pipeline.
const (
	TopicPrediction    = "churn.prediction"
	TopicHighRisk      = "churn.high_risk"
	TopicScoreRequest  = "churn.score.request"
	TopicScoreResult   = "churn.score.result"
	TopicModelReloaded = "churn.model.reloaded"
)

// ScoreRequestMessage is the payload on TopicScoreRequest.
type ScoreRequestMessage struct {
	CorrelationID string       `json:"correlationId"`
	CustomerID    string       `json:"customerId,omitempty"`
	Request       ScoreRequest `json:"request"`
}

// ScoreResultMessage is the payload on TopicScoreResult.
// Exactly one of Result or Error is set.
type ScoreResultMessage struct {
	CorrelationID string         `json:"correlationId"`
	CustomerID    string         `json:"customerId,omitempty"`
	Result        *ScoringResult `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	ErrorField    string         `json:"errorField,omitempty"`
}

// ModelReloadedMessage is the payload on TopicModelReloaded. Instances
// ignore their own announcements.
type ModelReloadedMessage struct {
	InstanceID string    `json:"instanceId"`
	Model      ModelInfo `json:"model"`
}
