package queue

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// MessageQueue defines the interface for a message queue adapter
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	// Healthy reports whether the broker connection is currently usable
	Healthy() bool
	Close() error
}

// Config selects and addresses the broker
type Config struct {
	Driver      string // nats or rabbitmq
	NATSURL     string
	RabbitMQURL string
	ClientName  string
}

// New connects to the broker named by cfg.Driver
func New(cfg Config, log *zap.Logger) (MessageQueue, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "nats":
		return NewNATSQueue(cfg.NATSURL, cfg.ClientName, log)
	case "rabbitmq", "amqp":
		return NewRabbitMQQueue(cfg.RabbitMQURL, log)
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", cfg.Driver)
	}
}
