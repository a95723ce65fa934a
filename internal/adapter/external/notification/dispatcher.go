// Package notification hands lifecycle notifications to the notification
// service, either over REST or through the message broker.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/queue"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/circuitbreaker"
)

// Subject is the broker subject the notification service consumes.
const Subject = "notifications.create"

var ErrBrokerUnavailable = errors.New("message broker unavailable")

type message struct {
	UserID      string `json:"userId"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	ReferenceID string `json:"referenceId,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func toMessage(n *domain.Notification) message {
	return message{
		UserID:      n.UserID,
		Type:        string(n.Type),
		Title:       n.Title,
		Message:     n.Message,
		ReferenceID: n.ReferenceID,
		CreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// QueueDispatcher publishes notifications on the broker.
type QueueDispatcher struct {
	queue   queue.MessageQueue
	subject string
	log     *zap.Logger
}

func NewQueueDispatcher(q queue.MessageQueue, log *zap.Logger) *QueueDispatcher {
	return &QueueDispatcher{queue: q, subject: Subject, log: log}
}

func (d *QueueDispatcher) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if !d.queue.Healthy() {
		return ErrBrokerUnavailable
	}

	data, err := json.Marshal(toMessage(n))
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := d.queue.Publish(d.subject, data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	d.log.Debug("Notification published",
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
	)
	return nil
}

// HTTPDispatcher posts notifications to the notification service.
type HTTPDispatcher struct {
	http *circuitbreaker.HTTPClient
	log  *zap.Logger
}

func NewHTTPDispatcher(client *circuitbreaker.HTTPClient, log *zap.Logger) *HTTPDispatcher {
	return &HTTPDispatcher{http: client, log: log}
}

func (d *HTTPDispatcher) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if err := d.http.DoJSON(ctx, http.MethodPost, "/api/notifications", toMessage(n), nil); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}
