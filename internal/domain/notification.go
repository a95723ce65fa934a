package domain

import "time"

// NotificationType identifies the template the notification service renders.
type NotificationType string

const (
	NotificationChargingStarted      NotificationType = "charging_started"
	NotificationChargingComplete     NotificationType = "charging_complete"
	NotificationChargingCancelled    NotificationType = "charging_cancelled"
	NotificationReservationReminder  NotificationType = "reservation_reminder"
	NotificationReservationCancelled NotificationType = "reservation_cancelled"
)

// Notification is the message handed to the notification dispatcher.
type Notification struct {
	UserID      string           `json:"user_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	ReferenceID string           `json:"reference_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
