package ports

import (
	"context"
	"time"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

// StationDirectory owns charger inventory and operational status.
type StationDirectory interface {
	// ListChargers returns the station's chargers in the directory's order
	ListChargers(ctx context.Context, stationID string) ([]domain.Charger, error)
	UpdateChargerStatus(ctx context.Context, chargerID string, status domain.ChargerStatus) error
}

// NotificationDispatcher hands notifications to the notification service.
type NotificationDispatcher interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
}

// UserDirectory resolves user attributes the lifecycle engine prices with.
type UserDirectory interface {
	GetSubscriptionTier(ctx context.Context, userID string) (domain.SubscriptionTier, error)
}

// Cache is a string key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
