// Package user is the REST client for the user service.
package user

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/circuitbreaker"
)

type Client struct {
	http *circuitbreaker.HTTPClient
	log  *zap.Logger
}

func NewClient(client *circuitbreaker.HTTPClient, log *zap.Logger) *Client {
	return &Client{http: client, log: log}
}

type subscriptionDTO struct {
	Tier   string `json:"tier"`
	Active bool   `json:"active"`
}

// GetSubscriptionTier returns the user's active plan. A user the service does
// not know, or one without an active plan, has no tier.
func (c *Client) GetSubscriptionTier(ctx context.Context, userID string) (domain.SubscriptionTier, error) {
	var dto subscriptionDTO
	path := fmt.Sprintf("/api/users/%s/subscription", url.PathEscape(userID))
	if err := c.http.DoJSON(ctx, http.MethodGet, path, nil, &dto); err != nil {
		if circuitbreaker.StatusCode(err) == http.StatusNotFound {
			return domain.SubscriptionTierNone, nil
		}
		return domain.SubscriptionTierNone, fmt.Errorf("get subscription for user %s: %w", userID, err)
	}

	if !dto.Active {
		return domain.SubscriptionTierNone, nil
	}
	return domain.ParseSubscriptionTier(dto.Tier), nil
}
