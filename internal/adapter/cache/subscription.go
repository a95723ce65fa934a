package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

// noTier is stored for users without a plan so they are cached too.
const noTier = "NONE"

// SubscriptionCache is a read-through cache in front of a UserDirectory.
type SubscriptionCache struct {
	next  ports.UserDirectory
	cache ports.Cache
	ttl   time.Duration
	log   *zap.Logger
}

// NewSubscriptionCache wraps next; tiers are kept for ttl
func NewSubscriptionCache(next ports.UserDirectory, cache ports.Cache, ttl time.Duration, log *zap.Logger) *SubscriptionCache {
	return &SubscriptionCache{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *SubscriptionCache) key(userID string) string {
	return fmt.Sprintf("users:subscription:%s", userID)
}

// GetSubscriptionTier serves from the cache and falls through to the directory
// on a miss. A broken cache degrades to direct lookups.
func (c *SubscriptionCache) GetSubscriptionTier(ctx context.Context, userID string) (domain.SubscriptionTier, error) {
	cached, err := c.cache.Get(ctx, c.key(userID))
	switch {
	case err == nil:
		if cached == noTier {
			return domain.SubscriptionTierNone, nil
		}
		return domain.ParseSubscriptionTier(cached), nil
	case !errors.Is(err, ErrMiss):
		c.log.Warn("Subscription cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	tier, err := c.next.GetSubscriptionTier(ctx, userID)
	if err != nil {
		return domain.SubscriptionTierNone, err
	}

	value := string(tier)
	if tier == domain.SubscriptionTierNone {
		value = noTier
	}
	if err := c.cache.Set(ctx, c.key(userID), value, c.ttl); err != nil {
		c.log.Warn("Subscription cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return tier, nil
}

// Invalidate drops the cached tier, e.g. after a plan change
func (c *SubscriptionCache) Invalidate(ctx context.Context, userID string) error {
	return c.cache.Delete(ctx, c.key(userID))
}
