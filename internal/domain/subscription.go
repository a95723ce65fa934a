package domain

import "strings"

// SubscriptionTier is the user's paid plan, which discounts the energy price.
type SubscriptionTier string

const (
	SubscriptionTierNone     SubscriptionTier = ""
	SubscriptionTierSilver   SubscriptionTier = "SILVER"
	SubscriptionTierGold     SubscriptionTier = "GOLD"
	SubscriptionTierPlatinum SubscriptionTier = "PLATINUM"
)

// ParseSubscriptionTier normalises a tier name; unknown names map to none.
func ParseSubscriptionTier(s string) SubscriptionTier {
	switch t := SubscriptionTier(strings.ToUpper(strings.TrimSpace(s))); t {
	case SubscriptionTierSilver, SubscriptionTierGold, SubscriptionTierPlatinum:
		return t
	default:
		return SubscriptionTierNone
	}
}

// DiscountRate is the fraction taken off the base price per kWh.
func (t SubscriptionTier) DiscountRate() float64 {
	switch t {
	case SubscriptionTierSilver:
		return 0.25
	case SubscriptionTierGold:
		return 0.40
	case SubscriptionTierPlatinum:
		return 0.50
	default:
		return 0
	}
}
