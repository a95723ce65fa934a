package domain

import (
	"math"
	"time"
)

// LifecyclePolicy holds every tunable constant of the reservation and session
// lifecycle. It is injected into the services instead of living in globals.
type LifecyclePolicy struct {
	// BasePricePerKWh is the undiscounted energy price
	BasePricePerKWh float64 `json:"base_price_per_kwh"`

	// DepositAmount is the flat deposit held for every reservation
	DepositAmount float64 `json:"deposit_amount"`

	Currency string `json:"currency"`

	// ChargingRateKWhPerMinute drives the simulated session (36 kW = 0.6 kWh/min)
	ChargingRateKWhPerMinute float64 `json:"charging_rate_kwh_per_minute"`

	// BatteryCapacityKWh is the assumed battery size of every vehicle
	BatteryCapacityKWh float64 `json:"battery_capacity_kwh"`

	// InitialSOCPercent is the assumed state of charge when a session starts
	InitialSOCPercent float64 `json:"initial_soc_percent"`

	// FullChargeSOCPercent is the SOC at or above which a stopped session counts as full
	FullChargeSOCPercent float64 `json:"full_charge_soc_percent"`

	// MinBookingLeadTime is how far ahead of now a reservation must start
	MinBookingLeadTime time.Duration `json:"min_booking_lead_time"`

	// DurationTolerance is the allowed gap between durationMinutes and end-start
	DurationTolerance time.Duration `json:"duration_tolerance"`

	// CheckInOpensBefore is how long before the reserved start check-in opens
	CheckInOpensBefore time.Duration `json:"check_in_opens_before"`

	// CheckInGracePeriod is added to the reserved start to form the check-in deadline
	CheckInGracePeriod time.Duration `json:"check_in_grace_period"`

	// ReminderLeadMin and ReminderLeadMax bound the reminder window ahead of the start
	ReminderLeadMin time.Duration `json:"reminder_lead_min"`
	ReminderLeadMax time.Duration `json:"reminder_lead_max"`

	// StaleSessionAfter is how long a session may stay charging before cleanup completes it
	StaleSessionAfter time.Duration `json:"stale_session_after"`

	// MaxBillableMinutes caps the energy computed for force-completed sessions
	MaxBillableMinutes float64 `json:"max_billable_minutes"`
}

// DefaultLifecyclePolicy returns the production defaults
func DefaultLifecyclePolicy() *LifecyclePolicy {
	return &LifecyclePolicy{
		BasePricePerKWh:          3500,
		DepositAmount:            50000,
		Currency:                 "VND",
		ChargingRateKWhPerMinute: 0.6,
		BatteryCapacityKWh:       80,
		InitialSOCPercent:        20,
		FullChargeSOCPercent:     99.9,
		MinBookingLeadTime:       30 * time.Minute,
		DurationTolerance:        time.Minute,
		CheckInOpensBefore:       30 * time.Minute,
		CheckInGracePeriod:       15 * time.Minute,
		ReminderLeadMin:          30 * time.Minute,
		ReminderLeadMax:          60 * time.Minute,
		StaleSessionAfter:        12 * time.Hour,
		MaxBillableMinutes:       720,
	}
}

// DepositFor returns the deposit to hold for a reservation. Flat today; the
// reservation is passed so duration or charger-tier pricing can slot in here.
func (p *LifecyclePolicy) DepositFor(_ *Reservation) float64 {
	return p.DepositAmount
}

// CheckInDeadline is the last instant a reservation starting at start may be checked in.
func (p *LifecyclePolicy) CheckInDeadline(start time.Time) time.Time {
	return start.Add(p.CheckInGracePeriod)
}

// ElapsedMinutes counts whole minutes between from and to, never negative.
func ElapsedMinutes(from, to time.Time) float64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return math.Floor(d.Minutes())
}

// EnergyForMinutes converts charging minutes to kWh under the fixed-rate model.
func (p *LifecyclePolicy) EnergyForMinutes(minutes float64) float64 {
	return roundTo(minutes*p.ChargingRateKWhPerMinute, 3)
}

// SOCForEnergy maps delivered energy to a state of charge. The battery is
// modelled so that BatteryCapacityKWh covers the span from the initial SOC to 100%.
func (p *LifecyclePolicy) SOCForEnergy(energyKWh float64) float64 {
	if p.BatteryCapacityKWh <= 0 {
		return p.InitialSOCPercent
	}
	soc := p.InitialSOCPercent + energyKWh/p.BatteryCapacityKWh*(100-p.InitialSOCPercent)
	return roundTo(math.Min(100, soc), 2)
}

// MinutesToFull estimates the charging minutes left until SOC reaches 100%.
func (p *LifecyclePolicy) MinutesToFull(energyKWh float64) float64 {
	if p.ChargingRateKWhPerMinute <= 0 {
		return 0
	}
	remaining := p.BatteryCapacityKWh - energyKWh
	if remaining <= 0 {
		return 0
	}
	return math.Ceil(remaining / p.ChargingRateKWhPerMinute)
}

// CostFor prices energy at pricePerKWh, rounded to cents.
func (p *LifecyclePolicy) CostFor(energyKWh, pricePerKWh float64) float64 {
	return roundTo(energyKWh*pricePerKWh, 2)
}

// ChargingPowerKW is the simulated charger output.
func (p *LifecyclePolicy) ChargingPowerKW() float64 {
	return p.ChargingRateKWhPerMinute * 60
}

// EffectivePrice applies a subscription discount to the base price.
func (p *LifecyclePolicy) EffectivePrice(tier SubscriptionTier) float64 {
	return roundTo(p.BasePricePerKWh*(1-tier.DiscountRate()), 4)
}

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
