package domain

import (
	"time"
)

// SessionStatus represents the status of a charging session
type SessionStatus string

const (
	SessionStatusReserved  SessionStatus = "reserved"
	SessionStatusStarting  SessionStatus = "starting"
	SessionStatusCharging  SessionStatus = "charging"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusTimeout   SessionStatus = "timeout"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusReserved: {SessionStatusStarting, SessionStatusCharging, SessionStatusCancelled},
	SessionStatusStarting: {SessionStatusCharging, SessionStatusFailed, SessionStatusCancelled},
	SessionStatusCharging: {SessionStatusPaused, SessionStatusCompleted, SessionStatusCancelled, SessionStatusFailed, SessionStatusTimeout},
	SessionStatusPaused:   {SessionStatusCharging, SessionStatusCompleted, SessionStatusCancelled},
}

func (s SessionStatus) IsTerminal() bool {
	return len(sessionTransitions[s]) == 0
}

func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ChargingSession is one vehicle drawing energy from one charger.
// At most one session per charger may be in SessionStatusCharging; the partial
// unique index below enforces that at the storage layer.
type ChargingSession struct {
	ID            string        `json:"id" gorm:"primaryKey"`
	SessionCode   string        `json:"session_code" gorm:"uniqueIndex"`
	UserID        string        `json:"user_id" gorm:"index"`
	StationID     string        `json:"station_id" gorm:"index"`
	ChargerID     string        `json:"charger_id" gorm:"index;uniqueIndex:idx_sessions_live_charger,where:status = 'charging'"`
	ReservationID string        `json:"reservation_id,omitempty" gorm:"index"`
	Status        SessionStatus `json:"status" gorm:"index"`

	StartTime time.Time  `json:"start_time" gorm:"index"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	EnergyConsumed float64 `json:"energy_consumed"` // kWh
	FinalSOC       float64 `json:"final_soc,omitempty"`
	FullyCharged   bool    `json:"fully_charged"`
	PricePerKWh    float64 `json:"price_per_kwh"`
	Cost           float64 `json:"cost"`
	Currency       string  `json:"currency"`

	IsPaid    bool   `json:"is_paid"`
	PaymentID string `json:"payment_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name the rest of the platform reads from.
func (ChargingSession) TableName() string {
	return "charging_sessions"
}

// TransitionTo moves the session to next, rejecting moves the lifecycle does not allow.
func (s *ChargingSession) TransitionTo(next SessionStatus, at time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return NewStateConflictError(ConflictIllegalTransition,
			"session %s cannot move from %s to %s", s.ID, s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = at
	if next.IsTerminal() {
		s.EndTime = &at
	}
	return nil
}

// SessionStatusSnapshot is the live view of a session returned by GetSessionStatus.
type SessionStatusSnapshot struct {
	SessionID                 string        `json:"session_id"`
	Status                    SessionStatus `json:"status"`
	ChargerID                 string        `json:"charger_id"`
	StartTime                 time.Time     `json:"start_time"`
	ElapsedMinutes            float64       `json:"elapsed_minutes"`
	EnergyCharged             float64       `json:"energy_charged"`
	CurrentSOC                float64       `json:"current_soc,omitempty"`
	EstimatedMinutesRemaining float64       `json:"estimated_minutes_remaining,omitempty"`
	ChargingPowerKW           float64       `json:"charging_power_kw,omitempty"`
	PricePerKWh               float64       `json:"price_per_kwh,omitempty"`
	EstimatedCost             float64       `json:"estimated_cost,omitempty"`
	Currency                  string        `json:"currency,omitempty"`
}
