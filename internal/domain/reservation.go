package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ReservationStatus represents the status of a reservation
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusActive    ReservationStatus = "active" // linked to a running session
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusNoShow    ReservationStatus = "no_show"
)

// BlockingReservationStatuses are the statuses that hold a charger's time window.
var BlockingReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusActive,
}

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:   {ReservationStatusConfirmed, ReservationStatusCancelled, ReservationStatusExpired},
	ReservationStatusConfirmed: {ReservationStatusActive, ReservationStatusCancelled, ReservationStatusNoShow},
	ReservationStatusActive:    {ReservationStatusCompleted, ReservationStatusCancelled},
}

// IsTerminal reports whether no further transition is possible
func (s ReservationStatus) IsTerminal() bool {
	return len(reservationTransitions[s]) == 0
}

// IsBlocking reports whether a reservation in this status occupies its window
func (s ReservationStatus) IsBlocking() bool {
	for _, b := range BlockingReservationStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation represents a charger booked for a time window
type Reservation struct {
	ID               string `json:"id" gorm:"primaryKey"`
	ConfirmationCode string `json:"confirmation_code" gorm:"size:8"`
	QRToken          string `json:"qr_token" gorm:"uniqueIndex"`
	UserID           string `json:"user_id" gorm:"index"`
	StationID        string `json:"station_id" gorm:"index"`
	ChargerID        string `json:"charger_id" gorm:"index:idx_reservations_charger_window"`
	SessionID        string `json:"session_id,omitempty" gorm:"index"`

	ReservedStartTime time.Time         `json:"reserved_start_time" gorm:"index:idx_reservations_charger_window"`
	ReservedEndTime   time.Time         `json:"reserved_end_time"`
	DurationMinutes   int               `json:"duration_minutes"`
	Status            ReservationStatus `json:"status" gorm:"index"`

	DepositAmount    float64 `json:"deposit_amount"`
	DepositPaymentID string  `json:"deposit_payment_id,omitempty"`
	DepositRefunded  bool    `json:"deposit_refunded"`

	CheckInDeadline time.Time  `json:"check_in_deadline"`
	CheckInTime     *time.Time `json:"check_in_time,omitempty"`
	IsCheckedIn     bool       `json:"is_checked_in"`

	NoShowCount          int  `json:"no_show_count"`
	NoShowPenaltyApplied bool `json:"no_show_penalty_applied"`

	ReminderSent   bool       `json:"reminder_sent"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`

	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransitionTo moves the reservation to next, rejecting moves the lifecycle does not allow.
func (r *Reservation) TransitionTo(next ReservationStatus, at time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return NewStateConflictError(ConflictIllegalTransition,
			"reservation %s cannot move from %s to %s", r.ID, r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = at
	if next == ReservationStatusCancelled {
		r.CancelledAt = &at
	}
	return nil
}

// Overlaps reports whether the reservation's window intersects [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return WindowsOverlap(r.ReservedStartTime, r.ReservedEndTime, start, end)
}

// WindowsOverlap is the half-open interval intersection test used for double-booking.
func WindowsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// QRTokenFor derives the scannable token from a reservation id and confirmation code.
func QRTokenFor(id, code string) string {
	sum := sha256.Sum256([]byte(id + ":" + code))
	return hex.EncodeToString(sum[:])
}
