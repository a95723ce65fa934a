package ports

import (
	"context"
	"time"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

// CreateReservationRequest carries a booking request. ChargerID is optional;
// when empty the availability resolver picks one.
type CreateReservationRequest struct {
	UserID            string
	StationID         string
	ChargerID         string
	ReservedStartTime time.Time
	ReservedEndTime   time.Time
	DurationMinutes   int
}

// ReservationService books chargers and drives reservations through their lifecycle.
type ReservationService interface {
	CreateReservation(ctx context.Context, req *CreateReservationRequest) (*domain.Reservation, error)
	CheckIn(ctx context.Context, reservationID, userID string) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, reservationID, userID, reason string) (*domain.Reservation, error)
	StartSessionFromReservation(ctx context.Context, reservationID, userID string) (*domain.ChargingSession, error)
	StartSessionFromQRCode(ctx context.Context, qrToken, userID string) (*domain.ChargingSession, error)
	GetReservation(ctx context.Context, reservationID, userID string) (*domain.Reservation, error)
	ListUserReservations(ctx context.Context, userID string) ([]domain.Reservation, error)
}

// StartSessionRequest opens a session on a charger. ReservationID links the
// session back to the reservation it activates, if any.
type StartSessionRequest struct {
	UserID        string
	StationID     string
	ChargerID     string
	ReservationID string
}

// SessionService runs charging sessions. An empty userID on the mutating
// calls means a system caller and skips the ownership check.
type SessionService interface {
	StartSession(ctx context.Context, req *StartSessionRequest) (*domain.ChargingSession, error)
	GetSession(ctx context.Context, sessionID, userID string) (*domain.ChargingSession, error)
	ListUserSessions(ctx context.Context, userID string) ([]domain.ChargingSession, error)
	GetSessionStatus(ctx context.Context, sessionID, userID string) (*domain.SessionStatusSnapshot, error)
	StopSession(ctx context.Context, sessionID, userID string) (*domain.ChargingSession, error)
	CancelSession(ctx context.Context, sessionID, userID string) (*domain.ChargingSession, error)
	MarkSessionAsPaid(ctx context.Context, sessionID, paymentID string) (*domain.ChargingSession, error)
	PaySession(ctx context.Context, sessionID, userID string) (*domain.ChargingSession, error)
}

// AvailabilityResolver picks a free charger at a station for a time window.
type AvailabilityResolver interface {
	FindAvailableCharger(ctx context.Context, stationID string, start, end time.Time) (string, error)
}
