package ports

import (
	"context"
	"time"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

// ReservationRepository persists reservations. Find* methods return (nil, nil)
// when nothing matches; services turn that into a NotFoundError.
type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	Update(ctx context.Context, r *domain.Reservation) error
	FindByID(ctx context.Context, id string) (*domain.Reservation, error)
	FindByQRToken(ctx context.Context, token string) (*domain.Reservation, error)
	FindBySessionID(ctx context.Context, sessionID string) (*domain.Reservation, error)
	FindByUserID(ctx context.Context, userID string) ([]domain.Reservation, error)

	// FindOverlapping returns blocking reservations on chargerID whose window intersects [start, end)
	FindOverlapping(ctx context.Context, chargerID string, start, end time.Time) ([]domain.Reservation, error)

	// FindDueForReminder returns confirmed, unreminded reservations starting within [from, to]
	FindDueForReminder(ctx context.Context, from, to time.Time) ([]domain.Reservation, error)

	// FindNoShowCandidates returns confirmed, unchecked-in reservations that started before cutoff
	FindNoShowCandidates(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)

	CountNoShowsByUser(ctx context.Context, userID string) (int64, error)

	// MarkReminderSent flags the reminder on a reservation that is still confirmed
	// and unreminded. It reports false when the row no longer qualifies.
	MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error)

	// MarkNoShow moves a reservation that is still confirmed and not checked in
	// to no_show, counting the miss. It reports false when the row no longer qualifies.
	MarkNoShow(ctx context.Context, id string, at time.Time) (bool, error)

	// WithChargerLock runs fn while holding an exclusive lock on chargerID. The
	// repository handed to fn shares the lock's transaction; writes made through
	// it commit only if fn returns nil.
	WithChargerLock(ctx context.Context, chargerID string, fn func(ctx context.Context, repo ReservationRepository) error) error
}

// SessionRepository persists charging sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.ChargingSession) error
	Update(ctx context.Context, s *domain.ChargingSession) error
	FindByID(ctx context.Context, id string) (*domain.ChargingSession, error)
	FindByUserID(ctx context.Context, userID string) ([]domain.ChargingSession, error)

	// FindLiveByChargerID returns the session currently charging on chargerID, if any
	FindLiveByChargerID(ctx context.Context, chargerID string) (*domain.ChargingSession, error)

	// FindStale returns charging sessions that started before cutoff
	FindStale(ctx context.Context, cutoff time.Time) ([]domain.ChargingSession, error)
}
