package mocks

import (
	"context"
	"time"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

// MockReservationRepository is a mock implementation of ReservationRepository.
// WithChargerLock runs fn against the mock itself unless WithChargerLockFunc is set.
type MockReservationRepository struct {
	CreateFunc               func(ctx context.Context, r *domain.Reservation) error
	UpdateFunc               func(ctx context.Context, r *domain.Reservation) error
	FindByIDFunc             func(ctx context.Context, id string) (*domain.Reservation, error)
	FindByQRTokenFunc        func(ctx context.Context, token string) (*domain.Reservation, error)
	FindBySessionIDFunc      func(ctx context.Context, sessionID string) (*domain.Reservation, error)
	FindByUserIDFunc         func(ctx context.Context, userID string) ([]domain.Reservation, error)
	FindOverlappingFunc      func(ctx context.Context, chargerID string, start, end time.Time) ([]domain.Reservation, error)
	FindDueForReminderFunc   func(ctx context.Context, from, to time.Time) ([]domain.Reservation, error)
	FindNoShowCandidatesFunc func(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)
	CountNoShowsByUserFunc   func(ctx context.Context, userID string) (int64, error)
	MarkReminderSentFunc     func(ctx context.Context, id string, at time.Time) (bool, error)
	MarkNoShowFunc           func(ctx context.Context, id string, at time.Time) (bool, error)
	WithChargerLockFunc      func(ctx context.Context, chargerID string, fn func(ctx context.Context, repo ports.ReservationRepository) error) error
}

func (m *MockReservationRepository) Create(ctx context.Context, r *domain.Reservation) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	return nil
}

func (m *MockReservationRepository) Update(ctx context.Context, r *domain.Reservation) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, r)
	}
	return nil
}

func (m *MockReservationRepository) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockReservationRepository) FindByQRToken(ctx context.Context, token string) (*domain.Reservation, error) {
	if m.FindByQRTokenFunc != nil {
		return m.FindByQRTokenFunc(ctx, token)
	}
	return nil, nil
}

func (m *MockReservationRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.Reservation, error) {
	if m.FindBySessionIDFunc != nil {
		return m.FindBySessionIDFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockReservationRepository) FindByUserID(ctx context.Context, userID string) ([]domain.Reservation, error) {
	if m.FindByUserIDFunc != nil {
		return m.FindByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockReservationRepository) FindOverlapping(ctx context.Context, chargerID string, start, end time.Time) ([]domain.Reservation, error) {
	if m.FindOverlappingFunc != nil {
		return m.FindOverlappingFunc(ctx, chargerID, start, end)
	}
	return nil, nil
}

func (m *MockReservationRepository) FindDueForReminder(ctx context.Context, from, to time.Time) ([]domain.Reservation, error) {
	if m.FindDueForReminderFunc != nil {
		return m.FindDueForReminderFunc(ctx, from, to)
	}
	return nil, nil
}

func (m *MockReservationRepository) FindNoShowCandidates(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	if m.FindNoShowCandidatesFunc != nil {
		return m.FindNoShowCandidatesFunc(ctx, cutoff)
	}
	return nil, nil
}

func (m *MockReservationRepository) CountNoShowsByUser(ctx context.Context, userID string) (int64, error) {
	if m.CountNoShowsByUserFunc != nil {
		return m.CountNoShowsByUserFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockReservationRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	if m.MarkReminderSentFunc != nil {
		return m.MarkReminderSentFunc(ctx, id, at)
	}
	return true, nil
}

func (m *MockReservationRepository) MarkNoShow(ctx context.Context, id string, at time.Time) (bool, error) {
	if m.MarkNoShowFunc != nil {
		return m.MarkNoShowFunc(ctx, id, at)
	}
	return true, nil
}

func (m *MockReservationRepository) WithChargerLock(ctx context.Context, chargerID string, fn func(ctx context.Context, repo ports.ReservationRepository) error) error {
	if m.WithChargerLockFunc != nil {
		return m.WithChargerLockFunc(ctx, chargerID, fn)
	}
	return fn(ctx, m)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	CreateFunc              func(ctx context.Context, s *domain.ChargingSession) error
	UpdateFunc              func(ctx context.Context, s *domain.ChargingSession) error
	FindByIDFunc            func(ctx context.Context, id string) (*domain.ChargingSession, error)
	FindByUserIDFunc        func(ctx context.Context, userID string) ([]domain.ChargingSession, error)
	FindLiveByChargerIDFunc func(ctx context.Context, chargerID string) (*domain.ChargingSession, error)
	FindStaleFunc           func(ctx context.Context, cutoff time.Time) ([]domain.ChargingSession, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, s *domain.ChargingSession) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, s)
	}
	return nil
}

func (m *MockSessionRepository) Update(ctx context.Context, s *domain.ChargingSession) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, s)
	}
	return nil
}

func (m *MockSessionRepository) FindByID(ctx context.Context, id string) (*domain.ChargingSession, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindByUserID(ctx context.Context, userID string) ([]domain.ChargingSession, error) {
	if m.FindByUserIDFunc != nil {
		return m.FindByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindLiveByChargerID(ctx context.Context, chargerID string) (*domain.ChargingSession, error) {
	if m.FindLiveByChargerIDFunc != nil {
		return m.FindLiveByChargerIDFunc(ctx, chargerID)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindStale(ctx context.Context, cutoff time.Time) ([]domain.ChargingSession, error) {
	if m.FindStaleFunc != nil {
		return m.FindStaleFunc(ctx, cutoff)
	}
	return nil, nil
}
