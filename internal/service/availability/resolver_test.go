package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/mocks"
)

var windowStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestFindAvailableCharger(t *testing.T) {
	chargers := []domain.Charger{
		{ID: "offline", Status: domain.ChargerStatusOffline},
		{ID: "maint", Status: domain.ChargerStatusMaintenance},
		{ID: "busy", Status: domain.ChargerStatusInUse},
		{ID: "live", Status: domain.ChargerStatusAvailable},
		{ID: "booked", Status: domain.ChargerStatusReserved},
		{ID: "free-a", Status: domain.ChargerStatusReserved},
		{ID: "free-b", Status: domain.ChargerStatusAvailable},
	}

	stations := &mocks.MockStationDirectory{
		ListChargersFunc: func(ctx context.Context, stationID string) ([]domain.Charger, error) {
			return chargers, nil
		},
	}
	sessions := &mocks.MockSessionRepository{
		FindLiveByChargerIDFunc: func(ctx context.Context, chargerID string) (*domain.ChargingSession, error) {
			if chargerID == "live" {
				return &domain.ChargingSession{ID: "s1", ChargerID: chargerID, Status: domain.SessionStatusCharging}, nil
			}
			return nil, nil
		},
	}
	reservations := &mocks.MockReservationRepository{
		FindOverlappingFunc: func(ctx context.Context, chargerID string, start, end time.Time) ([]domain.Reservation, error) {
			if chargerID == "booked" {
				return []domain.Reservation{{ID: "r1", ChargerID: chargerID}}, nil
			}
			return nil, nil
		},
	}

	r := NewResolver(stations, reservations, sessions, zap.NewNop())
	got, err := r.FindAvailableCharger(context.Background(), "station-1", windowStart, windowStart.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, "free-a", got, "first fit in directory order")
}

func TestFindAvailableCharger_NoCapacity(t *testing.T) {
	stations := &mocks.MockStationDirectory{
		ListChargersFunc: func(ctx context.Context, stationID string) ([]domain.Charger, error) {
			return []domain.Charger{{ID: "c1", Status: domain.ChargerStatusOffline}}, nil
		},
	}

	r := NewResolver(stations, &mocks.MockReservationRepository{}, &mocks.MockSessionRepository{}, zap.NewNop())
	_, err := r.FindAvailableCharger(context.Background(), "station-1", windowStart, windowStart.Add(time.Hour))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCapacity)
	var capErr *domain.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "station-1", capErr.StationID)
}

func TestFindAvailableCharger_EmptyStation(t *testing.T) {
	r := NewResolver(&mocks.MockStationDirectory{}, &mocks.MockReservationRepository{}, &mocks.MockSessionRepository{}, zap.NewNop())

	_, err := r.FindAvailableCharger(context.Background(), "station-1", windowStart, windowStart.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrCapacity)
}

func TestFindAvailableCharger_DirectoryDown(t *testing.T) {
	stations := &mocks.MockStationDirectory{
		ListChargersFunc: func(ctx context.Context, stationID string) ([]domain.Charger, error) {
			return nil, errors.New("connection refused")
		},
	}

	r := NewResolver(stations, &mocks.MockReservationRepository{}, &mocks.MockSessionRepository{}, zap.NewNop())
	_, err := r.FindAvailableCharger(context.Background(), "station-1", windowStart, windowStart.Add(time.Hour))

	assert.ErrorIs(t, err, domain.ErrDependency)
}
