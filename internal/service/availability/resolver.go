package availability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

// Resolver finds a free charger at a station for a time window
type Resolver struct {
	stations     ports.StationDirectory
	reservations ports.ReservationRepository
	sessions     ports.SessionRepository
	log          *zap.Logger
}

// NewResolver creates a new availability resolver
func NewResolver(
	stations ports.StationDirectory,
	reservations ports.ReservationRepository,
	sessions ports.SessionRepository,
	log *zap.Logger,
) *Resolver {
	return &Resolver{
		stations:     stations,
		reservations: reservations,
		sessions:     sessions,
		log:          log,
	}
}

// FindAvailableCharger returns the first charger, in directory order, that is
// bookable, has no live session and no blocking reservation overlapping [start, end).
func (r *Resolver) FindAvailableCharger(ctx context.Context, stationID string, start, end time.Time) (string, error) {
	chargers, err := r.stations.ListChargers(ctx, stationID)
	if err != nil {
		return "", domain.NewDependencyError("station-directory", "list_chargers", err)
	}

	for _, c := range chargers {
		ok, err := r.isFree(ctx, c, start, end)
		if err != nil {
			return "", err
		}
		if ok {
			r.log.Debug("Charger resolved",
				zap.String("station_id", stationID),
				zap.String("charger_id", c.ID),
			)
			return c.ID, nil
		}
	}

	return "", &domain.CapacityError{StationID: stationID, Start: start, End: end}
}

func (r *Resolver) isFree(ctx context.Context, c domain.Charger, start, end time.Time) (bool, error) {
	if !c.Status.Bookable() {
		return false, nil
	}

	live, err := r.sessions.FindLiveByChargerID(ctx, c.ID)
	if err != nil {
		return false, fmt.Errorf("check live session on %s: %w", c.ID, err)
	}
	if live != nil {
		return false, nil
	}

	overlapping, err := r.reservations.FindOverlapping(ctx, c.ID, start, end)
	if err != nil {
		return false, fmt.Errorf("check overlapping reservations on %s: %w", c.ID, err)
	}
	return len(overlapping) == 0, nil
}
