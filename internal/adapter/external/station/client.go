// Package station is the REST client for the station service, which owns
// charger inventory and operational status.
package station

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/circuitbreaker"
)

type Client struct {
	http *circuitbreaker.HTTPClient
	log  *zap.Logger
}

func NewClient(client *circuitbreaker.HTTPClient, log *zap.Logger) *Client {
	return &Client{http: client, log: log}
}

type chargerDTO struct {
	ChargerID string `json:"chargerId"`
	StationID string `json:"stationId"`
	Status    string `json:"status"`
}

// ListChargers returns the station's chargers in the order the station service lists them
func (c *Client) ListChargers(ctx context.Context, stationID string) ([]domain.Charger, error) {
	var dtos []chargerDTO
	path := fmt.Sprintf("/api/stations/%s/chargers", url.PathEscape(stationID))
	if err := c.http.DoJSON(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, fmt.Errorf("list chargers for station %s: %w", stationID, err)
	}

	chargers := make([]domain.Charger, 0, len(dtos))
	for _, d := range dtos {
		owner := d.StationID
		if owner == "" {
			owner = stationID
		}
		chargers = append(chargers, domain.Charger{
			ID:        d.ChargerID,
			StationID: owner,
			Status:    parseStatus(d.Status),
		})
	}
	return chargers, nil
}

type statusUpdate struct {
	Status string `json:"status"`
}

func (c *Client) UpdateChargerStatus(ctx context.Context, chargerID string, status domain.ChargerStatus) error {
	path := fmt.Sprintf("/api/chargers/%s/status", url.PathEscape(chargerID))
	if err := c.http.DoJSON(ctx, http.MethodPut, path, statusUpdate{Status: string(status)}, nil); err != nil {
		return fmt.Errorf("update charger %s status: %w", chargerID, err)
	}
	return nil
}

// parseStatus accepts the upper-case enum names the station service emits.
func parseStatus(s string) domain.ChargerStatus {
	switch domain.ChargerStatus(strings.ToLower(strings.TrimSpace(s))) {
	case domain.ChargerStatusAvailable:
		return domain.ChargerStatusAvailable
	case domain.ChargerStatusInUse, "charging", "occupied":
		return domain.ChargerStatusInUse
	case domain.ChargerStatusReserved:
		return domain.ChargerStatusReserved
	case domain.ChargerStatusMaintenance:
		return domain.ChargerStatusMaintenance
	default:
		return domain.ChargerStatusOffline
	}
}
