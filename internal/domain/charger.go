package domain

// ChargerStatus is the operational status owned by the station directory.
type ChargerStatus string

const (
	ChargerStatusAvailable   ChargerStatus = "available"
	ChargerStatusInUse       ChargerStatus = "in_use"
	ChargerStatusOffline     ChargerStatus = "offline"
	ChargerStatusMaintenance ChargerStatus = "maintenance"
	ChargerStatusReserved    ChargerStatus = "reserved"
)

// Bookable reports whether a reservation may be placed on a charger in this status.
func (s ChargerStatus) Bookable() bool {
	return s == ChargerStatusAvailable || s == ChargerStatusReserved
}

// Charger is the station directory's view of one charger.
type Charger struct {
	ID        string        `json:"charger_id"`
	StationID string        `json:"station_id,omitempty"`
	Status    ChargerStatus `json:"status"`
}
