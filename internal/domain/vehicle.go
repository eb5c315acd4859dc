package domain

type VehicleStatus string

const (
	VehicleStatusAvailable   VehicleStatus = "AVAILABLE"
	VehicleStatusReserved    VehicleStatus = "RESERVED"
	VehicleStatusMaintenance VehicleStatus = "MAINTENANCE"
	VehicleStatusDamaged     VehicleStatus = "DAMAGED"
	VehicleStatusSold        VehicleStatus = "SOLD"
	VehicleStatusInspection  VehicleStatus = "INSPECTION"
)

// Rentable reports whether a rental can be confirmed against a vehicle in
// this status.
func (s VehicleStatus) Rentable() bool {
	return s == VehicleStatusAvailable || s == VehicleStatusReserved
}

type Vehicle struct {
	ID             int32         `json:"id"`
	Make           string        `json:"make"`
	Model          string        `json:"model"`
	Plate          string        `json:"plate"`
	DailyRateCents int64         `json:"daily_rate_cents"`
	Currency       string        `json:"currency"`
	Status         VehicleStatus `json:"status"`
	UpdatedOn      string        `json:"updated_on"`
}
