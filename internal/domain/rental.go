package domain

type RentalStatus string

const (
	RentalStatusRequested RentalStatus = "REQUESTED"
	RentalStatusConfirmed RentalStatus = "CONFIRMED"
	RentalStatusInUse     RentalStatus = "IN_USE"
	RentalStatusReturned  RentalStatus = "RETURNED"
	RentalStatusCancelled RentalStatus = "CANCELLED"
)

// rentalTransitions lists the legal next states for every rental state.
// RETURNED and CANCELLED are terminal.
var rentalTransitions = map[RentalStatus][]RentalStatus{
	RentalStatusRequested: {RentalStatusConfirmed, RentalStatusCancelled},
	RentalStatusConfirmed: {RentalStatusInUse, RentalStatusCancelled},
	RentalStatusInUse:     {RentalStatusReturned, RentalStatusCancelled},
}

// BlockingRentalStatuses are the states that hold a vehicle's calendar.
var BlockingRentalStatuses = []RentalStatus{RentalStatusConfirmed, RentalStatusInUse}

// CanTransition reports whether a rental may move from one status to another.
func (s RentalStatus) CanTransition(to RentalStatus) bool {
	for _, next := range rentalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s RentalStatus) IsTerminal() bool {
	return len(rentalTransitions[s]) == 0
}

func (s RentalStatus) IsBlocking() bool {
	return s == RentalStatusConfirmed || s == RentalStatusInUse
}

func (s RentalStatus) Valid() bool {
	switch s {
	case RentalStatusRequested, RentalStatusConfirmed, RentalStatusInUse, RentalStatusReturned, RentalStatusCancelled:
		return true
	}
	return false
}

type Rental struct {
	ID         int32  `json:"id"`
	VehicleID  int32  `json:"vehicle_id"`
	CustomerID int32  `json:"customer_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Days       int32  `json:"days"`
	// Price snapshot taken from the pricing engine when the rental is requested.
	// It is never recomputed afterwards.
	DailyPriceCents int64        `json:"daily_price_cents"`
	TotalPriceCents int64        `json:"total_price_cents"`
	Currency        string       `json:"currency"`
	Status          RentalStatus `json:"status"`
	PickupNotes     string       `json:"pickup_notes"`
	ReturnNotes     string       `json:"return_notes"`
	Version         int32        `json:"version"`
	CreatedOn       string       `json:"created_on"`
	UpdatedOn       string       `json:"updated_on"`
}

// Range returns the rental's inclusive date range.
func (r *Rental) Range() (DateRange, error) {
	return NewDateRange(r.StartDate, r.EndDate)
}

// TransitionTo moves the rental to the next status or returns an
// InvalidState error naming both states.
func (r *Rental) TransitionTo(next RentalStatus) error {
	if !r.Status.CanTransition(next) {
		return InvalidStatef("rental %d cannot move from %s to %s", r.ID, r.Status, next)
	}
	r.Status = next
	return nil
}
