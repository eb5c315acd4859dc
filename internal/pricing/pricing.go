// Package pricing quotes a rental's locked-in daily price and total.
package pricing

import (
	"context"
	"fmt"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

// Quote is the price snapshot stored on a rental at request time.
type Quote struct {
	DailyPriceCents int64
	TotalPriceCents int64
	Currency        string
}

// Quoter is the pricing engine used by the rental service.
type Quoter interface {
	Quote(ctx context.Context, vehicleID int32, r domain.DateRange) (*Quote, error)
}

// Tier is a length-of-rental discount: rentals of at least MinDays days get
// DiscountPercent off the vehicle's daily rate.
type Tier struct {
	MinDays         int32 `yaml:"min_days"`
	DiscountPercent int64 `yaml:"discount_percent"`
}

// DefaultTiers mirror the week and month rates of the old rate card.
var DefaultTiers = []Tier{
	{MinDays: 7, DiscountPercent: 10},
	{MinDays: 28, DiscountPercent: 25},
}

// RateCardEngine prices a rental from the vehicle's daily rate and the
// longest tier the rental qualifies for.
type RateCardEngine struct {
	vehicles        repository.VehicleRegistry
	tiers           []Tier
	defaultCurrency string
}

func NewRateCardEngine(vehicles repository.VehicleRegistry, tiers []Tier, defaultCurrency string) *RateCardEngine {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	return &RateCardEngine{vehicles: vehicles, tiers: tiers, defaultCurrency: defaultCurrency}
}

func (e *RateCardEngine) Quote(ctx context.Context, vehicleID int32, r domain.DateRange) (*Quote, error) {
	v, err := e.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("load vehicle %d: %w", vehicleID, err)
	}

	days := r.Days()
	daily := DailyRate(v.DailyRateCents, days, e.tiers)
	currency := v.Currency
	if currency == "" {
		currency = e.defaultCurrency
	}

	return &Quote{
		DailyPriceCents: daily,
		TotalPriceCents: daily * int64(days),
		Currency:        currency,
	}, nil
}

// DailyRate applies the best qualifying discount to rateCents. Fractions of
// a cent are dropped.
func DailyRate(rateCents int64, days int32, tiers []Tier) int64 {
	var discount int64
	for _, t := range tiers {
		if days >= t.MinDays && t.DiscountPercent > discount {
			discount = t.DiscountPercent
		}
	}
	return rateCents * (100 - discount) / 100
}
