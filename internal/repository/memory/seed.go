package memory

import (
	"fmt"
	"os"

	"carrental-backend/internal/domain"

	"gopkg.in/yaml.v3"
)

// Seed is the fleet and customer list loaded into a fresh memory store.
type Seed struct {
	Vehicles []struct {
		ID             int32  `yaml:"id"`
		Make           string `yaml:"make"`
		Model          string `yaml:"model"`
		Plate          string `yaml:"plate"`
		DailyRateCents int64  `yaml:"daily_rate_cents"`
		Currency       string `yaml:"currency"`
		Status         string `yaml:"status"`
	} `yaml:"vehicles"`
	Customers []struct {
		ID               int32  `yaml:"id"`
		Email            string `yaml:"email"`
		DisplayName      string `yaml:"display_name"`
		Role             string `yaml:"role"`
		PaymentRef       string `yaml:"payment_ref"`
		PaymentMethodRef string `yaml:"payment_method_ref"`
	} `yaml:"customers"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// Apply loads the seed into the store, defaulting empty statuses, roles and
// currencies.
func (s *Seed) Apply(store *Store, defaultCurrency string) {
	for _, v := range s.Vehicles {
		status := domain.VehicleStatus(v.Status)
		if status == "" {
			status = domain.VehicleStatusAvailable
		}
		currency := v.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		store.PutVehicle(domain.Vehicle{
			ID:             v.ID,
			Make:           v.Make,
			Model:          v.Model,
			Plate:          v.Plate,
			DailyRateCents: v.DailyRateCents,
			Currency:       currency,
			Status:         status,
		})
	}
	for _, c := range s.Customers {
		role := domain.CustomerRole(c.Role)
		if role == "" {
			role = domain.CustomerRoleCustomer
		}
		store.PutCustomer(domain.Customer{
			ID:               c.ID,
			Email:            c.Email,
			DisplayName:      c.DisplayName,
			Role:             role,
			PaymentRef:       c.PaymentRef,
			PaymentMethodRef: c.PaymentMethodRef,
		})
	}
}
