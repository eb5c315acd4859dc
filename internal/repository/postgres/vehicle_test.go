package postgres

import (
	"context"
	"testing"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleRegistry_CompareAndSetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	registry := NewVehicleRegistry(db)
	ctx := context.Background()
	expected := []domain.VehicleStatus{domain.VehicleStatusAvailable, domain.VehicleStatusReserved}

	t.Run("Swapped", func(t *testing.T) {
		mock.ExpectExec("UPDATE vehicles SET status = \\$1, updated_on = \\$2 WHERE id = \\$3 AND status = ANY").
			WithArgs(domain.VehicleStatusReserved, sqlmock.AnyArg(), int32(3), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := registry.CompareAndSetStatus(ctx, 3, expected, domain.VehicleStatusReserved)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Status moved on", func(t *testing.T) {
		mock.ExpectExec("UPDATE vehicles SET status").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := registry.CompareAndSetStatus(ctx, 3, expected, domain.VehicleStatusReserved)
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestVehicleRegistry_GetAndSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	registry := NewVehicleRegistry(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, make, model, plate, daily_rate_cents, currency, status, updated_on FROM vehicles").
		WithArgs(int32(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "make", "model", "plate", "daily_rate_cents", "currency", "status", "updated_on"}).
			AddRow(3, "Toyota", "Corolla", "ABC-123", int64(500), "USD", "AVAILABLE", time.Now()))

	v, err := registry.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleStatusAvailable, v.Status)
	assert.Equal(t, int64(500), v.DailyRateCents)

	mock.ExpectExec("UPDATE vehicles SET status = \\$1, updated_on = \\$2 WHERE id = \\$3$").
		WithArgs(domain.VehicleStatusMaintenance, sqlmock.AnyArg(), int32(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = registry.SetStatus(ctx, 4, domain.VehicleStatusMaintenance)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
