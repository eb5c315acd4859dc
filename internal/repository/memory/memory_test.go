package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WithTxRollback(t *testing.T) {
	store := NewStore()
	store.PutVehicle(domain.Vehicle{ID: 1, Status: domain.VehicleStatusAvailable})
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context) error {
		rt := &domain.Rental{VehicleID: 1, CustomerID: 2, Status: domain.RentalStatusRequested}
		require.NoError(t, store.RentalRepository.Create(ctx, rt))
		ok, err := store.CompareAndSetStatus(ctx, 1, []domain.VehicleStatus{domain.VehicleStatusAvailable}, domain.VehicleStatusReserved)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Empty(t, store.Rentals())
	status, err := store.GetStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleStatusAvailable, status)
}

func TestStore_OptimisticUpdate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	rt := &domain.Rental{VehicleID: 1, CustomerID: 2, Status: domain.RentalStatusRequested}
	require.NoError(t, store.RentalRepository.Create(ctx, rt))

	stale := *rt
	rt.Status = domain.RentalStatusConfirmed
	require.NoError(t, store.RentalRepository.Update(ctx, rt))
	assert.Equal(t, int32(2), rt.Version)

	stale.Status = domain.RentalStatusCancelled
	assert.ErrorIs(t, store.RentalRepository.Update(ctx, &stale), repository.ErrVersionConflict)

	got, err := store.RentalRepository.GetByID(ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusConfirmed, got.Status)
}

func TestStore_GetForUpdateRequiresTransaction(t *testing.T) {
	store := NewStore()
	_, err := store.RentalRepository.GetForUpdate(context.Background(), 1)
	assert.ErrorIs(t, err, repository.ErrNoTransaction)
	_, err = store.DamageReportRepository.GetForUpdate(context.Background(), 1)
	assert.ErrorIs(t, err, repository.ErrNoTransaction)
}

func TestStore_ConcurrentTransactionsSerialize(t *testing.T) {
	store := NewStore()
	store.PutVehicle(domain.Vehicle{ID: 1, Status: domain.VehicleStatusAvailable})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithTx(ctx, func(ctx context.Context) error {
				ok, err := store.CompareAndSetStatus(ctx, 1, []domain.VehicleStatus{domain.VehicleStatusAvailable}, domain.VehicleStatusReserved)
				if err != nil || !ok {
					return err
				}
				mu.Lock()
				wins++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRentalRepository_Queries(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for _, rt := range []domain.Rental{
		{VehicleID: 1, CustomerID: 9, StartDate: "2025-06-01", EndDate: "2025-06-03", Status: domain.RentalStatusInUse},
		{VehicleID: 1, CustomerID: 9, StartDate: "2025-06-10", EndDate: "2025-06-12", Status: domain.RentalStatusRequested},
		{VehicleID: 1, CustomerID: 8, StartDate: "2025-06-20", EndDate: "2025-06-22", Status: domain.RentalStatusConfirmed},
		{VehicleID: 2, CustomerID: 9, StartDate: "2025-06-05", EndDate: "2025-06-06", Status: domain.RentalStatusCancelled},
	} {
		rt := rt
		require.NoError(t, store.RentalRepository.Create(ctx, &rt))
	}

	blocking, err := store.ListByVehicle(ctx, 1, domain.BlockingRentalStatuses)
	require.NoError(t, err)
	require.Len(t, blocking, 2)
	assert.Equal(t, "2025-06-01", blocking[0].StartDate)

	overdue, err := store.ListOverdue(ctx, "2025-06-05")
	require.NoError(t, err)
	assert.Len(t, overdue, 1)

	stale, err := store.ListStaleRequests(ctx, "2025-06-11")
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	page, total, err := store.ListByCustomer(ctx, 9, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, int32(4), page[0].ID)

	page, _, err = store.ListByCustomer(ctx, 9, "", 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vehicles:
  - id: 1
    make: Toyota
    model: Corolla
    plate: ABC-123
    daily_rate_cents: 5000
customers:
  - id: 1
    email: admin@example.com
    display_name: Admin
    role: ADMIN
  - id: 2
    email: jane@example.com
    display_name: Jane
`), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)

	store := NewStore()
	seed.Apply(store, "USD")
	ctx := context.Background()

	v, err := store.VehicleRegistry.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleStatusAvailable, v.Status)
	assert.Equal(t, "USD", v.Currency)

	c, err := store.CustomerDirectory.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerRoleCustomer, c.Role)

	admin, err := store.CustomerDirectory.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
}
