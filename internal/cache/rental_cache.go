package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"

	"github.com/redis/go-redis/v9"
)

// CachedRentalRepository serves GetByID from Redis and invalidates on
// every write. Locking reads and list queries always go to the primary.
type CachedRentalRepository struct {
	repository.RentalRepository
	client *redis.Client
	ttl    time.Duration
}

func NewCachedRentalRepository(primary repository.RentalRepository, client *redis.Client, ttl time.Duration) *CachedRentalRepository {
	return &CachedRentalRepository{RentalRepository: primary, client: client, ttl: ttl}
}

func rentalKey(id int32) string {
	return "rental:" + strconv.Itoa(int(id))
}

func (r *CachedRentalRepository) GetByID(ctx context.Context, id int32) (*domain.Rental, error) {
	key := rentalKey(id)

	cached, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var rt domain.Rental
		if err := json.Unmarshal(cached, &rt); err == nil {
			return &rt, nil
		}
	} else if err != redis.Nil {
		logger.Warn("Rental cache read failed", "key", key, "error", err)
	}

	rt, err := r.RentalRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rt); err == nil {
		if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
			logger.Warn("Rental cache write failed", "key", key, "error", err)
		}
	}
	return rt, nil
}

func (r *CachedRentalRepository) Update(ctx context.Context, rt *domain.Rental) error {
	defer r.invalidate(ctx, rt.ID)
	return r.RentalRepository.Update(ctx, rt)
}

func (r *CachedRentalRepository) invalidate(ctx context.Context, id int32) {
	if err := r.client.Del(ctx, rentalKey(id)).Err(); err != nil {
		logger.Warn("Rental cache invalidation failed", "rentalID", id, "error", err)
	}
}
