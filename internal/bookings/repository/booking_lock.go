package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "driveo/internal/bookings/errors"
	"driveo/pkg/config"
	mongotx "driveo/pkg/db/mongo"
	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "booking_locks"

// BookingLockRepository provides advisory locks keyed by vehicle.
type BookingLockRepository interface {
	Acquire(ctx context.Context, vehicleID, owner string, ttl time.Duration) error
	Release(ctx context.Context, vehicleID, owner string) error
}

type mongoBookingLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	now        func() time.Time
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
		now:        mongotx.Now,
	}
}

func LockID(vehicleID string) string {
	return "booking_lock_" + vehicleID
}

// Acquire inserts the lock document. An expired lock is removed first since the
// TTL monitor only runs about once a minute. A live lock yields ErrLockHeld.
func (r *mongoBookingLockRepository) Acquire(ctx context.Context, vehicleID, owner string, ttl time.Duration) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	now := r.now()
	id := LockID(vehicleID)

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "expires_at": bson.M{"$lte": now}}); err != nil {
		return fmt.Errorf("failed to clear expired lock: %w", err)
	}

	lock := &model.BookingLock{
		ID:        id,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return bookingserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

// Release deletes the lock only if owner still holds it.
func (r *mongoBookingLockRepository) Release(ctx context.Context, vehicleID, owner string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": LockID(vehicleID), "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
