package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	autherrors "driveo/internal/auth/errors"
	"driveo/pkg/config"
	mongotx "driveo/pkg/db/mongo"
	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "otps"

// OTPRepository keeps at most one live code per email and purpose.
type OTPRepository interface {
	Save(ctx context.Context, otp *model.OTP) error
	Find(ctx context.Context, email, purpose string) (*model.OTP, error)
	ClaimAttempt(ctx context.Context, id string, maxAttempts int, now time.Time) (int, error)
	Delete(ctx context.Context, id string) error
}

type mongoOTPRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOTPRepository(cfg *config.Config) OTPRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOTPRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// Save replaces any previous code for the same key.
func (r *mongoOTPRepository) Save(ctx context.Context, otp *model.OTP) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	otp.ID = model.OTPKey(otp.Email, otp.Purpose)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": otp.ID}, otp, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save otp: %w", err)
	}
	return nil
}

func (r *mongoOTPRepository) Find(ctx context.Context, email, purpose string) (*model.OTP, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	var otp model.OTP
	err := r.collection.FindOne(ctx, bson.M{"_id": model.OTPKey(email, purpose)}).Decode(&otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, autherrors.ErrOTPNotFound
		}
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	return &otp, nil
}

// ClaimAttempt atomically spends one attempt on a live code and returns the
// new count. ErrOTPNotFound means the code is missing, expired or out of
// attempts, so the caller must not compare it.
func (r *mongoOTPRepository) ClaimAttempt(ctx context.Context, id string, maxAttempts int, now time.Time) (int, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	var otp model.OTP
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{
			"_id":        id,
			"attempts":   bson.M{"$lt": maxAttempts},
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, autherrors.ErrOTPNotFound
		}
		return 0, fmt.Errorf("failed to claim otp attempt: %w", err)
	}
	return otp.Attempts, nil
}

func (r *mongoOTPRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}
