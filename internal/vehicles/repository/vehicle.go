package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	vehicleserrors "driveo/internal/vehicles/errors"
	"driveo/pkg/config"
	mongotx "driveo/pkg/db/mongo"
	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "vehicles"
)

type VehicleRepository interface {
	Create(ctx context.Context, vehicle *model.Vehicle) error
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)
	Find(ctx context.Context, filter model.VehicleFilter, limit int, offset int64) ([]*model.Vehicle, error)
	FindAll(ctx context.Context, filter model.VehicleFilter) ([]*model.Vehicle, error)
	Count(ctx context.Context, filter model.VehicleFilter) (int64, error)
	Update(ctx context.Context, id string, vehicle *model.Vehicle) error
	AddImage(ctx context.Context, id string, key string) error
	SetApproval(ctx context.Context, id string, approved bool, reason string) error
	SoftDelete(ctx context.Context, id string) error
}

type mongoVehicleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoVehicleRepository(cfg *config.Config) VehicleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVehicleRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoVehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	now := mongotx.Now()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	if vehicle.Images == nil {
		vehicle.Images = []string{}
	}

	result, err := r.collection.InsertOne(ctx, vehicle)
	if err != nil {
		if mongotx.IsDuplicateKey(err) {
			return vehicleserrors.ErrDuplicateRegistration
		}
		return fmt.Errorf("failed to create vehicle: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		vehicle.ID = oid.Hex()
	}
	return nil
}

func (r *mongoVehicleRepository) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", vehicleserrors.ErrInvalidID, id)
	}

	var vehicle model.Vehicle
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID, "is_deleted": false}).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, vehicleserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}

	return &vehicle, nil
}

func (r *mongoVehicleRepository) Find(ctx context.Context, filter model.VehicleFilter, limit int, offset int64) ([]*model.Vehicle, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, buildFilter(filter), opts)
}

// FindAll returns every match, cheapest first. It backs the availability search,
// which filters the candidates against the booking calendar afterwards.
func (r *mongoVehicleRepository) FindAll(ctx context.Context, filter model.VehicleFilter) ([]*model.Vehicle, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "price_per_day", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, buildFilter(filter), opts)
}

func (r *mongoVehicleRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Vehicle, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	vehicles := []*model.Vehicle{}
	if err = cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("failed to decode vehicles: %w", err)
	}
	return vehicles, nil
}

func (r *mongoVehicleRepository) Count(ctx context.Context, filter model.VehicleFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count vehicles: %w", err)
	}
	return count, nil
}

func (r *mongoVehicleRepository) Update(ctx context.Context, id string, vehicle *model.Vehicle) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", vehicleserrors.ErrInvalidID, id)
	}

	vehicle.UpdatedAt = mongotx.Now()
	update := bson.M{
		"$set": bson.M{
			"brand":             vehicle.Brand,
			"model":             vehicle.Model,
			"name":              vehicle.Name,
			"year":              vehicle.Year,
			"car_type":          vehicle.CarType,
			"fuel_type":         vehicle.FuelType,
			"transmission":      vehicle.Transmission,
			"seats":             vehicle.Seats,
			"price_per_day":     vehicle.PricePerDay,
			"district":          vehicle.District,
			"location":          vehicle.Location,
			"description":       vehicle.Description,
			"insurance_end":     vehicle.InsuranceEnd,
			"registration_end":  vehicle.RegistrationEnd,
			"pollution_end":     vehicle.PollutionEnd,
			"is_admin_approved": vehicle.IsAdminApproved,
			"is_rejected":       vehicle.IsRejected,
			"rejection_reason":  vehicle.RejectionReason,
			"updated_at":        vehicle.UpdatedAt,
		},
	}

	return r.updateOne(ctx, objectID, update)
}

func (r *mongoVehicleRepository) AddImage(ctx context.Context, id string, key string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", vehicleserrors.ErrInvalidID, id)
	}

	return r.updateOne(ctx, objectID, bson.M{
		"$push": bson.M{"images": key},
		"$set":  bson.M{"updated_at": mongotx.Now()},
	})
}

func (r *mongoVehicleRepository) SetApproval(ctx context.Context, id string, approved bool, reason string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", vehicleserrors.ErrInvalidID, id)
	}

	return r.updateOne(ctx, objectID, bson.M{
		"$set": bson.M{
			"is_admin_approved": approved,
			"is_rejected":       !approved,
			"rejection_reason":  reason,
			"updated_at":        mongotx.Now(),
		},
	})
}

func (r *mongoVehicleRepository) SoftDelete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", vehicleserrors.ErrInvalidID, id)
	}

	return r.updateOne(ctx, objectID, bson.M{
		"$set": bson.M{"is_deleted": true, "updated_at": mongotx.Now()},
	})
}

func (r *mongoVehicleRepository) updateOne(ctx context.Context, objectID primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID, "is_deleted": false}, update)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	if result.MatchedCount == 0 {
		return vehicleserrors.ErrNotFound
	}
	return nil
}

func buildFilter(f model.VehicleFilter) bson.M {
	filter := bson.M{"is_deleted": false}

	switch f.Approval {
	case model.ApprovalApproved:
		filter["is_admin_approved"] = true
	case model.ApprovalPending:
		filter["is_admin_approved"] = false
		filter["is_rejected"] = false
	}

	exact := map[string]string{
		"district":     f.District,
		"location":     f.Location,
		"car_type":     f.CarType,
		"fuel_type":    f.FuelType,
		"transmission": f.Transmission,
		"vendor_id":    f.VendorID,
	}
	for field, value := range exact {
		if value != "" {
			filter[field] = value
		}
	}
	if f.Brand != "" {
		filter["brand"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.Brand) + "$", Options: "i"}
	}

	if f.MinSeats > 0 {
		filter["seats"] = bson.M{"$gte": f.MinSeats}
	}
	price := bson.M{}
	if f.MinPrice > 0 {
		price["$gte"] = f.MinPrice
	}
	if f.MaxPrice > 0 {
		price["$lte"] = f.MaxPrice
	}
	if len(price) > 0 {
		filter["price_per_day"] = price
	}

	if !f.ValidUntil.IsZero() {
		filter["insurance_end"] = bson.M{"$gte": f.ValidUntil}
		filter["registration_end"] = bson.M{"$gte": f.ValidUntil}
		filter["pollution_end"] = bson.M{"$gte": f.ValidUntil}
	}

	return filter
}
