package repository

import (
	"context"
	"fmt"
	"slices"

	mdErrors "driveo/internal/masterdata/errors"
	"driveo/pkg/config"
	mongotx "driveo/pkg/db/mongo"
	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	LocationsCollection = "locations"
	CarModelsCollection = "car_models"
)

type LocationRepository interface {
	Create(ctx context.Context, location *model.Location) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, district string) ([]*model.Location, error)
	Districts(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, district, name string) (bool, error)
}

type mongoLocationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoLocationRepository(cfg *config.Config) LocationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLocationRepository{
		cfg:        cfg,
		collection: db.Collection(LocationsCollection),
	}
}

func (r *mongoLocationRepository) Create(ctx context.Context, location *model.Location) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, location)
	if err != nil {
		if mongotx.IsDuplicateKey(err) {
			return mdErrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create location: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		location.ID = oid.Hex()
	}
	return nil
}

func (r *mongoLocationRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.collection, r.cfg, id)
}

func (r *mongoLocationRepository) Find(ctx context.Context, district string) ([]*model.Location, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	filter := bson.M{"is_active": true}
	if district != "" {
		filter["district"] = district
	}
	opts := options.Find().SetSort(bson.D{{Key: "district", Value: 1}, {Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find locations: %w", err)
	}
	defer cursor.Close(ctx)

	locations := []*model.Location{}
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("failed to decode locations: %w", err)
	}
	return locations, nil
}

func (r *mongoLocationRepository) Districts(ctx context.Context) ([]string, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	values, err := r.collection.Distinct(ctx, "district", bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list districts: %w", err)
	}

	districts := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			districts = append(districts, s)
		}
	}
	slices.Sort(districts)
	return districts, nil
}

func (r *mongoLocationRepository) Exists(ctx context.Context, district, name string) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx,
		bson.M{"district": district, "name": name, "is_active": true},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check location: %w", err)
	}
	return n > 0, nil
}

func deleteByID(ctx context.Context, collection *mongo.Collection, cfg *config.Config, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", mdErrors.ErrInvalidID, id)
	}

	result, err := collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", collection.Name(), err)
	}
	if result.DeletedCount == 0 {
		return mdErrors.ErrNotFound
	}
	return nil
}
