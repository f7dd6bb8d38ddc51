package repository

import (
	"context"
	"fmt"
	"regexp"

	mdErrors "driveo/internal/masterdata/errors"
	"driveo/pkg/config"
	mongotx "driveo/pkg/db/mongo"
	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CarModelRepository interface {
	Create(ctx context.Context, carModel *model.CarModel) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, brand string) ([]*model.CarModel, error)
}

type mongoCarModelRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCarModelRepository(cfg *config.Config) CarModelRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCarModelRepository{
		cfg:        cfg,
		collection: db.Collection(CarModelsCollection),
	}
}

func (r *mongoCarModelRepository) Create(ctx context.Context, carModel *model.CarModel) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, carModel)
	if err != nil {
		if mongotx.IsDuplicateKey(err) {
			return mdErrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create car model: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		carModel.ID = oid.Hex()
	}
	return nil
}

func (r *mongoCarModelRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.collection, r.cfg, id)
}

func (r *mongoCarModelRepository) Find(ctx context.Context, brand string) ([]*model.CarModel, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	filter := bson.M{}
	if brand != "" {
		filter["brand"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(brand) + "$", Options: "i"}
	}
	opts := options.Find().SetSort(bson.D{{Key: "brand", Value: 1}, {Key: "model", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find car models: %w", err)
	}
	defer cursor.Close(ctx)

	models := []*model.CarModel{}
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("failed to decode car models: %w", err)
	}
	return models, nil
}
