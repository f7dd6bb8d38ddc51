package mongo

import (
	"context"
	"fmt"

	"driveo/internal/migrations/mongo/validators"
	"driveo/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collection struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

var (
	UsersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	OTPsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}

	VehiclesIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "registration_number", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_deleted": false}),
		},
		{Keys: bson.D{
			{Key: "district", Value: 1},
			{Key: "is_admin_approved", Value: 1},
			{Key: "car_type", Value: 1},
			{Key: "price_per_day", Value: 1},
		}},
		{Keys: bson.D{{Key: "vendor_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "vehicle_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "pickup_date", Value: 1},
			{Key: "dropoff_date", Value: 1},
		}},
		{Keys: bson.D{{Key: "booking_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "vendor_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	}

	BookingLocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}

	InvoicesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "invoice_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "issued_at", Value: -1}}},
	}

	LocationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "district", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	}

	CarModelsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "brand", Value: 1}, {Key: "model", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
)

// Collections lists every collection the services use, in creation order.
func Collections() []Collection {
	return []Collection{
		{Name: "users", Indexes: UsersIndexes, Validator: validators.UserValidator},
		{Name: "otps", Indexes: OTPsIndexes, Validator: validators.OTPValidator},
		{Name: "vehicles", Indexes: VehiclesIndexes, Validator: validators.VehicleValidator},
		{Name: "bookings", Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		{Name: "booking_locks", Indexes: BookingLocksIndexes, Validator: validators.BookingLockValidator},
		{Name: "invoices", Indexes: InvoicesIndexes, Validator: validators.InvoiceValidator},
		{Name: "locations", Indexes: LocationsIndexes, Validator: validators.LocationValidator},
		{Name: "car_models", Indexes: CarModelsIndexes, Validator: validators.CarModelValidator},
		{Name: "counters", Validator: validators.CounterValidator},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
