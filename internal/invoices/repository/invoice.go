package repository

import (
	"context"
	"errors"
	"fmt"

	invoiceserrors "driveo/internal/invoices/errors"
	"driveo/pkg/config"
	mongotx "driveo/pkg/db/mongo"
	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "invoices"

type InvoiceRepository interface {
	Create(ctx context.Context, inv *model.Invoice) error
	FindByBookingID(ctx context.Context, bookingID string) (*model.Invoice, error)
	// Find lists invoices newest first. An empty userID lists every invoice.
	Find(ctx context.Context, userID string, limit int, offset int64) ([]*model.Invoice, error)
	Count(ctx context.Context, userID string) (int64, error)
}

type mongoInvoiceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoInvoiceRepository(cfg *config.Config) InvoiceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoInvoiceRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoInvoiceRepository) Create(ctx context.Context, inv *model.Invoice) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, inv)
	if err != nil {
		if mongotx.IsDuplicateKey(err) {
			return invoiceserrors.ErrDuplicateBooking
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		inv.ID = oid.Hex()
	}
	return nil
}

func (r *mongoInvoiceRepository) FindByBookingID(ctx context.Context, bookingID string) (*model.Invoice, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	var inv model.Invoice
	if err := r.collection.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, invoiceserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	return &inv, nil
}

func (r *mongoInvoiceRepository) Find(ctx context.Context, userID string, limit int, offset int64) ([]*model.Invoice, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "issued_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filterFor(userID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []*model.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("failed to decode invoices: %w", err)
	}
	return invoices, nil
}

func (r *mongoInvoiceRepository) Count(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filterFor(userID))
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

func filterFor(userID string) bson.M {
	if userID == "" {
		return bson.M{}
	}
	return bson.M{"user_id": userID}
}
