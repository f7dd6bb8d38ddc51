package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"driveo/internal/availability"
	bookingserrors "driveo/internal/bookings/errors"
	"driveo/pkg/config"
	mongotx "driveo/pkg/db/mongo"
	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "bookings"
)

// StatusChange holds the fields written with a status transition. Empty
// optional fields are left untouched.
type StatusChange struct {
	Status           string
	PaymentStatus    string
	PaymentReference string
	CancelReason     string
}

type BookingRepository interface {
	// NewID returns a fresh ObjectID hex. Create keeps a preassigned ID.
	NewID() string
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	Find(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)

	// FindOverlap returns an active booking of the vehicle intersecting
	// [start, end), or nil when there is none.
	FindOverlap(ctx context.Context, vehicleID string, start, end time.Time) (*model.Booking, error)
	ActiveIntervals(ctx context.Context, since time.Time) ([]availability.VehicleInterval, error)
	CountActiveByVehicle(ctx context.Context, vehicleID string, after time.Time) (int64, error)
	CountActiveByUser(ctx context.Context, userID string) (int64, error)
	FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error)
	FindOverdueTrips(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error)

	// UpdateStatus applies change only while the booking is still in status from.
	UpdateStatus(ctx context.Context, id, from string, change StatusChange) (*model.Booking, error)
	SetInvoiceNumber(ctx context.Context, id, number string) error

	CountByStatus(ctx context.Context) (map[string]int64, error)
	Revenue(ctx context.Context) (float64, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoBookingRepository) NewID() string {
	return primitive.NewObjectID().Hex()
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	oid := primitive.NewObjectID()
	if booking.ID != "" {
		var err error
		if oid, err = primitive.ObjectIDFromHex(booking.ID); err != nil {
			return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.ID)
		}
	}

	now := mongotx.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	doc, err := withObjectID(booking, oid)
	if err != nil {
		return fmt.Errorf("failed to encode booking: %w", err)
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ID = oid.Hex()
	return nil
}

// withObjectID encodes b with oid as its _id.
func withObjectID(b *model.Booking, oid primitive.ObjectID) (bson.D, error) {
	cp := *b
	cp.ID = ""
	raw, err := bson.Marshal(&cp)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return append(bson.D{{Key: "_id", Value: oid}}, doc...), nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) Find(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, buildFilter(filter), opts)
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindOverlap(ctx context.Context, vehicleID string, start, end time.Time) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, overlapFilter(vehicleID, start, end)).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check overlapping bookings: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) ActiveIntervals(ctx context.Context, since time.Time) ([]availability.VehicleInterval, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	filter := bson.M{
		"status":       bson.M{"$in": model.ActiveBookingStatuses},
		"dropoff_date": bson.M{"$gt": since},
	}
	opts := options.Find().SetProjection(bson.M{"vehicle_id": 1, "pickup_date": 1, "dropoff_date": 1})

	bookings, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	out := make([]availability.VehicleInterval, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, availability.VehicleInterval{
			VehicleID: b.VehicleID,
			Interval:  availability.Interval{Start: b.PickupDate, End: b.DropoffDate, BookingID: b.ID},
		})
	}
	return out, nil
}

func (r *mongoBookingRepository) CountActiveByVehicle(ctx context.Context, vehicleID string, after time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"vehicle_id":   vehicleID,
		"status":       bson.M{"$in": model.ActiveBookingStatuses},
		"dropoff_date": bson.M{"$gt": after},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count vehicle bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) CountActiveByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"user_id": userID,
		"status":  bson.M{"$in": model.ActiveBookingStatuses},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count user bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, bson.M{
		"status":     model.BookingPending,
		"created_at": bson.M{"$lt": createdBefore},
	}, opts)
}

func (r *mongoBookingRepository) FindOverdueTrips(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "dropoff_date", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, bson.M{
		"status":       model.BookingOnTrip,
		"dropoff_date": bson.M{"$lt": now},
	}, opts)
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id, from string, change StatusChange) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	set := bson.M{
		"status":     change.Status,
		"updated_at": mongotx.Now(),
	}
	if change.PaymentStatus != "" {
		set["payment_status"] = change.PaymentStatus
	}
	if change.PaymentReference != "" {
		set["payment_reference"] = change.PaymentReference
	}
	if change.CancelReason != "" {
		set["cancel_reason"] = change.CancelReason
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": set},
		opts,
	).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrStatusChanged
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) SetInvoiceNumber(ctx context.Context, id, number string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"invoice_number": number, "updated_at": mongotx.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set invoice number: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by status: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode status counts: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// Revenue sums the price of every paid booking.
func (r *mongoBookingRepository) Revenue(ctx context.Context) (float64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.MongoOpTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"payment_status": model.PaymentPaid}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$total_price"}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode revenue: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return model.RoundMoney(rows[0].Total), nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func buildFilter(f model.BookingFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.VehicleID != "" {
		filter["vehicle_id"] = f.VehicleID
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.VendorID != "" {
		filter["vendor_id"] = f.VendorID
	}
	return filter
}

// overlapFilter matches active bookings with pickup < end and dropoff > start.
func overlapFilter(vehicleID string, start, end time.Time) bson.M {
	return bson.M{
		"vehicle_id":   vehicleID,
		"status":       bson.M{"$in": model.ActiveBookingStatuses},
		"pickup_date":  bson.M{"$lt": end},
		"dropoff_date": bson.M{"$gt": start},
	}
}
