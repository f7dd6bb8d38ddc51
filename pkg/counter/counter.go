package counter

import (
	"context"
	"fmt"
	"time"

	mongotx "driveo/pkg/db/mongo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "counters"

	Booking = "booking"
	Invoice = "invoice"

	BookingPrefix = "BK"
	InvoicePrefix = "INV"
)

type Sequencer interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Counter hands out monotonically increasing numbers per sequence name.
type Counter struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func New(db *mongo.Database, timeout time.Duration) *Counter {
	return &Counter{coll: db.Collection(CollectionName), timeout: timeout}
}

type sequence struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// Next increments and returns the named sequence, creating it at 1.
// Inside a SessionContext the increment joins the transaction.
func (c *Counter) Next(ctx context.Context, name string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var out sequence
	err := c.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter %q: %w", name, err)
	}
	return out.Seq, nil
}

// Format renders n as PREFIX-000042. Values past six digits print in full.
func Format(prefix string, n int64) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}
