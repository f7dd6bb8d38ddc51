package model

import "time"

// BookingLock is an advisory lock document held while a vehicle's calendar is
// checked and written. The TTL index on expires_at clears abandoned locks.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
