package model

import (
	"math"
	"slices"
	"time"
)

const (
	BookingPending   = "pending"
	BookingBooked    = "booked"
	BookingOnTrip    = "on_trip"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
	BookingOverdue   = "overdue"

	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// ActiveBookingStatuses are the statuses that hold a vehicle's time window.
var ActiveBookingStatuses = []string{BookingPending, BookingBooked, BookingOnTrip, BookingOverdue}

var bookingTransitions = map[string][]string{
	BookingPending: {BookingBooked, BookingCancelled},
	BookingBooked:  {BookingOnTrip, BookingCancelled},
	BookingOnTrip:  {BookingCompleted, BookingOverdue},
	BookingOverdue: {BookingCompleted},
}

type Booking struct {
	ID               string    `json:"id,omitempty" bson:"_id,omitempty"`
	BookingNumber    string    `json:"booking_number" bson:"booking_number"`
	VehicleID        string    `json:"vehicle_id" bson:"vehicle_id" validate:"required,mongodb"`
	UserID           string    `json:"user_id" bson:"user_id"`
	VendorID         string    `json:"vendor_id,omitempty" bson:"vendor_id,omitempty"`
	PickupDate       time.Time `json:"pickup_date" bson:"pickup_date" validate:"required"`
	DropoffDate      time.Time `json:"dropoff_date" bson:"dropoff_date" validate:"required,gtfield=PickupDate"`
	PickupLocation   string    `json:"pickup_location" bson:"pickup_location" validate:"required,min=2,max=100"`
	DropoffLocation  string    `json:"dropoff_location" bson:"dropoff_location" validate:"required,min=2,max=100"`
	District         string    `json:"district" bson:"district"`
	Days             int       `json:"days" bson:"days"`
	PricePerDay      float64   `json:"price_per_day" bson:"price_per_day"`
	TotalPrice       float64   `json:"total_price" bson:"total_price"`
	Status           string    `json:"status" bson:"status" validate:"required,oneof=pending booked on_trip completed cancelled overdue"`
	PaymentStatus    string    `json:"payment_status" bson:"payment_status" validate:"required,oneof=pending paid refunded"`
	PaymentReference string    `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	CancelReason     string    `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	InvoiceNumber    string    `json:"invoice_number,omitempty" bson:"invoice_number,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

// BookingRequest is the body a customer sends to reserve a vehicle.
type BookingRequest struct {
	VehicleID       string    `json:"vehicle_id" validate:"required,mongodb"`
	PickupDate      time.Time `json:"pickup_date" validate:"required"`
	DropoffDate     time.Time `json:"dropoff_date" validate:"required,gtfield=PickupDate"`
	PickupLocation  string    `json:"pickup_location" validate:"required,min=2,max=100"`
	DropoffLocation string    `json:"dropoff_location" validate:"required,min=2,max=100"`
}

type BookingFilter struct {
	Status    string
	VehicleID string
	UserID    string
	VendorID  string
}

func IsActiveBookingStatus(status string) bool {
	return slices.Contains(ActiveBookingStatuses, status)
}

func CanTransition(from, to string) bool {
	return slices.Contains(bookingTransitions[from], to)
}

// RentalDays counts started 24h periods, with a minimum of one day.
func RentalDays(pickup, dropoff time.Time) int {
	days := int(math.Ceil(dropoff.Sub(pickup).Hours() / 24))
	return max(days, 1)
}
