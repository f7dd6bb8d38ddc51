package events

import (
	"encoding/json"
	"fmt"
	"time"

	"driveo/pkg/model"

	"github.com/google/uuid"
)

const (
	TypeBookingCreated   = "booking.created"
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingCompleted = "booking.completed"
	TypeBookingOverdue   = "booking.overdue"
	TypeVehicleApproved  = "vehicle.approved"
	TypeVehicleRejected  = "vehicle.rejected"
)

const SchemaVersion = "1"

// BookingPayload carries everything a subscriber needs to notify the customer
// without reading the database.
type BookingPayload struct {
	BookingID          string    `json:"booking_id"`
	BookingNumber      string    `json:"booking_number"`
	Status             string    `json:"status"`
	PaymentStatus      string    `json:"payment_status"`
	UserID             string    `json:"user_id"`
	UserEmail          string    `json:"user_email,omitempty"`
	UserName           string    `json:"user_name,omitempty"`
	VehicleID          string    `json:"vehicle_id"`
	VendorID           string    `json:"vendor_id,omitempty"`
	VehicleName        string    `json:"vehicle_name,omitempty"`
	RegistrationNumber string    `json:"registration_number,omitempty"`
	PickupDate         time.Time `json:"pickup_date"`
	DropoffDate        time.Time `json:"dropoff_date"`
	PickupLocation     string    `json:"pickup_location"`
	DropoffLocation    string    `json:"dropoff_location"`
	TotalPrice         float64   `json:"total_price"`
	Currency           string    `json:"currency,omitempty"`
	InvoiceNumber      string    `json:"invoice_number,omitempty"`
	CancelReason       string    `json:"cancel_reason,omitempty"`
}

type VehiclePayload struct {
	VehicleID          string `json:"vehicle_id"`
	VendorID           string `json:"vendor_id,omitempty"`
	VendorEmail        string `json:"vendor_email,omitempty"`
	VendorName         string `json:"vendor_name,omitempty"`
	VehicleName        string `json:"vehicle_name"`
	RegistrationNumber string `json:"registration_number"`
	Reason             string `json:"reason,omitempty"`
}

type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Booking    *BookingPayload `json:"booking,omitempty"`
	Vehicle    *VehiclePayload `json:"vehicle,omitempty"`
}

func NewBookingEvent(eventType string, payload BookingPayload) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Booking:    &payload,
	}
}

func NewVehicleEvent(eventType string, payload VehiclePayload) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Vehicle:    &payload,
	}
}

// BookingPayloadFrom fills a payload from the stored records. user and vehicle may be nil.
func BookingPayloadFrom(b *model.Booking, user *model.User, vehicle *model.Vehicle) BookingPayload {
	p := BookingPayload{
		BookingID:       b.ID,
		BookingNumber:   b.BookingNumber,
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		UserID:          b.UserID,
		VehicleID:       b.VehicleID,
		VendorID:        b.VendorID,
		PickupDate:      b.PickupDate,
		DropoffDate:     b.DropoffDate,
		PickupLocation:  b.PickupLocation,
		DropoffLocation: b.DropoffLocation,
		TotalPrice:      b.TotalPrice,
		InvoiceNumber:   b.InvoiceNumber,
		CancelReason:    b.CancelReason,
	}
	if user != nil {
		p.UserEmail = user.Email
		p.UserName = user.Username
	}
	if vehicle != nil {
		p.VehicleName = vehicle.DisplayName()
		p.RegistrationNumber = vehicle.RegistrationNumber
	}
	return p
}

// Key is the aggregate ID used as the Kafka partition key, so the events of
// one booking or vehicle stay ordered.
func (e Event) Key() string {
	switch {
	case e.Booking != nil:
		return e.Booking.BookingID
	case e.Vehicle != nil:
		return e.Vehicle.VehicleID
	default:
		return e.ID
	}
}

func (e Event) IsBooking() bool {
	return e.Booking != nil
}

func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event %q has no type", e.ID)
	}
	return e, nil
}
