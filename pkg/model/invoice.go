package model

import (
	"math"
	"time"
)

type InvoiceItem struct {
	Description string  `json:"description" bson:"description"`
	Quantity    int     `json:"quantity" bson:"quantity"`
	UnitPrice   float64 `json:"unit_price" bson:"unit_price"`
	Amount      float64 `json:"amount" bson:"amount"`
}

type Invoice struct {
	ID                 string        `json:"id,omitempty" bson:"_id,omitempty"`
	InvoiceNumber      string        `json:"invoice_number" bson:"invoice_number"`
	BookingID          string        `json:"booking_id" bson:"booking_id"`
	BookingNumber      string        `json:"booking_number" bson:"booking_number"`
	UserID             string        `json:"user_id" bson:"user_id"`
	VehicleID          string        `json:"vehicle_id" bson:"vehicle_id"`
	CustomerName       string        `json:"customer_name" bson:"customer_name"`
	CustomerEmail      string        `json:"customer_email" bson:"customer_email"`
	VehicleName        string        `json:"vehicle_name" bson:"vehicle_name"`
	RegistrationNumber string        `json:"registration_number" bson:"registration_number"`
	PickupDate         time.Time     `json:"pickup_date" bson:"pickup_date"`
	DropoffDate        time.Time     `json:"dropoff_date" bson:"dropoff_date"`
	PickupLocation     string        `json:"pickup_location" bson:"pickup_location"`
	DropoffLocation    string        `json:"dropoff_location" bson:"dropoff_location"`
	Items              []InvoiceItem `json:"items" bson:"items"`
	Subtotal           float64       `json:"subtotal" bson:"subtotal"`
	TaxRate            float64       `json:"tax_rate" bson:"tax_rate"`
	Tax                float64       `json:"tax" bson:"tax"`
	Total              float64       `json:"total" bson:"total"`
	Currency           string        `json:"currency" bson:"currency"`
	PaymentReference   string        `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	ObjectKey          string        `json:"-" bson:"object_key,omitempty"`
	IssuedAt           time.Time     `json:"issued_at" bson:"issued_at"`
}

// RoundMoney rounds to two decimal places, half away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
