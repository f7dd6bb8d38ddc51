package model

import "time"

var (
	CarTypes      = []string{"hatchback", "sedan", "suv", "muv", "luxury"}
	FuelTypes     = []string{"petrol", "diesel", "electric", "hybrid", "cng"}
	Transmissions = []string{"manual", "automatic"}
)

type Vehicle struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	RegistrationNumber string    `json:"registration_number" bson:"registration_number" validate:"required,vehicle_registration"`
	Brand              string    `json:"brand" bson:"brand" validate:"required,min=2,max=50"`
	Model              string    `json:"model" bson:"model" validate:"required,min=1,max=50"`
	Name               string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Year               int       `json:"year" bson:"year" validate:"required,min=1990,max=2100"`
	CarType            string    `json:"car_type" bson:"car_type" validate:"required,oneof=hatchback sedan suv muv luxury"`
	FuelType           string    `json:"fuel_type" bson:"fuel_type" validate:"required,oneof=petrol diesel electric hybrid cng"`
	Transmission       string    `json:"transmission" bson:"transmission" validate:"required,oneof=manual automatic"`
	Seats              int       `json:"seats" bson:"seats" validate:"required,min=2,max=12"`
	PricePerDay        float64   `json:"price_per_day" bson:"price_per_day" validate:"required,gt=0,max=1000000"`
	District           string    `json:"district" bson:"district" validate:"required,min=2,max=100"`
	Location           string    `json:"location" bson:"location" validate:"required,min=2,max=100"`
	Description        string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	Images             []string  `json:"images" bson:"images"`
	InsuranceEnd       time.Time `json:"insurance_end" bson:"insurance_end" validate:"required"`
	RegistrationEnd    time.Time `json:"registration_end" bson:"registration_end" validate:"required"`
	PollutionEnd       time.Time `json:"pollution_end" bson:"pollution_end" validate:"required"`
	VendorID           string    `json:"vendor_id,omitempty" bson:"vendor_id,omitempty"`
	IsAdminApproved    bool      `json:"is_admin_approved" bson:"is_admin_approved"`
	IsRejected         bool      `json:"is_rejected" bson:"is_rejected"`
	RejectionReason    string    `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	IsDeleted          bool      `json:"-" bson:"is_deleted"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at"`
}

// Rentable reports whether the vehicle may be booked for a trip ending at dropoff.
func (v *Vehicle) Rentable(dropoff time.Time) bool {
	if v == nil || v.IsDeleted || !v.IsAdminApproved || v.IsRejected {
		return false
	}
	return !v.InsuranceEnd.Before(dropoff) &&
		!v.RegistrationEnd.Before(dropoff) &&
		!v.PollutionEnd.Before(dropoff)
}

func (v *Vehicle) DisplayName() string {
	if v == nil {
		return ""
	}
	return v.Brand + " " + v.Name
}

type VehicleUpdate struct {
	Brand           *string    `json:"brand,omitempty" validate:"omitempty,min=2,max=50"`
	Model           *string    `json:"model,omitempty" validate:"omitempty,min=1,max=50"`
	Name            *string    `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Year            *int       `json:"year,omitempty" validate:"omitempty,min=1990,max=2100"`
	CarType         *string    `json:"car_type,omitempty" validate:"omitempty,oneof=hatchback sedan suv muv luxury"`
	FuelType        *string    `json:"fuel_type,omitempty" validate:"omitempty,oneof=petrol diesel electric hybrid cng"`
	Transmission    *string    `json:"transmission,omitempty" validate:"omitempty,oneof=manual automatic"`
	Seats           *int       `json:"seats,omitempty" validate:"omitempty,min=2,max=12"`
	PricePerDay     *float64   `json:"price_per_day,omitempty" validate:"omitempty,gt=0,max=1000000"`
	District        *string    `json:"district,omitempty" validate:"omitempty,min=2,max=100"`
	Location        *string    `json:"location,omitempty" validate:"omitempty,min=2,max=100"`
	Description     *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	InsuranceEnd    *time.Time `json:"insurance_end,omitempty"`
	RegistrationEnd *time.Time `json:"registration_end,omitempty"`
	PollutionEnd    *time.Time `json:"pollution_end,omitempty"`
}

type VehicleFilter struct {
	District     string
	Location     string
	Brand        string
	CarType      string
	FuelType     string
	Transmission string
	MinSeats     int
	MinPrice     float64
	MaxPrice     float64
	VendorID     string
	// Approval selects approved, pending or any vehicles.
	Approval string
	// ValidUntil keeps vehicles whose certificates are valid through this time.
	ValidUntil time.Time
}

const (
	ApprovalApproved = "approved"
	ApprovalPending  = "pending"
	ApprovalAny      = "any"
)
