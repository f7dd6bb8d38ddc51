package validator

import (
	"errors"
	"testing"
	"time"

	"driveo/pkg/logger"
	"driveo/pkg/model"
	"driveo/pkg/validation"
)

func validVehicle(now time.Time) *model.Vehicle {
	return &model.Vehicle{
		RegistrationNumber: "KA01AB1234",
		Brand:              "Maruti",
		Model:              "Swift",
		Name:               "Swift VXI",
		Year:               2022,
		CarType:            "hatchback",
		FuelType:           "petrol",
		Transmission:       "manual",
		Seats:              5,
		PricePerDay:        1500,
		District:           "Bengaluru Urban",
		Location:           "Indiranagar",
		InsuranceEnd:       now.AddDate(1, 0, 0),
		RegistrationEnd:    now.AddDate(5, 0, 0),
		PollutionEnd:       now.AddDate(0, 6, 0),
	}
}

func newTestValidator(now time.Time) *VehicleValidator {
	v := NewVehicleValidator(logger.Discard())
	v.now = func() time.Time { return now }
	return v
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	v := newTestValidator(now)

	tests := []struct {
		name      string
		mutate    func(*model.Vehicle)
		wantField string
	}{
		{name: "valid", mutate: func(*model.Vehicle) {}},
		{name: "bad registration", mutate: func(x *model.Vehicle) { x.RegistrationNumber = "HELLO" }, wantField: "registration_number"},
		{name: "bharat series registration", mutate: func(x *model.Vehicle) { x.RegistrationNumber = "22BH1234AB" }},
		{name: "unknown car type", mutate: func(x *model.Vehicle) { x.CarType = "truck" }, wantField: "car_type"},
		{name: "zero price", mutate: func(x *model.Vehicle) { x.PricePerDay = 0 }, wantField: "price_per_day"},
		{name: "too many seats", mutate: func(x *model.Vehicle) { x.Seats = 40 }, wantField: "seats"},
		{name: "future model year", mutate: func(x *model.Vehicle) { x.Year = 2030 }, wantField: "year"},
		{name: "expired insurance", mutate: func(x *model.Vehicle) { x.InsuranceEnd = now.Add(-time.Hour) }, wantField: "insurance_end"},
		{name: "expired pollution", mutate: func(x *model.Vehicle) { x.PollutionEnd = now.AddDate(0, -1, 0) }, wantField: "pollution_end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vehicle := validVehicle(now)
			tt.mutate(vehicle)

			err := v.Validate(vehicle)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verrs validation.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.wantField, verrs)
			}
		})
	}
}

func TestValidateImage(t *testing.T) {
	v := newTestValidator(time.Now())

	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     bool
	}{
		{"jpeg", "image/jpeg", 1024, false},
		{"webp at limit", "image/webp", MaxImageSize, false},
		{"gif", "image/gif", 1024, true},
		{"too large", "image/png", MaxImageSize + 1, true},
		{"empty", "image/png", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateImage(tt.contentType, tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRejection(t *testing.T) {
	v := newTestValidator(time.Now())

	if err := v.ValidateRejection("no"); err == nil {
		t.Error("expected error for short reason")
	}
	if err := v.ValidateRejection("Registration certificate photo is unreadable"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
