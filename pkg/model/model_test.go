package model

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{BookingPending, BookingBooked, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingOnTrip, false},
		{BookingBooked, BookingOnTrip, true},
		{BookingBooked, BookingCancelled, true},
		{BookingOnTrip, BookingCancelled, false},
		{BookingOnTrip, BookingOverdue, true},
		{BookingOverdue, BookingCompleted, true},
		{BookingCompleted, BookingBooked, false},
		{BookingCancelled, BookingBooked, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsActiveBookingStatus(t *testing.T) {
	for _, s := range []string{BookingPending, BookingBooked, BookingOnTrip, BookingOverdue} {
		if !IsActiveBookingStatus(s) {
			t.Errorf("%s should be active", s)
		}
	}
	for _, s := range []string{BookingCompleted, BookingCancelled, ""} {
		if IsActiveBookingStatus(s) {
			t.Errorf("%q should not be active", s)
		}
	}
}

func TestRentalDays(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		dropoff time.Time
		want    int
	}{
		{"two hours", base.Add(2 * time.Hour), 1},
		{"exactly one day", base.Add(24 * time.Hour), 1},
		{"one day and a minute", base.Add(24*time.Hour + time.Minute), 2},
		{"three days", base.Add(72 * time.Hour), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RentalDays(base, tt.dropoff); got != tt.want {
				t.Errorf("RentalDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVehicle_Rentable(t *testing.T) {
	dropoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	valid := func() *Vehicle {
		return &Vehicle{
			IsAdminApproved: true,
			InsuranceEnd:    dropoff.AddDate(1, 0, 0),
			RegistrationEnd: dropoff.AddDate(1, 0, 0),
			PollutionEnd:    dropoff,
		}
	}

	if !valid().Rentable(dropoff) {
		t.Error("approved vehicle with valid papers should be rentable")
	}

	v := valid()
	v.IsDeleted = true
	if v.Rentable(dropoff) {
		t.Error("deleted vehicle must not be rentable")
	}

	v = valid()
	v.IsAdminApproved = false
	if v.Rentable(dropoff) {
		t.Error("unapproved vehicle must not be rentable")
	}

	v = valid()
	v.InsuranceEnd = dropoff.Add(-time.Hour)
	if v.Rentable(dropoff) {
		t.Error("vehicle with insurance lapsing before dropoff must not be rentable")
	}

	var nilVehicle *Vehicle
	if nilVehicle.Rentable(dropoff) {
		t.Error("nil vehicle must not be rentable")
	}
}

func TestRoundMoney(t *testing.T) {
	if got := RoundMoney(10.006); got != 10.01 {
		t.Errorf("RoundMoney(10.006) = %v", got)
	}
	if got := RoundMoney(99.994); got != 99.99 {
		t.Errorf("RoundMoney(99.994) = %v", got)
	}
}
