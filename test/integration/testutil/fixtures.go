package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const DefaultPassword = "Passw0rd!"

// SeedUser inserts a verified account directly, bypassing the OTP flow.
func (m *MongoHelper) SeedUser(t *testing.T, email, role string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	id := primitive.NewObjectID()
	now := time.Now().UTC()
	_, err = m.Database.Collection(UsersCollection).InsertOne(ctx, bson.M{
		"_id":           id,
		"username":      role + " tester",
		"email":         email,
		"password_hash": string(hash),
		"role":          role,
		"is_verified":   true,
		"created_at":    now,
		"updated_at":    now,
	})
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
	return id.Hex()
}

// Login returns an access token for the given credentials.
func (c *Client) Login(t *testing.T, email string) string {
	t.Helper()
	resp := c.POST(t, "/api/v1/auth/login", model.LoginRequest{Email: email, Password: DefaultPassword})
	AssertStatusCode(t, resp, 200)

	var pair struct {
		AccessToken string `json:"access_token"`
	}
	resp.Data(t, &pair)
	if pair.AccessToken == "" {
		t.Fatalf("login for %s returned no access token", email)
	}
	return pair.AccessToken
}

type VehicleBuilder struct {
	vehicle model.Vehicle
}

func NewVehicleBuilder(seq int) *VehicleBuilder {
	docsValid := time.Now().UTC().AddDate(1, 0, 0)
	return &VehicleBuilder{
		vehicle: model.Vehicle{
			RegistrationNumber: fmt.Sprintf("KA01AB%04d", seq),
			Brand:              "Maruti",
			Model:              "Swift",
			Name:               "Swift VXI",
			Year:               2022,
			CarType:            "hatchback",
			FuelType:           "petrol",
			Transmission:       "manual",
			Seats:              5,
			PricePerDay:        1500,
			District:           "Bengaluru",
			Location:           "Indiranagar",
			InsuranceEnd:       docsValid,
			RegistrationEnd:    docsValid,
			PollutionEnd:       docsValid,
		},
	}
}

func (b *VehicleBuilder) WithPrice(price float64) *VehicleBuilder {
	b.vehicle.PricePerDay = price
	return b
}

func (b *VehicleBuilder) WithInsuranceEnd(end time.Time) *VehicleBuilder {
	b.vehicle.InsuranceEnd = end
	return b
}

func (b *VehicleBuilder) Build() model.Vehicle {
	return b.vehicle
}

func ValidLocation() model.Location {
	return model.Location{District: "Bengaluru", Name: "Indiranagar", IsActive: true}
}

// BookingWindow starts at midnight UTC a few days ahead so pickup never
// falls in the past while the test runs.
func BookingWindow(daysAhead, length int) (time.Time, time.Time) {
	start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, daysAhead)
	return start, start.AddDate(0, 0, length)
}

func NewBookingRequest(vehicleID string, pickup, dropoff time.Time) model.BookingRequest {
	return model.BookingRequest{
		VehicleID:       vehicleID,
		PickupDate:      pickup,
		DropoffDate:     dropoff,
		PickupLocation:  "Indiranagar",
		DropoffLocation: "Indiranagar",
	}
}
