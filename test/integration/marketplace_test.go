//go:build integration

package integration

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"driveo/pkg/model"
	"driveo/test/integration/testutil"
)

type marketplace struct {
	mongo  *testutil.MongoHelper
	public *testutil.Client
	admin  *testutil.Client
	vendor *testutil.Client
	user   *testutil.Client
}

type page[T any] struct {
	Data       []T   `json:"data"`
	TotalCount int64 `json:"total_count"`
}

// TestMarketplace runs against a live API with migrations applied. The
// logins happen once because the auth routes are rate limited.
func TestMarketplace(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	mongo.SeedUser(t, "admin@driveo.test", model.RoleAdmin)
	mongo.SeedUser(t, "vendor@driveo.test", model.RoleVendor)
	mongo.SeedUser(t, "rider@driveo.test", model.RoleUser)

	m := &marketplace{
		mongo:  mongo,
		public: client,
		admin:  client.As(client.Login(t, "admin@driveo.test")),
		vendor: client.As(client.Login(t, "vendor@driveo.test")),
		user:   client.As(client.Login(t, "rider@driveo.test")),
	}

	resp := m.admin.POST(t, "/api/v1/admin/locations", testutil.ValidLocation())
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	t.Run("vehicle approval", m.testVehicleApproval)
	t.Run("book pay and invoice", m.testBookPayInvoice)
	t.Run("overlap rejected", m.testOverlapRejected)
	t.Run("concurrent bookings", m.testConcurrentBookings)
	t.Run("cancel frees window", m.testCancelFreesWindow)
	t.Run("role checks", m.testRoleChecks)
}

func (m *marketplace) listApprovedVehicle(t *testing.T, seq int) string {
	t.Helper()

	resp := m.vendor.POST(t, "/api/v1/vehicles", testutil.NewVehicleBuilder(seq).Build())
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var vehicle model.Vehicle
	resp.Data(t, &vehicle)
	if vehicle.IsAdminApproved {
		t.Fatal("expected vendor listing to await approval")
	}

	resp = m.admin.POST(t, "/api/v1/admin/vehicles/id/"+vehicle.ID+"/approve", nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	return vehicle.ID
}

func (m *marketplace) testVehicleApproval(t *testing.T) {
	resp := m.vendor.POST(t, "/api/v1/vehicles", testutil.NewVehicleBuilder(1).Build())
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var vehicle model.Vehicle
	resp.Data(t, &vehicle)

	var listed page[model.Vehicle]
	resp = m.public.GET(t, "/api/v1/vehicles?district=Bengaluru")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if err := resp.UnmarshalJSON(&listed); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if listed.TotalCount != 0 {
		t.Fatalf("expected pending vehicle to be hidden, got %d results", listed.TotalCount)
	}

	resp = m.public.GET(t, "/api/v1/vehicles/id/"+vehicle.ID)
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)

	resp = m.admin.POST(t, "/api/v1/admin/vehicles/id/"+vehicle.ID+"/approve", nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	resp = m.public.GET(t, "/api/v1/vehicles?district=Bengaluru")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if err := resp.UnmarshalJSON(&listed); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if listed.TotalCount != 1 {
		t.Fatalf("expected approved vehicle to be listed, got %d results", listed.TotalCount)
	}

	resp = m.vendor.POST(t, "/api/v1/vehicles", testutil.NewVehicleBuilder(1).Build())
	testutil.AssertStatusCode(t, resp, http.StatusConflict)
}

func (m *marketplace) testBookPayInvoice(t *testing.T) {
	vehicleID := m.listApprovedVehicle(t, 2)
	pickup, dropoff := testutil.BookingWindow(3, 3)

	resp := m.user.POST(t, "/api/v1/bookings", testutil.NewBookingRequest(vehicleID, pickup, dropoff))
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var booking model.Booking
	resp.Data(t, &booking)
	if booking.Status != model.BookingPending || booking.PaymentStatus != model.PaymentPending {
		t.Fatalf("expected pending booking, got %s/%s", booking.Status, booking.PaymentStatus)
	}
	if booking.Days != 3 || booking.TotalPrice != 4500 {
		t.Errorf("expected 3 days at 4500, got %d days at %.2f", booking.Days, booking.TotalPrice)
	}
	if !strings.HasPrefix(booking.BookingNumber, "BK-") {
		t.Errorf("expected BK- booking number, got %q", booking.BookingNumber)
	}

	resp = m.user.POST(t, "/api/v1/bookings/id/"+booking.ID+"/pay", map[string]string{"reference": "pay_it_001"})
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Data(t, &booking)
	if booking.Status != model.BookingBooked || booking.PaymentStatus != model.PaymentPaid {
		t.Fatalf("expected booked and paid, got %s/%s", booking.Status, booking.PaymentStatus)
	}
	if booking.InvoiceNumber == "" {
		t.Fatal("expected invoice number after payment")
	}

	resp = m.user.POST(t, "/api/v1/bookings/id/"+booking.ID+"/pay", map[string]string{"reference": "pay_it_001"})
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if n := m.mongo.CountDocuments(t, testutil.InvoicesCollection, nil); n != 1 {
		t.Errorf("expected exactly one invoice, got %d", n)
	}

	resp = m.user.GET(t, "/api/v1/bookings/id/"+booking.ID+"/invoice")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if !strings.HasPrefix(string(resp.Body), "%PDF") {
		t.Error("expected a PDF document body")
	}

	resp = m.vendor.GET(t, "/api/v1/bookings/id/"+booking.ID)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
}

func (m *marketplace) testOverlapRejected(t *testing.T) {
	vehicleID := m.listApprovedVehicle(t, 3)
	pickup, dropoff := testutil.BookingWindow(5, 4)

	resp := m.user.POST(t, "/api/v1/bookings", testutil.NewBookingRequest(vehicleID, pickup, dropoff))
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	resp = m.user.POST(t, "/api/v1/bookings", testutil.NewBookingRequest(vehicleID, pickup.AddDate(0, 0, 1), dropoff.AddDate(0, 0, 1)))
	testutil.AssertStatusCode(t, resp, http.StatusConflict)
	testutil.AssertContains(t, resp, "conflict_start")

	resp = m.user.POST(t, "/api/v1/bookings", testutil.NewBookingRequest(vehicleID, dropoff, dropoff.AddDate(0, 0, 2)))
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	resp = m.public.GET(t, "/api/v1/vehicles/id/"+vehicleID+"/availability?from="+
		pickup.Format(time.RFC3339)+"&to="+dropoff.Format(time.RFC3339))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertContains(t, resp, `"free":false`)
}

func (m *marketplace) testConcurrentBookings(t *testing.T) {
	vehicleID := m.listApprovedVehicle(t, 4)
	pickup, dropoff := testutil.BookingWindow(10, 2)
	req := testutil.NewBookingRequest(vehicleID, pickup, dropoff)

	const attempts = 8
	statuses := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i] = m.user.POST(t, "/api/v1/bookings", req).StatusCode
		}(i)
	}
	wg.Wait()

	created := 0
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", status)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one booking to win the window, got %d", created)
	}
}

func (m *marketplace) testCancelFreesWindow(t *testing.T) {
	vehicleID := m.listApprovedVehicle(t, 5)
	pickup, dropoff := testutil.BookingWindow(15, 2)
	req := testutil.NewBookingRequest(vehicleID, pickup, dropoff)

	resp := m.user.POST(t, "/api/v1/bookings", req)
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	var booking model.Booking
	resp.Data(t, &booking)

	resp = m.user.POST(t, "/api/v1/bookings/id/"+booking.ID+"/cancel", nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Data(t, &booking)
	if booking.Status != model.BookingCancelled {
		t.Fatalf("expected cancelled, got %s", booking.Status)
	}

	resp = m.user.POST(t, "/api/v1/bookings/id/"+booking.ID+"/cancel", nil)
	testutil.AssertStatusCode(t, resp, http.StatusConflict)

	resp = m.user.POST(t, "/api/v1/bookings", req)
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
}

func (m *marketplace) testRoleChecks(t *testing.T) {
	resp := m.public.GET(t, "/api/v1/bookings/mine")
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)

	resp = m.user.GET(t, "/api/v1/admin/stats")
	testutil.AssertStatusCode(t, resp, http.StatusForbidden)

	pickup, dropoff := testutil.BookingWindow(3, 1)
	resp = m.vendor.POST(t, "/api/v1/bookings", testutil.NewBookingRequest("507f1f77bcf86cd799439011", pickup, dropoff))
	testutil.AssertStatusCode(t, resp, http.StatusForbidden)

	resp = m.admin.GET(t, "/api/v1/admin/stats")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertContains(t, resp, `"revenue"`)
}
