package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"driveo/internal/bookings/service"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"
	"driveo/pkg/token"

	"github.com/julienschmidt/httprouter"
)

type mockBookingService struct {
	service.BookingService
	createFunc func(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error)
	listFunc   func(ctx context.Context, f model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	payFunc    func(ctx context.Context, actor model.Actor, id, reference string) (*model.Booking, error)
	cancelFunc func(ctx context.Context, actor model.Actor, id, reason string) (*model.Booking, error)
	statusFunc func(ctx context.Context, id, status string) (*model.Booking, error)
}

func (m *mockBookingService) Create(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
	return m.createFunc(ctx, actor, req)
}

func (m *mockBookingService) List(ctx context.Context, f model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc(ctx, f, limit, offset)
}

func (m *mockBookingService) Pay(ctx context.Context, actor model.Actor, id, reference string) (*model.Booking, error) {
	return m.payFunc(ctx, actor, id, reference)
}

func (m *mockBookingService) Cancel(ctx context.Context, actor model.Actor, id, reason string) (*model.Booking, error) {
	return m.cancelFunc(ctx, actor, id, reason)
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, id, status string) (*model.Booking, error) {
	return m.statusFunc(ctx, id, status)
}

var tokens = token.NewManager(strings.Repeat("k", 32), "driveo", time.Minute, time.Hour)

func bearer(t *testing.T, id, role string) string {
	t.Helper()
	pair, err := tokens.Issue(&model.User{ID: id, Email: id + "@example.com", Role: role})
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + pair.AccessToken
}

func newRouter(svc service.BookingService) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, middleware.NewAuthenticator(tokens), logger.Discard()).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreate(t *testing.T) {
	var got *model.BookingRequest
	var gotActor model.Actor
	svc := &mockBookingService{createFunc: func(_ context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
		got, gotActor = req, actor
		if req.VehicleID == "busy" {
			return nil, apperrors.Conflict("Vehicle is already booked")
		}
		return &model.Booking{ID: "b1", BookingNumber: "BK-000001", VehicleID: req.VehicleID}, nil
	}}
	router := newRouter(svc)
	body := `{"vehicle_id":"%s","pickup_date":"2026-11-01T10:00:00Z","dropoff_date":"2026-11-03T10:00:00Z","pickup_location":"Indiranagar","dropoff_location":"Indiranagar"}`

	tests := []struct {
		name       string
		auth       string
		body       string
		wantStatus int
	}{
		{"anonymous", "", strings.Replace(body, "%s", "v1", 1), http.StatusUnauthorized},
		{"vendor", bearer(t, "vendor1", model.RoleVendor), strings.Replace(body, "%s", "v1", 1), http.StatusForbidden},
		{"customer", bearer(t, "u1", model.RoleUser), strings.Replace(body, "%s", "v1", 1), http.StatusCreated},
		{"conflict", bearer(t, "u1", model.RoleUser), strings.Replace(body, "%s", "busy", 1), http.StatusConflict},
		{"unknown field", bearer(t, "u1", model.RoleUser), `{"vehicle_id":"v1","total_price":1}`, http.StatusBadRequest},
		{"bad date", bearer(t, "u1", model.RoleUser), `{"vehicle_id":"v1","pickup_date":"tomorrow"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(router, http.MethodPost, "/api/v1/bookings", tt.auth, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	if gotActor.UserID != "u1" || got.DropoffDate.Sub(got.PickupDate) != 48*time.Hour {
		t.Errorf("actor = %+v req = %+v", gotActor, got)
	}
}

func TestList_AdminFilters(t *testing.T) {
	var got model.BookingFilter
	svc := &mockBookingService{listFunc: func(_ context.Context, f model.BookingFilter, _ int, _ int64) ([]*model.Booking, int64, error) {
		got = f
		return []*model.Booking{{ID: "b1"}}, 1, nil
	}}
	router := newRouter(svc)

	rr := do(router, http.MethodGet, "/api/v1/admin/bookings?status=booked&vehicle_id=v1&user_id=u1", bearer(t, "admin1", model.RoleAdmin), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if got.Status != model.BookingBooked || got.VehicleID != "v1" || got.UserID != "u1" {
		t.Errorf("filter = %+v", got)
	}

	var resp struct {
		TotalCount int64 `json:"total_count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp.TotalCount != 1 {
		t.Errorf("body = %s", rr.Body.String())
	}

	rr = do(router, http.MethodGet, "/api/v1/admin/bookings", bearer(t, "u1", model.RoleUser), "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("customer status = %d, want 403", rr.Code)
	}
}

func TestPayCancelStatus(t *testing.T) {
	var gotRef, gotReason, gotStatus string
	svc := &mockBookingService{
		payFunc: func(_ context.Context, _ model.Actor, id, reference string) (*model.Booking, error) {
			gotRef = reference
			return &model.Booking{ID: id, Status: model.BookingBooked}, nil
		},
		cancelFunc: func(_ context.Context, _ model.Actor, id, reason string) (*model.Booking, error) {
			gotReason = reason
			return &model.Booking{ID: id, Status: model.BookingCancelled}, nil
		},
		statusFunc: func(_ context.Context, id, status string) (*model.Booking, error) {
			gotStatus = status
			return &model.Booking{ID: id, Status: status}, nil
		},
	}
	router := newRouter(svc)
	user := bearer(t, "u1", model.RoleUser)
	admin := bearer(t, "admin1", model.RoleAdmin)

	tests := []struct {
		name       string
		method     string
		path       string
		auth       string
		body       string
		wantStatus int
	}{
		{"pay", http.MethodPost, "/api/v1/bookings/id/b1/pay", user, `{"reference":"pay_123"}`, http.StatusOK},
		{"admin cannot pay", http.MethodPost, "/api/v1/bookings/id/b1/pay", admin, `{"reference":"pay_123"}`, http.StatusForbidden},
		{"cancel with reason", http.MethodPost, "/api/v1/bookings/id/b1/cancel", user, `{"reason":"plans changed"}`, http.StatusOK},
		{"cancel without body", http.MethodPost, "/api/v1/bookings/id/b1/cancel", user, "", http.StatusOK},
		{"status", http.MethodPatch, "/api/v1/admin/bookings/id/b1/status", admin, `{"status":"on_trip"}`, http.StatusOK},
		{"status needs admin", http.MethodPatch, "/api/v1/admin/bookings/id/b1/status", user, `{"status":"on_trip"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(router, tt.method, tt.path, tt.auth, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	if gotRef != "pay_123" || gotStatus != model.BookingOnTrip {
		t.Errorf("reference = %q status = %q", gotRef, gotStatus)
	}
	if gotReason != "" {
		t.Errorf("last cancel reason = %q, want empty", gotReason)
	}
}
