package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"driveo/internal/vehicles/service"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"
	"driveo/pkg/token"

	"github.com/julienschmidt/httprouter"
)

type mockVehicleService struct {
	service.VehicleService
	searchFunc    func(ctx context.Context, f model.VehicleFilter, limit int, offset int64) ([]*model.Vehicle, int64, error)
	availableFunc func(ctx context.Context, f model.VehicleFilter, pickup, dropoff time.Time) ([]*model.Vehicle, error)
	createFunc    func(ctx context.Context, actor model.Actor, v *model.Vehicle) error
	addImageFunc  func(ctx context.Context, actor model.Actor, id string, upload service.ImageUpload) (*model.Vehicle, error)
}

func (m *mockVehicleService) Search(ctx context.Context, f model.VehicleFilter, limit int, offset int64) ([]*model.Vehicle, int64, error) {
	return m.searchFunc(ctx, f, limit, offset)
}

func (m *mockVehicleService) Available(ctx context.Context, f model.VehicleFilter, pickup, dropoff time.Time) ([]*model.Vehicle, error) {
	return m.availableFunc(ctx, f, pickup, dropoff)
}

func (m *mockVehicleService) Create(ctx context.Context, actor model.Actor, v *model.Vehicle) error {
	return m.createFunc(ctx, actor, v)
}

func (m *mockVehicleService) AddImage(ctx context.Context, actor model.Actor, id string, upload service.ImageUpload) (*model.Vehicle, error) {
	return m.addImageFunc(ctx, actor, id, upload)
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

func newRouter(svc service.VehicleService) *httprouter.Router {
	router := httprouter.New()
	NewVehicleHandler(svc, middleware.NewAuthenticator(tokens), logger.Discard()).RegisterRoutes(router)
	return router
}

func TestSearch_QueryParameters(t *testing.T) {
	var got model.VehicleFilter
	var gotLimit int
	svc := &mockVehicleService{searchFunc: func(_ context.Context, f model.VehicleFilter, limit int, _ int64) ([]*model.Vehicle, int64, error) {
		got, gotLimit = f, limit
		return []*model.Vehicle{{ID: "1"}}, 1, nil
	}}
	router := newRouter(svc)

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"valid filters", "?district=Mysuru&car_type=suv&min_seats=5&min_price=500&max_price=2500&limit=20", http.StatusOK},
		{"bad seats", "?min_seats=five", http.StatusBadRequest},
		{"bad limit", "?limit=abc", http.StatusBadRequest},
		{"inverted price range", "?min_price=3000&max_price=100", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles"+tt.query, nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	if got.District != "Mysuru" || got.CarType != "suv" || got.MinSeats != 5 || got.MaxPrice != 2500 || gotLimit != 20 {
		t.Errorf("filter = %+v, limit = %d", got, gotLimit)
	}
}

func TestAvailable_ParsesWindow(t *testing.T) {
	var gotPickup, gotDropoff time.Time
	svc := &mockVehicleService{availableFunc: func(_ context.Context, _ model.VehicleFilter, pickup, dropoff time.Time) ([]*model.Vehicle, error) {
		gotPickup, gotDropoff = pickup, dropoff
		return []*model.Vehicle{}, nil
	}}
	router := newRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/available?pickup=2026-11-01T10:00:00Z&dropoff=2026-11-03T10:00:00Z", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if gotDropoff.Sub(gotPickup) != 48*time.Hour {
		t.Errorf("window = %v - %v", gotPickup, gotDropoff)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/available?pickup=tomorrow", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCreate_RequiresVendorOrAdmin(t *testing.T) {
	var gotActor model.Actor
	svc := &mockVehicleService{createFunc: func(_ context.Context, actor model.Actor, v *model.Vehicle) error {
		gotActor = actor
		v.ID = "new-id"
		return nil
	}}
	router := newRouter(svc)
	body := `{"registration_number":"KA01AB1234","brand":"Tata"}`

	tests := []struct {
		name       string
		auth       string
		wantStatus int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"customer", bearer(t, "u1", model.RoleUser), http.StatusForbidden},
		{"vendor", bearer(t, "vendor1", model.RoleVendor), http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	if gotActor.UserID != "vendor1" || gotActor.Role != model.RoleVendor {
		t.Errorf("actor = %+v", gotActor)
	}
}

func TestUploadImage_Multipart(t *testing.T) {
	var got service.ImageUpload
	var content []byte
	svc := &mockVehicleService{addImageFunc: func(_ context.Context, _ model.Actor, id string, upload service.ImageUpload) (*model.Vehicle, error) {
		got = upload
		content, _ = io.ReadAll(upload.Body)
		return &model.Vehicle{ID: id, Images: []string{"https://cdn/x.png"}}, nil
	}}
	router := newRouter(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="image"; filename="front.png"`},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("png-bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles/id/v1/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, "vendor1", model.RoleVendor))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if got.Filename != "front.png" || got.ContentType != "image/png" || got.Size != int64(len("png-bytes")) {
		t.Errorf("upload = %+v", got)
	}
	if string(content) != "png-bytes" {
		t.Errorf("content = %q", content)
	}

	var resp struct {
		Data model.Vehicle `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.ID != "v1" {
		t.Errorf("response = %+v", resp.Data)
	}
}

func TestUploadImage_MissingField(t *testing.T) {
	router := newRouter(&mockVehicleService{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("caption", "front")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles/id/v1/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, "vendor1", model.RoleVendor))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
