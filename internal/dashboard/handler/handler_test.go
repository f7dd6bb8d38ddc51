package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"driveo/internal/availability"
	"driveo/internal/dashboard/service"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"
	"driveo/pkg/token"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context, *readpref.ReadPref) error { return m.err }

type mockIndex struct{}

func (mockIndex) Stats() availability.Stats { return availability.Stats{Vehicles: 2, Intervals: 3} }

type mockStats struct{}

func (mockStats) Get(context.Context) (*service.Stats, error) {
	return &service.Stats{Users: service.UserStats{Customers: 5}}, nil
}

func TestHealthAndReady(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"health", "/health", nil, http.StatusOK, `"status":"ok"`},
		{"ready", "/ready", nil, http.StatusOK, `"intervals":3`},
		{"ready without database", "/ready", errors.New("no reachable servers"), http.StatusServiceUnavailable, `"database":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(mockPinger{err: tt.pingErr}, mockIndex{}, logger.Discard()).RegisterRoutes(router)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestStats_AdminOnly(t *testing.T) {
	tokens := token.NewManager(strings.Repeat("k", 32), "driveo", time.Minute, time.Hour)
	router := httprouter.New()
	NewStatsHandler(mockStats{}, middleware.NewAuthenticator(tokens), logger.Discard()).RegisterRoutes(router)

	issue := func(role string) string {
		pair, err := tokens.Issue(&model.User{ID: role + "1", Email: role + "@example.com", Role: role})
		if err != nil {
			t.Fatal(err)
		}
		return "Bearer " + pair.AccessToken
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set("Authorization", issue(model.RoleVendor))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("vendor status = %d, want 403", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set("Authorization", issue(model.RoleAdmin))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Data service.Stats `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Users.Customers != 5 {
		t.Errorf("stats = %+v", resp.Data)
	}
}
