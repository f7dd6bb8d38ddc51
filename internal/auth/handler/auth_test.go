package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"driveo/internal/auth/service"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"
	"driveo/pkg/token"

	"github.com/julienschmidt/httprouter"
)

type mockAuthService struct {
	service.AuthService
	loginFunc  func(ctx context.Context, req *model.LoginRequest) (*token.Pair, error)
	forgotFunc func(ctx context.Context, req *model.EmailRequest) error
}

func (m *mockAuthService) Login(ctx context.Context, req *model.LoginRequest) (*token.Pair, error) {
	return m.loginFunc(ctx, req)
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, req *model.EmailRequest) error {
	return m.forgotFunc(ctx, req)
}

func newRouter(svc service.AuthService, limit int) *httprouter.Router {
	limiter := middleware.NewRateLimiter(limit, time.Minute, nil, logger.Discard())
	router := httprouter.New()
	NewAuthHandler(svc, limiter, logger.Discard()).RegisterRoutes(router)
	return router
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	svc := &mockAuthService{loginFunc: func(_ context.Context, req *model.LoginRequest) (*token.Pair, error) {
		if req.Password != "secret123" {
			return nil, apperrors.Unauthorized("Invalid email or password")
		}
		return &token.Pair{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}, nil
	}}
	router := newRouter(svc, 100)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"ok", `{"email":"a@example.com","password":"secret123"}`, http.StatusOK},
		{"wrong password", `{"email":"a@example.com","password":"x"}`, http.StatusUnauthorized},
		{"unknown field", `{"email":"a@example.com","password":"secret123","admin":true}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(router, "/api/v1/auth/login", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestForgotPassword_Accepted(t *testing.T) {
	router := newRouter(&mockAuthService{forgotFunc: func(context.Context, *model.EmailRequest) error { return nil }}, 100)

	rec := post(router, "/api/v1/auth/forgot-password", `{"email":"a@example.com"}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

func TestAuthRoutes_RateLimited(t *testing.T) {
	router := newRouter(&mockAuthService{forgotFunc: func(context.Context, *model.EmailRequest) error { return nil }}, 2)

	for i := range 2 {
		if rec := post(router, "/api/v1/auth/forgot-password", `{"email":"a@example.com"}`); rec.Code != http.StatusAccepted {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}

	rec := post(router, "/api/v1/auth/forgot-password", `{"email":"a@example.com"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}
