package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "driveo/pkg/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", apperrors.NotFound("vehicle"), http.StatusNotFound, "vehicle not found"},
		{"conflict", apperrors.Conflict("already booked"), http.StatusConflict, "already booked"},
		{"forbidden", apperrors.Forbidden("nope"), http.StatusForbidden, "nope"},
		{"plain error hides internals", errors.New("mongo: socket closed"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := WriteError(rec, tt.err); err != nil {
				t.Fatalf("WriteError returned %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
}

func TestExtractLimitOffset(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int64
		wantErr    bool
	}{
		{"defaults", "", 10, 0, false},
		{"explicit", "?limit=25&offset=50", 25, 50, false},
		{"capped", "?limit=5000", 100, 0, false},
		{"negative offset", "?offset=-3", 10, 0, false},
		{"bad limit", "?limit=abc", 0, 0, true},
		{"bad offset", "?offset=1.5", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles"+tt.query, nil)
			limit, offset, err := ExtractLimitOffset(req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("got (%d, %d), want (%d, %d)", limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Swift"}`))
	if err := DecodeJSON(req, &dst); err != nil || dst.Name != "Swift" {
		t.Fatalf("DecodeJSON() = %v, name = %q", err, dst.Name)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	if err := DecodeJSON(req, &dst); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("unknown fields should be rejected, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(req, &dst); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("empty body should be rejected, got %v", err)
	}
}

func TestParseTimeParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?pickup=2026-01-02T10:00:00Z&bad=tomorrow", nil)

	got, err := ParseTimeParam(req, "pickup")
	if err != nil || got.Day() != 2 || got.Hour() != 10 {
		t.Errorf("ParseTimeParam(pickup) = %v, %v", got, err)
	}
	if _, err := ParseTimeParam(req, "bad"); err == nil {
		t.Error("expected error for non-RFC3339 value")
	}
	if got, err := ParseTimeParam(req, "missing"); err != nil || !got.IsZero() {
		t.Error("missing parameter should be zero without error")
	}
}
