package handler

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prn-tf/castellan/internal/domain"
	"github.com/prn-tf/castellan/internal/repository"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", domain.NewValidationError("email", "invalid email format"), 400},
		{"invalid credentials", domain.ErrInvalidCredentials, 401},
		{"forbidden", domain.ErrForbidden, 403},
		{"not found", domain.ErrUserNotFound, 404},
		{"repo not found", repository.ErrNotFound, 404},
		{"email taken", domain.ErrEmailTaken, 409},
		{"conflict", repository.ErrConflict, 409},
		{"internal", domain.ErrInternal, 500},
		{"unknown", errors.New("database exploded"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %s", ct)
			}

			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("body must be JSON: %v", err)
			}
			if body.Error == "" {
				t.Error("error body must carry a message")
			}
		})
	}
}

func TestWriteError_InternalDetailsDoNotLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused on 10.0.0.5"))

	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("body must be JSON: %v", err)
	}
	if body.Error != "internal server error" {
		t.Errorf("internal errors must be generic, got %q", body.Error)
	}
}

func TestWriteValidationError_CarriesField(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, domain.NewValidationError("password", "password must be at least 8 characters"))

	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("body must be JSON: %v", err)
	}
	if body.Field != "password" {
		t.Errorf("expected field password, got %q", body.Field)
	}
}
