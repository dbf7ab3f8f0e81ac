package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/service"
	"github.com/vigia-iot/vigia/pkg/store"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", model.NewValidationError("name", "required"), http.StatusBadRequest},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"duplicate", store.ErrDuplicate, http.StatusConflict},
		{"duplicate identity", service.ErrDuplicateIdentity, http.StatusConflict},
		{"permission denied", service.ErrPermissionDenied, http.StatusForbidden},
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteServiceError(w, tc.err)
			if w.Code != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected JSON content type, got %q", ct)
			}
		})
	}
}

func TestWriteServiceErrorHidesInternals(t *testing.T) {
	w := httptest.NewRecorder()
	WriteServiceError(w, errors.New("pq: connection refused to 10.0.0.5"))

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if msg, _ := body["error"].(string); strings.Contains(msg, "10.0.0.5") {
		t.Errorf("Expected internal detail hidden, got %q", msg)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"x","bogus":1}`))
	var dest struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(r, &dest); err == nil {
		t.Error("Expected unknown field rejected")
	}

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"x"}`))
	if err := DecodeJSON(r, &dest); err != nil {
		t.Errorf("Expected valid body accepted, got %v", err)
	}
	if dest.Name != "x" {
		t.Errorf("Expected name decoded, got %q", dest.Name)
	}
}

func TestPathID(t *testing.T) {
	router := mux.NewRouter()
	var gotID int64
	var gotErr error
	router.HandleFunc("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotID, gotErr = PathID(r, "id")
	})

	req := httptest.NewRequest("GET", "/things/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	if gotErr != nil || gotID != 42 {
		t.Errorf("Expected 42, got %d (%v)", gotID, gotErr)
	}

	for _, path := range []string{"/things/abc", "/things/0", "/things/-3"} {
		req = httptest.NewRequest("GET", path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
		if gotErr == nil {
			t.Errorf("Expected error for %s", path)
		}
	}
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest("GET", "/?category=7&acknowledged=true", nil)

	id, err := QueryInt64(r, "category")
	if err != nil || id == nil || *id != 7 {
		t.Errorf("Expected 7, got %v (%v)", id, err)
	}

	missing, err := QueryInt64(r, "zone")
	if err != nil || missing != nil {
		t.Errorf("Expected nil for absent param, got %v (%v)", missing, err)
	}

	b, err := QueryBool(r, "acknowledged")
	if err != nil || b == nil || !*b {
		t.Errorf("Expected true, got %v (%v)", b, err)
	}

	// "all" is the no-filter sentinel.
	r = httptest.NewRequest("GET", "/?category=all", nil)
	sentinel, err := QueryInt64(r, "category")
	if err != nil || sentinel != nil {
		t.Errorf("Expected nil for \"all\" sentinel, got %v (%v)", sentinel, err)
	}

	r = httptest.NewRequest("GET", "/?category=notanumber", nil)
	if _, err := QueryInt64(r, "category"); err == nil {
		t.Error("Expected error for malformed int")
	}
}
