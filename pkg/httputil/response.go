// Package httputil provides HTTP handler utilities for consistent error
// handling and JSON encoding.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/service"
	"github.com/vigia-iot/vigia/pkg/store"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error body with the given status.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// WriteValidationError writes a 400 with the offending field.
func WriteValidationError(w http.ResponseWriter, verr *model.ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{
		"error": verr.Message,
		"field": verr.Field,
	})
}

// WriteServiceError maps the service and store error taxonomy onto HTTP
// statuses. Not-found and cross-organization access share 404 on purpose:
// the response must not reveal that the record exists elsewhere.
func WriteServiceError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteValidationError(w, verr)
	case errors.Is(err, store.ErrNotFound):
		WriteErrorMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, service.ErrDuplicateIdentity):
		WriteErrorMessage(w, http.StatusConflict, "already exists")
	case errors.Is(err, service.ErrPermissionDenied):
		WriteErrorMessage(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
	default:
		WriteErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// WriteSuccess writes a 200 with JSON data.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 with JSON data.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteUnauthorized writes a 401.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteBadRequest writes a 400.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// DecodeJSON decodes the request body into dest, rejecting unknown fields.
func DecodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

// PathID parses the named mux path variable as an int64 ID.
func PathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, strconv.ErrSyntax
	}
	return id, nil
}

// QueryInt64 parses an optional integer query parameter. Returns nil when
// absent, an error when present but malformed. The value "all" is the
// no-filter sentinel and reads as absent.
func QueryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" || raw == "all" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
