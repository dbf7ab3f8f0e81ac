package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vigia-iot/vigia/pkg/contextkeys"
	"github.com/vigia-iot/vigia/pkg/httputil"
	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/service"
	"github.com/vigia-iot/vigia/pkg/store"
)

// DashboardHandlers serves the dashboard and the device/measurement views.
type DashboardHandlers struct {
	svc *service.Service
}

// RegisterRoutes mounts the read endpoints.
func (h *DashboardHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard", h.getDashboard).Methods("GET")
	router.HandleFunc("/devices", h.listDevices).Methods("GET")
	router.HandleFunc("/devices/{id}", h.getDevice).Methods("GET")
	router.HandleFunc("/measurements", h.listMeasurements).Methods("GET")
	router.HandleFunc("/measurements", h.recordMeasurement).Methods("POST")
}

func (h *DashboardHandlers) getDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	categoryID, err := httputil.QueryInt64(r, "category")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid category filter")
		return
	}
	zoneID, err := httputil.QueryInt64(r, "zone")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid zone filter")
		return
	}

	dash, err := h.svc.GetDashboard(r.Context(), p, service.DashboardFilter{
		CategoryID: categoryID,
		ZoneID:     zoneID,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, dash)
}

func (h *DashboardHandlers) listDevices(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	categoryID, err := httputil.QueryInt64(r, "category")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid category filter")
		return
	}
	zoneID, err := httputil.QueryInt64(r, "zone")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid zone filter")
		return
	}

	devices, err := h.svc.ListDevices(r.Context(), p, store.DeviceFilter{
		CategoryID: categoryID,
		ZoneID:     zoneID,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"devices": devices})
}

func (h *DashboardHandlers) getDevice(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid device id")
		return
	}

	detail, err := h.svc.GetDevice(r.Context(), p, id)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

func (h *DashboardHandlers) listMeasurements(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	deviceID, err := httputil.QueryInt64(r, "device")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid device filter")
		return
	}

	measurements, err := h.svc.ListMeasurements(r.Context(), p, store.MeasurementFilter{
		DeviceID: deviceID,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"measurements": measurements})
}

func (h *DashboardHandlers) recordMeasurement(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	var m model.Measurement
	if err := httputil.DecodeJSON(r, &m); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	if err := h.svc.RecordMeasurement(r.Context(), p, &m); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, &m)
}
