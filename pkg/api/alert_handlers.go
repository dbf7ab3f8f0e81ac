package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vigia-iot/vigia/pkg/contextkeys"
	"github.com/vigia-iot/vigia/pkg/export"
	"github.com/vigia-iot/vigia/pkg/httputil"
	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/service"
	"github.com/vigia-iot/vigia/pkg/store"
)

// AlertHandlers serves alert listing, acknowledgement, and export.
type AlertHandlers struct {
	svc *service.Service
}

// RegisterRoutes mounts the alert endpoints.
func (h *AlertHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/alerts", h.listAlerts).Methods("GET")
	router.HandleFunc("/alerts", h.raiseAlert).Methods("POST")
	router.HandleFunc("/alerts/week", h.alertsThisWeek).Methods("GET")
	router.HandleFunc("/alerts/acknowledge", h.acknowledgeAlerts).Methods("POST")
	router.HandleFunc("/alerts/export", h.exportAlerts).Methods("GET")
}

func alertFilterFromQuery(r *http.Request) (store.AlertFilter, error) {
	var filter store.AlertFilter

	deviceID, err := httputil.QueryInt64(r, "device")
	if err != nil {
		return filter, fmt.Errorf("invalid device filter")
	}
	filter.DeviceID = deviceID

	categoryID, err := httputil.QueryInt64(r, "category")
	if err != nil {
		return filter, fmt.Errorf("invalid category filter")
	}
	filter.CategoryID = categoryID

	zoneID, err := httputil.QueryInt64(r, "zone")
	if err != nil {
		return filter, fmt.Errorf("invalid zone filter")
	}
	filter.ZoneID = zoneID

	if raw := r.URL.Query().Get("priority"); raw != "" {
		priority, err := model.ParsePriority(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid priority filter")
		}
		filter.Priority = &priority
	}

	acknowledged, err := httputil.QueryBool(r, "acknowledged")
	if err != nil {
		return filter, fmt.Errorf("invalid acknowledged filter")
	}
	filter.Acknowledged = acknowledged

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid from timestamp")
		}
		filter.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid to timestamp")
		}
		filter.To = &to
	}

	return filter, nil
}

func (h *AlertHandlers) listAlerts(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	filter, err := alertFilterFromQuery(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	alerts, err := h.svc.ListAlerts(r.Context(), p, filter)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"alerts": alerts})
}

func (h *AlertHandlers) raiseAlert(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	var a model.Alert
	if err := httputil.DecodeJSON(r, &a); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	if err := h.svc.RaiseAlert(r.Context(), p, &a); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, &a)
}

func (h *AlertHandlers) alertsThisWeek(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	week, err := h.svc.AlertsThisWeek(r.Context(), p)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, week)
}

type acknowledgeRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *AlertHandlers) acknowledgeAlerts(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	var in acknowledgeRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if len(in.IDs) == 0 {
		httputil.WriteBadRequest(w, "ids must not be empty")
		return
	}

	acknowledged, err := h.svc.AcknowledgeAlerts(r.Context(), p, in.IDs)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"acknowledged": acknowledged})
}

func (h *AlertHandlers) exportAlerts(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	filter, err := alertFilterFromQuery(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	alerts, err := h.svc.ListAlerts(r.Context(), p, filter)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("alerts-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	// Headers are already sent; a write failure here can only be logged
	// by the caller's middleware.
	_ = export.WriteAlertsCSV(w, alerts)
}
