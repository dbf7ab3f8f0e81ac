package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/contextkeys"
	"github.com/vigia-iot/vigia/pkg/httputil"
	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/service"
)

// AdminHandlers serves the management endpoints for organizations,
// categories, zones, devices, and accounts. Every operation still runs
// through the service's authorization gates; the /admin prefix is a
// grouping, not a trust boundary.
type AdminHandlers struct {
	svc *service.Service
}

// RegisterRoutes mounts the management endpoints.
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/admin/organizations", h.listOrganizations).Methods("GET")
	router.HandleFunc("/admin/organizations", h.createOrganization).Methods("POST")
	router.HandleFunc("/admin/organizations/{id}", h.updateOrganization).Methods("PUT")
	router.HandleFunc("/admin/organizations/{id}", h.deleteOrganization).Methods("DELETE")

	router.HandleFunc("/admin/categories", h.listCategories).Methods("GET")
	router.HandleFunc("/admin/categories", h.createCategory).Methods("POST")
	router.HandleFunc("/admin/categories/{id}", h.updateCategory).Methods("PUT")
	router.HandleFunc("/admin/categories/{id}", h.deleteCategory).Methods("DELETE")

	router.HandleFunc("/admin/zones", h.listZones).Methods("GET")
	router.HandleFunc("/admin/zones", h.createZone).Methods("POST")
	router.HandleFunc("/admin/zones/{id}", h.updateZone).Methods("PUT")
	router.HandleFunc("/admin/zones/{id}", h.deleteZone).Methods("DELETE")

	router.HandleFunc("/admin/devices", h.createDevice).Methods("POST")
	router.HandleFunc("/admin/devices/choices", h.deviceRelationChoices).Methods("GET")
	router.HandleFunc("/admin/devices/{id}", h.updateDevice).Methods("PUT")
	router.HandleFunc("/admin/devices/{id}", h.deleteDevice).Methods("DELETE")

	router.HandleFunc("/admin/accounts", h.listAccounts).Methods("GET")
	router.HandleFunc("/admin/accounts/{id}/role", h.updateAccountRole).Methods("PUT")
	router.HandleFunc("/admin/accounts/{id}/attach", h.attachAccount).Methods("PUT")
}

func principalOr401(w http.ResponseWriter, r *http.Request) (authz.Principal, bool) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
	}
	return p, ok
}

func (h *AdminHandlers) listOrganizations(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	orgs, err := h.svc.ListOrganizations(r.Context(), p)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"organizations": orgs})
}

func (h *AdminHandlers) createOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var org model.Organization
	if err := httputil.DecodeJSON(r, &org); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := h.svc.CreateOrganization(r.Context(), p, &org); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, &org)
}

func (h *AdminHandlers) updateOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid organization id")
		return
	}
	var org model.Organization
	if err := httputil.DecodeJSON(r, &org); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	org.ID = id
	if err := h.svc.UpdateOrganization(r.Context(), p, &org); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, &org)
}

func (h *AdminHandlers) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid organization id")
		return
	}
	if err := h.svc.DeleteOrganization(r.Context(), p, id); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AdminHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	categories, err := h.svc.ListCategories(r.Context(), p)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"categories": categories})
}

func (h *AdminHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var cat model.Category
	if err := httputil.DecodeJSON(r, &cat); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := h.svc.CreateCategory(r.Context(), p, &cat); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, &cat)
}

func (h *AdminHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid category id")
		return
	}
	var cat model.Category
	if err := httputil.DecodeJSON(r, &cat); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	cat.ID = id
	if err := h.svc.UpdateCategory(r.Context(), p, &cat); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, &cat)
}

func (h *AdminHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid category id")
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), p, id); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AdminHandlers) listZones(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	zones, err := h.svc.ListZones(r.Context(), p)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"zones": zones})
}

func (h *AdminHandlers) createZone(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var zone model.Zone
	if err := httputil.DecodeJSON(r, &zone); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := h.svc.CreateZone(r.Context(), p, &zone); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, &zone)
}

func (h *AdminHandlers) updateZone(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid zone id")
		return
	}
	var zone model.Zone
	if err := httputil.DecodeJSON(r, &zone); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	zone.ID = id
	if err := h.svc.UpdateZone(r.Context(), p, &zone); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, &zone)
}

func (h *AdminHandlers) deleteZone(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid zone id")
		return
	}
	if err := h.svc.DeleteZone(r.Context(), p, id); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AdminHandlers) createDevice(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var d model.Device
	if err := httputil.DecodeJSON(r, &d); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := h.svc.CreateDevice(r.Context(), p, &d); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, &d)
}

func (h *AdminHandlers) deviceRelationChoices(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	choices, err := h.svc.DeviceRelationChoices(r.Context(), p)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, choices)
}

func (h *AdminHandlers) updateDevice(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid device id")
		return
	}
	var d model.Device
	if err := httputil.DecodeJSON(r, &d); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	d.ID = id
	if err := h.svc.UpdateDevice(r.Context(), p, &d); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, &d)
}

func (h *AdminHandlers) deleteDevice(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid device id")
		return
	}
	if err := h.svc.DeleteDevice(r.Context(), p, id); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AdminHandlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	accounts, err := h.svc.ListAccounts(r.Context(), p)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"accounts": accounts})
}

type roleUpdateRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandlers) updateAccountRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid account id")
		return
	}
	var in roleUpdateRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid role")
		return
	}
	if err := h.svc.UpdateAccountRole(r.Context(), p, id, role); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type attachRequest struct {
	OrganizationID int64  `json:"organization_id"`
	Role           string `json:"role"`
}

func (h *AdminHandlers) attachAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid account id")
		return
	}
	var in attachRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid role")
		return
	}
	if err := h.svc.AttachAccount(r.Context(), p, id, in.OrganizationID, role); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
