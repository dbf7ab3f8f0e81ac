package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vigia-iot/vigia/pkg/auth"
	"github.com/vigia-iot/vigia/pkg/contextkeys"
	"github.com/vigia-iot/vigia/pkg/httputil"
	"github.com/vigia-iot/vigia/pkg/service"
)

// AuthHandlers serves registration, login, and session management.
type AuthHandlers struct {
	svc      *service.Service
	resolver *auth.PrincipalResolver
}

// RegisterPublicRoutes mounts the endpoints reachable without a session.
func (h *AuthHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/register", h.register).Methods("POST")
	router.HandleFunc("/api/v1/login", h.login).Methods("POST")
}

// RegisterRoutes mounts the endpoints that require a session.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/logout", h.logout).Methods("POST")
	router.HandleFunc("/me", h.me).Methods("GET")
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	ident, account, err := h.svc.Register(r.Context(), in)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, map[string]interface{}{
		"user":    ident,
		"account": account,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	token, ident, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"token": token,
		"user":  ident,
	})
}

func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	token := contextkeys.Token(r.Context())
	if token == "" {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}

	if err := h.svc.Logout(r.Context(), token); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	h.resolver.Forget(token)
	httputil.WriteNoContent(w)
}

func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	p, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "not authenticated")
		return
	}
	httputil.WriteSuccess(w, p)
}
