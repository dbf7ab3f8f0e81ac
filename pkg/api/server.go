// Package api exposes the HTTP surface: dashboard, device and alert
// queries, acknowledge and export operations, authentication, and the
// admin CRUD endpoints.
package api

import (
	"github.com/gorilla/mux"

	"github.com/vigia-iot/vigia/pkg/auth"
	"github.com/vigia-iot/vigia/pkg/middleware"
	"github.com/vigia-iot/vigia/pkg/observability"
	"github.com/vigia-iot/vigia/pkg/service"
)

// Server wires handlers, middleware, and the router.
type Server struct {
	svc      *service.Service
	resolver *auth.PrincipalResolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewServer creates the API server. metrics may be nil to skip HTTP
// instrumentation.
func NewServer(svc *service.Service, resolver *auth.PrincipalResolver, logger *observability.Logger, metrics *observability.Metrics) *Server {
	return &Server{svc: svc, resolver: resolver, logger: logger, metrics: metrics}
}

// Router builds the full route tree. Registration, login, and logout are
// public; everything else sits behind the auth middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(s.logger))
	r.Use(middleware.Logging(s.logger))
	if s.metrics != nil {
		r.Use(middleware.Metrics(s.metrics))
	}

	authHandlers := &AuthHandlers{svc: s.svc, resolver: s.resolver}
	authHandlers.RegisterPublicRoutes(r)

	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.NewAuthMiddleware(s.resolver).Handler)

	authHandlers.RegisterRoutes(protected)
	(&DashboardHandlers{svc: s.svc}).RegisterRoutes(protected)
	(&AlertHandlers{svc: s.svc}).RegisterRoutes(protected)
	(&AdminHandlers{svc: s.svc}).RegisterRoutes(protected)

	return r
}
