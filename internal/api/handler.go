// Package api exposes the SCIM v2 REST surface. Handlers decode and
// validate the transport layer and delegate all provisioning semantics to
// the service layer.
package api

import (
	"log/slog"
	"net/http"

	"github.com/idgate/scim-bridge/internal/service"
)

// Handler handles SCIM v2 API requests.
type Handler struct {
	users  *service.UserService
	groups *service.GroupService
	auth   *Authenticator
	logger *slog.Logger
}

// NewHandler creates an http.Handler that serves all SCIM v2 routes.
// Routes are mounted at /scim/v2/...
func NewHandler(users *service.UserService, groups *service.GroupService, auth *Authenticator, logger *slog.Logger) http.Handler {
	h := &Handler{
		users:  users,
		groups: groups,
		auth:   auth,
		logger: logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)

	// Discovery endpoints
	mux.HandleFunc("GET /scim/v2/ServiceProviderConfig", auth.withAuth(h.serviceProviderConfig))
	mux.HandleFunc("GET /scim/v2/Schemas", auth.withAuth(h.schemas))
	mux.HandleFunc("GET /scim/v2/ResourceTypes", auth.withAuth(h.resourceTypes))

	// User endpoints
	mux.HandleFunc("GET /scim/v2/Users", auth.withAuth(h.listUsers))
	mux.HandleFunc("POST /scim/v2/Users", auth.withAuth(h.createUser))
	mux.HandleFunc("GET /scim/v2/Users/{id}", auth.withAuth(h.getUser))
	mux.HandleFunc("PUT /scim/v2/Users/{id}", auth.withAuth(h.replaceUser))
	mux.HandleFunc("PATCH /scim/v2/Users/{id}", auth.withAuth(h.patchUser))
	mux.HandleFunc("DELETE /scim/v2/Users/{id}", auth.withAuth(h.deleteUser))

	// Group endpoints
	mux.HandleFunc("GET /scim/v2/Groups", auth.withAuth(h.listGroups))
	mux.HandleFunc("POST /scim/v2/Groups", auth.withAuth(h.createGroup))
	mux.HandleFunc("GET /scim/v2/Groups/{id}", auth.withAuth(h.getGroup))
	mux.HandleFunc("PUT /scim/v2/Groups/{id}", auth.withAuth(h.replaceGroup))
	mux.HandleFunc("PATCH /scim/v2/Groups/{id}", auth.withAuth(h.patchGroup))
	mux.HandleFunc("DELETE /scim/v2/Groups/{id}", auth.withAuth(h.deleteGroup))

	return mux
}

// health handles GET /health. No auth; used by load balancer checks.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
