package api

import (
	"net/http"
	"strconv"

	"github.com/idgate/scim-bridge/internal/scim"
)

// pageParams parses the SCIM pagination query parameters. startIndex is
// 1-based; values the service should default are returned as zero.
func pageParams(r *http.Request) (startIndex, count int) {
	startIndex = 1
	if s := r.URL.Query().Get("startIndex"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			startIndex = v
		}
	}
	if c := r.URL.Query().Get("count"); c != "" {
		if v, err := strconv.Atoi(c); err == nil && v >= 0 {
			count = v
		}
	}
	return startIndex, count
}

// listUsers handles GET /scim/v2/Users
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	startIndex, count := pageParams(r)
	filter := r.URL.Query().Get("filter")

	resp, err := h.users.List(r.Context(), startIndex, count, filter)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// createUser handles POST /scim/v2/Users
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var su scim.User
	if !decodeBody(w, r, &su) {
		return
	}

	out, err := h.users.Create(r.Context(), &su)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	principal, _ := principalFromContext(r.Context())
	h.logger.Info("user provisioned", "user_id", out.ID, "principal", principal)
	w.Header().Set("Location", out.Meta.Location)
	writeJSON(w, http.StatusCreated, out)
}

// getUser handles GET /scim/v2/Users/{id}
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	out, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// replaceUser handles PUT /scim/v2/Users/{id}
func (h *Handler) replaceUser(w http.ResponseWriter, r *http.Request) {
	var su scim.User
	if !decodeBody(w, r, &su) {
		return
	}

	out, err := h.users.Replace(r.Context(), r.PathValue("id"), &su)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// patchUser handles PATCH /scim/v2/Users/{id}
func (h *Handler) patchUser(w http.ResponseWriter, r *http.Request) {
	var req scim.PatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := h.users.Patch(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// deleteUser handles DELETE /scim/v2/Users/{id}
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeFault(w, h.logger, err)
		return
	}
	principal, _ := principalFromContext(r.Context())
	h.logger.Info("user deprovisioned", "user_id", r.PathValue("id"), "principal", principal)
	w.WriteHeader(http.StatusNoContent)
}
