package api

import (
	"net/http"

	"github.com/idgate/scim-bridge/internal/scim"
)

// listGroups handles GET /scim/v2/Groups
func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	startIndex, count := pageParams(r)
	filter := r.URL.Query().Get("filter")

	resp, err := h.groups.List(r.Context(), startIndex, count, filter)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// createGroup handles POST /scim/v2/Groups
func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var sg scim.Group
	if !decodeBody(w, r, &sg) {
		return
	}

	out, err := h.groups.Create(r.Context(), &sg)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	principal, _ := principalFromContext(r.Context())
	h.logger.Info("group provisioned", "group_id", out.ID, "principal", principal)
	w.Header().Set("Location", out.Meta.Location)
	writeJSON(w, http.StatusCreated, out)
}

// getGroup handles GET /scim/v2/Groups/{id}
func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	out, err := h.groups.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// replaceGroup handles PUT /scim/v2/Groups/{id}
func (h *Handler) replaceGroup(w http.ResponseWriter, r *http.Request) {
	var sg scim.Group
	if !decodeBody(w, r, &sg) {
		return
	}

	out, err := h.groups.Replace(r.Context(), r.PathValue("id"), &sg)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// patchGroup handles PATCH /scim/v2/Groups/{id}
func (h *Handler) patchGroup(w http.ResponseWriter, r *http.Request) {
	var req scim.PatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := h.groups.Patch(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// deleteGroup handles DELETE /scim/v2/Groups/{id}
func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.groups.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeFault(w, h.logger, err)
		return
	}
	principal, _ := principalFromContext(r.Context())
	h.logger.Info("group deprovisioned", "group_id", r.PathValue("id"), "principal", principal)
	w.WriteHeader(http.StatusNoContent)
}
