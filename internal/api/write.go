package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/idgate/scim-bridge/internal/fault"
	"github.com/idgate/scim-bridge/internal/scim"
)

// maxBodyBytes caps request bodies. Provisioning payloads are small; a
// megabyte leaves generous headroom.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code and SCIM
// content type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", scim.ContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a SCIM-formatted error response.
func writeError(w http.ResponseWriter, status int, scimType, detail string) {
	writeJSON(w, status, scim.Error{
		Schemas:  []string{scim.ErrorSchema},
		ScimType: scimType,
		Detail:   detail,
		Status:   strconv.Itoa(status),
	})
}

// writeFault translates a domain fault into the SCIM error response. This
// is the only place fault kinds are turned into status codes.
func writeFault(w http.ResponseWriter, logger *slog.Logger, err error) {
	f := fault.As(err)
	switch f.Kind {
	case fault.KindInvalidSyntax, fault.KindInvalidValue:
		writeError(w, http.StatusBadRequest, f.ScimType(), f.Detail)
	case fault.KindUniqueness:
		writeError(w, http.StatusConflict, f.ScimType(), f.Detail)
	case fault.KindNoTarget:
		writeError(w, http.StatusNotFound, f.ScimType(), f.Detail)
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, f.ScimType(), "internal server error")
	}
}

// decodeBody decodes a bounded JSON request body into v. On failure it
// writes the error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalidSyntax", "invalid JSON body")
		return false
	}
	return true
}
