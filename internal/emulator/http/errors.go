package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/firekit/internal/emulator/service"
	"github.com/aussiebroadwan/firekit/pkg/httpx"
	"github.com/aussiebroadwan/firekit/pkg/slogx"
)

// writeServiceError puts a service error on the wire in the platform's
// envelope. The platform answers every client mistake with a 400.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, code := range service.Codes {
		if errors.Is(err, code) {
			detail := strings.TrimPrefix(err.Error(), code.Error())
			detail = strings.TrimPrefix(detail, " : ")
			httpx.WriteError(w, http.StatusBadRequest, code.Error(), detail)
			return
		}
	}

	slogx.FromContext(r.Context()).Error("request failed", "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
}

// decodeJSON reads the request body into v, writing the error response
// itself when that fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "content type must be application/json")
		return false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON payload received")
		return false
	}
	return true
}
