// Package httpx holds the small HTTP pieces shared by the emulator: JSON
// responses in the identity platform's error envelope, middleware chaining,
// the bearer check on admin routes and per-client rate limiting.
package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// WriteJSON writes v as JSON with the given status. Responses are not
// cacheable unless the caller already set Cache-Control.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	if w.Header().Get("Cache-Control") == "" {
		NoCache(w)
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache marks the response as never to be stored. Tokens and account
// data always go out like this.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// Cacheable lets clients keep the response for maxAge, which is how
// public key documents advertise their lifetime.
func Cacheable(w http.ResponseWriter, maxAge time.Duration) {
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge/time.Second))+", must-revalidate, no-transform")
	w.Header().Del("Pragma")
}

// ErrorBody is the platform's error envelope. Message carries the
// machine readable code, optionally followed by " : detail".
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Status  string        `json:"status,omitempty"`
	Errors  []ErrorReason `json:"errors,omitempty"`
}

type ErrorReason struct {
	Message string `json:"message"`
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
}

// WriteError writes the error envelope for code (e.g. USER_NOT_FOUND) with
// an optional detail appended the way the platform does it.
func WriteError(w http.ResponseWriter, status int, code, detail string) {
	msg := code
	if detail != "" {
		msg = code + " : " + detail
	}

	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:    status,
		Message: msg,
		Status:  statusName(status),
		Errors:  []ErrorReason{{Message: msg, Domain: "global", Reason: "invalid"}},
	}})
}

func statusName(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	default:
		return "INTERNAL"
	}
}
