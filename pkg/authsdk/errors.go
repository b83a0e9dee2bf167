package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/firekit/pkg/httpx"
)

// Error codes the sign in endpoint answers with.
const (
	CodeMissingCustomToken = "MISSING_CUSTOM_TOKEN"
	CodeInvalidCustomToken = "INVALID_CUSTOM_TOKEN"
	CodeUserDisabled       = "USER_DISABLED"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// APIError is a failed call. Code is the platform's error code, Detail
// whatever it said after it.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
	Status     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("authsdk: %s (http %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("authsdk: %s: %s (http %d)", e.Code, e.Detail, e.StatusCode)
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse reads the platform's error envelope. Bodies that are
// not one still produce an APIError, coded by status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope httpx.ErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		code, detail, _ := strings.Cut(envelope.Error.Message, " : ")
		apiErr.Code = strings.TrimSpace(code)
		apiErr.Detail = strings.TrimSpace(detail)
		apiErr.Status = envelope.Error.Status
		return apiErr
	}

	apiErr.Code = strings.ToUpper(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	if apiErr.Code == "" {
		apiErr.Code = CodeInternalError
	}
	apiErr.Detail = strings.TrimSpace(string(body))
	return apiErr
}
