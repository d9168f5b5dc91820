package errors

import (
	"encoding/json"
	"net/http"
	"strings"
)

// backendErrorBody is the shape of error payloads the backend may return
// alongside a non-2xx status.
type backendErrorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Error   string `json:"error"`
}

// message returns the first populated message field.
func (b backendErrorBody) message() string {
	switch {
	case b.Message != "":
		return b.Message
	case b.Detail != "":
		return b.Detail
	default:
		return b.Error
	}
}

// ClassifyResponse maps a non-2xx backend response into the closed taxonomy.
// The raw body is inspected here and then discarded; it never reaches the
// client verbatim.
func ClassifyResponse(status int, body []byte) *DomainError {
	switch {
	case status == http.StatusForbidden && strings.Contains(strings.ToLower(string(body)), "quota"):
		return NewQuotaExceededError()

	case status == http.StatusBadRequest:
		var parsed backendErrorBody
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.message() != "" {
			return NewValidationError(parsed.message(), "")
		}
		return NewValidationError("", "")

	case status >= http.StatusInternalServerError:
		return NewBackendError(status, nil)

	default:
		return NewBackendError(http.StatusInternalServerError, nil)
	}
}

// Classify maps an arbitrary failure into the closed taxonomy. Errors that
// already carry a classification pass through unchanged.
func Classify(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := GetDomainError(err); ok {
		return domainErr
	}
	return NewBackendError(http.StatusInternalServerError, err)
}
