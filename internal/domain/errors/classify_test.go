package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/lumenapps/relay-service/internal/domain/errors"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantStatus  int
		wantMessage string
	}{
		{
			name:       "403 with quota marker",
			status:     http.StatusForbidden,
			body:       `{"detail": "monthly quota exhausted"}`,
			wantCode:   domainerrors.ErrCodeQuotaExceeded,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "quota marker is case insensitive",
			status:     http.StatusForbidden,
			body:       `{"detail": "QUOTA limit reached"}`,
			wantCode:   domainerrors.ErrCodeQuotaExceeded,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "403 without quota marker",
			status:     http.StatusForbidden,
			body:       `{"detail": "forbidden"}`,
			wantCode:   domainerrors.ErrCodeBackend,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:        "400 passes backend message through",
			status:      http.StatusBadRequest,
			body:        `{"detail": "message too long"}`,
			wantCode:    domainerrors.ErrCodeValidation,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "message too long",
		},
		{
			name:        "400 prefers message field over detail",
			status:      http.StatusBadRequest,
			body:        `{"message": "bad payload", "detail": "ignored"}`,
			wantCode:    domainerrors.ErrCodeValidation,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "bad payload",
		},
		{
			name:        "400 with unparseable body",
			status:      http.StatusBadRequest,
			body:        "<html>nope</html>",
			wantCode:    domainerrors.ErrCodeValidation,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "invalid request",
		},
		{
			name:       "500 keeps the upstream status",
			status:     http.StatusInternalServerError,
			body:       "",
			wantCode:   domainerrors.ErrCodeBackend,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "503 keeps the upstream status",
			status:     http.StatusServiceUnavailable,
			body:       "",
			wantCode:   domainerrors.ErrCodeBackend,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unexpected status collapses to 500",
			status:     http.StatusTeapot,
			body:       "",
			wantCode:   domainerrors.ErrCodeBackend,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			derr := domainerrors.ClassifyResponse(tt.status, []byte(tt.body))
			require.NotNil(t, derr)
			assert.Equal(t, tt.wantCode, derr.Code)
			assert.Equal(t, tt.wantStatus, derr.HTTPStatus)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, derr.Message)
			}
		})
	}
}

func TestClassify_PassesDomainErrorsThrough(t *testing.T) {
	original := domainerrors.NewQuotaExceededError()

	classified := domainerrors.Classify(original)
	assert.Same(t, original, classified)

	// Also through a wrap.
	wrapped := domainerrors.Classify(wrapErr(original))
	assert.Same(t, original, wrapped)
}

func TestClassify_WrapsUnknownErrors(t *testing.T) {
	err := errors.New("dial tcp: connection refused")

	derr := domainerrors.Classify(err)
	require.NotNil(t, derr)
	assert.Equal(t, domainerrors.ErrCodeBackend, derr.Code)
	assert.Equal(t, http.StatusInternalServerError, derr.HTTPStatus)
	assert.ErrorIs(t, derr, err)
	assert.NotContains(t, derr.Message, "dial tcp", "transport detail stays out of the client message")
}

func TestClassify_NilIsNil(t *testing.T) {
	assert.Nil(t, domainerrors.Classify(nil))
}

func TestDomainError_SerializationHidesInternals(t *testing.T) {
	derr := domainerrors.NewBackendError(http.StatusBadGateway, errors.New("secret detail"))

	out, err := json.Marshal(derr)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret detail")
	assert.NotContains(t, string(out), "502")
	assert.Contains(t, string(out), domainerrors.ErrCodeBackend)
}

func wrapErr(err error) error {
	return &wrapper{err: err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }
