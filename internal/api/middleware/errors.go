package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	domainerrors "github.com/lumenapps/relay-service/internal/domain/errors"
)

// ErrorMiddleware handles error recovery and formatting.
type ErrorMiddleware struct{}

// NewErrorMiddleware creates a new ErrorMiddleware.
func NewErrorMiddleware() *ErrorMiddleware {
	return &ErrorMiddleware{}
}

// Recovery returns a gin middleware that recovers from panics.
func (m *ErrorMiddleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("path", c.Request.URL.Path).
					Str("method", c.Request.Method).
					Msg("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    domainerrors.ErrCodeInternal,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// HandleError converts any error to the standard JSON error body. The
// original error is logged server-side; only the classified message crosses
// the trust boundary.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	domainErr, ok := domainerrors.GetDomainError(err)
	if !ok {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unhandled error")
		domainErr = domainerrors.NewInternalError("", err)
	} else if domainErr.Err != nil {
		log.Error().Err(domainErr.Err).Str("code", domainErr.Code).Str("path", c.Request.URL.Path).Msg("request failed")
	}

	c.AbortWithStatusJSON(domainErr.HTTPStatus, ErrorResponse{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Details: domainErr.Details,
	})
}

// NotFound returns a 404 handler.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    domainerrors.ErrCodeNotFound,
			Message: "resource not found",
			Details: c.Request.URL.Path,
		})
	}
}

// MethodNotAllowed returns a 405 handler.
func MethodNotAllowed() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorResponse{
			Code:    domainerrors.ErrCodeMethodNotAllowed,
			Message: "method not allowed",
			Details: c.Request.Method,
		})
	}
}
