package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenapps/relay-service/internal/api/middleware"
	"github.com/lumenapps/relay-service/internal/auth/session"
	"github.com/lumenapps/relay-service/internal/auth/token"
	domainerrors "github.com/lumenapps/relay-service/internal/domain/errors"
	"github.com/lumenapps/relay-service/internal/services/backend"
)

// AuthHandler handles the session lifecycle endpoints.
type AuthHandler struct {
	backendClient *backend.Client
	manager       *session.Manager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(backendClient *backend.Client, manager *session.Manager) *AuthHandler {
	return &AuthHandler{
		backendClient: backendClient,
		manager:       manager,
	}
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a successful login.
type LoginResponse struct {
	Subject string `json:"subject,omitempty"`
}

// Login handles POST /api/v1/auth/login
// @Summary Log in
// @Description Exchanges credentials with the backend and establishes the session cookies
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	pair, err := h.backendClient.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	h.manager.CreateSession(c.Writer, session.Pair{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	})

	resp := LoginResponse{}
	if claims, err := token.Decode(pair.Access); err == nil {
		resp.Subject = claims.Subject
	}
	c.JSON(http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout
// @Summary Log out
// @Description Deletes the session cookies
// @Tags Auth
// @Success 204
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.manager.DeleteSession(c.Writer)
	c.Status(http.StatusNoContent)
}

// SessionResponse represents the authenticated session probe.
type SessionResponse struct {
	Subject   string `json:"subject,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// Session handles GET /api/v1/auth/session
// @Summary Inspect the current session
// @Description Returns the subject and expiry of the active session, refreshing it if needed
// @Tags Auth
// @Produce json
// @Success 200 {object} SessionResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /api/v1/auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	scope := middleware.GetScope(c)
	if scope == nil {
		middleware.HandleError(c, domainerrors.NewSessionInvalidError("no session scope"))
		return
	}

	pair, err := scope.EnsureFresh(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, domainerrors.NewSessionInvalidError("session could not be refreshed"))
		return
	}

	resp := SessionResponse{}
	if claims, err := token.Decode(pair.AccessToken); err == nil {
		resp.Subject = claims.Subject
		if !claims.ExpiresAt.IsZero() {
			resp.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, resp)
}
