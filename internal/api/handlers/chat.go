// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lumenapps/relay-service/internal/api/middleware"
	"github.com/lumenapps/relay-service/internal/api/sse"
	domainerrors "github.com/lumenapps/relay-service/internal/domain/errors"
	"github.com/lumenapps/relay-service/internal/relay"
)

// ChatHandler handles the streaming chat endpoints.
type ChatHandler struct {
	relay *relay.Relay
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(r *relay.Relay) *ChatHandler {
	return &ChatHandler{relay: r}
}

// StreamRequest represents the request body for a chat stream.
type StreamRequest struct {
	Message *string `json:"message"`
	ChatID  string  `json:"chatId"`
}

// Stream handles POST /api/v1/chat/stream
// @Summary Stream a chat response
// @Description Forwards the message to the chat backend and streams the response as Server-Sent Events
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Param request body StreamRequest true "Message with optional chat identifier"
// @Success 200 {string} string "SSE event stream"
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 429 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/v1/chat/stream [post]
func (h *ChatHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	var req StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid request body", err.Error()))
		return
	}
	if req.Message == nil {
		middleware.HandleError(c, domainerrors.NewNoUserMessageError())
		return
	}
	if strings.TrimSpace(*req.Message) == "" {
		middleware.HandleError(c, domainerrors.NewEmptyMessageError())
		return
	}

	scope := middleware.GetScope(c)
	if scope == nil {
		middleware.HandleError(c, domainerrors.NewSessionInvalidError("no session scope"))
		return
	}
	pair, err := scope.EnsureFresh(ctx)
	if err != nil {
		middleware.HandleError(c, domainerrors.NewSessionInvalidError("session could not be refreshed"))
		return
	}

	chatID := req.ChatID
	if chatID == "" {
		chatID = chatIDFromReferer(c.GetHeader("Referer"))
	}

	// Backend errors before the stream opens become plain JSON bodies; a
	// stream consumer only ever sees events once the stream has started.
	stream, err := h.relay.Open(ctx, &relay.Request{
		Message:     *req.Message,
		ChatID:      chatID,
		AccessToken: pair.AccessToken,
	}, c.Writer.Header())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		middleware.HandleError(c, domainerrors.NewInternalError("streaming not supported", err))
		return
	}

	if err := stream.Run(writer); err != nil {
		log.Warn().
			Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("chat_id", stream.ChatID()).
			Msg("chat stream ended with error")
	}
}

// LatestChatIDResponse represents the polling fallback response.
type LatestChatIDResponse struct {
	ChatID *string `json:"chatId"`
}

// LatestChatID handles GET /api/v1/chat/latest-id
// @Summary Recover the most recent chat identifier
// @Description Reads and clears the short-lived fallback cookie set when a new chat was created, for clients that missed the in-band event
// @Tags Chat
// @Produce json
// @Success 200 {object} LatestChatIDResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /api/v1/chat/latest-id [get]
func (h *ChatHandler) LatestChatID(c *gin.Context) {
	var chatID *string
	if cookie, err := c.Request.Cookie(relay.LatestChatIDCookieName); err == nil && cookie.Value != "" {
		value := cookie.Value
		chatID = &value
	}

	// Cleared unconditionally so the identifier is recoverable once, and
	// only once.
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     relay.LatestChatIDCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusOK, LatestChatIDResponse{ChatID: chatID})
}

// chatIDFromReferer recovers a chat identifier from a back-link of the form
// /chat/<id>, the page a navigation-initiated request came from.
func chatIDFromReferer(referer string) string {
	if referer == "" {
		return ""
	}
	parsed, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	rest, found := strings.CutPrefix(parsed.Path, "/chat/")
	if !found {
		return ""
	}
	return strings.TrimSuffix(rest, "/")
}
