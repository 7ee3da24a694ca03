package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/identity"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	resolver identity.Resolver
	log      *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(resolver identity.Resolver, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		resolver: resolver,
		log:      logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Me returns the identity of the authenticated user.
// GET /api/me
func (h *UserHandlers) Me(c *gin.Context) {
	uid, ok := userIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	u, err := h.resolver.Resolve(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to resolve user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{ID: u.ID, DisplayName: u.DisplayName})
}
