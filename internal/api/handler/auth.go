package handler

import (
	"net/http"

	"meetsync/backend/internal/auth"
	"meetsync/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// RequireAuth відхиляє запит з 401, якщо в ньому немає валідного токена, і зберігає
// знайдену ідентичність у контексті.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := h.Auth.Authenticate(c.Request.Context(), auth.TokenFromRequest(c.Request))
		if err != nil {
			h.log.Debug().Err(err).Str("path", c.FullPath()).Msg("authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}
