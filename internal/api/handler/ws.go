package handler

import (
	"net/http"

	"meetsync/backend/internal/chathub"
	"meetsync/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// ServeWebSocket оновлює автентифікований HTTP-запит до WebSocket і передає зʼєднання в хаб.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade вже записав відповідь з помилкою
		h.log.Warn().Err(err).Str("user_id", identity.UserID).Msg("websocket upgrade failed")
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, identity, h.clientOpts)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}

	client.Send(models.OutboundEvent{
		Type: models.EventConnected,
		Data: models.ConnectedData{ConnectionID: client.GetID(), User: identity},
	})
	client.Run()
}
