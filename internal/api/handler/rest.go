package handler

import (
	"errors"
	"net/http"
	"time"

	"meetsync/backend/internal/models"
	"meetsync/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// ICEServers returns the STUN/TURN servers clients should use for peer connections.
func (h *Handler) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.Hub.ICEServers()})
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connections": h.Hub.ClientCount(),
		"rooms":       h.Hub.Registry.RoomCount(),
	})
}

// MeetingPresence reports who is online in a meeting (Redis mirror) next to the
// participant ledger's active rows.
func (h *Handler) MeetingPresence(c *gin.Context) {
	ctx := c.Request.Context()
	meetingID := c.Param("id")

	meeting, err := h.Storage.FindMeeting(ctx, meetingID, "")
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meeting"})
		return
	}

	online, err := h.Storage.GetOnlineUserIDs(ctx, meeting.ID)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", meeting.ID).Msg("failed to read online set")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	participants, err := h.Storage.ListActiveParticipants(ctx, meeting.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}
	if participants == nil {
		participants = []models.Participant{}
	}

	c.JSON(http.StatusOK, gin.H{
		"meeting_id":      meeting.ID,
		"online_user_ids": online,
		"participants":    participants,
	})
}
