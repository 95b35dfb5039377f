package chathub

import (
	"context"
	"errors"

	"meetsync/backend/internal/models"
	"meetsync/backend/internal/storage"

	"github.com/rs/zerolog"
)

// HostController handles moderation requests. Only the connection whose participant row
// carries the host role may use it.
type HostController struct {
	registry *Registry
	storage  storage.Storage
	presence *PresenceSynchronizer
	log      zerolog.Logger
}

func NewHostController(registry *Registry, s storage.Storage, presence *PresenceSynchronizer, log zerolog.Logger) *HostController {
	return &HostController{
		registry: registry,
		storage:  s,
		presence: presence,
		log:      log.With().Str("component", "host").Logger(),
	}
}

// Mute asks the room to treat the target as muted. It is advisory: nothing is stored
// and the target's media is not touched by the server.
func (h *HostController) Mute(ctx context.Context, actor Client, targetUserID string) error {
	roomID, targets, err := h.authorize(ctx, actor, targetUserID)
	if err != nil {
		return err
	}

	host := actor.GetIdentity()
	h.registry.Broadcast(roomID, models.OutboundEvent{
		Type: models.EventParticipantMuted,
		Data: models.ParticipantMutedData{
			TargetUserID: targetUserID,
			TargetName:   targets[0].GetIdentity().DisplayName,
			MutedBy:      host.DisplayName,
			MutedByID:    host.UserID,
		},
	}, nil)

	h.log.Info().Str("room_id", roomID).Str("host_id", host.UserID).Str("target_id", targetUserID).Msg("participant muted")
	return nil
}

// Remove takes every connection of the target out of the room, marks them inactive and
// notifies both the target and the remaining members.
func (h *HostController) Remove(ctx context.Context, actor Client, targetUserID string) error {
	roomID, targets, err := h.authorize(ctx, actor, targetUserID)
	if err != nil {
		return err
	}

	host := actor.GetIdentity()
	notice := models.OutboundEvent{
		Type: models.EventParticipantRemoved,
		Data: models.ParticipantRemovedData{
			TargetUserID: targetUserID,
			TargetName:   targets[0].GetIdentity().DisplayName,
			RemovedBy:    host.DisplayName,
			RemovedByID:  host.UserID,
		},
	}

	var last Client
	var lastRes LeaveResult
	for _, t := range targets {
		if res := h.registry.Leave(t); res.Left {
			t.Send(notice)
			last, lastRes = t, res
		}
	}
	h.registry.Broadcast(roomID, notice, nil)

	// one user-left, ledger write and snapshot for the user, not one per tab
	if last != nil {
		lastRes.UserStillPresent = h.registry.HasUser(roomID, targetUserID)
		err = h.presence.Left(ctx, last, lastRes)
	}

	h.log.Info().Str("room_id", roomID).Str("host_id", host.UserID).Str("target_id", targetUserID).Int("connections", len(targets)).Msg("participant removed")
	return err
}

// authorize checks that actor is the host of its room and that the target is present.
func (h *HostController) authorize(ctx context.Context, actor Client, targetUserID string) (string, []Client, error) {
	roomID, ok := h.registry.RoomOf(actor)
	if !ok {
		return "", nil, ErrNotInRoom
	}

	row, err := h.storage.GetParticipant(ctx, roomID, actor.GetUserID())
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil, ErrUnauthorized
	}
	if err != nil {
		return "", nil, persistenceFailure("check host role", err)
	}
	if !row.IsHost() {
		h.log.Warn().Str("room_id", roomID).Str("user_id", actor.GetUserID()).Msg("non-host attempted a host action")
		return "", nil, ErrUnauthorized
	}

	if targetUserID == actor.GetUserID() {
		return "", nil, withMessage(ErrInvalidPayload, "host cannot target themselves")
	}
	targets := h.registry.ConnectionsOf(roomID, targetUserID)
	if len(targets) == 0 {
		return "", nil, withMessage(ErrUnreachableTarget, "user %s is not in this meeting", targetUserID)
	}
	return roomID, targets, nil
}
