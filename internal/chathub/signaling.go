package chathub

import (
	"meetsync/backend/internal/models"

	"github.com/rs/zerolog"
)

// SignalingRelay forwards WebRTC offers, answers and ICE candidates between two
// connections of the same room. Payloads are opaque to the server.
type SignalingRelay struct {
	registry *Registry
	log      zerolog.Logger
}

func NewSignalingRelay(registry *Registry, log zerolog.Logger) *SignalingRelay {
	return &SignalingRelay{
		registry: registry,
		log:      log.With().Str("component", "signaling").Logger(),
	}
}

// Relay delivers one signaling message to its addressee. The sender's identity on the
// forwarded message is taken from the connection.
func (s *SignalingRelay) Relay(c Client, kind models.EventType, p models.SignalPayload) error {
	if !kind.IsSignal() {
		return withMessage(ErrInvalidPayload, "%q is not a signaling event", kind)
	}
	roomID, ok := s.registry.RoomOf(c)
	if !ok {
		return ErrNotInRoom
	}
	if len(p.Payload) == 0 || string(p.Payload) == "null" {
		return withMessage(ErrInvalidPayload, "signal payload is empty")
	}

	target, ok := s.resolve(roomID, p)
	if !ok || target.GetID() == c.GetID() {
		return withMessage(ErrUnreachableTarget, "user %s is not in this meeting", p.TargetUserID)
	}

	ident := c.GetIdentity()
	evt := models.OutboundEvent{
		Type: kind,
		Data: models.SignalForward{
			Payload:          p.Payload,
			From:             ident.UserID,
			FromName:         ident.DisplayName,
			FromConnectionID: c.GetID(),
			To:               target.GetUserID(),
		},
	}
	if !s.registry.Deliver(target, evt) {
		return withMessage(ErrUnreachableTarget, "user %s could not be reached", p.TargetUserID)
	}

	s.log.Trace().
		Str("room_id", roomID).
		Str("from", c.GetID()).
		Str("to", target.GetID()).
		Str("event", string(kind)).
		Msg("signal relayed")
	return nil
}

// resolve prefers an explicit connection id when it belongs to the addressed user,
// otherwise the user's earliest connection in the room.
func (s *SignalingRelay) resolve(roomID string, p models.SignalPayload) (Client, bool) {
	if p.TargetConnectionID != "" {
		if target, ok := s.registry.Connection(roomID, p.TargetConnectionID); ok && target.GetUserID() == p.TargetUserID {
			return target, true
		}
	}
	return s.registry.ResolveTarget(roomID, p.TargetUserID)
}
