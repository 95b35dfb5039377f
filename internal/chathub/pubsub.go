package chathub

import (
	"context"
	"time"

	"meetsync/backend/internal/models"
	"meetsync/backend/internal/storage"

	"github.com/rs/zerolog"
)

// eventStream пересилає події присутності й чату в Redis pub/sub для решти платформи.
// Доставка в кімнату на нього не чекає, тому помилки лише логуються.
type eventStream struct {
	storage storage.Storage
	log     zerolog.Logger
}

func (s *eventStream) Publish(ctx context.Context, meetingID string, t models.EventType, data any) {
	evt := models.StreamEvent{
		MeetingID: meetingID,
		Type:      t,
		Data:      data,
		EmittedAt: time.Now().UTC(),
	}
	if err := s.storage.PublishEvent(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("room_id", meetingID).Str("event", string(t)).Msg("failed to publish stream event")
	}
}
