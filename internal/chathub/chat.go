package chathub

import (
	"context"
	"strings"
	"unicode/utf8"

	"meetsync/backend/internal/models"
	"meetsync/backend/internal/storage"

	"github.com/rs/zerolog"
)

// ChatBroadcaster persists room chat and fans it out to the room.
type ChatBroadcaster struct {
	registry  *Registry
	storage   storage.Storage
	events    *eventStream
	maxLength int
	log       zerolog.Logger
}

func NewChatBroadcaster(registry *Registry, s storage.Storage, events *eventStream, maxLength int, log zerolog.Logger) *ChatBroadcaster {
	return &ChatBroadcaster{
		registry:  registry,
		storage:   s,
		events:    events,
		maxLength: maxLength,
		log:       log.With().Str("component", "chat").Logger(),
	}
}

// Send stores the message and broadcasts it to every member, sender included.
func (b *ChatBroadcaster) Send(ctx context.Context, c Client, content string) error {
	roomID, ok := b.registry.RoomOf(c)
	if !ok {
		return ErrNotInRoom
	}
	if strings.TrimSpace(content) == "" {
		return withMessage(ErrInvalidPayload, "message is empty")
	}
	if b.maxLength > 0 && utf8.RuneCountInString(content) > b.maxLength {
		return withMessage(ErrInvalidPayload, "message exceeds %d characters", b.maxLength)
	}

	ident := c.GetIdentity()
	msg := &models.ChatHistory{
		MeetingID:  roomID,
		SenderID:   ident.UserID,
		SenderName: ident.DisplayName,
		Content:    content,
	}
	if err := b.storage.SaveMessage(ctx, msg); err != nil {
		return persistenceFailure("save message", err)
	}

	b.registry.Broadcast(roomID, models.OutboundEvent{Type: models.EventNewMessage, Data: msg}, nil)
	b.events.Publish(ctx, roomID, models.EventNewMessage, msg)
	return nil
}

// History sends the room's stored messages, oldest first, to the requester only.
func (b *ChatBroadcaster) History(ctx context.Context, c Client) error {
	roomID, ok := b.registry.RoomOf(c)
	if !ok {
		return ErrNotInRoom
	}

	history, err := b.storage.GetChatHistory(ctx, roomID)
	if err != nil {
		return persistenceFailure("load chat history", err)
	}
	if history == nil {
		history = []models.ChatHistory{}
	}

	b.registry.Deliver(c, models.OutboundEvent{Type: models.EventChatHistory, Data: history})
	return nil
}
