package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatHistory represents a saved chat message in the PostgreSQL database.
// Rows are append-only; the sender name is captured at send time and never rewritten.
type ChatHistory struct {
	// ID is the message identifier assigned on insert.
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// MeetingID is the meeting (room) the message was sent to.
	MeetingID string `gorm:"type:uuid;not null;index:idx_meeting_sent" json:"meeting_id"`
	// SenderID is the authenticated user who sent the message.
	SenderID string `gorm:"type:uuid" json:"sender_id"`
	// SenderName is the display name of the sender when the message was sent.
	SenderName string `gorm:"type:varchar(255);not null" json:"sender_name"`
	// Content is the message text.
	Content string `gorm:"column:message;type:text;not null" json:"message"`
	// SentAt orders messages inside a meeting.
	SentAt time.Time `gorm:"not null;index:idx_meeting_sent" json:"sent_at"`
}

// TableName keeps the table name used by the rest of the platform.
func (ChatHistory) TableName() string {
	return "chat_messages"
}

// BeforeCreate assigns the id and timestamp when they are not set yet.
func (h *ChatHistory) BeforeCreate(tx *gorm.DB) (err error) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.SentAt.IsZero() {
		h.SentAt = time.Now().UTC()
	}
	return
}
