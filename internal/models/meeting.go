package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MeetingStatusScheduled = "scheduled"
	MeetingStatusActive    = "active"
	MeetingStatusEnded     = "ended"
)

// Meeting is a scheduled or running meeting. Rows are created by the scheduling service;
// a live room exists for a meeting only while somebody is connected to it.
type Meeting struct {
	// ID is the meeting identifier and doubles as the room identifier.
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// HostID is the user who created the meeting and may use host controls.
	HostID string `gorm:"type:uuid;not null;index" json:"host_id"`
	// Title is the human readable name of the meeting.
	Title string `gorm:"type:varchar(255);not null" json:"title"`
	// MeetingCode is the short code users type to join.
	MeetingCode string `gorm:"type:varchar(20);uniqueIndex;not null" json:"meeting_code"`
	// Status is one of scheduled, active or ended.
	Status string `gorm:"type:varchar(20);default:scheduled" json:"status"`
	// StartTime is the planned start of the meeting.
	StartTime *time.Time `json:"start_time,omitempty"`
	// EndTime is set when the meeting ends.
	EndTime   *time.Time `json:"end_time,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the caller did not set one.
func (m *Meeting) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Ended reports whether the meeting can no longer be joined.
func (m *Meeting) Ended() bool {
	return m.Status == MeetingStatusEnded
}

// MeetingSummary is the part of a meeting sent to clients when they join.
type MeetingSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	MeetingCode string `json:"meeting_code"`
	HostID      string `json:"host_id"`
}

func (m *Meeting) Summary() MeetingSummary {
	return MeetingSummary{ID: m.ID, Title: m.Title, MeetingCode: m.MeetingCode, HostID: m.HostID}
}
