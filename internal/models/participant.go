package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleHost        = "host"
	RoleParticipant = "participant"
)

// Participant is the persisted ledger row for one user in one meeting.
// IsActive mirrors whether the user has at least one live connection in the meeting room.
type Participant struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	MeetingID string     `gorm:"type:uuid;not null;uniqueIndex:idx_participant_meeting_user" json:"meeting_id"`
	UserID    string     `gorm:"type:uuid;not null;uniqueIndex:idx_participant_meeting_user;index" json:"user_id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	AvatarURL string     `gorm:"->;-:migration" json:"avatar_url,omitempty"`
	Role      string     `gorm:"type:varchar(20);default:participant" json:"role"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the caller did not set one.
func (p *Participant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

func (p *Participant) IsHost() bool {
	return p.Role == RoleHost
}
