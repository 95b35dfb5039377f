package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User - акаунт, яким володіє сервіс профілів. Ядро зустрічей лише читає його,
// щоб визначити, чий це токен.
type User struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	AvatarURL string    `gorm:"type:text" json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate - GORM хук, що генерує UUID, якщо його не задали.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Identity - автентифікований користувач живого зʼєднання.
// Визначається один раз при підключенні і ніколи не береться з тіла повідомлень.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// IdentityOf будує Identity зі збереженого користувача.
func IdentityOf(u *User) Identity {
	return Identity{UserID: u.ID, DisplayName: u.Name, AvatarURL: u.AvatarURL}
}
