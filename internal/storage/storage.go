package storage

import (
	"context"
	"errors"
	"time"

	"meetsync/backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound повертається, коли користувача, зустрічі або учасника не існує.
var ErrNotFound = errors.New("record not found")

// Storage is everything the meeting core needs from persistence: read access to users and
// meetings, the participant ledger, chat history, the Redis presence mirror and the event stream.
type Storage interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	FindMeeting(ctx context.Context, meetingID, meetingCode string) (*models.Meeting, error)

	GetParticipant(ctx context.Context, meetingID, userID string) (*models.Participant, error)
	ActivateParticipant(ctx context.Context, p *models.Participant) error
	DeactivateParticipant(ctx context.Context, meetingID, userID string, at time.Time) (bool, error)
	ListActiveParticipants(ctx context.Context, meetingID string) ([]models.Participant, error)
	DeactivateAllParticipants(ctx context.Context, at time.Time) (int64, error)

	SaveMessage(ctx context.Context, msg *models.ChatHistory) error
	GetChatHistory(ctx context.Context, meetingID string) ([]models.ChatHistory, error)

	MarkOnline(ctx context.Context, meetingID, userID string) error
	MarkOffline(ctx context.Context, meetingID, userID string) error
	GetOnlineUserIDs(ctx context.Context, meetingID string) ([]string, error)
	ClearOnline(ctx context.Context) (int64, error)
	PublishEvent(ctx context.Context, evt models.StreamEvent) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	// EventChannel - префікс pub/sub каналів зустрічей.
	EventChannel string
	log          zerolog.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, eventChannel string, log zerolog.Logger) *Service {
	return &Service{
		DB:           db,
		Redis:        rdb,
		EventChannel: eventChannel,
		log:          log.With().Str("component", "storage").Logger(),
	}
}

// AutoMigrate creates the tables the core writes to. Users and meetings belong to the
// scheduling service but are migrated too so a fresh database is usable.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Meeting{},
		&models.Participant{},
		&models.ChatHistory{},
	)
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrNotFound
	}

	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to load user")
		return nil, err
	}
	return &user, nil
}

// FindMeeting шукає зустріч за id, а якщо не задано - за кодом.
func (s *Service) FindMeeting(ctx context.Context, meetingID, meetingCode string) (*models.Meeting, error) {
	q := s.DB.WithContext(ctx)

	switch {
	case meetingID != "":
		// id - це uuid колонки, інше значення не знайдеться, а postgres впаде на касті
		if _, err := uuid.Parse(meetingID); err != nil {
			return nil, ErrNotFound
		}
		q = q.Where("id = ?", meetingID)
	case meetingCode != "":
		q = q.Where("meeting_code = ?", meetingCode)
	default:
		return nil, ErrNotFound
	}

	var meeting models.Meeting
	err := q.First(&meeting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("meeting_id", meetingID).Str("meeting_code", meetingCode).Msg("failed to find meeting")
		return nil, err
	}
	return &meeting, nil
}

func (s *Service) GetParticipant(ctx context.Context, meetingID, userID string) (*models.Participant, error) {
	var p models.Participant
	err := s.DB.WithContext(ctx).
		Where("meeting_id = ? AND user_id = ?", meetingID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ActivateParticipant створює запис учасника або знову активує наявний для тієї ж пари
// (зустріч, користувач). p перечитується, щоб викликач бачив збережений id.
func (s *Service) ActivateParticipant(ctx context.Context, p *models.Participant) error {
	p.IsActive = true
	p.LeftAt = nil
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meeting_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "is_active", "joined_at", "left_at"}),
	}).Create(p).Error
	if err != nil {
		s.log.Error().Err(err).Str("meeting_id", p.MeetingID).Str("user_id", p.UserID).Msg("failed to activate participant")
		return err
	}

	stored, err := s.GetParticipant(ctx, p.MeetingID, p.UserID)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

// DeactivateParticipant закриває активний запис учасника. Повертає false, якщо
// активного запису не було.
func (s *Service) DeactivateParticipant(ctx context.Context, meetingID, userID string, at time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Participant{}).
		Where("meeting_id = ? AND user_id = ? AND is_active = ?", meetingID, userID, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"left_at":   at,
		})
	if res.Error != nil {
		s.log.Error().Err(res.Error).Str("meeting_id", meetingID).Str("user_id", userID).Msg("failed to deactivate participant")
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListActiveParticipants повертає знімок учасників зустрічі з аватарами з таблиці users.
func (s *Service) ListActiveParticipants(ctx context.Context, meetingID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := s.DB.WithContext(ctx).
		Table("participants").
		Select("participants.*, users.avatar_url").
		Joins("LEFT JOIN users ON users.id = participants.user_id").
		Where("participants.meeting_id = ? AND participants.is_active = ?", meetingID, true).
		Order("participants.joined_at asc").
		Scan(&participants).Error
	if err != nil {
		s.log.Error().Err(err).Str("meeting_id", meetingID).Msg("failed to list participants")
		return nil, err
	}
	return participants, nil
}

// DeactivateAllParticipants закриває всі активні записи. Стан кімнат не переживає рестарт,
// тож активні на старті записи застарілі.
func (s *Service) DeactivateAllParticipants(ctx context.Context, at time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Participant{}).
		Where("is_active = ?", true).
		Updates(map[string]interface{}{
			"is_active": false,
			"left_at":   at,
		})
	return res.RowsAffected, res.Error
}

// SaveMessage зберігає повідомлення чату. ID і SentAt заповнює хук моделі.
func (s *Service) SaveMessage(ctx context.Context, msg *models.ChatHistory) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		s.log.Error().Err(err).Str("meeting_id", msg.MeetingID).Msg("failed to save message")
		return err
	}
	return nil
}

// GetChatHistory повертає повідомлення зустрічі, від найстаріших. Повідомлення з однаковим
// часом сортуються за id, щоб повторні читання збігалися.
func (s *Service) GetChatHistory(ctx context.Context, meetingID string) ([]models.ChatHistory, error) {
	history := []models.ChatHistory{}
	if err := s.DB.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("sent_at asc").Order("id asc").Find(&history).Error; err != nil {
		s.log.Error().Err(err).Str("meeting_id", meetingID).Msg("failed to get chat history")
		return nil, err
	}
	return history, nil
}
