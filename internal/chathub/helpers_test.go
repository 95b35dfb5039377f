package chathub_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"meetsync/backend/internal/chathub"
	"meetsync/backend/internal/models"
	"meetsync/backend/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// harness is a hub backed by in-memory SQLite and miniredis with one meeting hosted by Alice.
type harness struct {
	hub     *chathub.ManagerService
	store   *storage.Service
	redis   *miniredis.Miniredis
	meeting *models.Meeting
	alice   *models.User
	bob     *models.User
	carol   *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := storage.NewStorageService(db, rdb, "meetsync:events", zerolog.Nop())
	require.NoError(t, store.AutoMigrate())

	h := &harness{store: store, redis: mr}
	h.alice = &models.User{Name: "Alice", Email: "alice@example.com"}
	h.bob = &models.User{Name: "Bob", Email: "bob@example.com"}
	h.carol = &models.User{Name: "Carol", Email: "carol@example.com"}
	for _, u := range []*models.User{h.alice, h.bob, h.carol} {
		require.NoError(t, db.Create(u).Error)
	}
	h.meeting = &models.Meeting{HostID: h.alice.ID, Title: "Weekly sync", MeetingCode: "WEEKLY1", Status: models.MeetingStatusActive}
	require.NoError(t, db.Create(h.meeting).Error)

	h.hub = chathub.NewManagerService(store, chathub.Options{
		ICEServers:       []webrtc.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}},
		MaxMessageLength: 50,
	}, zerolog.Nop())
	return h
}

// useStorage rebuilds the hub on top of s, usually a hookedStorage around h.store.
func (h *harness) useStorage(s storage.Storage) {
	h.hub = chathub.NewManagerService(s, chathub.Options{
		ICEServers:       []webrtc.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}},
		MaxMessageLength: 50,
	}, zerolog.Nop())
}

// hookedStorage wraps a real store so a test can fail or stall single calls.
type hookedStorage struct {
	storage.Storage
	onActivate func() error
	afterList  func(meetingID string)
}

func (s *hookedStorage) ActivateParticipant(ctx context.Context, p *models.Participant) error {
	if s.onActivate != nil {
		if err := s.onActivate(); err != nil {
			return err
		}
	}
	return s.Storage.ActivateParticipant(ctx, p)
}

func (s *hookedStorage) ListActiveParticipants(ctx context.Context, meetingID string) ([]models.Participant, error) {
	snapshot, err := s.Storage.ListActiveParticipants(ctx, meetingID)
	if s.afterList != nil {
		s.afterList(meetingID)
	}
	return snapshot, err
}

func (h *harness) client(u *models.User, connID string) *MockClient {
	return newMockClient(connID, u.ID, u.Name)
}

func (h *harness) send(c chathub.Client, t models.EventType, payload any) {
	h.hub.Dispatch(context.Background(), c, inbound(t, payload))
}

func (h *harness) join(t *testing.T, c *MockClient) {
	t.Helper()
	h.send(c, models.EventJoinRoom, models.JoinRoomPayload{RoomID: h.meeting.ID})
	_, ok := c.Last(models.EventMeetingJoined)
	require.True(t, ok, "join failed: %+v", c.EventsOf(models.EventError))
}

func (h *harness) participant(t *testing.T, userID string) *models.Participant {
	t.Helper()
	p, err := h.store.GetParticipant(context.Background(), h.meeting.ID, userID)
	require.NoError(t, err)
	return p
}

func inbound(t models.EventType, payload any) models.InboundEvent {
	evt := models.InboundEvent{Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		evt.Data = raw
	}
	return evt
}

func lastError(t *testing.T, c *MockClient) models.ErrorData {
	t.Helper()
	evt, ok := c.Last(models.EventError)
	require.True(t, ok, "expected an error event")
	return evt.Data.(models.ErrorData)
}

func snapshotUserIDs(t *testing.T, c *MockClient) []string {
	t.Helper()
	evt, ok := c.Last(models.EventParticipantsUpdated)
	require.True(t, ok, "expected a participants-updated event")
	var ids []string
	for _, p := range evt.Data.([]models.Participant) {
		ids = append(ids, p.UserID)
	}
	return ids
}
