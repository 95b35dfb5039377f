package chathub_test

import (
	"context"
	"sync"
	"time"

	"meetsync/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify/mock implementation of storage.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) FindMeeting(ctx context.Context, meetingID, meetingCode string) (*models.Meeting, error) {
	args := m.Called(ctx, meetingID, meetingCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockStorage) GetParticipant(ctx context.Context, meetingID, userID string) (*models.Participant, error) {
	args := m.Called(ctx, meetingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Participant), args.Error(1)
}

func (m *MockStorage) ActivateParticipant(ctx context.Context, p *models.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockStorage) DeactivateParticipant(ctx context.Context, meetingID, userID string, at time.Time) (bool, error) {
	args := m.Called(ctx, meetingID, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) ListActiveParticipants(ctx context.Context, meetingID string) ([]models.Participant, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *MockStorage) DeactivateAllParticipants(ctx context.Context, at time.Time) (int64, error) {
	args := m.Called(ctx, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) SaveMessage(ctx context.Context, msg *models.ChatHistory) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetChatHistory(ctx context.Context, meetingID string) ([]models.ChatHistory, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatHistory), args.Error(1)
}

func (m *MockStorage) MarkOnline(ctx context.Context, meetingID, userID string) error {
	args := m.Called(ctx, meetingID, userID)
	return args.Error(0)
}

func (m *MockStorage) MarkOffline(ctx context.Context, meetingID, userID string) error {
	args := m.Called(ctx, meetingID, userID)
	return args.Error(0)
}

func (m *MockStorage) GetOnlineUserIDs(ctx context.Context, meetingID string) ([]string, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) ClearOnline(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) PublishEvent(ctx context.Context, evt models.StreamEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

// MockClient records everything sent to it.
type MockClient struct {
	id    string
	ident models.Identity

	mu     sync.Mutex
	events []models.OutboundEvent
	closed bool
	// Full makes Send behave like a connection whose buffer is exhausted.
	Full bool
}

func newMockClient(connID, userID, name string) *MockClient {
	return &MockClient{
		id:    connID,
		ident: models.Identity{UserID: userID, DisplayName: name},
	}
}

func (c *MockClient) GetID() string                { return c.id }
func (c *MockClient) GetIdentity() models.Identity { return c.ident }
func (c *MockClient) GetUserID() string            { return c.ident.UserID }
func (c *MockClient) Run()                         {}

func (c *MockClient) Send(evt models.OutboundEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.Full {
		return false
	}
	c.events = append(c.events, evt)
	return true
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClient) Events() []models.OutboundEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.OutboundEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *MockClient) EventsOf(t models.EventType) []models.OutboundEvent {
	var out []models.OutboundEvent
	for _, evt := range c.Events() {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

// Last returns the most recent event of type t.
func (c *MockClient) Last(t models.EventType) (models.OutboundEvent, bool) {
	evts := c.EventsOf(t)
	if len(evts) == 0 {
		return models.OutboundEvent{}, false
	}
	return evts[len(evts)-1], true
}

func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
