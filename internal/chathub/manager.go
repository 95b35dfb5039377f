package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"meetsync/backend/internal/models"
	"meetsync/backend/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Options tune the hub. Zero values fall back to defaults.
type Options struct {
	ICEServers       []webrtc.ICEServer
	MaxMessageLength int
}

// ManagerService owns the set of live connections and routes every inbound event to the
// component responsible for it.
type ManagerService struct {
	mu      sync.RWMutex
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	done         chan struct{}

	Storage  storage.Storage
	Registry *Registry
	Presence *PresenceSynchronizer
	Signals  *SignalingRelay
	Chat     *ChatBroadcaster
	Host     *HostController

	iceServers []webrtc.ICEServer
	validate   *validator.Validate
	log        zerolog.Logger
}

// NewManagerService Constructor
func NewManagerService(s storage.Storage, opts Options, log zerolog.Logger) *ManagerService {
	log = log.With().Str("component", "hub").Logger()

	registry := NewRegistry(log)
	events := &eventStream{storage: s, log: log}
	presence := NewPresenceSynchronizer(registry, s, events, log)

	return &ManagerService{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		done:         make(chan struct{}),
		Storage:      s,
		Registry:     registry,
		Presence:     presence,
		Signals:      NewSignalingRelay(registry, log),
		Chat:         NewChatBroadcaster(registry, s, events, opts.MaxMessageLength, log),
		Host:         NewHostController(registry, s, presence, log),
		iceServers:   opts.ICEServers,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		log:          log,
	}
}

// Run обробляє реєстрації, доки ctx не скасовано, а потім закриває всі зʼєднання.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for id, c := range m.Clients {
				c.Close()
				delete(m.Clients, id)
			}
			m.mu.Unlock()
			m.log.Info().Msg("hub stopped")
			return

		case c := <-m.RegisterCh:
			m.mu.Lock()
			m.Clients[c.GetID()] = c
			m.mu.Unlock()
			m.log.Info().Str("conn_id", c.GetID()).Str("user_id", c.GetUserID()).Msg("client registered")

		case c := <-m.UnregisterCh:
			m.mu.Lock()
			if _, ok := m.Clients[c.GetID()]; ok {
				delete(m.Clients, c.GetID())
				c.Close()
			}
			m.mu.Unlock()
			m.log.Info().Str("conn_id", c.GetID()).Str("user_id", c.GetUserID()).Msg("client unregistered")
		}
	}
}

// Register передає нове зʼєднання в цикл Run. Повертає false, якщо хаб уже зупинено.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister is the counterpart of Register; it never blocks after the hub stopped.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

func (m *ManagerService) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Clients)
}

func (m *ManagerService) ICEServers() []webrtc.ICEServer {
	return m.iceServers
}

// Dispatch handles one inbound event from c. Failures are reported to c only.
func (m *ManagerService) Dispatch(ctx context.Context, c Client, evt models.InboundEvent) {
	if err := m.handle(ctx, c, evt); err != nil {
		m.log.Debug().Err(err).Str("conn_id", c.GetID()).Str("event", string(evt.Type)).Msg("event rejected")
		m.sendError(c, err)
	}
}

// Disconnect runs the leave cleanup for a connection whose transport is gone.
func (m *ManagerService) Disconnect(ctx context.Context, c Client) {
	res := m.Registry.Leave(c)
	if err := m.Presence.Left(ctx, c, res); err != nil {
		m.log.Error().Err(err).Str("conn_id", c.GetID()).Str("room_id", res.RoomID).Msg("cleanup after disconnect failed")
	}
}

func (m *ManagerService) handle(ctx context.Context, c Client, evt models.InboundEvent) error {
	switch evt.Type {
	case models.EventJoinRoom:
		p, err := decode[models.JoinRoomPayload](m.validate, evt.Data)
		if err != nil {
			return err
		}
		return m.join(ctx, c, p)

	case models.EventLeaveRoom:
		res := m.Registry.Leave(c)
		return m.Presence.Left(ctx, c, res)

	case models.EventSendMessage:
		p, err := decode[models.SendMessagePayload](m.validate, evt.Data)
		if err != nil {
			return err
		}
		return m.Chat.Send(ctx, c, p.Content)

	case models.EventGetHistory:
		return m.Chat.History(ctx, c)

	case models.EventOffer, models.EventAnswer, models.EventICECandidate:
		p, err := decode[models.SignalPayload](m.validate, evt.Data)
		if err != nil {
			return err
		}
		return m.Signals.Relay(c, evt.Type, p)

	case models.EventToggleMute, models.EventToggleVideo,
		models.EventRaiseHand, models.EventLowerHand,
		models.EventStartScreenShare, models.EventStopScreenShare:
		p, err := decode[models.TogglePayload](m.validate, evt.Data)
		if err != nil {
			return err
		}
		return m.Presence.Toggle(c, evt.Type, p.State)

	case models.EventMuteParticipant:
		p, err := decode[models.TargetPayload](m.validate, evt.Data)
		if err != nil {
			return err
		}
		return m.Host.Mute(ctx, c, p.TargetUserID)

	case models.EventRemoveParticipant:
		p, err := decode[models.TargetPayload](m.validate, evt.Data)
		if err != nil {
			return err
		}
		return m.Host.Remove(ctx, c, p.TargetUserID)

	default:
		return withMessage(ErrInvalidPayload, "unknown event type %q", evt.Type)
	}
}

func (m *ManagerService) join(ctx context.Context, c Client, p models.JoinRoomPayload) error {
	meeting, err := m.Storage.FindMeeting(ctx, p.RoomID, p.MeetingCode)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err != nil {
		return persistenceFailure("load meeting", err)
	}
	if meeting.Ended() {
		return ErrMeetingEnded
	}

	res, err := m.Registry.Join(c, meeting.ID)
	if err != nil {
		return err
	}

	snapshot, recorded, err := m.Presence.Joined(ctx, c, meeting, res.FirstForUser)
	if err != nil {
		// членство лишається, кімната все одно дізнається про зʼєднання
		if !res.AlreadyJoined {
			m.Presence.announceArrival(c, meeting.ID)
		}
		return err
	}

	m.Registry.Deliver(c, models.OutboundEvent{
		Type: models.EventMeetingJoined,
		Data: models.MeetingJoinedData{
			ConnectionID: c.GetID(),
			Meeting:      meeting.Summary(),
			Participants: snapshot,
			IceServers:   m.iceServers,
		},
	})
	if res.AlreadyJoined {
		// повторний join полагодив запис, кімнаті потрібен свіжий знімок
		if recorded {
			m.Presence.Resync(ctx, meeting.ID)
		}
		return nil
	}

	m.Presence.AnnounceJoined(ctx, c, meeting.ID)
	m.log.Info().Str("conn_id", c.GetID()).Str("user_id", c.GetUserID()).Str("room_id", meeting.ID).Int("members", len(res.Members)).Msg("joined room")
	return nil
}

func (m *ManagerService) sendError(c Client, err error) {
	c.Send(models.OutboundEvent{Type: models.EventError, Data: errorData(err)})
}

// decode unmarshals and validates an event body. A missing body decodes as the zero value.
func decode[T any](v *validator.Validate, data json.RawMessage) (T, error) {
	var payload T
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &payload); err != nil {
			return payload, invalidPayload(err)
		}
	}
	if err := v.Struct(payload); err != nil {
		return payload, invalidPayload(err)
	}
	return payload, nil
}
