package chathub

import (
	"context"
	"errors"
	"sync"
	"time"

	"meetsync/backend/internal/models"
	"meetsync/backend/internal/storage"

	"github.com/rs/zerolog"
)

var toggleEvents = map[models.EventType]models.EventType{
	models.EventToggleMute:       models.EventUserMuted,
	models.EventToggleVideo:      models.EventUserVideoToggled,
	models.EventRaiseHand:        models.EventHandRaised,
	models.EventLowerHand:        models.EventHandLowered,
	models.EventStartScreenShare: models.EventScreenShareStarted,
	models.EventStopScreenShare:  models.EventScreenShareStopped,
}

// PresenceSynchronizer keeps the participant ledger and the Redis online mirror in step
// with room membership and tells the room who is there.
//
// Ledger writes for one (meeting, user) pair are serialised and re-read the registry
// under that lock, so concurrent joins and leaves of the same user's tabs always leave
// the row matching whether the user is still in the room.
// Snapshot broadcasts for one room are serialised as well and read the ledger under
// that lock, so the last participants-updated a member receives is the newest one.
type PresenceSynchronizer struct {
	registry *Registry
	storage  storage.Storage
	events   *eventStream
	locks    *keyedMutex
	rooms    *keyedMutex
	now      func() time.Time
	log      zerolog.Logger
}

func NewPresenceSynchronizer(registry *Registry, s storage.Storage, events *eventStream, log zerolog.Logger) *PresenceSynchronizer {
	return &PresenceSynchronizer{
		registry: registry,
		storage:  s,
		events:   events,
		locks:    newKeyedMutex(),
		rooms:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "presence").Logger(),
	}
}

// Joined records the connection's arrival in the ledger and returns the active participant
// snapshot. The row is written for the user's first connection, and again for a later one
// when an earlier write failed and left the row missing or inactive. recorded reports
// whether this call wrote the row.
func (p *PresenceSynchronizer) Joined(ctx context.Context, c Client, meeting *models.Meeting, first bool) (snapshot []models.Participant, recorded bool, err error) {
	recorded = first
	if !first {
		if recorded, err = p.ledgerStale(ctx, meeting.ID, c.GetUserID()); err != nil {
			return nil, false, persistenceFailure("load participant", err)
		}
	}
	if recorded {
		if err := p.activate(ctx, meeting, c.GetIdentity()); err != nil {
			return nil, false, persistenceFailure("record join", err)
		}
	}

	snapshot, err = p.storage.ListActiveParticipants(ctx, meeting.ID)
	if err != nil {
		return nil, false, persistenceFailure("load participants", err)
	}
	return snapshot, recorded, nil
}

// AnnounceJoined tells the other members about the new connection and sends the
// current snapshot to everyone, the joiner included.
func (p *PresenceSynchronizer) AnnounceJoined(ctx context.Context, c Client, roomID string) {
	p.announceArrival(c, roomID)
	p.Resync(ctx, roomID)
}

// Resync broadcasts the current snapshot of a room. A failed read is logged; members keep
// the previous snapshot until the next membership change.
func (p *PresenceSynchronizer) Resync(ctx context.Context, roomID string) {
	if err := p.syncSnapshot(ctx, roomID); err != nil {
		p.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to broadcast participants")
	}
}

func (p *PresenceSynchronizer) announceArrival(c Client, roomID string) {
	p.registry.Broadcast(roomID, models.OutboundEvent{
		Type: models.EventUserJoined,
		Data: presenceData(c),
	}, c)
}

// Left finishes a registry leave: closes the ledger row when the user has no connection
// left in the room, then tells the remaining members.
func (p *PresenceSynchronizer) Left(ctx context.Context, c Client, res LeaveResult) error {
	if !res.Left {
		return nil
	}

	var ledgerErr error
	if !res.UserStillPresent {
		ledgerErr = p.deactivate(ctx, res.RoomID, c.GetUserID())
	}

	p.registry.Broadcast(res.RoomID, models.OutboundEvent{
		Type: models.EventUserLeft,
		Data: presenceData(c),
	}, nil)

	if ledgerErr != nil {
		return persistenceFailure("record leave", ledgerErr)
	}

	if err := p.syncSnapshot(ctx, res.RoomID); err != nil {
		return persistenceFailure("load participants", err)
	}
	return nil
}

// Toggle relays a transient media or hand state change to the rest of the room.
func (p *PresenceSynchronizer) Toggle(c Client, kind models.EventType, state *bool) error {
	out, ok := toggleEvents[kind]
	if !ok {
		return withMessage(ErrInvalidPayload, "unknown toggle %q", kind)
	}
	roomID, ok := p.registry.RoomOf(c)
	if !ok {
		return ErrNotInRoom
	}

	ident := c.GetIdentity()
	p.registry.Broadcast(roomID, models.OutboundEvent{
		Type: out,
		Data: models.ToggleData{UserID: ident.UserID, Name: ident.DisplayName, State: state},
	}, c)
	return nil
}

// syncSnapshot reads and broadcasts under the room lock so two broadcasts can never
// reach members in the opposite order of their reads.
func (p *PresenceSynchronizer) syncSnapshot(ctx context.Context, roomID string) error {
	unlock := p.rooms.Lock(roomID)
	defer unlock()

	snapshot, err := p.storage.ListActiveParticipants(ctx, roomID)
	if err != nil {
		return err
	}
	if snapshot == nil {
		snapshot = []models.Participant{}
	}
	p.registry.Broadcast(roomID, models.OutboundEvent{Type: models.EventParticipantsUpdated, Data: snapshot}, nil)
	p.events.Publish(ctx, roomID, models.EventParticipantsUpdated, snapshot)
	return nil
}

// ledgerStale reports whether the user's row is missing or inactive.
func (p *PresenceSynchronizer) ledgerStale(ctx context.Context, meetingID, userID string) (bool, error) {
	row, err := p.storage.GetParticipant(ctx, meetingID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !row.IsActive, nil
}

func (p *PresenceSynchronizer) activate(ctx context.Context, meeting *models.Meeting, ident models.Identity) error {
	unlock := p.locks.Lock(meeting.ID + "/" + ident.UserID)
	defer unlock()

	if !p.registry.HasUser(meeting.ID, ident.UserID) {
		// left again before we got the lock
		return nil
	}

	role := models.RoleParticipant
	if meeting.HostID == ident.UserID {
		role = models.RoleHost
	}
	row := &models.Participant{
		MeetingID: meeting.ID,
		UserID:    ident.UserID,
		Name:      ident.DisplayName,
		Role:      role,
		JoinedAt:  p.now(),
	}
	if err := p.storage.ActivateParticipant(ctx, row); err != nil {
		return err
	}

	if err := p.storage.MarkOnline(ctx, meeting.ID, ident.UserID); err != nil {
		p.log.Warn().Err(err).Str("room_id", meeting.ID).Str("user_id", ident.UserID).Msg("failed to mirror online state")
	}
	p.log.Debug().Str("room_id", meeting.ID).Str("user_id", ident.UserID).Str("role", role).Msg("participant active")
	return nil
}

func (p *PresenceSynchronizer) deactivate(ctx context.Context, meetingID, userID string) error {
	unlock := p.locks.Lock(meetingID + "/" + userID)
	defer unlock()

	if p.registry.HasUser(meetingID, userID) {
		// another tab joined meanwhile
		return nil
	}

	if _, err := p.storage.DeactivateParticipant(ctx, meetingID, userID, p.now()); err != nil {
		return err
	}

	if err := p.storage.MarkOffline(ctx, meetingID, userID); err != nil {
		p.log.Warn().Err(err).Str("room_id", meetingID).Str("user_id", userID).Msg("failed to mirror offline state")
	}
	p.log.Debug().Str("room_id", meetingID).Str("user_id", userID).Msg("participant inactive")
	return nil
}

func presenceData(c Client) models.UserPresenceData {
	ident := c.GetIdentity()
	return models.UserPresenceData{
		UserID:       ident.UserID,
		Name:         ident.DisplayName,
		AvatarURL:    ident.AvatarURL,
		ConnectionID: c.GetID(),
	}
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
