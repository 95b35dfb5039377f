package chathub

import (
	"sync"

	"meetsync/backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// JoinResult describes the outcome of Registry.Join.
type JoinResult struct {
	// Members is the room membership after the join, in join order.
	Members []Client
	// FirstForUser is true when no other connection of the same user was in the room.
	FirstForUser bool
	// AlreadyJoined is true when the connection was already a member of the room.
	AlreadyJoined bool
}

// LeaveResult describes the outcome of Registry.Leave.
type LeaveResult struct {
	RoomID string
	// Left is false when the connection was not in any room; nothing changed.
	Left bool
	// UserStillPresent is true when another connection of the same user remains in the room.
	UserStillPresent bool
}

// Registry is the in-memory index of which connections are in which room. Both directions
// of the index are updated under one lock so they never disagree. A room exists exactly
// while it has at least one member.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string][]Client // roomID -> members in join order
	roomOf map[string]string   // connID -> roomID

	log zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string][]Client),
		roomOf: make(map[string]string),
		log:    log.With().Str("component", "registry").Logger(),
	}
}

// Join adds the connection to the room, creating the room when needed.
// Joining the room the connection is already in is a no-op.
func (r *Registry) Join(c Client, roomID string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.roomOf[c.GetID()]; ok {
		if current != roomID {
			return JoinResult{}, ErrAlreadyInRoom
		}
		return JoinResult{Members: r.snapshotLocked(roomID), AlreadyJoined: true}, nil
	}

	first := !r.hasUserLocked(roomID, c.GetUserID())
	r.rooms[roomID] = append(r.rooms[roomID], c)
	r.roomOf[c.GetID()] = roomID

	return JoinResult{Members: r.snapshotLocked(roomID), FirstForUser: first}, nil
}

// Leave removes the connection from its room. Calling it again, or for a connection
// that never joined, reports Left=false.
func (r *Registry) Leave(c Client) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.roomOf[c.GetID()]
	if !ok {
		return LeaveResult{}
	}
	delete(r.roomOf, c.GetID())

	members := lo.Reject(r.rooms[roomID], func(m Client, _ int) bool {
		return m.GetID() == c.GetID()
	})
	if len(members) == 0 {
		delete(r.rooms, roomID)
	} else {
		r.rooms[roomID] = members
	}

	return LeaveResult{
		RoomID:           roomID,
		Left:             true,
		UserStillPresent: r.hasUserLocked(roomID, c.GetUserID()),
	}
}

// Broadcast sends evt to every member of the room except exclude (which may be nil).
// Recipients whose send buffer is full are evicted. It returns the number of deliveries.
func (r *Registry) Broadcast(roomID string, evt models.OutboundEvent, exclude Client) int {
	recipients := r.Members(roomID)

	delivered := 0
	for _, c := range recipients {
		if exclude != nil && c.GetID() == exclude.GetID() {
			continue
		}
		if r.Deliver(c, evt) {
			delivered++
		}
	}
	return delivered
}

// Deliver sends one event to one connection, evicting it when it cannot keep up.
func (r *Registry) Deliver(c Client, evt models.OutboundEvent) bool {
	if c.Send(evt) {
		return true
	}
	r.log.Warn().Str("conn_id", c.GetID()).Str("event", string(evt.Type)).Msg("send buffer full or closed, evicting connection")
	c.Close()
	return false
}

// ResolveTarget returns the earliest-joined connection of userID in the room.
func (r *Registry) ResolveTarget(roomID, userID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Find(r.rooms[roomID], func(c Client) bool {
		return c.GetUserID() == userID
	})
}

// Connection returns the member of the room with the given connection id.
func (r *Registry) Connection(roomID, connID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Find(r.rooms[roomID], func(c Client) bool {
		return c.GetID() == connID
	})
}

// ConnectionsOf returns every connection userID has in the room, in join order.
func (r *Registry) ConnectionsOf(roomID, userID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(r.rooms[roomID], func(c Client, _ int) bool {
		return c.GetUserID() == userID
	})
}

func (r *Registry) RoomOf(c Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.roomOf[c.GetID()]
	return roomID, ok
}

// Members returns a copy of the room's membership in join order.
func (r *Registry) Members(roomID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked(roomID)
}

func (r *Registry) HasUser(roomID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.hasUserLocked(roomID, userID)
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

func (r *Registry) snapshotLocked(roomID string) []Client {
	members := r.rooms[roomID]
	out := make([]Client, len(members))
	copy(out, members)
	return out
}

func (r *Registry) hasUserLocked(roomID, userID string) bool {
	return lo.ContainsBy(r.rooms[roomID], func(c Client) bool {
		return c.GetUserID() == userID
	})
}
