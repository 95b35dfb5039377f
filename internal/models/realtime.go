package models

import (
	"encoding/json"
	"time"

	"github.com/pion/webrtc/v4"
)

// EventType names a message exchanged over a meeting connection.
type EventType string

// Inbound events sent by clients.
const (
	EventJoinRoom          EventType = "join-room"
	EventLeaveRoom         EventType = "leave-room"
	EventSendMessage       EventType = "send-message"
	EventGetHistory        EventType = "get-history"
	EventOffer             EventType = "offer"
	EventAnswer            EventType = "answer"
	EventICECandidate      EventType = "ice-candidate"
	EventToggleMute        EventType = "toggle-mute"
	EventToggleVideo       EventType = "toggle-video"
	EventRaiseHand         EventType = "raise-hand"
	EventLowerHand         EventType = "lower-hand"
	EventStartScreenShare  EventType = "start-screen-share"
	EventStopScreenShare   EventType = "stop-screen-share"
	EventMuteParticipant   EventType = "mute-participant"
	EventRemoveParticipant EventType = "remove-participant"
)

// Outbound events emitted by the server. Signaling events reuse the inbound names.
const (
	EventConnected           EventType = "connected"
	EventMeetingJoined       EventType = "meeting-joined"
	EventParticipantsUpdated EventType = "participants-updated"
	EventUserJoined          EventType = "user-joined"
	EventUserLeft            EventType = "user-left"
	EventNewMessage          EventType = "new-message"
	EventChatHistory         EventType = "chat-history"
	EventUserMuted           EventType = "user-muted"
	EventUserVideoToggled    EventType = "user-video-toggled"
	EventHandRaised          EventType = "hand-raised"
	EventHandLowered         EventType = "hand-lowered"
	EventScreenShareStarted  EventType = "screen-share-started"
	EventScreenShareStopped  EventType = "screen-share-stopped"
	EventParticipantMuted    EventType = "participant-muted"
	EventParticipantRemoved  EventType = "participant-removed"
	EventError               EventType = "error"
)

// IsSignal reports whether the event is a WebRTC negotiation message.
func (t EventType) IsSignal() bool {
	return t == EventOffer || t == EventAnswer || t == EventICECandidate
}

// InboundEvent is the envelope of every client frame. Data is decoded according to Type.
type InboundEvent struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is the envelope of every server frame.
type OutboundEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

type JoinRoomPayload struct {
	RoomID      string `json:"roomId" validate:"required_without=MeetingCode"`
	MeetingCode string `json:"meetingCode" validate:"required_without=RoomID,omitempty,max=20"`
}

type SendMessagePayload struct {
	Content string `json:"content" validate:"required"`
}

// SignalPayload carries an offer, answer or ICE candidate. Payload is relayed verbatim.
type SignalPayload struct {
	Payload            json.RawMessage `json:"payload" validate:"required"`
	TargetUserID       string          `json:"targetUserId" validate:"required"`
	TargetConnectionID string          `json:"targetConnectionId,omitempty"`
}

type TogglePayload struct {
	State *bool `json:"state,omitempty"`
}

type TargetPayload struct {
	TargetUserID string `json:"targetUserId" validate:"required"`
}

type ConnectedData struct {
	ConnectionID string   `json:"connectionId"`
	User         Identity `json:"user"`
}

type MeetingJoinedData struct {
	ConnectionID string             `json:"connectionId"`
	Meeting      MeetingSummary     `json:"meeting"`
	Participants []Participant      `json:"participants"`
	IceServers   []webrtc.ICEServer `json:"iceServers"`
}

type UserPresenceData struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	ConnectionID string `json:"connectionId"`
}

// SignalForward is what the addressed peer receives. From fields come from the
// sender's authenticated connection, never from the inbound frame.
type SignalForward struct {
	Payload          json.RawMessage `json:"payload"`
	From             string          `json:"from"`
	FromName         string          `json:"fromName"`
	FromConnectionID string          `json:"fromConnectionId"`
	To               string          `json:"to"`
}

type ToggleData struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	State  *bool  `json:"state,omitempty"`
}

type ParticipantMutedData struct {
	TargetUserID string `json:"targetUserId"`
	TargetName   string `json:"targetName"`
	MutedBy      string `json:"mutedBy"`
	MutedByID    string `json:"mutedById"`
}

type ParticipantRemovedData struct {
	TargetUserID string `json:"targetUserId"`
	TargetName   string `json:"targetName"`
	RemovedBy    string `json:"removedBy"`
	RemovedByID  string `json:"removedById"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StreamEvent is published to the event stream consumed by the rest of the platform.
type StreamEvent struct {
	MeetingID string    `json:"meeting_id"`
	Type      EventType `json:"type"`
	Data      any       `json:"data,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}
