package chathub

import "meetsync/backend/internal/models"

// Client is one live, authenticated meeting connection. It abstracts the transport so the
// registry and the handlers can treat WebSocket connections and test doubles uniformly.
type Client interface {
	// GetID returns the unique connection identifier.
	GetID() string
	// GetIdentity returns the identity resolved when the connection was authenticated.
	GetIdentity() models.Identity
	// GetUserID is shorthand for GetIdentity().UserID.
	GetUserID() string

	// Send queues an event for this connection without blocking. It returns false when the
	// connection is closed or its buffer is full.
	Send(evt models.OutboundEvent) bool

	// Run starts the client's read, dispatch and write loops.
	Run()
	// Close shuts the connection down. It is safe to call more than once.
	Close()
}
