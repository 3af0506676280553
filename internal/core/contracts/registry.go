package contracts

import (
	"context"
	"errors"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSendDropped  = errors.New("send buffer full, event dropped")
	ErrLoopStopped  = errors.New("event loop stopped")
)

// Registry maps a user id to its single live connection. Implementations
// are not safe for concurrent use: they are owned by the EventLoop and
// must only be touched from inside it.
type Registry interface {
	// Register binds userID to c, superseding any earlier client for userID.
	// If c was bound to a different user, that user is unbound and returned.
	Register(userID string, c Client) (displaced string, ok bool)
	// Lookup returns the client currently bound to userID.
	Lookup(userID string) (Client, bool)
	// RemoveByClient unbinds c and reports the user it was bound to.
	RemoveByClient(c Client) (string, bool)
	// RemoveByUser unbinds userID and returns its client.
	RemoveByUser(userID string) (Client, bool)
	// OnlineIDs returns the sorted set of registered user ids.
	OnlineIDs() []string
	// Clients returns every bound client.
	Clients() []Client
}

// EventLoop serializes every registry and cache mutation onto one goroutine.
type EventLoop interface {
	// Call runs fn inside the loop and waits for it to return.
	Call(ctx context.Context, fn func()) error
	// Post enqueues fn without waiting. It reports false once the loop stopped.
	Post(fn func()) bool
}

// Client represents the minimal interface required for the Registry to
// communicate with an individual WebSocket connection.
type Client interface {
	// ID identifies the connection, not the user.
	ID() string
	// Send enqueues data without blocking on the network.
	Send(ctx context.Context, data []byte) error
	Close()
}
