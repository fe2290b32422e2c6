package chathub

import "pairchat/backend/internal/models"

// Client is the interface for one connected user. It abstracts the underlying
// transport so the hub and operator can manage client types uniformly.
type Client interface {
	// GetUserID returns the anonymous identifier for the connected user.
	GetUserID() string

	// GetSendChannel returns the channel over which server-originated events
	// are delivered to this client. It is a send-only channel.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()

	// Close shuts down the client's connection and associated channels.
	// Safe to call more than once.
	Close()
}
