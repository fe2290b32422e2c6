package models

import "time"

// QueueEntry is one user's waiting-room record at queue/{userId}. At most one
// entry exists per user; joining again returns the existing identity.
type QueueEntry struct {
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
