package models

import "time"

// Message is one chat message as stored in the real-time store under
// chatRooms/{roomId}/messages/{msgId}. Messages are immutable once created;
// there is no edit or delete.
type Message struct {
	// ID is the store-assigned child key, derived from insertion order.
	ID string `json:"id"`
	// SenderID is the anonymous ID of the participant who sent the message.
	SenderID string `json:"senderId"`
	// Text is the message body, non-empty after trimming.
	Text string `json:"text"`
	// CreatedAt is the client-side send time.
	CreatedAt time.Time `json:"createdAt"`
}
