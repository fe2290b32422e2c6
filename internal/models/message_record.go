package models

import "gorm.io/gorm"

// MessageRecord is the Postgres archive row for one chat message.
// The embedded gorm.Model provides ID, CreatedAt, UpdatedAt, and DeletedAt.
type MessageRecord struct {
	gorm.Model

	// RoomID is the room the message was sent in.
	RoomID string `gorm:"type:text;not null;index:idx_room_msg"`
	// SenderID is the anonymous ID of the sender.
	SenderID string `gorm:"type:text;not null;index:idx_room_msg"`
	// Text is the message body.
	Text string `gorm:"type:text;not null"`
}
