package models

import (
	"time"

	"github.com/lib/pq" // needed for pq.StringArray
)

// RoomRecord is the Postgres archive row for one matched room. The live room
// state stays in the real-time store; this record is the durable trail for
// moderation and analytics.
type RoomRecord struct {
	// RoomID is the deterministic room identifier derived from the pair.
	RoomID string `gorm:"primaryKey"`
	// Participants holds both anonymous IDs of the matched pair.
	Participants pq.StringArray `gorm:"type:text[]"`
	// IsActive indicates whether the room is still open.
	IsActive bool
	// StartedAt is the timestamp the match was made.
	StartedAt time.Time
	// EndedAt is the timestamp either side left.
	EndedAt time.Time
}
