package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"pairchat/backend/internal/models"
)

// SweepStale removes pool entries older than the cutoff. Such entries belong
// to clients that vanished without leaving; removing them keeps dead users
// from being matched. Returns the number of entries removed.
func (m *Manager) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	snap, err := m.store.ReadOnce(ctx, poolPath)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-olderThan)
	removed := 0
	for _, child := range snap.Children {
		var entry models.QueueEntry
		if err := child.Decode(&entry); err != nil {
			log.Warn().Err(err).Str("user_id", child.Key).Msg("removing undecodable queue entry")
		} else if !entry.CreatedAt.Before(cutoff) {
			continue
		}
		if err := m.store.Delete(ctx, entryPath(child.Key)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
