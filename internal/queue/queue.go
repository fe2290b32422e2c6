// Package queue implements the shared matchmaking pool. Every waiting user
// holds one entry under queue/{userId} in the real-time store; each waiting
// client observes the whole pool and claims the first other entry it sees.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pairchat/backend/internal/models"
	"pairchat/backend/internal/realtime"
)

// ErrNotAuthenticated is returned when no user identity is available.
var ErrNotAuthenticated = errors.New("no authenticated user identity")

// poolPath is the root of the waiting pool in the real-time store.
const poolPath = "queue"

// Manager maintains the waiting pool of users seeking a chat partner.
type Manager struct {
	store realtime.Store
	now   func() time.Time
}

// NewManager creates a queue manager over the given store.
func NewManager(store realtime.Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

func entryPath(userID string) string {
	return realtime.JoinPath(poolPath, userID)
}

// Join inserts the user into the waiting pool and returns their identity.
// Joining while already waiting is idempotent: the existing entry is kept and
// no duplicate is created.
func (m *Manager) Join(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrNotAuthenticated
	}

	snap, err := m.store.ReadOnce(ctx, entryPath(userID))
	if err != nil {
		return "", err
	}
	if snap.Exists {
		log.Debug().Str("user_id", userID).Msg("already in queue")
		return userID, nil
	}

	entry := models.QueueEntry{UserID: userID, CreatedAt: m.now()}
	if err := m.store.Write(ctx, entryPath(userID), entry); err != nil {
		return "", err
	}

	log.Debug().Str("user_id", userID).Msg("joined queue")
	return userID, nil
}

// Leave removes the caller's own entry from the pool. Leaving without an
// entry is a successful no-op.
func (m *Manager) Leave(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	return m.store.Delete(ctx, entryPath(userID))
}

// matchObserver carries the per-subscription single-shot guard. Scans run
// under mu, so the claim is checked and set without preemption.
type matchObserver struct {
	mu      sync.Mutex
	claimed bool
}

// ObserveMatches watches the pool and claims a partner for userID. On each
// pool change it scans the entries in key order and picks the first one that
// is not the caller's own; the claim then removes the caller's entry followed
// by the peer's and fires onMatch exactly once.
//
// Matching is a deliberate best-effort race: the two deletes are not one
// transaction, concurrent observers may both claim the same third entry, and
// the only authoritative "you are matched" signal is this observer's own
// onMatch. A losing observer's delete of an already-removed entry is a no-op.
//
// Cancelling the returned subscription stops all further scans and removals
// on behalf of this observer. The caller owns any wait timeout: give up by
// cancelling the subscription and calling Leave.
func (m *Manager) ObserveMatches(userID string, onMatch func(peerID string)) (realtime.Subscription, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	obs := &matchObserver{}
	return m.store.Subscribe(poolPath, func(snap realtime.Snapshot) {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		if obs.claimed {
			return
		}

		var peerID string
		for _, child := range snap.Children {
			if child.Key != userID {
				peerID = child.Key
				break
			}
		}
		if peerID == "" {
			return
		}

		obs.claimed = true
		ctx := context.Background()

		// Best-effort two-step removal: own entry first, then the peer's.
		if err := m.store.Delete(ctx, entryPath(userID)); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to remove own queue entry")
		}
		if err := m.store.Delete(ctx, entryPath(peerID)); err != nil {
			log.Warn().Err(err).Str("user_id", peerID).Msg("failed to remove matched queue entry")
		}

		log.Info().Str("user_id", userID).Str("peer_id", peerID).Msg("match found")
		onMatch(peerID)
	})
}
