// Package room implements one active two-party chat room: its message
// stream, the single-valued typing indicator, and the close/leave protocol
// that propagates termination to both participants and reclaims storage.
package room

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pairchat/backend/internal/models"
	"pairchat/backend/internal/realtime"
)

var (
	// ErrEmptyMessage is returned when a message is empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrNotParticipant is returned when the user is not part of the room.
	ErrNotParticipant = errors.New("user is not a room participant")
)

const (
	// roomsPath is the root of all room data in the real-time store.
	roomsPath = "chatRooms"
	// StatusClosed is the terminal value of a room's status field.
	StatusClosed = "closed"
	// pairSeparator joins the sorted participant IDs into a room ID.
	pairSeparator = "--"
)

// ID derives the deterministic room identifier for a matched pair. Both
// sides of a mutual match compute the same ID without coordination.
func ID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + pairSeparator + b
}

// Participants returns the two participant IDs encoded in a room ID.
func Participants(roomID string) (string, string) {
	a, b, _ := strings.Cut(roomID, pairSeparator)
	return a, b
}

// Session is one participant's handle on an active room.
type Session struct {
	store  realtime.Store
	roomID string
	selfID string
	peerID string
	now    func() time.Time

	// mu guards the single-shot leave flag.
	mu   sync.Mutex
	left bool
}

// NewSession opens a session on roomID for selfID. The user must be one of
// the two participants encoded in the room ID.
func NewSession(store realtime.Store, roomID, selfID string) (*Session, error) {
	a, b := Participants(roomID)
	if selfID == "" || (selfID != a && selfID != b) {
		return nil, ErrNotParticipant
	}

	peerID := a
	if selfID == a {
		peerID = b
	}

	return &Session{
		store:  store,
		roomID: roomID,
		selfID: selfID,
		peerID: peerID,
		now:    time.Now,
	}, nil
}

// RoomID returns the room identifier.
func (s *Session) RoomID() string { return s.roomID }

// PeerID returns the other participant's identifier.
func (s *Session) PeerID() string { return s.peerID }

func (s *Session) path(parts ...string) string {
	return realtime.JoinPath(append([]string{roomsPath, s.roomID}, parts...)...)
}

// SendMessage appends a message to the room's stream. The text must be
// non-empty after trimming. A successful send also clears the sender's
// typing indicator: a composition in flight is finished once sent. Delivery
// is at-most-once per call; a failed send is not retried here.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	msg := models.Message{
		SenderID:  s.selfID,
		Text:      text,
		CreatedAt: s.now(),
	}
	if _, err := s.store.Push(ctx, s.path("messages"), msg); err != nil {
		return err
	}

	// The message is already delivered; a failed typing clear only leaves a
	// stale indicator, which the next typing write overwrites.
	if err := s.SetTyping(ctx, false); err != nil {
		log.Warn().Err(err).Str("room_id", s.roomID).Msg("failed to clear typing after send")
	}
	return nil
}

// SetTyping sets or clears the room's single-valued typing field. Last write
// wins; the field models at most one visible typist, which is adequate for a
// two-party room.
func (s *Session) SetTyping(ctx context.Context, composing bool) error {
	if composing {
		return s.store.Write(ctx, s.path("typing"), s.selfID)
	}
	return s.store.Delete(ctx, s.path("typing"))
}

// ObserveMessages delivers the full ordered message sequence on every change.
// Resubscribing yields the complete current history again, never a gap.
func (s *Session) ObserveMessages(onUpdate func([]models.Message)) (realtime.Subscription, error) {
	return s.store.Subscribe(s.path("messages"), func(snap realtime.Snapshot) {
		messages := make([]models.Message, 0, len(snap.Children))
		for _, child := range snap.Children {
			var msg models.Message
			if err := child.Decode(&msg); err != nil {
				log.Warn().Err(err).Str("room_id", s.roomID).Str("msg_id", child.Key).Msg("skipping undecodable message")
				continue
			}
			msg.ID = child.Key
			messages = append(messages, msg)
		}
		onUpdate(messages)
	})
}

// ObserveTyping reports whether the peer is composing. Self-originated
// typing signals are suppressed.
func (s *Session) ObserveTyping(onUpdate func(peerTyping bool)) (realtime.Subscription, error) {
	return s.store.Subscribe(s.path("typing"), func(snap realtime.Snapshot) {
		var typist string
		if snap.Exists {
			if err := snap.Decode(&typist); err != nil {
				return
			}
		}
		onUpdate(typist != "" && typist != s.selfID)
	})
}

// ObserveStatus fires onClosed once when the room transitions to closed,
// notifying the remaining participant that the peer has left.
func (s *Session) ObserveStatus(onClosed func()) (realtime.Subscription, error) {
	var fired bool
	var mu sync.Mutex

	return s.store.Subscribe(s.path("status"), func(snap realtime.Snapshot) {
		if !snap.Exists {
			return
		}
		var status string
		if err := snap.Decode(&status); err != nil || status != StatusClosed {
			return
		}

		mu.Lock()
		already := fired
		fired = true
		mu.Unlock()
		if !already {
			onClosed()
		}
	})
}

// Leave closes the room and reclaims its storage: first the status field is
// set to closed, notifying the peer through ObserveStatus, then the room's
// subtree is deleted. The two steps are sequential best-effort operations,
// not a transaction; if the delete fails the room stays closed but inert,
// and the maintenance sweep reclaims it later.
//
// A single-shot guard swallows duplicate invocations (e.g. a double tap).
// On failure the guard resets so the user may retry.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return nil
	}
	s.left = true
	s.mu.Unlock()

	if err := s.store.Write(ctx, s.path("status"), StatusClosed); err != nil {
		s.resetLeaveGuard()
		return err
	}
	if err := s.store.Delete(ctx, s.path()); err != nil {
		s.resetLeaveGuard()
		return err
	}

	log.Info().Str("room_id", s.roomID).Str("user_id", s.selfID).Msg("room left and reclaimed")
	return nil
}

func (s *Session) resetLeaveGuard() {
	s.mu.Lock()
	s.left = false
	s.mu.Unlock()
}
