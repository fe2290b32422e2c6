package chathub

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pairchat/backend/internal/archive"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/queue"
	"pairchat/backend/internal/realtime"
	"pairchat/backend/internal/room"
)

// Operator drives one client's session: it turns the client's events into
// queue and room operations and forwards the core's observations back out.
// It is the "caller" the core's contracts refer to — it owns the search
// timeout and ties every subscription to the connection's lifetime.
type Operator struct {
	Queue    *queue.Manager
	Store    realtime.Store
	Recorder archive.Recorder
	// Hub, when set, lets a replaced connection's teardown detect that it no
	// longer owns the user's session.
	Hub *Manager

	// MatchTimeout bounds how long a search may wait before it is abandoned.
	MatchTimeout time.Duration
}

// NewOperator creates an operator over the core services.
func NewOperator(q *queue.Manager, store realtime.Store, rec archive.Recorder, hub *Manager) *Operator {
	return &Operator{
		Queue:        q,
		Store:        store,
		Recorder:     rec,
		Hub:          hub,
		MatchTimeout: config.MatchTimeout,
	}
}

// Drive runs the per-connection loop until events closes. All session state
// lives in this one goroutine; subscription callbacks only post to channels,
// so no state is touched concurrently and no Cancel runs inside a callback.
//
// Every exit path releases everything the connection acquired: a pending
// search is cancelled and the queue entry removed, an open room is left and
// its subscriptions dropped. A stale observer must never outlive its
// connection — it could otherwise claim another user's pool entry.
func (o *Operator) Drive(client Client, events <-chan models.Event) {
	userID := client.GetUserID()
	ctx := context.Background()

	var (
		matchSub  realtime.Subscription
		timer     *time.Timer
		timeoutCh <-chan time.Time
		sess      *room.Session
		roomSubs  []realtime.Subscription
	)
	matchCh := make(chan string, 1)
	closedCh := make(chan struct{}, 1)

	send := func(ev models.Event) {
		select {
		case client.GetSendChannel() <- ev:
		default:
			log.Warn().Str("user_id", userID).Str("type", ev.Type).Msg("client send buffer full, dropping event")
		}
	}
	sendError := func(msg string) {
		send(models.Event{Type: models.EventError, Error: msg})
	}

	stopSearch := func(leavePool bool) {
		if timer != nil {
			timer.Stop()
			timer = nil
			timeoutCh = nil
		}
		if matchSub != nil {
			matchSub.Cancel()
			matchSub = nil
			// A claim that landed while the cancel was in flight leaves its
			// token behind; discard it so it cannot open a room for a search
			// that no longer exists.
			select {
			case <-matchCh:
			default:
			}
			if leavePool {
				if err := o.Queue.Leave(ctx, userID); err != nil {
					log.Warn().Err(err).Str("user_id", userID).Msg("failed to leave queue")
				}
			}
		}
	}

	dropRoom := func() {
		for _, sub := range roomSubs {
			sub.Cancel()
		}
		roomSubs = nil
		sess = nil
		// Discard a close notice posted before the subscriptions were cut.
		select {
		case <-closedCh:
		default:
		}
	}

	enterRoom := func(peerID string) {
		if sess != nil {
			return
		}
		// The claim removed the pool entries it saw; Leave sweeps up an own
		// entry written after the claim's delete. Both are no-op safe.
		stopSearch(true)

		roomID := room.ID(userID, peerID)
		a, b := room.Participants(roomID)
		if err := o.Recorder.RecordRoom(roomID, []string{a, b}, time.Now()); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("room not archived")
		}

		s, err := room.NewSession(o.Store, roomID, userID)
		if err != nil {
			sendError("failed to open room")
			return
		}

		msgSub, err := s.ObserveMessages(func(msgs []models.Message) {
			send(models.Event{Type: models.EventMessage, RoomID: roomID, Messages: msgs})
		})
		if err != nil {
			sendError("failed to open room")
			return
		}
		typingSub, err := s.ObserveTyping(func(peerTyping bool) {
			send(models.Event{Type: models.EventPeerTyping, RoomID: roomID, PeerTyping: peerTyping})
		})
		if err != nil {
			msgSub.Cancel()
			sendError("failed to open room")
			return
		}
		statusSub, err := s.ObserveStatus(func() {
			select {
			case closedCh <- struct{}{}:
			default:
			}
		})
		if err != nil {
			msgSub.Cancel()
			typingSub.Cancel()
			sendError("failed to open room")
			return
		}

		sess = s
		roomSubs = []realtime.Subscription{msgSub, typingSub, statusSub}
		send(models.Event{Type: models.EventMatchFound, RoomID: roomID, PeerID: peerID})
	}

	defer func() {
		// A connection the hub already replaced must not delete the pool
		// entry its successor may own now; everything else is still ours.
		stopSearch(o.Hub == nil || o.Hub.IsCurrent(client))
		if sess != nil {
			s := sess
			dropRoom()
			if err := s.Leave(ctx); err != nil {
				log.Warn().Err(err).Str("room_id", s.RoomID()).Msg("failed to leave room on disconnect")
			} else if err := o.Recorder.CloseRoom(s.RoomID()); err != nil {
				log.Warn().Err(err).Str("room_id", s.RoomID()).Msg("room close not archived")
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}

			switch ev.Type {
			case models.EventSearch:
				if matchSub != nil || sess != nil {
					sendError("already searching or in a room")
					continue
				}
				// Observe before joining: the pool change triggered by our own
				// entry write then reaches this observer too, so a mutual
				// match fires on both sides rather than only the claimer's.
				sub, err := o.Queue.ObserveMatches(userID, func(peerID string) {
					select {
					case matchCh <- peerID:
					default:
					}
				})
				if err != nil {
					sendError("failed to join the queue")
					continue
				}
				if _, err := o.Queue.Join(ctx, userID); err != nil {
					sub.Cancel()
					select {
					case <-matchCh:
					default:
					}
					sendError("failed to join the queue")
					continue
				}
				matchSub = sub
				timer = time.NewTimer(o.MatchTimeout)
				timeoutCh = timer.C
				send(models.Event{Type: models.EventSearching})

			case models.EventCancelSearch:
				stopSearch(true)

			case models.EventMessage:
				if sess == nil {
					sendError("not in a room")
					continue
				}
				if err := sess.SendMessage(ctx, ev.Text); err != nil {
					sendError(err.Error())
					continue
				}
				if err := o.Recorder.RecordMessage(sess.RoomID(), userID, strings.TrimSpace(ev.Text)); err != nil {
					log.Warn().Err(err).Str("room_id", sess.RoomID()).Msg("message not archived")
				}

			case models.EventTyping:
				if sess == nil {
					continue
				}
				if err := sess.SetTyping(ctx, ev.IsComposing); err != nil {
					log.Warn().Err(err).Str("room_id", sess.RoomID()).Msg("failed to set typing")
				}

			case models.EventLeave:
				if sess == nil {
					continue
				}
				roomID := sess.RoomID()
				if err := sess.Leave(ctx); err != nil {
					// The leave guard has reset; the client may retry.
					sendError("failed to leave the room")
					continue
				}
				if err := o.Recorder.CloseRoom(roomID); err != nil {
					log.Warn().Err(err).Str("room_id", roomID).Msg("room close not archived")
				}
				dropRoom()

			default:
				sendError("unknown event type")
			}

		case peerID := <-matchCh:
			enterRoom(peerID)

		case <-timeoutCh:
			// A claim may have landed just as the timer fired; prefer it.
			select {
			case peerID := <-matchCh:
				enterRoom(peerID)
				continue
			default:
			}
			stopSearch(true)
			send(models.Event{Type: models.EventSearchTimeout})

		case <-closedCh:
			// The peer left and deleted the room; nothing to clean remotely.
			dropRoom()
			send(models.Event{Type: models.EventPeerLeft})
		}
	}
}
