package realtime

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// subscriptionBuffer bounds the per-subscription delivery queue. Snapshots
// are full state, so dropping under pressure only skips an intermediate view
// that the next mutation re-delivers.
const subscriptionBuffer = 16

// subscription is the dispatch machinery shared by both store backends.
// The producing side (a store mutation or the Redis change listener) captures
// a snapshot of the watched path per change and enqueues it; the
// subscription's own goroutine invokes the callback sequentially, so every
// observed state — including transient ones like a status write immediately
// followed by the room's deletion — reaches the callback in order.
type subscription struct {
	path     string
	fn       func(Snapshot)
	onCancel func()

	queue chan Snapshot
	done  chan struct{}

	// mu serializes delivery against Cancel so that once Cancel returns,
	// no callback is running or will run.
	mu        sync.Mutex
	cancelled bool
}

func newSubscription(path string, fn func(Snapshot), onCancel func()) *subscription {
	s := &subscription{
		path:     path,
		fn:       fn,
		onCancel: onCancel,
		queue:    make(chan Snapshot, subscriptionBuffer),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.queue:
			s.deliver(snap)
		}
	}
}

func (s *subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.fn(snap)
}

// enqueue hands a captured snapshot to the delivery goroutine. When the queue
// is full the snapshot is dropped; the next mutation re-delivers full state.
func (s *subscription) enqueue(snap Snapshot) {
	select {
	case s.queue <- snap:
	default:
		log.Warn().Str("path", s.path).Msg("subscription queue full, dropping snapshot")
	}
}

// Cancel implements Subscription. It blocks until any in-flight callback has
// returned, so after Cancel no callback fires and no side effect is taken on
// behalf of this observer.
func (s *subscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	close(s.done)
	s.mu.Unlock()

	if s.onCancel != nil {
		s.onCancel()
	}
}
