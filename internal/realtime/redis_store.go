package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redisKeyPrefix = "rt:"
	redisSeqPrefix = "rtseq:"
	// changeChannel carries every mutation so that all instances sharing the
	// store observe each other's writes.
	changeChannel = "rt:changes"
)

// change is the Pub/Sub announcement of one mutation. Leaf writes carry the
// written value so exact-path observers see the state of that very change
// even when a later mutation (such as the room delete right after a status
// write) lands before the announcement is processed.
type change struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// RedisStore is a Redis-backed implementation of Store. Values live as JSON
// strings at prefixed keys and mutations are announced over Redis Pub/Sub,
// so multiple instances share one pool and one set of rooms.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context

	mu      sync.Mutex
	subs    map[uint64]*subscription
	nextSub uint64
}

// NewRedisStore creates a Redis-backed store and starts its change listener.
func NewRedisStore(client *redis.Client) *RedisStore {
	s := &RedisStore{
		client: client,
		ctx:    context.Background(),
		subs:   make(map[uint64]*subscription),
	}
	go s.listen()
	return s
}

// Write overwrites the value at path.
func (s *RedisStore) Write(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+path, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.announce(ctx, change{Path: path, Value: data})
}

// Push appends value under an insertion-ordered child key of path. The key
// comes from a per-parent counter, so lexicographic order is insertion order.
func (s *RedisStore) Push(ctx context.Context, path string, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	n, err := s.client.Incr(ctx, redisSeqPrefix+path).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	key := pushKey(uint64(n))

	if err := s.client.Set(ctx, redisKeyPrefix+path+"/"+key, data, 0).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.announce(ctx, change{Path: path}); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the subtree at path, including push counters beneath it.
// Absent paths are a no-op.
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	keys := []string{redisKeyPrefix + path, redisSeqPrefix + path}

	for _, pattern := range []string{
		redisKeyPrefix + path + "/*",
		redisSeqPrefix + path + "/*",
	} {
		found, err := s.scanKeys(ctx, pattern)
		if err != nil {
			return err
		}
		keys = append(keys, found...)
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.announce(ctx, change{Path: path})
}

// ReadOnce returns the current snapshot of path.
func (s *RedisStore) ReadOnce(ctx context.Context, path string) (Snapshot, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+path).Bytes()
	if err == nil {
		return Snapshot{Exists: true, Value: val}, nil
	}
	if err != redis.Nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Not a leaf; collect the subtree.
	prefix := redisKeyPrefix + path + "/"
	keys, err := s.scanKeys(ctx, prefix+"*")
	if err != nil {
		return Snapshot{}, err
	}
	if len(keys) == 0 {
		return Snapshot{}, nil
	}
	sort.Strings(keys)

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	snap := Snapshot{Exists: true}
	for i, key := range keys {
		rest := key[len(prefix):]
		if strings.Contains(rest, "/") {
			continue // nested subtree, not a direct leaf child
		}
		raw, ok := values[i].(string)
		if !ok {
			continue // deleted between KEYS and MGET
		}
		snap.Children = append(snap.Children, Child{Key: rest, Value: json.RawMessage(raw)})
	}
	return snap, nil
}

// Subscribe registers fn against path. The current snapshot is delivered
// immediately, then again per related mutation from any instance.
func (s *RedisStore) Subscribe(path string, fn func(Snapshot)) (Subscription, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++

	sub := newSubscription(path, fn, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	})
	s.subs[id] = sub
	s.mu.Unlock()

	// Register before the initial read: a mutation landing in between is then
	// either in this snapshot or announced to the subscription, never lost.
	snap, err := s.ReadOnce(s.ctx, path)
	if err != nil {
		sub.Cancel()
		return nil, err
	}
	sub.enqueue(snap)

	return sub, nil
}

// scanKeys collects the keys matching pattern with cursor iteration, avoiding
// a blocking KEYS scan on a shared server.
func (s *RedisStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return keys, nil
}

func (s *RedisStore) announce(ctx context.Context, c change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, changeChannel, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// listen fans incoming change announcements out to local subscriptions.
func (s *RedisStore) listen() {
	pubsub := s.client.Subscribe(s.ctx, changeChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var c change
		if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
			log.Warn().Err(err).Msg("undecodable change announcement")
			continue
		}

		s.mu.Lock()
		targets := make([]*subscription, 0, len(s.subs))
		for _, sub := range s.subs {
			if related(sub.path, c.Path) {
				targets = append(targets, sub)
			}
		}
		s.mu.Unlock()

		for _, sub := range targets {
			if sub.path == c.Path && c.Value != nil {
				// Exact-path leaf write: deliver the announced value itself.
				sub.enqueue(Snapshot{Exists: true, Value: c.Value})
				continue
			}
			snap, err := s.ReadOnce(s.ctx, sub.path)
			if err != nil {
				log.Warn().Err(err).Str("path", sub.path).Msg("change re-read failed, skipping delivery")
				continue
			}
			sub.enqueue(snap)
		}
	}

	log.Warn().Msg("realtime change listener stopped")
}
