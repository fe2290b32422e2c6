package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory implementation of Store. Suitable for
// single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]json.RawMessage // path -> leaf value
	seq     map[string]uint64          // parent path -> push counter
	subs    map[uint64]*subscription
	nextSub uint64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]json.RawMessage),
		seq:     make(map[string]uint64),
		subs:    make(map[uint64]*subscription),
	}
}

// Write overwrites the value at path.
func (m *MemoryStore) Write(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[path] = data
	m.mu.Unlock()

	m.notify(path)
	return nil
}

// Push appends value under an insertion-ordered child key of path.
func (m *MemoryStore) Push(ctx context.Context, path string, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.seq[path]++
	key := pushKey(m.seq[path])
	m.entries[path+"/"+key] = data
	m.mu.Unlock()

	m.notify(path)
	return key, nil
}

// Delete removes the subtree at path. Absent paths are a no-op.
func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	prefix := path + "/"

	m.mu.Lock()
	delete(m.entries, path)
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()

	m.notify(path)
	return nil
}

// ReadOnce returns the current snapshot of path.
func (m *MemoryStore) ReadOnce(ctx context.Context, path string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(path), nil
}

// Subscribe registers fn against path. The current snapshot is delivered
// immediately, then a fresh snapshot is captured and delivered per related
// mutation.
func (m *MemoryStore) Subscribe(path string, fn func(Snapshot)) (Subscription, error) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++

	sub := newSubscription(path, fn, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	})
	m.subs[id] = sub
	sub.enqueue(m.snapshot(path))
	m.mu.Unlock()

	return sub, nil
}

// snapshot assembles the view of path. Caller holds at least a read lock.
func (m *MemoryStore) snapshot(path string) Snapshot {
	if v, ok := m.entries[path]; ok {
		return Snapshot{Exists: true, Value: v}
	}

	prefix := path + "/"
	var children []Child
	exists := false
	for k, v := range m.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		exists = true
		rest := k[len(prefix):]
		if strings.Contains(rest, "/") {
			continue // nested subtree, not a direct leaf child
		}
		children = append(children, Child{Key: rest, Value: v})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Key < children[j].Key })
	return Snapshot{Exists: exists, Children: children}
}

// notify captures a post-mutation snapshot for every related subscription
// and enqueues it, preserving per-mutation delivery.
func (m *MemoryStore) notify(path string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.subs {
		if related(s.path, path) {
			s.enqueue(m.snapshot(s.path))
		}
	}
}

// pushKey formats a counter so lexicographic order matches insertion order.
func pushKey(n uint64) string {
	return fmt.Sprintf("%020d", n)
}
