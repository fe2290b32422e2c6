package realtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/backend/internal/realtime"
)

func TestMemoryStoreWriteAndReadLeaf(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "queue/user_A", map[string]string{"userId": "user_A"}))

	snap, err := store.ReadOnce(ctx, "queue/user_A")
	require.NoError(t, err)
	assert.True(t, snap.Exists)

	var entry map[string]string
	require.NoError(t, snap.Decode(&entry))
	assert.Equal(t, "user_A", entry["userId"])
}

func TestMemoryStoreReadAbsent(t *testing.T) {
	store := realtime.NewMemoryStore()

	snap, err := store.ReadOnce(context.Background(), "queue/nobody")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func TestMemoryStorePushOrdering(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	k1, err := store.Push(ctx, "chatRooms/r1/messages", "first")
	require.NoError(t, err)
	k2, err := store.Push(ctx, "chatRooms/r1/messages", "second")
	require.NoError(t, err)
	assert.Less(t, k1, k2, "push keys should sort in insertion order")

	snap, err := store.ReadOnce(ctx, "chatRooms/r1/messages")
	require.NoError(t, err)
	require.Len(t, snap.Children, 2)
	assert.Equal(t, k1, snap.Children[0].Key)
	assert.Equal(t, k2, snap.Children[1].Key)
}

func TestMemoryStoreChildrenSortedByKey(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "queue/user_C", "c"))
	require.NoError(t, store.Write(ctx, "queue/user_A", "a"))
	require.NoError(t, store.Write(ctx, "queue/user_B", "b"))

	snap, err := store.ReadOnce(ctx, "queue")
	require.NoError(t, err)
	require.Len(t, snap.Children, 3)
	assert.Equal(t, "user_A", snap.Children[0].Key)
	assert.Equal(t, "user_B", snap.Children[1].Key)
	assert.Equal(t, "user_C", snap.Children[2].Key)
}

func TestMemoryStoreDeleteSubtree(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "chatRooms/r1/status", "closed"))
	_, err := store.Push(ctx, "chatRooms/r1/messages", "hello")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "chatRooms/r1"))

	snap, err := store.ReadOnce(ctx, "chatRooms/r1")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func TestMemoryStoreDeleteAbsentIsNoop(t *testing.T) {
	store := realtime.NewMemoryStore()
	assert.NoError(t, store.Delete(context.Background(), "queue/nobody"))
}

func TestMemoryStoreSubscribeDeliversInitialAndUpdates(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	var snaps []realtime.Snapshot

	sub, err := store.Subscribe("queue", func(snap realtime.Snapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	// Initial delivery of the (empty) current state.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snaps) == 1 && !snaps[0].Exists
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, store.Write(ctx, "queue/user_A", "a"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		last := snaps[len(snaps)-1]
		return last.Exists && len(last.Children) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStoreSubscribeSeesTransientState(t *testing.T) {
	// A status write immediately followed by the subtree's deletion must
	// still deliver the written value: the remaining participant learns the
	// room closed even though the data is already gone.
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	var sawClosed bool

	sub, err := store.Subscribe("chatRooms/r1/status", func(snap realtime.Snapshot) {
		var status string
		if snap.Exists && snap.Decode(&status) == nil && status == "closed" {
			mu.Lock()
			sawClosed = true
			mu.Unlock()
		}
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, store.Write(ctx, "chatRooms/r1/status", "closed"))
	require.NoError(t, store.Delete(ctx, "chatRooms/r1"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sawClosed
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStoreCancelStopsDelivery(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	count := 0

	sub, err := store.Subscribe("queue", func(realtime.Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 10*time.Millisecond)

	sub.Cancel()
	require.NoError(t, store.Write(ctx, "queue/user_A", "a"))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "no delivery may happen after Cancel")
}
