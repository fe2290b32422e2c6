package room_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/backend/internal/models"
	"pairchat/backend/internal/realtime"
	"pairchat/backend/internal/room"
)

// flakyStore injects write or delete failures into a real in-memory store.
type flakyStore struct {
	realtime.Store
	failWrites  bool
	failDeletes bool
}

func (f *flakyStore) Write(ctx context.Context, path string, value any) error {
	if f.failWrites {
		return realtime.ErrUnavailable
	}
	return f.Store.Write(ctx, path, value)
}

func (f *flakyStore) Delete(ctx context.Context, path string) error {
	if f.failDeletes {
		return realtime.ErrUnavailable
	}
	return f.Store.Delete(ctx, path)
}

func TestRoomIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, room.ID("user_B", "user_A"), room.ID("user_A", "user_B"))
	assert.Equal(t, "user_A--user_B", room.ID("user_B", "user_A"))
}

func TestParticipantsRoundTrip(t *testing.T) {
	a, b := room.Participants(room.ID("user_B", "user_A"))
	assert.Equal(t, "user_A", a)
	assert.Equal(t, "user_B", b)
}

func TestNewSessionRejectsOutsider(t *testing.T) {
	store := realtime.NewMemoryStore()

	_, err := room.NewSession(store, room.ID("user_A", "user_B"), "user_C")
	assert.ErrorIs(t, err, room.ErrNotParticipant)

	_, err = room.NewSession(store, room.ID("user_A", "user_B"), "")
	assert.ErrorIs(t, err, room.ErrNotParticipant)
}

func TestSessionKnowsItsPeer(t *testing.T) {
	store := realtime.NewMemoryStore()
	roomID := room.ID("user_A", "user_B")

	sess, err := room.NewSession(store, roomID, "user_B")
	require.NoError(t, err)
	assert.Equal(t, roomID, sess.RoomID())
	assert.Equal(t, "user_A", sess.PeerID())
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	store := realtime.NewMemoryStore()
	sess, err := room.NewSession(store, room.ID("user_A", "user_B"), "user_A")
	require.NoError(t, err)

	assert.ErrorIs(t, sess.SendMessage(context.Background(), "   "), room.ErrEmptyMessage)
	assert.ErrorIs(t, sess.SendMessage(context.Background(), ""), room.ErrEmptyMessage)
}

func TestMessagesArriveInSendOrder(t *testing.T) {
	store := realtime.NewMemoryStore()
	roomID := room.ID("user_A", "user_B")
	ctx := context.Background()

	alice, err := room.NewSession(store, roomID, "user_A")
	require.NoError(t, err)
	bob, err := room.NewSession(store, roomID, "user_B")
	require.NoError(t, err)

	var mu sync.Mutex
	var latest []models.Message

	sub, err := bob.ObserveMessages(func(messages []models.Message) {
		mu.Lock()
		latest = messages
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, alice.SendMessage(ctx, "hi"))
	require.NoError(t, bob.SendMessage(ctx, "hey"))
	require.NoError(t, alice.SendMessage(ctx, "how are you?"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "hi", latest[0].Text)
	assert.Equal(t, "user_A", latest[0].SenderID)
	assert.Equal(t, "hey", latest[1].Text)
	assert.Equal(t, "user_B", latest[1].SenderID)
	assert.Equal(t, "how are you?", latest[2].Text)
	for _, msg := range latest {
		assert.NotEmpty(t, msg.ID)
	}
}

func TestTypingVisibleToPeerOnly(t *testing.T) {
	store := realtime.NewMemoryStore()
	roomID := room.ID("user_A", "user_B")
	ctx := context.Background()

	alice, err := room.NewSession(store, roomID, "user_A")
	require.NoError(t, err)
	bob, err := room.NewSession(store, roomID, "user_B")
	require.NoError(t, err)

	var mu sync.Mutex
	var bobSees, aliceSees bool

	bobSub, err := bob.ObserveTyping(func(peerTyping bool) {
		mu.Lock()
		bobSees = peerTyping
		mu.Unlock()
	})
	require.NoError(t, err)
	defer bobSub.Cancel()

	aliceSub, err := alice.ObserveTyping(func(peerTyping bool) {
		mu.Lock()
		aliceSees = peerTyping
		mu.Unlock()
	})
	require.NoError(t, err)
	defer aliceSub.Cancel()

	require.NoError(t, alice.SetTyping(ctx, true))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return bobSees
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.False(t, aliceSees, "own typing must be suppressed")
	mu.Unlock()
}

func TestSendClearsTypingIndicator(t *testing.T) {
	store := realtime.NewMemoryStore()
	roomID := room.ID("user_A", "user_B")
	ctx := context.Background()

	alice, err := room.NewSession(store, roomID, "user_A")
	require.NoError(t, err)

	require.NoError(t, alice.SetTyping(ctx, true))
	require.NoError(t, alice.SendMessage(ctx, "done typing"))

	snap, err := store.ReadOnce(ctx, "chatRooms/"+roomID+"/typing")
	require.NoError(t, err)
	assert.False(t, snap.Exists, "a sent message finishes the composition")
}

func TestLeaveNotifiesPeerThenReclaims(t *testing.T) {
	store := realtime.NewMemoryStore()
	roomID := room.ID("user_A", "user_B")
	ctx := context.Background()

	alice, err := room.NewSession(store, roomID, "user_A")
	require.NoError(t, err)
	bob, err := room.NewSession(store, roomID, "user_B")
	require.NoError(t, err)

	require.NoError(t, alice.SendMessage(ctx, "hello"))

	var mu sync.Mutex
	closedCount := 0

	sub, err := bob.ObserveStatus(func() {
		mu.Lock()
		closedCount++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, alice.Leave(ctx))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return closedCount == 1
	}, time.Second, 10*time.Millisecond, "the peer must see the close even though the room is deleted right after")

	snap, err := store.ReadOnce(ctx, "chatRooms/"+roomID)
	require.NoError(t, err)
	assert.False(t, snap.Exists, "the room subtree must be reclaimed")

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, closedCount, "onClosed fires once, not per change")
}

func TestLeaveTwiceIsNoop(t *testing.T) {
	store := realtime.NewMemoryStore()
	roomID := room.ID("user_A", "user_B")
	ctx := context.Background()

	alice, err := room.NewSession(store, roomID, "user_A")
	require.NoError(t, err)

	require.NoError(t, alice.Leave(ctx))
	require.NoError(t, alice.Leave(ctx))
}

func TestLeaveGuardResetsOnFailure(t *testing.T) {
	flaky := &flakyStore{Store: realtime.NewMemoryStore(), failWrites: true}
	roomID := room.ID("user_A", "user_B")
	ctx := context.Background()

	alice, err := room.NewSession(flaky, roomID, "user_A")
	require.NoError(t, err)

	require.NoError(t, flaky.Store.Write(ctx, "chatRooms/"+roomID+"/typing", "user_B"))

	err = alice.Leave(ctx)
	assert.ErrorIs(t, err, realtime.ErrUnavailable)

	// The failed attempt must not latch the guard: a retry does real work.
	flaky.failWrites = false
	require.NoError(t, alice.Leave(ctx))

	snap, err := flaky.ReadOnce(ctx, "chatRooms/"+roomID)
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func TestLeaveWithFailedDeleteLeavesClosedRoom(t *testing.T) {
	flaky := &flakyStore{Store: realtime.NewMemoryStore(), failDeletes: true}
	roomID := room.ID("user_A", "user_B")
	ctx := context.Background()

	alice, err := room.NewSession(flaky, roomID, "user_A")
	require.NoError(t, err)

	err = alice.Leave(ctx)
	assert.ErrorIs(t, err, realtime.ErrUnavailable)

	snap, err := flaky.ReadOnce(ctx, "chatRooms/"+roomID+"/status")
	require.NoError(t, err)
	require.True(t, snap.Exists, "the close must land before the failed delete")

	var status string
	require.NoError(t, snap.Decode(&status))
	assert.Equal(t, room.StatusClosed, status)
}

func TestReclaimRemovesClosedRoom(t *testing.T) {
	store := realtime.NewMemoryStore()
	roomID := room.ID("user_A", "user_B")
	ctx := context.Background()

	// A half-completed leave: closed but never deleted.
	require.NoError(t, store.Write(ctx, "chatRooms/"+roomID+"/status", room.StatusClosed))
	require.NoError(t, store.Write(ctx, "chatRooms/"+roomID+"/typing", "user_A"))

	done, err := room.Reclaim(ctx, store, roomID)
	require.NoError(t, err)
	assert.True(t, done)

	snap, err := store.ReadOnce(ctx, "chatRooms/"+roomID)
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func TestReclaimSparesOpenRoom(t *testing.T) {
	store := realtime.NewMemoryStore()
	roomID := room.ID("user_A", "user_B")
	ctx := context.Background()

	alice, err := room.NewSession(store, roomID, "user_A")
	require.NoError(t, err)
	require.NoError(t, alice.SendMessage(ctx, "still here"))

	done, err := room.Reclaim(ctx, store, roomID)
	require.NoError(t, err)
	assert.False(t, done)

	snap, err := store.ReadOnce(ctx, "chatRooms/"+roomID+"/messages")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
}

func TestReclaimOfAbsentRoomIsDone(t *testing.T) {
	store := realtime.NewMemoryStore()

	done, err := room.Reclaim(context.Background(), store, room.ID("user_A", "user_B"))
	require.NoError(t, err)
	assert.True(t, done)
}
