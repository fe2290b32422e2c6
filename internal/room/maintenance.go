package room

import (
	"context"

	"pairchat/backend/internal/realtime"
)

// Reclaim removes a room's stored data if the room is finished: closed by a
// half-completed leave, or already gone. Returns true when the room no
// longer holds data afterwards; open rooms are left untouched.
func Reclaim(ctx context.Context, store realtime.Store, roomID string) (bool, error) {
	rootPath := realtime.JoinPath(roomsPath, roomID)

	snap, err := store.ReadOnce(ctx, realtime.JoinPath(rootPath, "status"))
	if err != nil {
		return false, err
	}
	if !snap.Exists {
		root, err := store.ReadOnce(ctx, rootPath)
		if err != nil {
			return false, err
		}
		if !root.Exists {
			return true, nil // fully cleaned up already
		}
		return false, nil // open room
	}

	var status string
	if err := snap.Decode(&status); err != nil || status != StatusClosed {
		return false, nil
	}

	if err := store.Delete(ctx, rootPath); err != nil {
		return false, err
	}
	return true, nil
}
