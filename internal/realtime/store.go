// Package realtime provides the shared keyed store the matchmaking queue and
// chat rooms live in. Values sit at hierarchical slash-separated paths, writes
// overwrite, pushes append under insertion-ordered child keys, and observers
// receive a fresh snapshot of their path on every mutation beneath it.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnavailable wraps any backend failure so callers can treat all remote
// read/write errors as one retryable condition.
var ErrUnavailable = errors.New("realtime store unavailable")

// Store is the contract every backend must satisfy.
type Store interface {
	// Write overwrites the value at path.
	Write(ctx context.Context, path string, value any) error

	// Push appends value under an auto-generated child key of path and
	// returns the key. Keys sort lexicographically in insertion order.
	Push(ctx context.Context, path string, value any) (string, error)

	// Delete removes the subtree at path. Deleting an absent path is a no-op.
	Delete(ctx context.Context, path string) error

	// ReadOnce returns the current snapshot of path.
	ReadOnce(ctx context.Context, path string) (Snapshot, error)

	// Subscribe registers fn to receive the current snapshot of path
	// immediately and again after every mutation at, beneath, or above path.
	// Callbacks for one subscription are delivered sequentially.
	Subscribe(path string, fn func(Snapshot)) (Subscription, error)
}

// Subscription is the handle returned by Store.Subscribe.
type Subscription interface {
	// Cancel stops delivery. Once Cancel returns, no further callback fires.
	// Cancel must not be called from inside the subscription's own callback.
	Cancel()
}

// Snapshot is a point-in-time view of one path.
type Snapshot struct {
	// Exists reports whether anything is stored at or beneath the path.
	Exists bool
	// Value is the JSON value when the path holds a leaf, nil otherwise.
	Value json.RawMessage
	// Children holds the direct leaf children in key order. Push keys are
	// insertion-ordered, so for pushed sequences this is insertion order.
	Children []Child
}

// Child is one direct leaf child of a snapshot's path.
type Child struct {
	Key   string
	Value json.RawMessage
}

// Decode unmarshals the snapshot's leaf value into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists || s.Value == nil {
		return errors.New("snapshot holds no leaf value")
	}
	return json.Unmarshal(s.Value, v)
}

// Decode unmarshals the child's value into v.
func (c Child) Decode(v any) error {
	return json.Unmarshal(c.Value, v)
}

// JoinPath assembles a slash-separated path from its segments.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// related reports whether a mutation at mutated is visible from a
// subscription rooted at root: either path is an ancestor of the other.
func related(root, mutated string) bool {
	if root == mutated {
		return true
	}
	return strings.HasPrefix(mutated, root+"/") || strings.HasPrefix(root, mutated+"/")
}
