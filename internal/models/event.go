package models

// Event is the JSON frame exchanged with a connected client over WebSocket.
// Client-originated types: "search", "cancel_search", "message", "typing",
// "leave". Server-originated types: "searching", "match_found",
// "search_timeout", "message", "peer_typing", "peer_left", "error".
type Event struct {
	Type        string    `json:"type"`
	RoomID      string    `json:"room_id,omitempty"`
	PeerID      string    `json:"peer_id,omitempty"`
	Text        string    `json:"text,omitempty"`
	IsComposing bool      `json:"is_composing,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
	PeerTyping  bool      `json:"peer_typing,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Client-originated event types.
const (
	EventSearch       = "search"
	EventCancelSearch = "cancel_search"
	EventMessage      = "message"
	EventTyping       = "typing"
	EventLeave        = "leave"
)

// Server-originated event types.
const (
	EventSearching     = "searching"
	EventMatchFound    = "match_found"
	EventSearchTimeout = "search_timeout"
	EventPeerTyping    = "peer_typing"
	EventPeerLeft      = "peer_left"
	EventError         = "error"
)
