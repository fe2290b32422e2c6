package config

import "time"

const (
	// Matching
	// MatchTimeout is how long a client waits in the queue before the
	// search is abandoned. The queue itself owns no timeout; the connection
	// operator enforces this and reports the failure to the client.
	MatchTimeout = 10 * time.Second

	// Maintenance
	// StaleQueueEntryAge is the default cutoff for the queue sweep: entries
	// older than this belong to clients that vanished without leaving.
	StaleQueueEntryAge = 10 * time.Minute
)
