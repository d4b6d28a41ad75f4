// Package session persists conversation transcripts per session id.
// The memory store backs single-process runs and tests; the redis
// store survives restarts and can be shared by several frontends.
package session

import (
	"context"
	"errors"

	"github.com/barunaniket/concierge/planner"
)

// ErrStoreClosed is returned for operations on a closed store.
var ErrStoreClosed = errors.New("session store is closed")

// Store keeps ordered conversation transcripts keyed by session id.
type Store interface {
	// Append adds one turn to the end of the session's transcript.
	Append(ctx context.Context, sessionID string, turn planner.Turn) error

	// History returns the session's transcript in turn order. An unknown
	// session yields an empty transcript, not an error.
	History(ctx context.Context, sessionID string) ([]planner.Turn, error)

	// Clear drops a session's transcript.
	Clear(ctx context.Context, sessionID string) error

	// Close releases the store's resources.
	Close() error
}
