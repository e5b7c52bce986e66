package presence

import (
	"context"
	"errors"
)

// ErrRegistryUnavailable is returned when the backing store cannot be reached.
var ErrRegistryUnavailable = errors.New("presence registry unavailable")

// Registry tracks which live connection ids belong to which user. It is the
// only state shared across gateway processes; all mutation is per-user set
// add/remove, so operations are idempotent and need no cross-key coordination.
type Registry interface {
	// Add records a connection for a user. Adding the same pair twice is a no-op.
	Add(ctx context.Context, userID int64, connID string) error

	// Remove drops a connection for a user. Removing a non-member is a no-op.
	Remove(ctx context.Context, userID int64, connID string) error

	// Members returns the live connection ids of a user. An unknown user
	// yields an empty set, not an error.
	Members(ctx context.Context, userID int64) ([]string, error)

	// IsOnline reports whether the user has at least one live connection.
	IsOnline(ctx context.Context, userID int64) (bool, error)
}
