package relay

import (
	"context"

	"github.com/clipcast/clipcast/internal/notify"
)

// Envelope carries one broadcast request across the fleet. Origin is the
// publishing process's id; subscribers drop their own envelopes since the
// local half of the broadcast was already delivered.
type Envelope struct {
	ID      string        `json:"id"`
	Origin  string        `json:"origin"`
	Event   *notify.Event `json:"event"`
	Exclude []string      `json:"exclude,omitempty"`
}

// Relay propagates broadcast requests between gateway processes that share
// no memory.
type Relay interface {
	// Publish sends an envelope to every peer process.
	Publish(ctx context.Context, env *Envelope) error

	// Subscribe returns a channel of envelopes published by peer processes.
	// Envelopes originated by this process are filtered out.
	Subscribe(ctx context.Context) (<-chan *Envelope, error)

	// Close tears down the relay connection.
	Close() error
}
