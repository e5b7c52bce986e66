package relay

import (
	"context"
)

// LocalRelay implements Relay for single-process deployments: publishes go
// nowhere and the subscription never yields. The gateway's local delivery
// path is unaffected.
type LocalRelay struct {
	ch chan *Envelope
}

var _ Relay = (*LocalRelay)(nil)

// NewLocalRelay creates a relay that performs no cross-process propagation
func NewLocalRelay() *LocalRelay {
	return &LocalRelay{ch: make(chan *Envelope)}
}

// Publish implements Relay.Publish
func (r *LocalRelay) Publish(_ context.Context, _ *Envelope) error {
	return nil
}

// Subscribe implements Relay.Subscribe
func (r *LocalRelay) Subscribe(_ context.Context) (<-chan *Envelope, error) {
	return r.ch, nil
}

// Close implements Relay.Close
func (r *LocalRelay) Close() error {
	close(r.ch)
	return nil
}
