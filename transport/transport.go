// Package transport defines the interface this library expects from a
// message carrier. It ships no implementation: wiring an actual network
// or relay client is out of scope (see spec.md's Non-goals).
package transport

import "context"

// Envelope is an opaque, already-serialised message addressed to a peer.
// Callers build it from ratchet.Message.Marshal (or keyvault.Vault.Marshal
// for backups) and hand it to a Transport without interpreting its bytes.
type Envelope struct {
	PeerID string
	Body   []byte
}

// Transport moves Envelopes to and from a remote party. Implementations
// own connection lifecycle, retries, and backoff; this package only
// specifies the contract callers rely on.
type Transport interface {
	// Send delivers an envelope to its peer, blocking until the transport
	// has accepted it (not necessarily until the peer has received it).
	Send(ctx context.Context, env Envelope) error
}

// InboundHandler is invoked by a Transport implementation whenever an
// envelope arrives from a peer.
type InboundHandler interface {
	HandleInbound(ctx context.Context, env Envelope) error
}

// InboundHandlerFunc adapts a function to InboundHandler.
type InboundHandlerFunc func(ctx context.Context, env Envelope) error

// HandleInbound calls f.
func (f InboundHandlerFunc) HandleInbound(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}
