// Package storage defines the persistence interfaces this library expects
// a caller to provide: sealed key material, session snapshots, and cached
// peer bundles. Each value crossing these interfaces is an opaque,
// already-serialised blob (see keyvault.Vault.Marshal and
// ratchet.Message.Marshal) — this package never interprets bytes, only
// stores and retrieves them.
package storage

import "context"

// PrivateKeyStore persists the single sealed key-vault blob for the local
// identity.
type PrivateKeyStore interface {
	SaveKeys(ctx context.Context, sealedVault []byte) error
	LoadKeys(ctx context.Context) ([]byte, bool, error)
}

// SessionStore persists one opaque session snapshot per peer. Snapshot
// encoding is the caller's responsibility; this package only keys it by
// peer ID.
type SessionStore interface {
	SaveSession(ctx context.Context, peerID string, snapshot []byte) error
	LoadSession(ctx context.Context, peerID string) ([]byte, bool, error)
	DeleteSession(ctx context.Context, peerID string) error
	ListSessionPeers(ctx context.Context) ([]string, error)
}

// ContactStore caches peers' published registration bundles, so a client
// can initiate a handshake without a fresh network round trip.
type ContactStore interface {
	SaveBundle(ctx context.Context, peerID string, bundle []byte) error
	LoadBundle(ctx context.Context, peerID string) ([]byte, bool, error)
	DeleteBundle(ctx context.Context, peerID string) error
}

// Store is the union of all three, satisfied by the in-memory reference
// implementation in this package.
type Store interface {
	PrivateKeyStore
	SessionStore
	ContactStore
}
