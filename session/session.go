// Package session binds one completed handshake to one Double Ratchet
// state, presenting a single Encrypt/Decrypt surface per peer so callers
// never touch handshake.Result or ratchet.State directly.
package session

import (
	"io"
	"time"

	"e2ecore/errs"
	"e2ecore/handshake"
	"e2ecore/keymanager"
	"e2ecore/ratchet"
	"e2ecore/suite"
)

// Session is a single ongoing conversation with one peer.
type Session struct {
	peerID string
	state  *ratchet.State
}

// PeerID identifies the peer this session talks to.
func (s *Session) PeerID() string { return s.peerID }

// Encrypt seals plaintext for the peer.
func (s *Session) Encrypt(plaintext []byte, r io.Reader) (ratchet.Message, error) {
	return s.state.Encrypt(plaintext, r)
}

// Decrypt opens a message from the peer.
func (s *Session) Decrypt(msg ratchet.Message) ([]byte, error) {
	return s.state.Decrypt(msg)
}

// CleanupSkippedKeys drops skipped message keys older than maxAge.
func (s *Session) CleanupSkippedKeys(maxAge time.Duration) {
	s.state.CleanupSkippedKeys(maxAge)
}

// InitAsInitiator runs X3DH against a peer's registration bundle and
// starts the resulting Double Ratchet session atomically: there is no
// window where a caller holds a root key without an initialized ratchet
// around it.
func InitAsInitiator(
	s suite.Suite,
	peerID string,
	ourIdentityPub suite.PublicKey,
	ourIdentityPriv suite.PrivateKey,
	peerBundle keymanager.Bundle,
	chosenOneTimeKey *keymanager.OneTimePrekeyPublic,
	maxSkip int,
	maxSkipAge time.Duration,
	r io.Reader,
) (*Session, FirstMessage, error) {
	const op = "session.InitAsInitiator"

	hs, err := handshake.NewInitState(s, r)
	if err != nil {
		return nil, FirstMessage{}, err
	}
	first := FirstMessage{
		PeerIdentityPub:  ourIdentityPub,
		PeerEphemeralPub: hs.EphemeralPublic(),
	}
	if chosenOneTimeKey != nil {
		first.UsedOneTimeKey = true
		first.UsedOneTimeKeyID = chosenOneTimeKey.KeyID
	}

	result, err := hs.Perform(ourIdentityPriv, peerBundle, chosenOneTimeKey)
	if err != nil {
		return nil, FirstMessage{}, err
	}

	state, err := ratchet.NewInitiator(s, result.RootKey, peerBundle.IdentityPub, maxSkip, maxSkipAge, r)
	if err != nil {
		return nil, FirstMessage{}, errs.New(errs.HandshakeFailure, op, err)
	}
	return &Session{peerID: peerID, state: state}, first, nil
}

// FirstMessage is the X3DH initial-message envelope an initiator sends
// alongside (or ahead of) the first ratchet message, so the responder has
// everything needed to reconstruct the same root key.
//
// PeerIdentityPub and PeerEphemeralPub are named from the responder's point
// of view: they are the peer (initiator) identity and ephemeral keys the
// responder needs to complete its side of X3DH.
type FirstMessage struct {
	PeerIdentityPub  suite.PublicKey
	PeerEphemeralPub suite.PublicKey
	UsedOneTimeKeyID uint32
	UsedOneTimeKey   bool
}

// InitAsResponder reconstructs the root key from the initiator's first
// message fields, starts the responder's Double Ratchet session, and
// decrypts the initiator's first ratchet message, all as one atomic step:
// there is no half-initialised session. If firstCiphertext fails to
// decrypt, no session is built and the caller's registry is left untouched.
func InitAsResponder(
	s suite.Suite,
	peerID string,
	km *keymanager.Manager,
	signedPrekeyID uint32,
	first FirstMessage,
	firstCiphertext ratchet.Message,
	maxSkip int,
	maxSkipAge time.Duration,
) (*Session, []byte, error) {
	const op = "session.InitAsResponder"

	prekey, ok := km.GetPrekey(signedPrekeyID)
	if !ok {
		return nil, nil, errs.New(errs.InvalidInput, op, nil)
	}

	var otkPriv suite.PrivateKey
	if first.UsedOneTimeKey {
		priv, ok := km.ConsumeOneTimePrekey(first.UsedOneTimeKeyID)
		if !ok {
			return nil, nil, errs.New(errs.InvalidInput, op, nil)
		}
		otkPriv = priv
	}

	result, err := handshake.PerformAsResponder(
		s,
		km.IdentityPrivate(),
		prekey.Priv,
		otkPriv,
		first.PeerIdentityPub,
		first.PeerEphemeralPub,
		km.IdentityPublic(),
		prekey.Pub,
	)
	if err != nil {
		return nil, nil, err
	}

	state, err := ratchet.NewResponder(s, result.RootKey, km.IdentityPrivate(), km.IdentityPublic(), maxSkip, maxSkipAge)
	if err != nil {
		return nil, nil, errs.New(errs.HandshakeFailure, op, err)
	}

	plaintext, err := state.Decrypt(firstCiphertext)
	if err != nil {
		return nil, nil, err
	}
	return &Session{peerID: peerID, state: state}, plaintext, nil
}
