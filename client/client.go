// Package client is the top-level façade: one KeyManager plus a map of
// per-peer Sessions, with every mutating call serialised behind a single
// mutex so the ratchet state machines underneath never see concurrent
// access (spec invariant: a session is a single-actor state machine).
package client

import (
	"crypto/rand"
	"sync"
	"time"

	"e2ecore/errs"
	"e2ecore/keymanager"
	"e2ecore/ratchet"
	"e2ecore/session"
	"e2ecore/suite"
)

// Client manages one local identity's sessions with any number of peers.
type Client struct {
	mu sync.Mutex

	suite suite.Suite
	km    *keymanager.Manager

	sessions map[string]*session.Session

	maxSkip    int
	maxSkipAge time.Duration
}

// New creates a Client with a freshly generated identity.
func New(s suite.Suite, maxPrekeyAge time.Duration, maxSkip int, maxSkipAge time.Duration) (*Client, error) {
	km, err := keymanager.New(s, maxPrekeyAge)
	if err != nil {
		return nil, err
	}
	return fromManager(s, km, maxSkip, maxSkipAge), nil
}

// FromKeys restores a Client from previously sealed key material (see
// package keyvault).
func FromKeys(
	s suite.Suite,
	identityPriv suite.PrivateKey,
	signingPriv suite.SigPrivateKey,
	prekeyPriv suite.PrivateKey,
	prekeySignature []byte,
	maxPrekeyAge time.Duration,
	maxSkip int,
	maxSkipAge time.Duration,
) (*Client, error) {
	km, err := keymanager.FromKeys(s, identityPriv, signingPriv, prekeyPriv, prekeySignature, maxPrekeyAge)
	if err != nil {
		return nil, err
	}
	return fromManager(s, km, maxSkip, maxSkipAge), nil
}

func fromManager(s suite.Suite, km *keymanager.Manager, maxSkip int, maxSkipAge time.Duration) *Client {
	return &Client{
		suite:      s,
		km:         km,
		sessions:   make(map[string]*session.Session),
		maxSkip:    maxSkip,
		maxSkipAge: maxSkipAge,
	}
}

// RegistrationBundle exports this identity's current bundle for publication.
func (c *Client) RegistrationBundle() (keymanager.Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.km.ExportRegistrationBundle()
}

// GenerateOneTimePrekeys tops up the published one-time prekey pool.
func (c *Client) GenerateOneTimePrekeys(n int) ([]keymanager.OneTimePrekeyPublic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.km.GenerateOneTimePrekeys(rand.Reader, n)
}

// InitSession starts a session with peerID as the initiator, performing
// X3DH against the peer's bundle. It returns the X3DH envelope the responder
// needs (see session.FirstMessage) along with the first ratchet message
// encrypted with plaintext, so the initial handshake and the first payload
// travel together.
func (c *Client) InitSession(peerID string, peerBundle keymanager.Bundle, chosenOneTimeKey *keymanager.OneTimePrekeyPublic, plaintext []byte) (session.FirstMessage, ratchet.Message, error) {
	const op = "client.InitSession"
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sessions[peerID]; exists {
		return session.FirstMessage{}, ratchet.Message{}, errs.New(errs.SessionAlreadyExists, op, nil)
	}

	sess, first, err := session.InitAsInitiator(c.suite, peerID, c.km.IdentityPublic(), c.km.IdentityPrivate(), peerBundle, chosenOneTimeKey, c.maxSkip, c.maxSkipAge, rand.Reader)
	if err != nil {
		return session.FirstMessage{}, ratchet.Message{}, err
	}

	msg, err := sess.Encrypt(plaintext, rand.Reader)
	if err != nil {
		return session.FirstMessage{}, ratchet.Message{}, err
	}
	c.sessions[peerID] = sess
	return first, msg, nil
}

// InitReceivingSession starts a session with peerID as the responder, from
// the fields carried by the initiator's first message, and decrypts that
// message's accompanying first ciphertext atomically: if decryption fails,
// no session is registered, so a caller never observes a half-initialised
// session after a failed handshake.
func (c *Client) InitReceivingSession(peerID string, signedPrekeyID uint32, first session.FirstMessage, firstCiphertext ratchet.Message) ([]byte, error) {
	const op = "client.InitReceivingSession"
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sessions[peerID]; exists {
		return nil, errs.New(errs.SessionAlreadyExists, op, nil)
	}

	sess, plaintext, err := session.InitAsResponder(c.suite, peerID, c.km, signedPrekeyID, first, firstCiphertext, c.maxSkip, c.maxSkipAge)
	if err != nil {
		return nil, err
	}
	c.sessions[peerID] = sess
	return plaintext, nil
}

// EncryptMessage seals plaintext for an existing session with peerID.
func (c *Client) EncryptMessage(peerID string, plaintext []byte) (ratchet.Message, error) {
	const op = "client.EncryptMessage"
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[peerID]
	if !ok {
		return ratchet.Message{}, errs.New(errs.NoSession, op, nil)
	}
	return sess.Encrypt(plaintext, rand.Reader)
}

// DecryptMessage opens a message from an existing session with peerID.
func (c *Client) DecryptMessage(peerID string, msg ratchet.Message) ([]byte, error) {
	const op = "client.DecryptMessage"
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[peerID]
	if !ok {
		return nil, errs.New(errs.NoSession, op, nil)
	}
	return sess.Decrypt(msg)
}

// HasSession reports whether a session with peerID exists.
func (c *Client) HasSession(peerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[peerID]
	return ok
}

// RemoveSession discards the session with peerID, if any, so a fresh
// InitSession/InitReceivingSession call can replace it.
func (c *Client) RemoveSession(peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, peerID)
}

// ActiveSessions lists peer IDs with an open session.
func (c *Client) ActiveSessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sessions))
	for peerID := range c.sessions {
		out = append(out, peerID)
	}
	return out
}

// RotatePrekey rotates the published signed prekey.
func (c *Client) RotatePrekey() (keymanager.SignedPrekey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.km.RotateSignedPrekey()
}

// CleanupSkippedKeys drops skipped message keys older than maxAge across
// every open session, intended for periodic background maintenance.
func (c *Client) CleanupSkippedKeys(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sess := range c.sessions {
		sess.CleanupSkippedKeys(maxAge)
	}
}

// Sign signs data with the identity's signing key.
func (c *Client) Sign(data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.km.Sign(data)
}
