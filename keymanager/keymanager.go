// Package keymanager owns a user's long-lived private key material and
// issues signed prekey bundles for X3DH-style handshakes.
//
// A Manager is not safe for concurrent use on its own; the Client (see
// package client) is the single-actor boundary that serialises access to
// it, per spec.md §5.
package keymanager

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"e2ecore/errs"
	"e2ecore/metrics"
	"e2ecore/suite"
)

// SignedPrekey is a medium-lived KEM key pair signed by the identity's
// signing key, allowing asynchronous handshake initiation.
type SignedPrekey struct {
	KeyID     uint32
	Priv      suite.PrivateKey
	Pub       suite.PublicKey
	Signature []byte
	CreatedAt time.Time
}

// OneTimePrekey is a single-use KEM key pair. The bundle schema reserves
// space for these (spec.md §4.3 Non-goals) and SPEC_FULL.md activates their
// consumption: when present, the handshake mixes a fourth DH product in.
type OneTimePrekey struct {
	KeyID uint32
	Priv  suite.PrivateKey
	Pub   suite.PublicKey
}

// OneTimePrekeyPublic is the public half published in a bundle.
type OneTimePrekeyPublic struct {
	KeyID uint32
	Pub   suite.PublicKey
}

// Bundle is the RegistrationBundle of spec.md §3/§6.1: what a peer fetches
// from the server to begin a handshake.
type Bundle struct {
	SuiteID         suite.ID
	IdentityPub     suite.PublicKey
	SignedPrekeyPub suite.PublicKey
	SignedPrekeyID  uint32
	Signature       []byte
	VerifyingKey    suite.SigPublicKey
	OneTimeKeys     []OneTimePrekeyPublic
}

// Manager custodies identity, signing, and signed-prekey material.
type Manager struct {
	suite suite.Suite

	identityPriv suite.PrivateKey
	identityPub  suite.PublicKey
	signingPriv  suite.SigPrivateKey
	verifyingKey suite.SigPublicKey

	current *SignedPrekey
	history map[uint32]*SignedPrekey
	nextID  uint32

	oneTime map[uint32]OneTimePrekey
	nextOTK uint32

	maxPrekeyAge time.Duration
}

// New generates fresh identity, signing, and first signed-prekey material.
func New(s suite.Suite, maxPrekeyAge time.Duration) (*Manager, error) {
	const op = "keymanager.New"

	identityPriv, identityPub, err := s.KEMGenerate(rand.Reader)
	if err != nil {
		return nil, errs.New(errs.HandshakeFailure, op, err)
	}
	signingPriv, verifyingKey, err := s.SigGenerate(rand.Reader)
	if err != nil {
		return nil, errs.New(errs.HandshakeFailure, op, err)
	}

	m := &Manager{
		suite:        s,
		identityPriv: identityPriv,
		identityPub:  identityPub,
		signingPriv:  signingPriv,
		verifyingKey: verifyingKey,
		history:      make(map[uint32]*SignedPrekey),
		oneTime:      make(map[uint32]OneTimePrekey),
		nextID:       1,
		nextOTK:      1,
		maxPrekeyAge: maxPrekeyAge,
	}
	if _, err := m.RotateSignedPrekey(); err != nil {
		return nil, err
	}
	return m, nil
}

// FromKeys restores a Manager from previously-sealed key material (see
// package keyvault), with key_id=1 assumed for the restored signed prekey.
func FromKeys(
	s suite.Suite,
	identityPriv suite.PrivateKey,
	signingPriv suite.SigPrivateKey,
	prekeyPriv suite.PrivateKey,
	prekeySignature []byte,
	maxPrekeyAge time.Duration,
) (*Manager, error) {
	const op = "keymanager.FromKeys"

	identityPub, err := derivePublic(s, identityPriv)
	if err != nil {
		return nil, errs.New(errs.InvalidInput, op, err)
	}
	verifyingKey, err := deriveSigPublic(s, signingPriv)
	if err != nil {
		return nil, errs.New(errs.InvalidInput, op, err)
	}
	prekeyPub, err := derivePublic(s, prekeyPriv)
	if err != nil {
		return nil, errs.New(errs.InvalidInput, op, err)
	}

	current := &SignedPrekey{
		KeyID:     1,
		Priv:      prekeyPriv,
		Pub:       prekeyPub,
		Signature: prekeySignature,
		CreatedAt: time.Now(),
	}
	return &Manager{
		suite:        s,
		identityPriv: identityPriv,
		identityPub:  identityPub,
		signingPriv:  signingPriv,
		verifyingKey: verifyingKey,
		current:      current,
		history:      make(map[uint32]*SignedPrekey),
		oneTime:      make(map[uint32]OneTimePrekey),
		nextID:       2,
		nextOTK:      1,
		maxPrekeyAge: maxPrekeyAge,
	}, nil
}

// derivePublic re-derives a DH public key from a private key. It supports
// only the classic suite, where the X25519 public key is DH(priv,
// basepoint); for any other suite it returns an error.
func derivePublic(s suite.Suite, priv suite.PrivateKey) (suite.PublicKey, error) {
	if s.ID() != suite.Classic {
		return nil, fmt.Errorf("restoring from raw private key is only supported for suite %s; store the public half alongside the private key for suite %s", suite.Classic, s.ID())
	}
	basepoint := make([]byte, 32)
	basepoint[0] = 9
	pub, err := s.DH(priv, basepoint)
	if err != nil {
		return nil, err
	}
	return suite.PublicKey(pub), nil
}

func deriveSigPublic(s suite.Suite, priv suite.SigPrivateKey) (suite.SigPublicKey, error) {
	if s.ID() != suite.Classic || len(priv) != 64 {
		return nil, fmt.Errorf("restoring signing public key from raw private key is only supported for suite %s with a 64-byte Ed25519 private key", suite.Classic)
	}
	// An Ed25519 private key is seed||public; the public half is already
	// embedded in its second half.
	return suite.SigPublicKey(priv[32:]), nil
}

// RotateSignedPrekey generates a new signed prekey, archives the prior one,
// and evicts archived prekeys older than maxPrekeyAge.
func (m *Manager) RotateSignedPrekey() (SignedPrekey, error) {
	const op = "keymanager.RotateSignedPrekey"

	priv, pub, err := m.suite.KEMGenerate(rand.Reader)
	if err != nil {
		metrics.PrekeyRotationsTotal.WithLabelValues("failure").Inc()
		return SignedPrekey{}, errs.New(errs.HandshakeFailure, op, err)
	}
	sig, err := m.suite.Sign(m.signingPriv, pub)
	if err != nil {
		metrics.PrekeyRotationsTotal.WithLabelValues("failure").Inc()
		return SignedPrekey{}, errs.New(errs.HandshakeFailure, op, err)
	}

	next := &SignedPrekey{
		KeyID:     m.nextID,
		Priv:      priv,
		Pub:       pub,
		Signature: sig,
		CreatedAt: time.Now(),
	}
	m.nextID++

	if m.current != nil {
		m.history[m.current.KeyID] = m.current
	}
	m.current = next
	m.evictExpiredPrekeys()
	metrics.PrekeyRotationsTotal.WithLabelValues("success").Inc()
	return *next, nil
}

func (m *Manager) evictExpiredPrekeys() {
	if m.maxPrekeyAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.maxPrekeyAge)
	for id, pk := range m.history {
		if pk.CreatedAt.Before(cutoff) {
			delete(m.history, id)
		}
	}
}

// GetPrekey looks up a signed prekey by id across the current prekey and
// the archived history; returns ok=false if the id was evicted or unknown.
func (m *Manager) GetPrekey(keyID uint32) (SignedPrekey, bool) {
	if m.current != nil && m.current.KeyID == keyID {
		return *m.current, true
	}
	if pk, ok := m.history[keyID]; ok {
		return *pk, true
	}
	return SignedPrekey{}, false
}

// GenerateOneTimePrekeys creates n fresh one-time prekeys, stores the
// private halves, and returns their public halves for bundle publication.
func (m *Manager) GenerateOneTimePrekeys(r io.Reader, n int) ([]OneTimePrekeyPublic, error) {
	const op = "keymanager.GenerateOneTimePrekeys"
	out := make([]OneTimePrekeyPublic, 0, n)
	for i := 0; i < n; i++ {
		priv, pub, err := m.suite.KEMGenerate(r)
		if err != nil {
			return nil, errs.New(errs.HandshakeFailure, op, err)
		}
		id := m.nextOTK
		m.nextOTK++
		m.oneTime[id] = OneTimePrekey{KeyID: id, Priv: priv, Pub: pub}
		out = append(out, OneTimePrekeyPublic{KeyID: id, Pub: pub})
	}
	return out, nil
}

// ConsumeOneTimePrekey removes and returns the private half of a one-time
// prekey by id. Each id may be consumed at most once.
func (m *Manager) ConsumeOneTimePrekey(keyID uint32) (suite.PrivateKey, bool) {
	otk, ok := m.oneTime[keyID]
	if !ok {
		return nil, false
	}
	delete(m.oneTime, keyID)
	return otk.Priv, true
}

// UnusedOneTimePrekeyPublics lists the public halves still available for a
// fresh bundle export.
func (m *Manager) UnusedOneTimePrekeyPublics() []OneTimePrekeyPublic {
	out := make([]OneTimePrekeyPublic, 0, len(m.oneTime))
	for _, otk := range m.oneTime {
		out = append(out, OneTimePrekeyPublic{KeyID: otk.KeyID, Pub: otk.Pub})
	}
	return out
}

// ExportRegistrationBundle builds a Bundle from the Manager's existing
// identity and current signed prekey. There is exactly one code path here:
// it never generates fresh material, only reads what is already custodied
// (see DESIGN.md's note on spec.md §9's generic-bundle pitfall).
func (m *Manager) ExportRegistrationBundle() (Bundle, error) {
	if m.current == nil {
		return Bundle{}, fmt.Errorf("keymanager: no current signed prekey")
	}
	return Bundle{
		SuiteID:         m.suite.ID(),
		IdentityPub:     m.identityPub,
		SignedPrekeyPub: m.current.Pub,
		SignedPrekeyID:  m.current.KeyID,
		Signature:       m.current.Signature,
		VerifyingKey:    m.verifyingKey,
		OneTimeKeys:     m.UnusedOneTimePrekeyPublics(),
	}, nil
}

// Sign signs bytes with the identity's signing key, on behalf of higher
// layers that need ad hoc signatures (e.g. transcript binding).
func (m *Manager) Sign(data []byte) ([]byte, error) {
	return m.suite.Sign(m.signingPriv, data)
}

// IdentityPrivate returns the identity KEM private key.
func (m *Manager) IdentityPrivate() suite.PrivateKey { return m.identityPriv }

// IdentityPublic returns the identity KEM public key.
func (m *Manager) IdentityPublic() suite.PublicKey { return m.identityPub }

// VerifyingKey returns the signing public key.
func (m *Manager) VerifyingKey() suite.SigPublicKey { return m.verifyingKey }

// SigningPrivate returns the signing private key, for backup sealing.
func (m *Manager) SigningPrivate() suite.SigPrivateKey { return m.signingPriv }

// CurrentSignedPrekey returns the active signed prekey.
func (m *Manager) CurrentSignedPrekey() SignedPrekey { return *m.current }

// Suite returns the suite this Manager was constructed with.
func (m *Manager) Suite() suite.Suite { return m.suite }
