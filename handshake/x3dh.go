// Package handshake implements the X3DH key agreement: a stateless function
// of long-term and ephemeral key material that produces a shared root key
// for a new Double Ratchet session (package ratchet).
package handshake

import (
	"fmt"
	"io"

	"e2ecore/errs"
	"e2ecore/internal/memzero"
	"e2ecore/keymanager"
	"e2ecore/metrics"
	"e2ecore/suite"
)

const rootKeyInfo = "X3DH Root Key"

// Result is the output of a completed X3DH run.
type Result struct {
	// RootKey seeds the Double Ratchet's root chain.
	RootKey []byte
	// AssociatedData is the responder's identity public key followed by its
	// signed prekey public key; initiator and responder compute the same
	// value. Package ratchet does not use it: ratchet messages authenticate
	// only their own header fields.
	AssociatedData []byte
}

// VerifySignedPrekey checks a peer's signed prekey signature against their
// verifying key, rejecting the bundle before any DH is computed.
func VerifySignedPrekey(s suite.Suite, verifyKey suite.SigPublicKey, prekeyPub suite.PublicKey, signature []byte) error {
	const op = "handshake.VerifySignedPrekey"
	if err := s.Verify(verifyKey, prekeyPub, signature); err != nil {
		return errs.New(errs.InvalidSignature, op, err)
	}
	return nil
}

// InitState owns the initiator's ephemeral private key between the moment
// it is generated (so its public half can be sent to the peer) and the
// moment Perform consumes it. It exists so the ephemeral key serves exactly
// one handshake: Perform wipes it whether it succeeds or fails, and a
// second call returns an error instead of silently reusing stale material.
type InitState struct {
	suite    suite.Suite
	ephPriv  suite.PrivateKey
	ephPub   suite.PublicKey
	consumed bool
}

// NewInitState generates a fresh ephemeral key pair for a new handshake
// attempt. Call EphemeralPublic to learn the value to send to the peer,
// then Perform exactly once to complete the handshake.
func NewInitState(s suite.Suite, r io.Reader) (*InitState, error) {
	const op = "handshake.NewInitState"
	priv, pub, err := s.KEMGenerate(r)
	if err != nil {
		return nil, errs.New(errs.HandshakeFailure, op, err)
	}
	return &InitState{suite: s, ephPriv: priv, ephPub: pub}, nil
}

// EphemeralPublic returns the ephemeral public key to send to the peer.
func (st *InitState) EphemeralPublic() suite.PublicKey { return st.ephPub }

// Perform completes X3DH as the initiator: DH1 = DH(IKa, SPKb),
// DH2 = DH(EKa, IKb), DH3 = DH(EKa, SPKb), and DH4 = DH(EKa, OPKb) when the
// peer bundle carries a one-time prekey. The concatenation DH1‖DH2‖DH3[‖DH4]
// is fed through HKDF-SHA256 under a fixed info string to produce the root
// key.
//
// Perform may be called at most once; the ephemeral private key is wiped
// after use regardless of outcome.
func (st *InitState) Perform(ourIdentityPriv suite.PrivateKey, peerBundle keymanager.Bundle, chosenOneTimeKey *keymanager.OneTimePrekeyPublic) (result Result, err error) {
	const op = "handshake.Perform"
	if st.consumed {
		return Result{}, errs.New(errs.InvalidInput, op, fmt.Errorf("ephemeral key already consumed"))
	}
	defer func() {
		st.consumed = true
		memzero.Zero(st.ephPriv)
		recordHandshake("initiator", err)
	}()

	if err := VerifySignedPrekey(st.suite, peerBundle.VerifyingKey, peerBundle.SignedPrekeyPub, peerBundle.Signature); err != nil {
		return Result{}, err
	}

	dh1, err := st.suite.DH(ourIdentityPriv, peerBundle.SignedPrekeyPub)
	if err != nil {
		return Result{}, errs.New(errs.HandshakeFailure, op, err)
	}
	dh2, err := st.suite.DH(st.ephPriv, peerBundle.IdentityPub)
	if err != nil {
		return Result{}, errs.New(errs.HandshakeFailure, op, err)
	}
	dh3, err := st.suite.DH(st.ephPriv, peerBundle.SignedPrekeyPub)
	if err != nil {
		return Result{}, errs.New(errs.HandshakeFailure, op, err)
	}

	ikm := concat(dh1, dh2, dh3)
	if chosenOneTimeKey != nil {
		dh4, err := st.suite.DH(st.ephPriv, chosenOneTimeKey.Pub)
		if err != nil {
			return Result{}, errs.New(errs.HandshakeFailure, op, err)
		}
		ikm = concat(ikm, dh4)
	}

	rootKey, err := st.suite.HKDF(nil, ikm, []byte(rootKeyInfo), suite.RootKeyLen)
	if err != nil {
		return Result{}, errs.New(errs.HandshakeFailure, op, err)
	}

	return Result{
		RootKey:        rootKey,
		AssociatedData: concat(peerBundle.IdentityPub, peerBundle.SignedPrekeyPub),
	}, nil
}

// PerformAsResponder completes X3DH as the responder, mirroring the
// initiator's DH computations with the roles of identity/ephemeral swapped.
// ourOneTimePrekeyPriv is nil unless the initiator's bundle request
// consumed one of our published one-time prekeys.
func PerformAsResponder(
	s suite.Suite,
	ourIdentityPriv suite.PrivateKey,
	ourSignedPrekeyPriv suite.PrivateKey,
	ourOneTimePrekeyPriv suite.PrivateKey,
	peerIdentityPub suite.PublicKey,
	peerEphemeralPub suite.PublicKey,
	ourIdentityPub suite.PublicKey,
	ourSignedPrekeyPub suite.PublicKey,
) (result Result, err error) {
	const op = "handshake.PerformAsResponder"
	defer func() { recordHandshake("responder", err) }()

	dh1, err := s.DH(ourSignedPrekeyPriv, peerIdentityPub)
	if err != nil {
		return Result{}, errs.New(errs.HandshakeFailure, op, err)
	}
	dh2, err := s.DH(ourIdentityPriv, peerEphemeralPub)
	if err != nil {
		return Result{}, errs.New(errs.HandshakeFailure, op, err)
	}
	dh3, err := s.DH(ourSignedPrekeyPriv, peerEphemeralPub)
	if err != nil {
		return Result{}, errs.New(errs.HandshakeFailure, op, err)
	}

	ikm := concat(dh1, dh2, dh3)
	if ourOneTimePrekeyPriv != nil {
		dh4, err := s.DH(ourOneTimePrekeyPriv, peerEphemeralPub)
		if err != nil {
			return Result{}, errs.New(errs.HandshakeFailure, op, err)
		}
		ikm = concat(ikm, dh4)
		memzero.Zero(ourOneTimePrekeyPriv)
	}

	rootKey, err := s.HKDF(nil, ikm, []byte(rootKeyInfo), suite.RootKeyLen)
	if err != nil {
		return Result{}, errs.New(errs.HandshakeFailure, op, err)
	}

	return Result{
		RootKey:        rootKey,
		AssociatedData: concat(ourIdentityPub, ourSignedPrekeyPub),
	}, nil
}

func recordHandshake(role string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.HandshakesTotal.WithLabelValues(role, result).Inc()
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

