// Package ratchet implements the Double Ratchet algorithm: a root chain
// driven by Diffie-Hellman ratchet steps, and per-direction symmetric
// chains that derive one message key per message. It tolerates
// out-of-order delivery by caching skipped message keys in a bounded
// arena, modelled on ericlagergren's in-memory ratchet Store.
package ratchet

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"e2ecore/errs"
	"e2ecore/metrics"
	"e2ecore/suite"
)

// Message is a single Double Ratchet ciphertext plus the header needed to
// decrypt it: the sender's current ratchet public key, the message number
// within its sending chain, and the length of the previous sending chain
// (so the receiver knows how many trailing messages of the old chain it
// may still need to skip over).
type Message struct {
	DHPublic   suite.PublicKey
	N          uint32
	PN         uint32
	Nonce      []byte
	Ciphertext []byte
	SuiteID    suite.ID
}

// defaultMaxSkip and defaultMaxSkipAge mirror spec.md §6.4's stated
// defaults; callers normally pass values from package config instead.
const (
	defaultMaxSkip    = 1000
	defaultMaxSkipAge = 7 * 24 * time.Hour
)

type skippedEntry struct {
	dhPublic  string
	n         uint32
	key       []byte
	createdAt time.Time
}

// State is one party's half of a Double Ratchet session. It is not safe
// for concurrent use; callers serialise access (see package session and
// package client).
type State struct {
	suite suite.Suite

	dhSelfPriv suite.PrivateKey
	dhSelfPub  suite.PublicKey
	dhRemote   suite.PublicKey // nil until a message from the peer is seen

	rootKey []byte
	sendCK  []byte // nil until this side can send
	recvCK  []byte // nil until a message has been received

	sendN, recvN, prevSendN uint32

	skipped    []skippedEntry
	maxSkip    int
	maxSkipAge time.Duration

	rng io.Reader
}

// NewInitiator builds the initiator's ratchet state immediately after a
// successful X3DH handshake. Its first DH ratchet step binds to the
// responder's long-term identity key, not the medium-lived signed prekey:
// the identity key is the only key both sides are guaranteed to hold for
// the life of the session, and it is what the responder seeds its own
// dhSelf with in NewResponder. The initiator can derive its sending chain
// immediately, without waiting for a reply: this is RatchetInitAlice in the
// Signal literature.
func NewInitiator(s suite.Suite, rootKey []byte, remoteIdentityPub suite.PublicKey, maxSkip int, maxSkipAge time.Duration, r io.Reader) (*State, error) {
	const op = "ratchet.NewInitiator"
	st := newState(s, rootKey, maxSkip, maxSkipAge)
	st.rng = r
	st.dhRemote = append(suite.PublicKey(nil), remoteIdentityPub...)

	priv, pub, err := s.KEMGenerate(r)
	if err != nil {
		return nil, errs.New(errs.HandshakeFailure, op, err)
	}
	st.dhSelfPriv, st.dhSelfPub = priv, pub

	dh, err := s.DH(st.dhSelfPriv, st.dhRemote)
	if err != nil {
		return nil, errs.New(errs.HandshakeFailure, op, err)
	}
	newRoot, sendCK, err := s.KDFRootKey(st.rootKey, dh)
	if err != nil {
		return nil, errs.New(errs.HandshakeFailure, op, err)
	}
	st.rootKey, st.sendCK = newRoot, sendCK
	return st, nil
}

// NewResponder builds the responder's ratchet state. It seeds the initial
// ratchet key pair with the responder's own long-term identity key, the
// same key the initiator's first DH targets in NewInitiator, and cannot
// send until it has received and decrypted the initiator's first message,
// which is what triggers the first DH ratchet step on the receiving side.
func NewResponder(s suite.Suite, rootKey []byte, ownIdentityPriv suite.PrivateKey, ownIdentityPub suite.PublicKey, maxSkip int, maxSkipAge time.Duration) (*State, error) {
	st := newState(s, rootKey, maxSkip, maxSkipAge)
	st.dhSelfPriv = append(suite.PrivateKey(nil), ownIdentityPriv...)
	st.dhSelfPub = append(suite.PublicKey(nil), ownIdentityPub...)
	return st, nil
}

func newState(s suite.Suite, rootKey []byte, maxSkip int, maxSkipAge time.Duration) *State {
	if maxSkip <= 0 {
		maxSkip = defaultMaxSkip
	}
	if maxSkipAge <= 0 {
		maxSkipAge = defaultMaxSkipAge
	}
	return &State{
		suite:      s,
		rootKey:    append([]byte(nil), rootKey...),
		maxSkip:    maxSkip,
		maxSkipAge: maxSkipAge,
		rng:        rand.Reader,
	}
}

// Encrypt seals plaintext under the next message key of the sending
// chain, advancing it.
func (st *State) Encrypt(plaintext []byte, r io.Reader) (Message, error) {
	const op = "ratchet.Encrypt"
	if st.sendCK == nil {
		return Message{}, errs.New(errs.NoSession, op, fmt.Errorf("no sending chain established yet; wait for the peer's first message"))
	}

	nextCK, mk, err := st.suite.KDFChainKey(st.sendCK)
	if err != nil {
		return Message{}, errs.New(errs.HandshakeFailure, op, err)
	}

	msg := Message{
		DHPublic: append(suite.PublicKey(nil), st.dhSelfPub...),
		N:        st.sendN,
		PN:       st.prevSendN,
		SuiteID:  st.suite.ID(),
	}

	nonce, err := st.suite.RandomNonce(r)
	if err != nil {
		return Message{}, errs.New(errs.HandshakeFailure, op, err)
	}
	ct, err := st.suite.AEADSeal(mk, nonce, plaintext, st.aad(msg))
	if err != nil {
		return Message{}, errs.New(errs.HandshakeFailure, op, err)
	}

	st.sendCK = nextCK
	st.sendN++

	msg.Nonce = nonce
	msg.Ciphertext = ct
	metrics.MessagesEncryptedTotal.WithLabelValues(st.suite.ID().String()).Inc()
	return msg, nil
}

// Decrypt opens a message, performing a DH ratchet step first if the
// message arrives under a new ratchet public key, and skipping ahead
// within the addressed chain to tolerate out-of-order delivery.
//
// A message key is derived and consumed from its chain the moment it is
// needed, even if AEAD authentication subsequently fails: a message key is
// single-use by construction, and retrying with a "fresh" derivation would
// require rewinding the chain, which the algorithm does not support.
func (st *State) Decrypt(msg Message) ([]byte, error) {
	const op = "ratchet.Decrypt"
	if msg.SuiteID != st.suite.ID() {
		return nil, errs.New(errs.InvalidInput, op, fmt.Errorf("suite mismatch: got %s, want %s", msg.SuiteID, st.suite.ID()))
	}

	if mk, ok := st.takeSkipped(msg.DHPublic, msg.N); ok {
		return st.open(msg, mk)
	}

	if st.dhRemote == nil || !bytes.Equal(msg.DHPublic, st.dhRemote) {
		if st.dhRemote != nil {
			if err := st.skipToN(msg.PN); err != nil {
				return nil, err
			}
		}
		if err := st.dhRatchet(msg.DHPublic); err != nil {
			return nil, err
		}
	}

	if err := st.skipToN(msg.N); err != nil {
		return nil, err
	}

	nextCK, mk, err := st.suite.KDFChainKey(st.recvCK)
	if err != nil {
		return nil, errs.New(errs.HandshakeFailure, op, err)
	}
	st.recvCK = nextCK
	st.recvN = msg.N + 1

	return st.open(msg, mk)
}

func (st *State) open(msg Message, mk []byte) ([]byte, error) {
	const op = "ratchet.Decrypt"
	nonce := msg.Nonce
	pt, err := st.suite.AEADOpen(mk, nonce, msg.Ciphertext, st.aad(msg))
	if err != nil {
		metrics.MessagesDecryptedTotal.WithLabelValues(st.suite.ID().String(), "failure").Inc()
		return nil, errs.New(errs.DecryptionFailed, op, err)
	}
	metrics.MessagesDecryptedTotal.WithLabelValues(st.suite.ID().String(), "success").Inc()
	return pt, nil
}

// dhRatchet performs a DH ratchet step on receipt of a message carrying a
// new remote ratchet public key: it closes out the receiving chain under
// the old key, then opens both a new receiving chain (DH against our
// existing ratchet key pair) and a new sending chain (DH against a freshly
// generated one).
func (st *State) dhRatchet(remotePub suite.PublicKey) error {
	const op = "ratchet.dhRatchet"

	st.prevSendN = st.sendN
	st.sendN = 0
	st.recvN = 0
	st.dhRemote = append(suite.PublicKey(nil), remotePub...)

	dh, err := st.suite.DH(st.dhSelfPriv, st.dhRemote)
	if err != nil {
		return errs.New(errs.HandshakeFailure, op, err)
	}
	newRoot, recvCK, err := st.suite.KDFRootKey(st.rootKey, dh)
	if err != nil {
		return errs.New(errs.HandshakeFailure, op, err)
	}
	st.rootKey, st.recvCK = newRoot, recvCK

	priv, pub, err := st.suite.KEMGenerate(st.rng)
	if err != nil {
		return errs.New(errs.HandshakeFailure, op, err)
	}
	st.dhSelfPriv, st.dhSelfPub = priv, pub

	dh, err = st.suite.DH(st.dhSelfPriv, st.dhRemote)
	if err != nil {
		return errs.New(errs.HandshakeFailure, op, err)
	}
	newRoot, sendCK, err := st.suite.KDFRootKey(st.rootKey, dh)
	if err != nil {
		return errs.New(errs.HandshakeFailure, op, err)
	}
	st.rootKey, st.sendCK = newRoot, sendCK
	metrics.RatchetStepsTotal.WithLabelValues(st.suite.ID().String()).Inc()
	return nil
}

// skipToN derives and caches message keys for every message index in the
// current receiving chain up to (but not including) until, so a later
// out-of-order arrival can still be decrypted.
func (st *State) skipToN(until uint32) error {
	const op = "ratchet.skipToN"
	if st.recvCK == nil || until <= st.recvN {
		return nil
	}
	if int(until-st.recvN) > st.maxSkip {
		return errs.New(errs.TooManySkipped, op, fmt.Errorf("refusing to skip %d messages (limit %d)", until-st.recvN, st.maxSkip))
	}

	for st.recvN < until {
		nextCK, mk, err := st.suite.KDFChainKey(st.recvCK)
		if err != nil {
			return errs.New(errs.HandshakeFailure, op, err)
		}
		st.recvCK = nextCK
		st.storeSkipped(st.dhRemote, st.recvN, mk)
		st.recvN++
	}
	st.evictSkipped()
	return nil
}

func (st *State) storeSkipped(dhPub suite.PublicKey, n uint32, mk []byte) {
	st.skipped = append(st.skipped, skippedEntry{
		dhPublic:  string(dhPub),
		n:         n,
		key:       append([]byte(nil), mk...),
		createdAt: time.Now(),
	})
}

func (st *State) takeSkipped(dhPub suite.PublicKey, n uint32) ([]byte, bool) {
	key := string(dhPub)
	for i, e := range st.skipped {
		if e.dhPublic == key && e.n == n {
			mk := e.key
			st.skipped = append(st.skipped[:i], st.skipped[i+1:]...)
			return mk, true
		}
	}
	return nil, false
}

// evictSkipped bounds the skipped-key arena by count and by age, so a
// malicious or misbehaving peer cannot force unbounded memory growth.
func (st *State) evictSkipped() {
	cutoff := time.Now().Add(-st.maxSkipAge)
	before := len(st.skipped)
	kept := st.skipped[:0]
	for _, e := range st.skipped {
		if e.createdAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	st.skipped = kept
	if agedOut := before - len(st.skipped); agedOut > 0 {
		metrics.SkippedKeysEvictedTotal.WithLabelValues("age").Add(float64(agedOut))
	}

	if len(st.skipped) > st.maxSkip {
		excess := len(st.skipped) - st.maxSkip
		st.skipped = st.skipped[excess:]
		metrics.SkippedKeysEvictedTotal.WithLabelValues("count").Add(float64(excess))
	}
}

// CleanupSkippedKeys drops cached skipped message keys older than maxAge,
// independent of the bound enforced during normal operation. Intended for
// periodic background maintenance.
func (st *State) CleanupSkippedKeys(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	kept := st.skipped[:0]
	for _, e := range st.skipped {
		if e.createdAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	st.skipped = kept
}

// aad builds the AEAD associated data: exactly the sender's current ratchet
// public key concatenated with its big-endian message number, so a
// ciphertext cannot be replayed under a different header.
func (st *State) aad(msg Message) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], msg.N)

	out := make([]byte, 0, len(msg.DHPublic)+len(n))
	out = append(out, msg.DHPublic...)
	out = append(out, n[:]...)
	return out
}
