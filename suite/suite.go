// Package suite defines the crypto-suite abstraction: the one place where
// primitive choice (KEM/DH, signatures, AEAD, KDF chains) is encoded so the
// handshake and ratchet layers stay polymorphic over it.
//
// A Suite is identified by a stable 16-bit ID that travels on the wire in
// every RegistrationBundle and EncryptedMessage, so a receiver can reject
// cross-suite messages instead of silently mixing primitives.
package suite

import (
	"io"

	"e2ecore/errs"
)

// ID is the 16-bit tag identifying a concrete Suite.
type ID uint16

const (
	// Classic is the X25519 + Ed25519 + ChaCha20-Poly1305 + HKDF-SHA256 suite.
	Classic ID = 1
	// NISTP256 is the P-256 ECDH + ECDSA-P256 + AES-256-GCM + HKDF-SHA256 suite.
	NISTP256 ID = 2
)

func (id ID) String() string {
	switch id {
	case Classic:
		return "classic"
	case NISTP256:
		return "nistp256"
	default:
		return "unknown"
	}
}

// PrivateKey, PublicKey, SigPrivateKey and SigPublicKey are opaque,
// suite-defined byte encodings. Callers move them across the serialisation
// boundary without knowing the concrete suite's key representation.
type (
	PrivateKey    []byte
	PublicKey     []byte
	SigPrivateKey []byte
	SigPublicKey  []byte
)

// RootKeyLen, ChainKeyLen and MessageKeyLen are the fixed lengths of the
// Double Ratchet symmetric secrets every suite must produce.
const (
	RootKeyLen    = 32
	ChainKeyLen   = 32
	MessageKeyLen = 32
)

// Suite is the capability bundle consumed by the handshake and ratchet
// layers. Implementations must be safe for concurrent use: the client may
// invoke Suite methods from multiple sessions that are themselves
// serialised (see the Client's single-actor discipline), but Suite values
// hold no mutable state of their own.
type Suite interface {
	// ID returns the suite's stable wire tag.
	ID() ID
	// NonceLen returns the AEAD nonce length this suite requires.
	NonceLen() int

	// KEMGenerate creates a new KEM/DH key pair, reading entropy from r.
	KEMGenerate(r io.Reader) (PrivateKey, PublicKey, error)
	// DH computes the shared Diffie-Hellman secret for priv and pub.
	DH(priv PrivateKey, pub PublicKey) ([]byte, error)

	// SigGenerate creates a new signing key pair, reading entropy from r.
	SigGenerate(r io.Reader) (SigPrivateKey, SigPublicKey, error)
	// Sign signs message with priv.
	Sign(priv SigPrivateKey, message []byte) ([]byte, error)
	// Verify checks sig over message under pub.
	Verify(pub SigPublicKey, message, sig []byte) error

	// AEADSeal encrypts and authenticates plaintext, authenticating aad,
	// and returns ciphertext with the tag appended.
	AEADSeal(key, nonce, plaintext, aad []byte) ([]byte, error)
	// AEADOpen decrypts and authenticates ciphertext produced by AEADSeal.
	AEADOpen(key, nonce, ciphertext, aad []byte) ([]byte, error)

	// HKDF derives length bytes of key material from ikm, salt and info.
	HKDF(salt, ikm, info []byte, length int) ([]byte, error)
	// KDFRootKey is the root-chain step: HKDF-Extract-and-Expand keyed by
	// root as salt and dh as IKM, with a fixed domain-separation info
	// string, producing a new root key and a chain key.
	KDFRootKey(root, dh []byte) (newRoot, chain []byte, err error)
	// KDFChainKey is the symmetric-chain step: derives the next chain key
	// and a one-shot message key from the current chain key.
	KDFChainKey(chain []byte) (newChain, messageKey []byte, err error)

	// RandomNonce returns a fresh nonce of NonceLen() bytes.
	RandomNonce(r io.Reader) ([]byte, error)
}

// wrap is a small helper so every suite reports failures the same way.
func wrap(kind errs.Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return errs.New(kind, op, err)
}
