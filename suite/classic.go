package suite

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"e2ecore/errs"
)

const chainKeyInfo = "Chain-Key-Expansion"

// classic is the default Suite: X25519 for KEM/DH, Ed25519 for signatures,
// ChaCha20-Poly1305 for AEAD, HKDF-SHA256 for every KDF step.
//
// The namespace binds derived keys to a particular deployment so two
// applications sharing this library cannot be confused into cross-using
// each other's derived secrets.
type classic struct {
	rkInfo []byte
}

var _ Suite = (*classic)(nil)

// NewClassic constructs the classic Suite. namespace should be a short,
// stable string identifying the application (e.g. "e2ecore/v1").
func NewClassic(namespace string) Suite {
	return &classic{
		rkInfo: []byte(namespace + "|Root-Key-Expansion"),
	}
}

func (classic) ID() ID        { return Classic }
func (classic) NonceLen() int { return chacha20poly1305.NonceSize }

func (classic) KEMGenerate(r io.Reader) (PrivateKey, PublicKey, error) {
	const op = "classic.KEMGenerate"
	var priv [32]byte
	if _, err := io.ReadFull(r, priv[:]); err != nil {
		return nil, nil, wrap(errs.InvalidInput, op, err)
	}
	clamp(&priv)
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, wrap(errs.HandshakeFailure, op, err)
	}
	return PrivateKey(priv[:]), PublicKey(pub), nil
}

func clamp(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

func (classic) DH(priv PrivateKey, pub PublicKey) ([]byte, error) {
	const op = "classic.DH"
	if len(priv) != 32 {
		return nil, wrap(errs.InvalidInput, op, fmt.Errorf("private key: want 32 bytes, got %d", len(priv)))
	}
	if len(pub) != 32 {
		return nil, wrap(errs.InvalidInput, op, fmt.Errorf("public key: want 32 bytes, got %d", len(pub)))
	}
	secret, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, wrap(errs.HandshakeFailure, op, err)
	}
	return secret, nil
}

func (classic) SigGenerate(r io.Reader) (SigPrivateKey, SigPublicKey, error) {
	const op = "classic.SigGenerate"
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, nil, wrap(errs.InvalidInput, op, err)
	}
	return SigPrivateKey(priv), SigPublicKey(pub), nil
}

func (classic) Sign(priv SigPrivateKey, message []byte) ([]byte, error) {
	const op = "classic.Sign"
	if len(priv) != ed25519.PrivateKeySize {
		return nil, wrap(errs.InvalidInput, op, fmt.Errorf("signing key: want %d bytes, got %d", ed25519.PrivateKeySize, len(priv)))
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), message), nil
}

func (classic) Verify(pub SigPublicKey, message, sig []byte) error {
	const op = "classic.Verify"
	if len(pub) != ed25519.PublicKeySize {
		return wrap(errs.InvalidInput, op, fmt.Errorf("verifying key: want %d bytes, got %d", ed25519.PublicKeySize, len(pub)))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
		return errs.New(errs.InvalidSignature, op, nil)
	}
	return nil
}

func (c classic) AEADSeal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	const op = "classic.AEADSeal"
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, wrap(errs.InvalidInput, op, err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, wrap(errs.InvalidInput, op, fmt.Errorf("nonce: want %d bytes, got %d", aead.NonceSize(), len(nonce)))
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func (c classic) AEADOpen(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	const op = "classic.AEADOpen"
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, wrap(errs.InvalidInput, op, err)
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errs.New(errs.DecryptionFailed, op, nil)
	}
	return pt, nil
}

func (classic) HKDF(salt, ikm, info []byte, length int) ([]byte, error) {
	const op = "classic.HKDF"
	out := make([]byte, length)
	r := hkdf.New(sha256.New, ikm, salt, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, wrap(errs.HandshakeFailure, op, err)
	}
	return out, nil
}

func (c classic) KDFRootKey(root, dh []byte) (newRoot, chain []byte, err error) {
	const op = "classic.KDFRootKey"
	buf := make([]byte, RootKeyLen+ChainKeyLen)
	r := hkdf.New(sha256.New, dh, root, c.rkInfo)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, wrap(errs.HandshakeFailure, op, err)
	}
	return buf[:RootKeyLen:RootKeyLen], buf[RootKeyLen : RootKeyLen+ChainKeyLen : RootKeyLen+ChainKeyLen], nil
}

func (classic) KDFChainKey(chain []byte) (newChain, messageKey []byte, err error) {
	const op = "classic.KDFChainKey"
	buf := make([]byte, ChainKeyLen+MessageKeyLen)
	r := hkdf.New(sha256.New, nil, chain, []byte(chainKeyInfo))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, wrap(errs.HandshakeFailure, op, err)
	}
	return buf[:ChainKeyLen:ChainKeyLen], buf[ChainKeyLen : ChainKeyLen+MessageKeyLen : ChainKeyLen+MessageKeyLen], nil
}

func (classic) RandomNonce(r io.Reader) ([]byte, error) {
	const op = "classic.RandomNonce"
	n := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(r, n); err != nil {
		return nil, wrap(errs.InvalidInput, op, err)
	}
	return n, nil
}
