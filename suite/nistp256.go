package suite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"e2ecore/errs"
)

// nistP256 is the second Suite: P-256 ECDH for KEM/DH, ECDSA-P256 for
// signatures, AES-256-GCM for AEAD, HKDF-SHA256 for every KDF step.
//
// It exists to prove the Suite abstraction is load-bearing: the handshake
// and ratchet layers run unmodified over either suite. It is the same
// curve/AEAD/KDF combination ericlagergren's NIST ratchet uses, expressed
// with the modern crypto/ecdh API instead of raw elliptic.Curve math.
type nistP256 struct {
	curve  ecdh.Curve
	rkInfo []byte
}

var _ Suite = (*nistP256)(nil)

// NewNISTP256 constructs the P-256 Suite.
func NewNISTP256(namespace string) Suite {
	return &nistP256{
		curve:  ecdh.P256(),
		rkInfo: []byte(namespace + "|Root-Key-Expansion"),
	}
}

func (nistP256) ID() ID        { return NISTP256 }
func (nistP256) NonceLen() int { return 12 }

func (n *nistP256) KEMGenerate(r io.Reader) (PrivateKey, PublicKey, error) {
	const op = "nistp256.KEMGenerate"
	priv, err := n.curve.GenerateKey(r)
	if err != nil {
		return nil, nil, wrap(errs.HandshakeFailure, op, err)
	}
	return PrivateKey(priv.Bytes()), PublicKey(priv.PublicKey().Bytes()), nil
}

func (n *nistP256) DH(priv PrivateKey, pub PublicKey) ([]byte, error) {
	const op = "nistp256.DH"
	pk, err := n.curve.NewPrivateKey(priv)
	if err != nil {
		return nil, wrap(errs.InvalidInput, op, err)
	}
	pp, err := n.curve.NewPublicKey(pub)
	if err != nil {
		return nil, wrap(errs.InvalidInput, op, err)
	}
	secret, err := pk.ECDH(pp)
	if err != nil {
		return nil, wrap(errs.HandshakeFailure, op, err)
	}
	return secret, nil
}

func (nistP256) SigGenerate(r io.Reader) (SigPrivateKey, SigPublicKey, error) {
	const op = "nistp256.SigGenerate"
	priv, err := ecdsa.GenerateKey(elliptic.P256(), r)
	if err != nil {
		return nil, nil, wrap(errs.InvalidInput, op, err)
	}
	privBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, wrap(errs.InvalidInput, op, err)
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, wrap(errs.InvalidInput, op, err)
	}
	return SigPrivateKey(privBytes), SigPublicKey(pubBytes), nil
}

func (nistP256) Sign(priv SigPrivateKey, message []byte) ([]byte, error) {
	const op = "nistp256.Sign"
	key, err := x509.ParseECPrivateKey(priv)
	if err != nil {
		return nil, wrap(errs.InvalidInput, op, err)
	}
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return nil, wrap(errs.HandshakeFailure, op, err)
	}
	return sig, nil
}

func (nistP256) Verify(pub SigPublicKey, message, sig []byte) error {
	const op = "nistp256.Verify"
	raw, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return wrap(errs.InvalidInput, op, err)
	}
	key, ok := raw.(*ecdsa.PublicKey)
	if !ok {
		return errs.New(errs.InvalidInput, op, fmt.Errorf("not an ECDSA public key"))
	}
	digest := sha256.Sum256(message)
	if !ecdsa.VerifyASN1(key, digest[:], sig) {
		return errs.New(errs.InvalidSignature, op, nil)
	}
	return nil
}

func (nistP256) AEADSeal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	const op = "nistp256.AEADSeal"
	aead, err := newGCM(key)
	if err != nil {
		return nil, wrap(errs.InvalidInput, op, err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, wrap(errs.InvalidInput, op, fmt.Errorf("nonce: want %d bytes, got %d", aead.NonceSize(), len(nonce)))
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func (nistP256) AEADOpen(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	const op = "nistp256.AEADOpen"
	aead, err := newGCM(key)
	if err != nil {
		return nil, wrap(errs.InvalidInput, op, err)
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errs.New(errs.DecryptionFailed, op, nil)
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (nistP256) HKDF(salt, ikm, info []byte, length int) ([]byte, error) {
	const op = "nistp256.HKDF"
	out := make([]byte, length)
	r := hkdf.New(sha256.New, ikm, salt, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, wrap(errs.HandshakeFailure, op, err)
	}
	return out, nil
}

func (n *nistP256) KDFRootKey(root, dh []byte) (newRoot, chain []byte, err error) {
	const op = "nistp256.KDFRootKey"
	buf := make([]byte, RootKeyLen+ChainKeyLen)
	r := hkdf.New(sha256.New, dh, root, n.rkInfo)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, wrap(errs.HandshakeFailure, op, err)
	}
	return buf[:RootKeyLen:RootKeyLen], buf[RootKeyLen : RootKeyLen+ChainKeyLen : RootKeyLen+ChainKeyLen], nil
}

func (nistP256) KDFChainKey(chain []byte) (newChain, messageKey []byte, err error) {
	const op = "nistp256.KDFChainKey"
	buf := make([]byte, ChainKeyLen+MessageKeyLen)
	r := hkdf.New(sha256.New, nil, chain, []byte(chainKeyInfo))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, wrap(errs.HandshakeFailure, op, err)
	}
	return buf[:ChainKeyLen:ChainKeyLen], buf[ChainKeyLen : ChainKeyLen+MessageKeyLen : ChainKeyLen+MessageKeyLen], nil
}

func (nistP256) RandomNonce(r io.Reader) ([]byte, error) {
	const op = "nistp256.RandomNonce"
	n := make([]byte, 12)
	if _, err := io.ReadFull(r, n); err != nil {
		return nil, wrap(errs.InvalidInput, op, err)
	}
	return n, nil
}
