// Package keyvault seals a KeyManager's private material under a
// user-supplied password, for at-rest storage or portable backup. The
// derivation and sealing scheme is taken directly from the password-backup
// design this project was distilled from: PBKDF2-HMAC-SHA256 to stretch
// the password into a key-encryption key, then AES-256-GCM per field.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/pbkdf2"

	"e2ecore/errs"
	"e2ecore/internal/memzero"
	"e2ecore/keymanager"
	"e2ecore/suite"
)

// FormatVersion is bumped whenever the sealed layout changes incompatibly.
const FormatVersion byte = 1

const (
	saltLen = 16
	kekLen  = 32
)

// sealedField is one AES-256-GCM-encrypted private key.
type sealedField struct {
	Nonce      []byte `msgpack:"nonce"`
	Ciphertext []byte `msgpack:"ct"`
}

// Vault is the serialisable sealed form of a KeyManager's private state.
// The signed prekey's public half and signature travel in the clear: they
// are not secret, and keeping them readable lets a vault be inspected
// without unsealing it.
type Vault struct {
	Version      byte            `msgpack:"v"`
	SuiteID      suite.ID        `msgpack:"sid"`
	Iterations   int             `msgpack:"iter"`
	Salt         []byte          `msgpack:"salt"`
	IdentityPriv sealedField     `msgpack:"ik"`
	SigningPriv  sealedField     `msgpack:"sk"`
	PrekeyPriv   sealedField     `msgpack:"pk"`
	PrekeyPub    suite.PublicKey `msgpack:"pkpub"`
	PrekeySig    []byte          `msgpack:"pksig"`
	PrekeyID     uint32          `msgpack:"pkid"`
}

// Seal derives a key-encryption key from password via PBKDF2-HMAC-SHA256
// with iterations rounds, then encrypts each of the manager's private
// keys under it with an independent random nonce.
func Seal(s suite.Suite, m *keymanager.Manager, password string, iterations int) (*Vault, error) {
	const op = "keyvault.Seal"
	if len(password) == 0 {
		return nil, errs.New(errs.InvalidInput, op, fmt.Errorf("password must not be empty"))
	}
	if iterations <= 0 {
		return nil, errs.New(errs.InvalidInput, op, fmt.Errorf("iterations must be positive"))
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errs.New(errs.InvalidInput, op, err)
	}
	kek := deriveKEK(password, salt, iterations)
	defer memzero.Zero(kek)

	current := m.CurrentSignedPrekey()

	identitySealed, err := sealField(kek, []byte("identity"), m.IdentityPrivate())
	if err != nil {
		return nil, errs.New(errs.Storage, op, err)
	}
	signingSealed, err := sealField(kek, []byte("signing"), m.SigningPrivate())
	if err != nil {
		return nil, errs.New(errs.Storage, op, err)
	}
	prekeySealed, err := sealField(kek, []byte("prekey"), current.Priv)
	if err != nil {
		return nil, errs.New(errs.Storage, op, err)
	}

	return &Vault{
		Version:      FormatVersion,
		SuiteID:      s.ID(),
		Iterations:   iterations,
		Salt:         salt,
		IdentityPriv: identitySealed,
		SigningPriv:  signingSealed,
		PrekeyPriv:   prekeySealed,
		PrekeyPub:    current.Pub,
		PrekeySig:    current.Signature,
		PrekeyID:     current.KeyID,
	}, nil
}

// Unseal restores a KeyManager from a Vault given the correct password.
// A wrong password surfaces as errs.InvalidPassword, since AES-GCM
// authentication failure is the only signal available.
func Unseal(s suite.Suite, v *Vault, password string, maxPrekeyAge time.Duration) (*keymanager.Manager, error) {
	const op = "keyvault.Unseal"
	if v.Version != FormatVersion {
		return nil, errs.New(errs.InvalidInput, op, fmt.Errorf("unsupported vault format version %d", v.Version))
	}
	if v.SuiteID != s.ID() {
		return nil, errs.New(errs.InvalidInput, op, fmt.Errorf("vault suite %s does not match %s", v.SuiteID, s.ID()))
	}

	kek := deriveKEK(password, v.Salt, v.Iterations)
	defer memzero.Zero(kek)

	identityPriv, err := openField(kek, []byte("identity"), v.IdentityPriv)
	if err != nil {
		return nil, errs.New(errs.InvalidPassword, op, err)
	}
	signingPriv, err := openField(kek, []byte("signing"), v.SigningPriv)
	if err != nil {
		return nil, errs.New(errs.InvalidPassword, op, err)
	}
	prekeyPriv, err := openField(kek, []byte("prekey"), v.PrekeyPriv)
	if err != nil {
		return nil, errs.New(errs.InvalidPassword, op, err)
	}

	return keymanager.FromKeys(s, suite.PrivateKey(identityPriv), suite.SigPrivateKey(signingPriv), suite.PrivateKey(prekeyPriv), v.PrekeySig, maxPrekeyAge)
}

// Marshal encodes a Vault for storage.
func (v *Vault) Marshal() ([]byte, error) {
	const op = "keyvault.Vault.Marshal"
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errs.New(errs.Serialization, op, err)
	}
	return b, nil
}

// UnmarshalVault decodes bytes produced by Vault.Marshal.
func UnmarshalVault(b []byte) (*Vault, error) {
	const op = "keyvault.UnmarshalVault"
	var v Vault
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, errs.New(errs.Serialization, op, err)
	}
	return &v, nil
}

func deriveKEK(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, kekLen, sha256.New)
}

func sealField(kek, aad, plaintext []byte) (sealedField, error) {
	aead, err := newGCM(kek)
	if err != nil {
		return sealedField{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return sealedField{}, err
	}
	ct := aead.Seal(nil, nonce, plaintext, aad)
	return sealedField{Nonce: nonce, Ciphertext: ct}, nil
}

func openField(kek, aad []byte, f sealedField) ([]byte, error) {
	aead, err := newGCM(kek)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, f.Nonce, f.Ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("authentication failed")
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
