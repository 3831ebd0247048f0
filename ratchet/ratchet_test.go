package ratchet_test

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"e2ecore/errs"
	"e2ecore/ratchet"
	"e2ecore/suite"
)

// sharedSetup builds an Alice/Bob pair sharing a root key, as if X3DH had
// just completed, with Bob's identity key pair playing the role of his
// first ratchet key.
func sharedSetup(t *testing.T, s suite.Suite) (*ratchet.State, *ratchet.State) {
	t.Helper()

	rootKey := make([]byte, suite.RootKeyLen)
	_, err := rand.Read(rootKey)
	require.NoError(t, err)

	bobPriv, bobPub, err := s.KEMGenerate(rand.Reader)
	require.NoError(t, err)

	alice, err := ratchet.NewInitiator(s, rootKey, bobPub, 0, 0, rand.Reader)
	require.NoError(t, err)
	bob, err := ratchet.NewResponder(s, rootKey, bobPriv, bobPub, 0, 0)
	require.NoError(t, err)
	return alice, bob
}

func TestAliceBobTwoTurnExchange(t *testing.T) {
	for _, suiteCase := range []struct {
		name string
		s    suite.Suite
	}{
		{"classic", suite.NewClassic("e2ecore-ratchet-test")},
		{"nistp256", suite.NewNISTP256("e2ecore-ratchet-test")},
	} {
		t.Run(suiteCase.name, func(t *testing.T) {
			alice, bob := sharedSetup(t, suiteCase.s)

			msg1, err := alice.Encrypt([]byte("hello bob"), rand.Reader)
			require.NoError(t, err)
			pt1, err := bob.Decrypt(msg1)
			require.NoError(t, err)
			require.Equal(t, "hello bob", string(pt1))

			msg2, err := bob.Encrypt([]byte("hello alice"), rand.Reader)
			require.NoError(t, err)
			pt2, err := alice.Decrypt(msg2)
			require.NoError(t, err)
			require.Equal(t, "hello alice", string(pt2))

			msg3, err := alice.Encrypt([]byte("how are you"), rand.Reader)
			require.NoError(t, err)
			pt3, err := bob.Decrypt(msg3)
			require.NoError(t, err)
			require.Equal(t, "how are you", string(pt3))
		})
	}
}

func TestOutOfOrderDelivery(t *testing.T) {
	s := suite.NewClassic("e2ecore-ratchet-test")
	alice, bob := sharedSetup(t, s)

	m1, err := alice.Encrypt([]byte("one"), rand.Reader)
	require.NoError(t, err)
	m2, err := alice.Encrypt([]byte("two"), rand.Reader)
	require.NoError(t, err)
	m3, err := alice.Encrypt([]byte("three"), rand.Reader)
	require.NoError(t, err)

	pt3, err := bob.Decrypt(m3)
	require.NoError(t, err)
	require.Equal(t, "three", string(pt3))

	pt1, err := bob.Decrypt(m1)
	require.NoError(t, err)
	require.Equal(t, "one", string(pt1))

	pt2, err := bob.Decrypt(m2)
	require.NoError(t, err)
	require.Equal(t, "two", string(pt2))
}

func TestLateArrivalAcrossRatchetStep(t *testing.T) {
	s := suite.NewClassic("e2ecore-ratchet-test")
	alice, bob := sharedSetup(t, s)

	a1, err := alice.Encrypt([]byte("a1"), rand.Reader)
	require.NoError(t, err)
	a2, err := alice.Encrypt([]byte("a2-delayed"), rand.Reader)
	require.NoError(t, err)

	ptA1, err := bob.Decrypt(a1)
	require.NoError(t, err)
	require.Equal(t, "a1", string(ptA1))

	// Bob's first reply carries a fresh ratchet key, since receiving a1
	// triggered his DH ratchet step.
	b1, err := bob.Encrypt([]byte("b1"), rand.Reader)
	require.NoError(t, err)
	ptB1, err := alice.Decrypt(b1)
	require.NoError(t, err)
	require.Equal(t, "b1", string(ptB1))

	// Alice's next message carries her own new ratchet key, with PN
	// recording that her previous chain held 2 messages (a1, a2).
	a3, err := alice.Encrypt([]byte("a3"), rand.Reader)
	require.NoError(t, err)
	pt3, err := bob.Decrypt(a3)
	require.NoError(t, err)
	require.Equal(t, "a3", string(pt3))

	// a2 arrives last, addressed to the old ratchet key: bob must have
	// cached its message key when he jumped past it on a3's arrival.
	pt2, err := bob.Decrypt(a2)
	require.NoError(t, err)
	require.Equal(t, "a2-delayed", string(pt2))
}

func TestTamperedCiphertextRejected(t *testing.T) {
	s := suite.NewClassic("e2ecore-ratchet-test")
	alice, bob := sharedSetup(t, s)

	msg, err := alice.Encrypt([]byte("hello"), rand.Reader)
	require.NoError(t, err)
	msg.Ciphertext[0] ^= 0xff

	_, err = bob.Decrypt(msg)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.DecryptionFailed))
}

func TestEncryptBeforeFirstReceiveFails(t *testing.T) {
	s := suite.NewClassic("e2ecore-ratchet-test")
	_, bob := sharedSetup(t, s)

	_, err := bob.Encrypt([]byte("too early"), rand.Reader)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.NoSession))
}

func TestTooManySkippedRejected(t *testing.T) {
	s := suite.NewClassic("e2ecore-ratchet-test")

	rootKey := make([]byte, suite.RootKeyLen)
	_, err := rand.Read(rootKey)
	require.NoError(t, err)

	bobPriv, bobPub, err := s.KEMGenerate(rand.Reader)
	require.NoError(t, err)
	alice, err := ratchet.NewInitiator(s, rootKey, bobPub, 5, time.Hour, rand.Reader)
	require.NoError(t, err)
	bob, err := ratchet.NewResponder(s, rootKey, bobPriv, bobPub, 5, time.Hour)
	require.NoError(t, err)

	var last ratchet.Message
	for i := 0; i < 10; i++ {
		last, err = alice.Encrypt([]byte("msg"), rand.Reader)
		require.NoError(t, err)
	}

	_, err = bob.Decrypt(last)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.TooManySkipped))
}

func TestWireRoundTrip(t *testing.T) {
	s := suite.NewClassic("e2ecore-ratchet-test")
	alice, _ := sharedSetup(t, s)

	msg, err := alice.Encrypt([]byte("wire me"), rand.Reader)
	require.NoError(t, err)

	b, err := msg.Marshal()
	require.NoError(t, err)

	got, err := ratchet.UnmarshalMessage(b)
	require.NoError(t, err)
	require.Equal(t, msg.DHPublic, got.DHPublic)
	require.Equal(t, msg.N, got.N)
	require.Equal(t, msg.PN, got.PN)
	require.Equal(t, msg.Nonce, got.Nonce)
	require.Equal(t, msg.Ciphertext, got.Ciphertext)
	require.Equal(t, msg.SuiteID, got.SuiteID)
}
